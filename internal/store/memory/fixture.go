package memory

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"dailymoney/internal/core"
)

// fixtureCategories are the illustrative categories of the demo data set.
var fixtureCategories = []core.Category{
	{Name: "餐饮", Color: 0xFF4CAF50, IsExpense: true},
	{Name: "购物", Color: 0xFF2196F3, IsExpense: true},
	{Name: "住房", Color: 0xFFF44336, IsExpense: true},
	{Name: "交通", Color: 0xFFFF9800, IsExpense: true},
	{Name: "教育", Color: 0xFF9C27B0, IsExpense: true},
	{Name: "工资", Color: 0xFF4CAF50, IsExpense: false},
	{Name: "奖金", Color: 0xFF2196F3, IsExpense: false},
	{Name: "投资", Color: 0xFFFF9800, IsExpense: false},
}

// FixtureRemark marks every generated transaction.
const FixtureRemark = "模拟交易记录"

// NewWithFixture returns a store seeded with one ledger, the fixture
// categories and 10-19 transactions for every month of the current and the
// previous year. The same seed always yields the same data.
func NewWithFixture(seed int64, opts ...Option) (*Store, error) {
	s := New(opts...)
	ctx := context.Background()

	bookID, err := s.InsertAccountBook(ctx, core.AccountBook{Name: "默认账本", Description: "系统默认账本"})
	if err != nil {
		return nil, fmt.Errorf("seed fixture account book: %w", err)
	}

	var expense, income []int64
	for _, c := range fixtureCategories {
		id, err := s.InsertCategory(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("seed fixture category %q: %w", c.Name, err)
		}
		if c.IsExpense {
			expense = append(expense, id)
		} else {
			income = append(income, id)
		}
	}

	rng := rand.New(rand.NewSource(seed))
	current := s.now().UTC().Year()
	for year := current - 1; year <= current; year++ {
		for month := 1; month <= 12; month++ {
			count := rng.Intn(10) + 10
			for i := 0; i < count; i++ {
				day := rng.Intn(28) + 1
				// roughly three expenses for every income
				isExpense := rng.Intn(2) == 0 || rng.Intn(2) == 0

				var categoryID int64
				var amount float64
				if isExpense {
					categoryID = expense[rng.Intn(len(expense))]
					amount = rng.Float64()*950 + 50
				} else {
					categoryID = income[rng.Intn(len(income))]
					amount = rng.Float64()*4000 + 1000
				}

				_, err := s.InsertTransaction(ctx, core.Transaction{
					Amount:        core.MoneyFromFloat(amount),
					AccountBookID: bookID,
					CategoryID:    categoryID,
					Remark:        FixtureRemark,
					Date:          time.Date(year, time.Month(month), day, rng.Intn(24), rng.Intn(60), 0, 0, time.UTC),
				})
				if err != nil {
					return nil, fmt.Errorf("seed fixture transaction: %w", err)
				}
			}
		}
	}
	return s, nil
}
