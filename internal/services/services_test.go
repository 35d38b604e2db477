package services

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dailymoney/internal/core"
	"dailymoney/internal/repository"
	"dailymoney/internal/store"
	"dailymoney/internal/store/memory"
)

var errStoreDown = errors.New("disk I/O error")

// flakyStore is a memory store whose statistics reads fail while down is set.
type flakyStore struct {
	*memory.Store
	down  atomic.Bool
	reads atomic.Int64
	// afterRead runs after each successful totals or list read
	afterRead func()
}

func (f *flakyStore) read() {
	if f.afterRead != nil {
		f.afterRead()
	}
}

func (f *flakyStore) ListTransactions(ctx context.Context, q store.TransactionQuery) ([]core.TransactionDetail, error) {
	f.reads.Add(1)
	if f.down.Load() {
		return nil, errStoreDown
	}
	defer f.read()
	return f.Store.ListTransactions(ctx, q)
}

func (f *flakyStore) CategoryTotals(ctx context.Context, id int64, start, end time.Time, isExpense bool) ([]core.CategoryTotal, error) {
	f.reads.Add(1)
	if f.down.Load() {
		return nil, errStoreDown
	}
	defer f.read()
	return f.Store.CategoryTotals(ctx, id, start, end, isExpense)
}

func (f *flakyStore) TransactionYears(ctx context.Context, id int64) ([]int, error) {
	f.reads.Add(1)
	if f.down.Load() {
		return nil, errStoreDown
	}
	return f.Store.TransactionYears(ctx, id)
}

type fixture struct {
	store *flakyStore
	repos *repository.Repositories
	stats *StatisticsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := &flakyStore{Store: memory.New()}
	repos := repository.New(s)
	return &fixture{
		store: s,
		repos: repos,
		stats: NewStatisticsService(repos.Transactions, repos.Tracker, DefaultStatisticsConfig(), nil),
	}
}

func (f *fixture) bootstrap(t *testing.T) BootstrapResult {
	t.Helper()
	res, err := NewBootstrapper(f.repos.AccountBooks, f.repos.Categories, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return res
}

func (f *fixture) category(t *testing.T, name string, isExpense bool) int64 {
	t.Helper()
	cats, err := f.repos.Categories.ListByType(context.Background(), isExpense)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	for _, c := range cats {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("category %q not found", name)
	return 0
}

func TestBootstrapperIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first := f.bootstrap(t)
	if !first.AccountBookCreated || first.CategoriesInserted != 12 || first.DefaultAccountBookID == 0 {
		t.Fatalf("unexpected first run %+v", first)
	}

	second := f.bootstrap(t)
	if second.AccountBookCreated || second.CategoriesInserted != 0 {
		t.Fatalf("second run should write nothing, got %+v", second)
	}
	if second.DefaultAccountBookID != first.DefaultAccountBookID {
		t.Fatalf("expected same default book, got %d and %d", first.DefaultAccountBookID, second.DefaultAccountBookID)
	}

	books, _ := f.repos.AccountBooks.List(ctx)
	if len(books) != 1 || books[0].Name != DefaultAccountBookName || books[0].Description != DefaultAccountBookDescription {
		t.Fatalf("unexpected books %+v", books)
	}
	cats, _ := f.repos.Categories.List(ctx)
	if len(cats) != 12 {
		t.Fatalf("expected 12 categories, got %d", len(cats))
	}
	expense, _ := f.repos.Categories.ListByType(ctx, true)
	if len(expense) != 8 {
		t.Fatalf("expected 8 expense categories, got %d", len(expense))
	}
}

func TestBootstrapperFillsMissingCategories(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.repos.AccountBooks.Create(ctx, core.AccountBook{Name: "我的账本"}); err != nil {
		t.Fatalf("create book: %v", err)
	}
	if _, err := f.repos.Categories.Create(ctx, core.Category{Name: "餐饮", Color: 0xFF000000, IsExpense: true}); err != nil {
		t.Fatalf("create category: %v", err)
	}
	// same name as an expense default but income: does not count
	if _, err := f.repos.Categories.Create(ctx, core.Category{Name: "交通", IsExpense: false}); err != nil {
		t.Fatalf("create category: %v", err)
	}

	res := f.bootstrap(t)
	if res.AccountBookCreated || res.CategoriesInserted != 11 {
		t.Fatalf("unexpected result %+v", res)
	}
	cats, _ := f.repos.Categories.List(ctx)
	if len(cats) != 13 {
		t.Fatalf("expected 13 categories, got %d", len(cats))
	}
	food, _ := f.repos.Categories.Get(ctx, f.category(t, "餐饮", true))
	if food.Color != 0xFF000000 {
		t.Errorf("existing category must not be overwritten, got color %#x", uint32(food.Color))
	}
}

func TestYearStatistics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	book := f.bootstrap(t).DefaultAccountBookID
	food := f.category(t, "餐饮", true)
	salary := f.category(t, "工资", false)

	add := func(cents int64, category int64, date time.Time) {
		t.Helper()
		if _, err := f.repos.Transactions.Create(ctx, core.Transaction{
			Amount: core.Money{Cents: cents}, AccountBookID: book, CategoryID: category, Date: date,
		}); err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}
	add(10000, food, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	add(500000, salary, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))

	ps, err := f.stats.YearStatistics(ctx, book, 2024)
	if err != nil {
		t.Fatalf("year statistics: %v", err)
	}
	if ps.TotalExpense.String() != "100.00" || ps.TotalIncome.String() != "5000.00" {
		t.Fatalf("unexpected totals %s/%s", ps.TotalExpense, ps.TotalIncome)
	}
	if len(ps.CategoryStats) != 2 {
		t.Fatalf("expected 2 category rows, got %+v", ps.CategoryStats)
	}
	if ps.CategoryStats[0].Category.Name != "餐饮" || ps.CategoryStats[0].Percentage != 100 {
		t.Errorf("unexpected expense row %+v", ps.CategoryStats[0])
	}
	if ps.CategoryStats[1].Category.Name != "工资" || ps.CategoryStats[1].Percentage != 100 {
		t.Errorf("unexpected income row %+v", ps.CategoryStats[1])
	}

	june, err := f.stats.MonthStatistics(ctx, book, 2024, 6)
	if err != nil {
		t.Fatalf("month statistics: %v", err)
	}
	if !june.TotalExpense.IsZero() || !june.TotalIncome.IsZero() || len(june.CategoryStats) != 0 {
		t.Fatalf("empty month should be zero, got %+v", june)
	}

	if _, err := f.stats.MonthStatistics(ctx, book, 2024, 13); !errors.Is(err, core.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestStatisticsCacheInvalidatedOnWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	book := f.bootstrap(t).DefaultAccountBookID
	food := f.category(t, "餐饮", true)

	if _, err := f.stats.YearStatistics(ctx, book, 2024); err != nil {
		t.Fatalf("first load: %v", err)
	}
	readsAfterFirst := f.store.reads.Load()
	if _, err := f.stats.YearStatistics(ctx, book, 2024); err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if f.store.reads.Load() != readsAfterFirst {
		t.Fatal("second load should be served from cache")
	}

	if _, err := f.repos.Transactions.Create(ctx, core.Transaction{
		Amount: core.Money{Cents: 2500}, AccountBookID: book, CategoryID: food,
		Date: time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	ps, err := f.stats.YearStatistics(ctx, book, 2024)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if ps.TotalExpense.Cents != 2500 {
		t.Fatalf("expected fresh totals after write, got %s", ps.TotalExpense)
	}
}

func TestCachedResultsAreCopies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	book := f.bootstrap(t).DefaultAccountBookID
	food := f.category(t, "餐饮", true)
	if _, err := f.repos.Transactions.Create(ctx, core.Transaction{
		Amount: core.Money{Cents: 10000}, AccountBookID: book, CategoryID: food,
		Date: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 2; i++ {
		ps, err := f.stats.YearStatistics(ctx, book, 2024)
		if err != nil {
			t.Fatalf("year statistics: %v", err)
		}
		if ps.CategoryStats[0].Total.Cents != 10000 || ps.CategoryStats[0].Percentage != 100 {
			t.Fatalf("load %d: cached row was modified: %+v", i, ps.CategoryStats[0])
		}
		ps.CategoryStats[0].Total = core.Money{Cents: 999}
		ps.CategoryStats[0].Percentage = 1

		ms, err := f.stats.MonthlyStatistics(ctx, book, 2024)
		if err != nil {
			t.Fatalf("monthly statistics: %v", err)
		}
		if ms.Expense[2].Total.Cents != 10000 {
			t.Fatalf("load %d: cached series was modified: %+v", i, ms.Expense[2])
		}
		ms.Expense[2].Total = core.Money{Cents: 1}
		slices.Reverse(ms.Income)

		years, err := f.stats.AvailableYears(ctx, book)
		if err != nil || !slices.Equal(years, []int{2024}) {
			t.Fatalf("load %d: unexpected years %v err=%v", i, years, err)
		}
		years[0] = 1999
	}
}

func TestLoadOverlappingWriteIsNotCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	book := f.bootstrap(t).DefaultAccountBookID
	food := f.category(t, "餐饮", true)

	var once sync.Once
	f.store.afterRead = func() {
		once.Do(func() {
			if _, err := f.repos.Transactions.Create(ctx, core.Transaction{
				Amount: core.Money{Cents: 700}, AccountBookID: book, CategoryID: food,
				Date: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			}); err != nil {
				t.Errorf("create: %v", err)
			}
		})
	}

	// the first load raced with the write, whatever it saw must not stick
	if _, err := f.stats.MonthlyStatistics(ctx, book, 2024); err != nil {
		t.Fatalf("first load: %v", err)
	}
	f.store.afterRead = nil

	ms, err := f.stats.MonthlyStatistics(ctx, book, 2024)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if ms.TotalExpense.Cents != 700 {
		t.Fatalf("expected the write to be visible, got %s", ms.TotalExpense)
	}
}

func TestRememberSkippedAfterInvalidate(t *testing.T) {
	f := newFixture(t)
	gen := f.stats.currentGeneration()
	f.stats.Invalidate(context.Background())

	stored := false
	f.stats.remember(gen, func() { stored = true })
	if stored {
		t.Fatal("a result loaded before a purge must not be cached")
	}
	f.stats.remember(f.stats.currentGeneration(), func() { stored = true })
	if !stored {
		t.Fatal("a result loaded after the purge should be cached")
	}
}

func TestMonthlyStatisticsFallsBackToMock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	book := f.bootstrap(t).DefaultAccountBookID

	empty, err := f.stats.MonthlyStatistics(ctx, book, 2024)
	if err != nil {
		t.Fatalf("empty year: %v", err)
	}
	if empty.Mock || !empty.TotalExpense.IsZero() {
		t.Fatalf("empty data must not be mocked, got %+v", empty)
	}

	f.store.down.Store(true)
	f.stats.Invalidate(ctx)

	ms, err := f.stats.MonthlyStatistics(ctx, book, 2024)
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if !ms.Mock || ms.Year != 2024 || ms.Expense[0].Total.Cents != 150000 {
		t.Fatalf("expected mock series, got %+v", ms)
	}

	// the mock is not cached
	f.store.down.Store(false)
	ms, err = f.stats.MonthlyStatistics(ctx, book, 2024)
	if err != nil || ms.Mock {
		t.Fatalf("expected real data after recovery, got mock=%v err=%v", ms.Mock, err)
	}
}

func TestAvailableYears(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	book := f.bootstrap(t).DefaultAccountBookID
	food := f.category(t, "餐饮", true)

	for _, y := range []int{2022, 2024, 2024} {
		if _, err := f.repos.Transactions.Create(ctx, core.Transaction{
			Amount: core.Money{Cents: 1}, AccountBookID: book, CategoryID: food,
			Date: time.Date(y, 6, 1, 0, 0, 0, 0, time.UTC),
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	years, err := f.stats.AvailableYears(ctx, book)
	if err != nil || !slices.Equal(years, []int{2024, 2022}) {
		t.Fatalf("unexpected years %v err=%v", years, err)
	}

	f.store.down.Store(true)
	f.stats.Invalidate(ctx)
	if _, err := f.stats.AvailableYears(ctx, book); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
}
