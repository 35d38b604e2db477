package services

import (
	"context"
	"fmt"
	"log/slog"

	"dailymoney/internal/core"
	"dailymoney/internal/repository"
)

const (
	DefaultAccountBookName        = "默认账本"
	DefaultAccountBookDescription = "系统默认账本"
)

// DefaultCategories are created on first start, expense categories first.
var DefaultCategories = []core.Category{
	{Name: "餐饮", Color: 0xFFF44336, IsExpense: true},
	{Name: "交通", Color: 0xFF2196F3, IsExpense: true},
	{Name: "购物", Color: 0xFF9C27B0, IsExpense: true},
	{Name: "娱乐", Color: 0xFFFF9800, IsExpense: true},
	{Name: "医疗", Color: 0xFF4CAF50, IsExpense: true},
	{Name: "教育", Color: 0xFF00BCD4, IsExpense: true},
	{Name: "住房", Color: 0xFF795548, IsExpense: true},
	{Name: "其他", Color: 0xFF607D8B, IsExpense: true},
	{Name: "工资", Color: 0xFF4CAF50, IsExpense: false},
	{Name: "奖金", Color: 0xFF8BC34A, IsExpense: false},
	{Name: "投资", Color: 0xFF009688, IsExpense: false},
	{Name: "其他收入", Color: 0xFF607D8B, IsExpense: false},
}

// BootstrapResult reports what a bootstrap run wrote.
type BootstrapResult struct {
	AccountBookCreated bool
	// DefaultAccountBookID is the created book, or the newest existing one.
	DefaultAccountBookID int64
	CategoriesInserted   int
}

// Bootstrapper seeds the default ledger and categories. Running it again
// only fills in what is missing.
type Bootstrapper struct {
	books      *repository.AccountBookRepository
	categories *repository.CategoryRepository
	logger     *slog.Logger
}

func NewBootstrapper(books *repository.AccountBookRepository, categories *repository.CategoryRepository, logger *slog.Logger) *Bootstrapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bootstrapper{books: books, categories: categories, logger: logger}
}

func (b *Bootstrapper) Run(ctx context.Context) (BootstrapResult, error) {
	var res BootstrapResult

	hasBooks, err := b.books.HasAny(ctx)
	if err != nil {
		return res, fmt.Errorf("check account books: %w", err)
	}
	if hasBooks {
		first, err := b.books.First(ctx)
		if err != nil {
			return res, fmt.Errorf("load default account book: %w", err)
		}
		if first != nil {
			res.DefaultAccountBookID = first.ID
		}
	} else {
		id, err := b.books.Create(ctx, core.AccountBook{
			Name:        DefaultAccountBookName,
			Description: DefaultAccountBookDescription,
		})
		if err != nil {
			return res, fmt.Errorf("create default account book: %w", err)
		}
		res.AccountBookCreated = true
		res.DefaultAccountBookID = id
	}

	for _, c := range DefaultCategories {
		exists, err := b.categories.Exists(ctx, c.Name, c.IsExpense)
		if err != nil {
			return res, fmt.Errorf("check category %q: %w", c.Name, err)
		}
		if exists {
			continue
		}
		if _, err := b.categories.Create(ctx, c); err != nil {
			return res, fmt.Errorf("create category %q: %w", c.Name, err)
		}
		res.CategoriesInserted++
	}

	b.logger.InfoContext(ctx, "Default data bootstrapped",
		"account_book_created", res.AccountBookCreated,
		"account_book_id", res.DefaultAccountBookID,
		"categories_inserted", res.CategoriesInserted)
	return res, nil
}
