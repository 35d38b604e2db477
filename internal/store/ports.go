// Package store defines the persistence ports of the ledger. Implementations
// live in the sqlite and memory subpackages.
//
// Every implementation keeps referential integrity: a transaction never
// references a missing account book or category, and deleting either parent
// removes its transactions in the same operation.
package store

import (
	"context"
	"time"

	"dailymoney/internal/core"
)

// Ports for persistence adapters.
type (
	AccountBookStore interface {
		// InsertAccountBook stores b and returns its new ID.
		InsertAccountBook(ctx context.Context, b core.AccountBook) (int64, error)
		// UpdateAccountBook replaces the record with b.ID. Missing IDs are ignored.
		UpdateAccountBook(ctx context.Context, b core.AccountBook) error
		// DeleteAccountBook removes the book and its transactions.
		DeleteAccountBook(ctx context.Context, id int64) error
		// GetAccountBook returns core.ErrNotFound when absent.
		GetAccountBook(ctx context.Context, id int64) (core.AccountBook, error)
		// ListAccountBooks orders by creation time, newest first.
		ListAccountBooks(ctx context.Context) ([]core.AccountBook, error)
		CountAccountBooks(ctx context.Context) (int, error)
	}

	CategoryStore interface {
		InsertCategory(ctx context.Context, c core.Category) (int64, error)
		UpdateCategory(ctx context.Context, c core.Category) error
		// DeleteCategory removes the category and its transactions.
		DeleteCategory(ctx context.Context, id int64) error
		GetCategory(ctx context.Context, id int64) (core.Category, error)
		// ListCategories orders by type (income first), then name.
		ListCategories(ctx context.Context) ([]core.Category, error)
		ListCategoriesByType(ctx context.Context, isExpense bool) ([]core.Category, error)
		CategoryExists(ctx context.Context, name string, isExpense bool) (bool, error)
	}

	TransactionStore interface {
		InsertTransaction(ctx context.Context, t core.Transaction) (int64, error)
		UpdateTransaction(ctx context.Context, t core.Transaction) error
		DeleteTransaction(ctx context.Context, id int64) error
		GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
		// ListTransactions filters by the query and orders by date, newest first.
		ListTransactions(ctx context.Context, q TransactionQuery) ([]core.TransactionDetail, error)
		// CategoryTotals groups the ledger's transactions of one type in the
		// closed range [start, end] by category, largest total first.
		CategoryTotals(ctx context.Context, accountBookID int64, start, end time.Time, isExpense bool) ([]core.CategoryTotal, error)
		// TransactionYears returns the distinct years with at least one
		// transaction in the ledger, newest first.
		TransactionYears(ctx context.Context, accountBookID int64) ([]int, error)
	}

	// Store is the full data source used by the repositories.
	Store interface {
		AccountBookStore
		CategoryStore
		TransactionStore
		Close() error
	}
)

// TransactionQuery selects transactions. Zero fields do not filter.
type TransactionQuery struct {
	AccountBookID int64
	CategoryID    int64
	Start         time.Time // inclusive
	End           time.Time // inclusive
}

// HasRange reports whether the query is restricted to a date range.
func (q TransactionQuery) HasRange() bool {
	return !q.Start.IsZero() || !q.End.IsZero()
}

// Matches reports whether t satisfies the query.
func (q TransactionQuery) Matches(t core.Transaction) bool {
	if q.AccountBookID != 0 && t.AccountBookID != q.AccountBookID {
		return false
	}
	if q.CategoryID != 0 && t.CategoryID != q.CategoryID {
		return false
	}
	if !q.Start.IsZero() && t.Date.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && t.Date.After(q.End) {
		return false
	}
	return true
}
