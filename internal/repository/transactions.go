package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dailymoney/internal/core"
	"dailymoney/internal/stats"
	"dailymoney/internal/store"
)

type TransactionRepository struct {
	store   store.TransactionStore
	tracker *Tracker
	now     func() time.Time
}

func NewTransactionRepository(s store.TransactionStore, t *Tracker) *TransactionRepository {
	return &TransactionRepository{store: s, tracker: t, now: time.Now}
}

// Transaction views join categories, so category writes refresh them too.
var transactionTables = []Table{TableTransactions, TableCategories}

// WatchByAccountBook streams the ledger's transactions, newest first.
func (r *TransactionRepository) WatchByAccountBook(ctx context.Context, accountBookID int64) <-chan []core.TransactionDetail {
	q := store.TransactionQuery{AccountBookID: accountBookID}
	return watch(ctx, r.tracker, "transactions_by_account_book", r.query(q), transactionTables...)
}

// WatchByDateRange streams the ledger's transactions in the closed range
// [start, end].
func (r *TransactionRepository) WatchByDateRange(ctx context.Context, accountBookID int64, start, end time.Time) <-chan []core.TransactionDetail {
	q := store.TransactionQuery{AccountBookID: accountBookID, Start: start, End: end}
	return watch(ctx, r.tracker, "transactions_by_date_range", r.query(q), transactionTables...)
}

// WatchByCategory streams all transactions of one category.
func (r *TransactionRepository) WatchByCategory(ctx context.Context, categoryID int64) <-chan []core.TransactionDetail {
	q := store.TransactionQuery{CategoryID: categoryID}
	return watch(ctx, r.tracker, "transactions_by_category", r.query(q), transactionTables...)
}

// WatchAvailableYears streams the ledger's years with data, newest first.
func (r *TransactionRepository) WatchAvailableYears(ctx context.Context, accountBookID int64) <-chan []int {
	load := func(ctx context.Context) ([]int, error) {
		return r.store.TransactionYears(ctx, accountBookID)
	}
	return watch(ctx, r.tracker, "available_years", load, TableTransactions)
}

func (r *TransactionRepository) query(q store.TransactionQuery) func(context.Context) ([]core.TransactionDetail, error) {
	return func(ctx context.Context) ([]core.TransactionDetail, error) {
		return r.store.ListTransactions(ctx, q)
	}
}

func (r *TransactionRepository) ListByAccountBook(ctx context.Context, accountBookID int64) ([]core.TransactionDetail, error) {
	return r.store.ListTransactions(ctx, store.TransactionQuery{AccountBookID: accountBookID})
}

// ListByYear returns the ledger's transactions dated within year.
func (r *TransactionRepository) ListByYear(ctx context.Context, accountBookID int64, year int) ([]core.TransactionDetail, error) {
	start, end, err := stats.Period(year, 0)
	if err != nil {
		return nil, err
	}
	return r.store.ListTransactions(ctx, store.TransactionQuery{AccountBookID: accountBookID, Start: start, End: end})
}

func (r *TransactionRepository) CategoryTotals(ctx context.Context, accountBookID int64, start, end time.Time, isExpense bool) ([]core.CategoryTotal, error) {
	return r.store.CategoryTotals(ctx, accountBookID, start, end, isExpense)
}

func (r *TransactionRepository) AvailableYears(ctx context.Context, accountBookID int64) ([]int, error) {
	return r.store.TransactionYears(ctx, accountBookID)
}

// Get returns nil when the transaction does not exist.
func (r *TransactionRepository) Get(ctx context.Context, id int64) (*core.Transaction, error) {
	t, err := r.store.GetTransaction(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create stores t. A zero Date defaults to now.
func (r *TransactionRepository) Create(ctx context.Context, t core.Transaction) (int64, error) {
	if t.Date.IsZero() {
		t.Date = r.now()
	}
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("validate transaction: %w", err)
	}
	id, err := r.store.InsertTransaction(ctx, t)
	if err != nil {
		return 0, err
	}
	r.tracker.Notify(ctx, TableTransactions)
	return id, nil
}

func (r *TransactionRepository) Update(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validate transaction: %w", err)
	}
	if err := r.store.UpdateTransaction(ctx, t); err != nil {
		return err
	}
	r.tracker.Notify(ctx, TableTransactions)
	return nil
}

func (r *TransactionRepository) Delete(ctx context.Context, id int64) error {
	if err := r.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	r.tracker.Notify(ctx, TableTransactions)
	return nil
}
