package repository

import (
	"context"
	"errors"
	"fmt"

	"dailymoney/internal/core"
	"dailymoney/internal/store"
)

type AccountBookRepository struct {
	store   store.AccountBookStore
	tracker *Tracker
}

func NewAccountBookRepository(s store.AccountBookStore, t *Tracker) *AccountBookRepository {
	return &AccountBookRepository{store: s, tracker: t}
}

// WatchAll streams every account book, newest first.
func (r *AccountBookRepository) WatchAll(ctx context.Context) <-chan []core.AccountBook {
	return watch(ctx, r.tracker, "account_books", r.store.ListAccountBooks, TableAccountBooks)
}

func (r *AccountBookRepository) List(ctx context.Context) ([]core.AccountBook, error) {
	return r.store.ListAccountBooks(ctx)
}

// Get returns nil when the book does not exist.
func (r *AccountBookRepository) Get(ctx context.Context, id int64) (*core.AccountBook, error) {
	b, err := r.store.GetAccountBook(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// First returns the newest account book, or nil when there is none.
func (r *AccountBookRepository) First(ctx context.Context) (*core.AccountBook, error) {
	books, err := r.store.ListAccountBooks(ctx)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, nil
	}
	return &books[0], nil
}

func (r *AccountBookRepository) HasAny(ctx context.Context) (bool, error) {
	n, err := r.store.CountAccountBooks(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *AccountBookRepository) Create(ctx context.Context, b core.AccountBook) (int64, error) {
	b.Name = core.NormalizeName(b.Name)
	if err := b.Validate(); err != nil {
		return 0, fmt.Errorf("validate account book: %w", err)
	}
	id, err := r.store.InsertAccountBook(ctx, b)
	if err != nil {
		return 0, err
	}
	r.tracker.Notify(ctx, TableAccountBooks)
	return id, nil
}

func (r *AccountBookRepository) Update(ctx context.Context, b core.AccountBook) error {
	b.Name = core.NormalizeName(b.Name)
	if err := b.Validate(); err != nil {
		return fmt.Errorf("validate account book: %w", err)
	}
	if err := r.store.UpdateAccountBook(ctx, b); err != nil {
		return err
	}
	r.tracker.Notify(ctx, TableAccountBooks)
	return nil
}

// Delete removes the book and all of its transactions.
func (r *AccountBookRepository) Delete(ctx context.Context, id int64) error {
	if err := r.store.DeleteAccountBook(ctx, id); err != nil {
		return err
	}
	r.tracker.Notify(ctx, TableAccountBooks, TableTransactions)
	return nil
}
