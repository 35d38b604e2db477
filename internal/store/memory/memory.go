// Package memory is an in-process store.Store. It keeps the same integrity
// rules as the sqlite store and is used for tests and the demo fixture.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"dailymoney/internal/core"
	applog "dailymoney/internal/log"
	"dailymoney/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu  sync.Mutex
	now func() time.Time

	books        map[int64]core.AccountBook
	categories   map[int64]core.Category
	transactions map[int64]core.Transaction

	nextBookID, nextCategoryID, nextTransactionID int64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		now:          time.Now,
		books:        map[int64]core.AccountBook{},
		categories:   map[int64]core.Category{},
		transactions: map[int64]core.Transaction{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Close() error { return nil }

func (s *Store) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Store) InsertAccountBook(_ context.Context, b core.AccountBook) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextBookID++
	b.ID = s.nextBookID
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.stamp()
	}
	b.UpdatedAt = b.CreatedAt
	s.books[b.ID] = b
	return b.ID, nil
}

func (s *Store) UpdateAccountBook(_ context.Context, b core.AccountBook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.books[b.ID]
	if !ok {
		return nil
	}
	b.CreatedAt = old.CreatedAt
	b.UpdatedAt = s.stamp()
	s.books[b.ID] = b
	return nil
}

func (s *Store) DeleteAccountBook(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for tid, t := range s.transactions {
		if t.AccountBookID == id {
			delete(s.transactions, tid)
			removed++
		}
	}
	applog.FromContext(ctx).DebugContext(ctx, "Account book deleted from memory", applog.FieldAccountBookID, id, "transactions_removed", removed)
	delete(s.books, id)
	return nil
}

func (s *Store) GetAccountBook(_ context.Context, id int64) (core.AccountBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return core.AccountBook{}, core.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListAccountBooks(_ context.Context) ([]core.AccountBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.AccountBook, 0, len(s.books))
	for _, b := range s.books {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b core.AccountBook) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (s *Store) CountAccountBooks(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.books), nil
}

func (s *Store) InsertCategory(_ context.Context, c core.Category) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.categoryNameTaken(c.Name, c.IsExpense, 0) {
		return 0, fmt.Errorf("create category %q: %w", c.Name, core.ErrDuplicateCategory)
	}
	s.nextCategoryID++
	c.ID = s.nextCategoryID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.stamp()
	}
	c.UpdatedAt = c.CreatedAt
	s.categories[c.ID] = c
	return c.ID, nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.categories[c.ID]
	if !ok {
		return nil
	}
	if s.categoryNameTaken(c.Name, c.IsExpense, c.ID) {
		return fmt.Errorf("update category %q: %w", c.Name, core.ErrDuplicateCategory)
	}
	c.CreatedAt = old.CreatedAt
	c.UpdatedAt = s.stamp()
	s.categories[c.ID] = c
	return nil
}

func (s *Store) categoryNameTaken(name string, isExpense bool, except int64) bool {
	for id, c := range s.categories {
		if id != except && c.Name == name && c.IsExpense == isExpense {
			return true
		}
	}
	return false
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for tid, t := range s.transactions {
		if t.CategoryID == id {
			delete(s.transactions, tid)
			removed++
		}
	}
	applog.FromContext(ctx).DebugContext(ctx, "Category deleted from memory", applog.FieldCategoryID, id, "transactions_removed", removed)
	delete(s.categories, id)
	return nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedCategories(func(core.Category) bool { return true }), nil
}

func (s *Store) ListCategoriesByType(_ context.Context, isExpense bool) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedCategories(func(c core.Category) bool { return c.IsExpense == isExpense }), nil
}

func (s *Store) sortedCategories(keep func(core.Category) bool) []core.Category {
	out := make([]core.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if keep(c) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, compareCategories)
	return out
}

// compareCategories orders income before expense, then by name and ID.
func compareCategories(a, b core.Category) int {
	if a.IsExpense != b.IsExpense {
		if a.IsExpense {
			return 1
		}
		return -1
	}
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func (s *Store) CategoryExists(_ context.Context, name string, isExpense bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categoryNameTaken(name, isExpense, 0), nil
}

func (s *Store) checkReferences(t core.Transaction) error {
	if _, ok := s.books[t.AccountBookID]; !ok {
		return fmt.Errorf("account book %d: %w", t.AccountBookID, core.ErrInvalidReference)
	}
	if _, ok := s.categories[t.CategoryID]; !ok {
		return fmt.Errorf("category %d: %w", t.CategoryID, core.ErrInvalidReference)
	}
	return nil
}

func (s *Store) InsertTransaction(_ context.Context, t core.Transaction) (int64, error) {
	if err := core.ValidateDate(t.Date); err != nil {
		return 0, fmt.Errorf("transaction date %v: %w", t.Date, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReferences(t); err != nil {
		return 0, err
	}
	s.nextTransactionID++
	t.ID = s.nextTransactionID
	t.Date = t.Date.UTC().Truncate(time.Millisecond)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.stamp()
	}
	t.UpdatedAt = t.CreatedAt
	s.transactions[t.ID] = t
	return t.ID, nil
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) error {
	if err := core.ValidateDate(t.Date); err != nil {
		return fmt.Errorf("transaction date %v: %w", t.Date, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.transactions[t.ID]
	if !ok {
		return nil
	}
	if err := s.checkReferences(t); err != nil {
		return err
	}
	t.Date = t.Date.UTC().Truncate(time.Millisecond)
	t.CreatedAt = old.CreatedAt
	t.UpdatedAt = s.stamp()
	s.transactions[t.ID] = t
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transactions, id)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, nil
}

func (s *Store) ListTransactions(_ context.Context, q store.TransactionQuery) ([]core.TransactionDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.TransactionDetail, 0)
	for _, t := range s.transactions {
		if !q.Matches(t) {
			continue
		}
		out = append(out, core.TransactionDetail{Transaction: t, Category: s.categories[t.CategoryID]})
	}
	slices.SortFunc(out, func(a, b core.TransactionDetail) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (s *Store) CategoryTotals(_ context.Context, accountBookID int64, start, end time.Time, isExpense bool) ([]core.CategoryTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := store.TransactionQuery{AccountBookID: accountBookID, Start: start, End: end}
	byCategory := map[int64]*core.CategoryTotal{}
	for _, t := range s.transactions {
		c := s.categories[t.CategoryID]
		if !q.Matches(t) || c.IsExpense != isExpense {
			continue
		}
		ct, ok := byCategory[c.ID]
		if !ok {
			ct = &core.CategoryTotal{Category: c}
			byCategory[c.ID] = ct
		}
		ct.Total = ct.Total.Add(t.Amount)
		ct.Count++
	}
	out := make([]core.CategoryTotal, 0, len(byCategory))
	for _, ct := range byCategory {
		out = append(out, *ct)
	}
	slices.SortFunc(out, func(a, b core.CategoryTotal) int {
		if c := cmp.Compare(b.Total.Cents, a.Total.Cents); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Category.Name, b.Category.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.Category.ID, b.Category.ID)
	})
	return out, nil
}

func (s *Store) TransactionYears(_ context.Context, accountBookID int64) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[int]struct{}{}
	for _, t := range s.transactions {
		if t.AccountBookID == accountBookID {
			seen[t.Date.UTC().Year()] = struct{}{}
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	slices.SortFunc(years, func(a, b int) int { return cmp.Compare(b, a) })
	return years, nil
}
