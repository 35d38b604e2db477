// Package sqlite is the durable store.Store implementation backed by
// modernc.org/sqlite. The schema is applied with golang-migrate on open.
//
// Timestamps are stored as fixed-width UTC text (millisecond precision) so
// that lexical order is chronological and strftime works on them.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"dailymoney/internal/core"
	applog "dailymoney/internal/log"
	"dailymoney/internal/store"
)

const timeLayout = "2006-01-02 15:04:05.000"

var _ store.Store = (*Store)(nil)

type Store struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func Open(dbPath string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations before the pool is opened
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// withTx runs fn in a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(s.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) stamp() string {
	return formatTime(s.now())
}

func (s *Store) InsertAccountBook(ctx context.Context, b core.AccountBook) (int64, error) {
	created := s.stamp()
	if !b.CreatedAt.IsZero() {
		created = formatTime(b.CreatedAt)
	}
	id, err := s.queries.CreateAccountBook(ctx, CreateAccountBookParams{
		Name:        b.Name,
		Description: nullString(b.Description),
		Color:       nullColor(b.Color),
		CreatedAt:   created,
		UpdatedAt:   created,
	})
	if err != nil {
		return 0, fmt.Errorf("create account book: %w", err)
	}

	applog.FromContext(ctx).DebugContext(ctx, "Account book saved to SQLite", applog.FieldAccountBookID, id, "name", b.Name)
	return id, nil
}

func (s *Store) UpdateAccountBook(ctx context.Context, b core.AccountBook) error {
	n, err := s.queries.UpdateAccountBook(ctx, UpdateAccountBookParams{
		ID:          b.ID,
		Name:        b.Name,
		Description: nullString(b.Description),
		Color:       nullColor(b.Color),
		UpdatedAt:   s.stamp(),
	})
	if err != nil {
		return fmt.Errorf("update account book: %w", err)
	}
	if n == 0 {
		applog.FromContext(ctx).DebugContext(ctx, "Account book update matched no rows", applog.FieldAccountBookID, b.ID)
	}
	return nil
}

func (s *Store) DeleteAccountBook(ctx context.Context, id int64) error {
	var removed int64
	err := s.withTx(ctx, func(q *Queries) error {
		n, err := q.DeleteTransactionsByAccountBook(ctx, id)
		if err != nil {
			return fmt.Errorf("delete account book transactions: %w", err)
		}
		removed = n
		if _, err := q.DeleteAccountBook(ctx, id); err != nil {
			return fmt.Errorf("delete account book: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	applog.FromContext(ctx).InfoContext(ctx, "Account book deleted", applog.FieldAccountBookID, id, "transactions_removed", removed)
	return nil
}

func (s *Store) GetAccountBook(ctx context.Context, id int64) (core.AccountBook, error) {
	row, err := s.queries.GetAccountBook(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.AccountBook{}, core.ErrNotFound
	}
	if err != nil {
		return core.AccountBook{}, fmt.Errorf("get account book by id: %w", err)
	}
	return toAccountBook(row)
}

func (s *Store) ListAccountBooks(ctx context.Context) ([]core.AccountBook, error) {
	rows, err := s.queries.ListAccountBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list account books: %w", err)
	}
	books := make([]core.AccountBook, 0, len(rows))
	for _, r := range rows {
		b, err := toAccountBook(r)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, nil
}

func (s *Store) CountAccountBooks(ctx context.Context) (int, error) {
	n, err := s.queries.CountAccountBooks(ctx)
	if err != nil {
		return 0, fmt.Errorf("count account books: %w", err)
	}
	return int(n), nil
}

func (s *Store) InsertCategory(ctx context.Context, c core.Category) (int64, error) {
	created := s.stamp()
	if !c.CreatedAt.IsZero() {
		created = formatTime(c.CreatedAt)
	}
	id, err := s.queries.CreateCategory(ctx, CreateCategoryParams{
		Name:      c.Name,
		Icon:      nullString(c.Icon),
		Color:     int64(c.Color),
		IsExpense: c.IsExpense,
		CreatedAt: created,
		UpdatedAt: created,
	})
	if err != nil {
		return 0, fmt.Errorf("create category: %w", translate(err))
	}

	applog.FromContext(ctx).DebugContext(ctx, "Category saved to SQLite", applog.FieldCategoryID, id, "name", c.Name, applog.FieldIsExpense, c.IsExpense)
	return id, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c core.Category) error {
	_, err := s.queries.UpdateCategory(ctx, UpdateCategoryParams{
		ID:        c.ID,
		Name:      c.Name,
		Icon:      nullString(c.Icon),
		Color:     int64(c.Color),
		IsExpense: c.IsExpense,
		UpdatedAt: s.stamp(),
	})
	if err != nil {
		return fmt.Errorf("update category: %w", translate(err))
	}
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	var removed int64
	err := s.withTx(ctx, func(q *Queries) error {
		n, err := q.DeleteTransactionsByCategory(ctx, id)
		if err != nil {
			return fmt.Errorf("delete category transactions: %w", err)
		}
		removed = n
		if _, err := q.DeleteCategory(ctx, id); err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	applog.FromContext(ctx).InfoContext(ctx, "Category deleted", applog.FieldCategoryID, id, "transactions_removed", removed)
	return nil
}

func (s *Store) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	row, err := s.queries.GetCategory(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category by id: %w", err)
	}
	return toCategory(row)
}

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return toCategories(rows)
}

func (s *Store) ListCategoriesByType(ctx context.Context, isExpense bool) ([]core.Category, error) {
	rows, err := s.queries.ListCategoriesByType(ctx, isExpense)
	if err != nil {
		return nil, fmt.Errorf("list categories by type: %w", err)
	}
	return toCategories(rows)
}

func (s *Store) CategoryExists(ctx context.Context, name string, isExpense bool) (bool, error) {
	exists, err := s.queries.CategoryExists(ctx, name, isExpense)
	if err != nil {
		return false, fmt.Errorf("check category exists: %w", err)
	}
	return exists, nil
}

// checkReferences verifies both parents of t exist.
func checkReferences(ctx context.Context, q *Queries, t core.Transaction) error {
	ok, err := q.AccountBookExists(ctx, t.AccountBookID)
	if err != nil {
		return fmt.Errorf("check account book: %w", err)
	}
	if !ok {
		return fmt.Errorf("account book %d: %w", t.AccountBookID, core.ErrInvalidReference)
	}
	ok, err = q.CategoryIDExists(ctx, t.CategoryID)
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if !ok {
		return fmt.Errorf("category %d: %w", t.CategoryID, core.ErrInvalidReference)
	}
	return nil
}

func (s *Store) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := core.ValidateDate(t.Date); err != nil {
		return 0, fmt.Errorf("transaction date %v: %w", t.Date, err)
	}
	created := s.stamp()
	if !t.CreatedAt.IsZero() {
		created = formatTime(t.CreatedAt)
	}
	var id int64
	err := s.withTx(ctx, func(q *Queries) error {
		if err := checkReferences(ctx, q, t); err != nil {
			return err
		}
		var err error
		id, err = q.CreateTransaction(ctx, CreateTransactionParams{
			AmountCents:     t.Amount.Cents,
			AccountBookID:   t.AccountBookID,
			CategoryID:      t.CategoryID,
			Remark:          nullString(t.Remark),
			TransactionDate: formatTime(t.Date),
			CreatedAt:       created,
			UpdatedAt:       created,
		})
		if err != nil {
			return fmt.Errorf("create transaction: %w", translate(err))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	fields := applog.NewFields().WithTransaction(id, t.Amount.Cents, t.AccountBookID, t.CategoryID)
	applog.FromContext(ctx).DebugContext(ctx, "Transaction saved to SQLite", fields.ToSlice()...)
	return id, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := core.ValidateDate(t.Date); err != nil {
		return fmt.Errorf("transaction date %v: %w", t.Date, err)
	}
	return s.withTx(ctx, func(q *Queries) error {
		if err := checkReferences(ctx, q, t); err != nil {
			return err
		}
		_, err := q.UpdateTransaction(ctx, UpdateTransactionParams{
			ID:              t.ID,
			AmountCents:     t.Amount.Cents,
			AccountBookID:   t.AccountBookID,
			CategoryID:      t.CategoryID,
			Remark:          nullString(t.Remark),
			TransactionDate: formatTime(t.Date),
			UpdatedAt:       s.stamp(),
		})
		if err != nil {
			return fmt.Errorf("update transaction: %w", translate(err))
		}
		return nil
	})
}

func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	if _, err := s.queries.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := s.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction by id: %w", err)
	}
	return toTransaction(row)
}

func (s *Store) ListTransactions(ctx context.Context, q store.TransactionQuery) ([]core.TransactionDetail, error) {
	params := ListTransactionsParams{
		AccountBookID: q.AccountBookID,
		CategoryID:    q.CategoryID,
	}
	if !q.Start.IsZero() {
		params.Start = formatTime(q.Start)
	}
	if !q.End.IsZero() {
		params.End = formatTime(q.End)
	}
	rows, err := s.queries.ListTransactions(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	items := make([]core.TransactionDetail, 0, len(rows))
	for _, r := range rows {
		t, err := toTransaction(r.Transaction)
		if err != nil {
			return nil, err
		}
		c, err := toCategory(r.Category)
		if err != nil {
			return nil, err
		}
		items = append(items, core.TransactionDetail{Transaction: t, Category: c})
	}
	return items, nil
}

func (s *Store) CategoryTotals(ctx context.Context, accountBookID int64, start, end time.Time, isExpense bool) ([]core.CategoryTotal, error) {
	rows, err := s.queries.GetCategoryTotals(ctx, GetCategoryTotalsParams{
		AccountBookID: accountBookID,
		Start:         formatTime(start),
		End:           formatTime(end),
		IsExpense:     isExpense,
	})
	if err != nil {
		return nil, fmt.Errorf("get category totals: %w", err)
	}
	totals := make([]core.CategoryTotal, 0, len(rows))
	for _, r := range rows {
		c, err := toCategory(r.Category)
		if err != nil {
			return nil, err
		}
		totals = append(totals, core.CategoryTotal{
			Category: c,
			Total:    core.Money{Cents: r.TotalCents},
			Count:    int(r.Count),
		})
	}
	return totals, nil
}

func (s *Store) TransactionYears(ctx context.Context, accountBookID int64) ([]int, error) {
	rows, err := s.queries.GetTransactionYears(ctx, accountBookID)
	if err != nil {
		return nil, fmt.Errorf("get transaction years: %w", err)
	}
	years := make([]int, len(rows))
	for i, y := range rows {
		years[i] = int(y)
	}
	return years, nil
}

// translate maps constraint violations to domain errors.
func translate(err error) error {
	var se *sqlitedrv.Error
	if !errors.As(err, &se) {
		return err
	}
	switch {
	case se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE,
		strings.Contains(se.Error(), "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", core.ErrDuplicateCategory, err)
	case se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY,
		strings.Contains(se.Error(), "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", core.ErrInvalidReference, err)
	default:
		return err
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullColor(c core.Color) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(c), Valid: c != 0}
}

func toAccountBook(r AccountBook) (core.AccountBook, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return core.AccountBook{}, err
	}
	updated, err := parseTime(r.UpdatedAt)
	if err != nil {
		return core.AccountBook{}, err
	}
	return core.AccountBook{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description.String,
		Color:       core.Color(r.Color.Int64),
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

func toCategory(r Category) (core.Category, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return core.Category{}, err
	}
	updated, err := parseTime(r.UpdatedAt)
	if err != nil {
		return core.Category{}, err
	}
	return core.Category{
		ID:        r.ID,
		Name:      r.Name,
		Icon:      r.Icon.String,
		Color:     core.Color(r.Color),
		IsExpense: r.IsExpense,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

func toCategories(rows []Category) ([]core.Category, error) {
	cats := make([]core.Category, 0, len(rows))
	for _, r := range rows {
		c, err := toCategory(r)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, nil
}

func toTransaction(r Transaction) (core.Transaction, error) {
	date, err := parseTime(r.TransactionDate)
	if err != nil {
		return core.Transaction{}, err
	}
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	updated, err := parseTime(r.UpdatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		ID:            r.ID,
		Amount:        core.Money{Cents: r.AmountCents},
		AccountBookID: r.AccountBookID,
		CategoryID:    r.CategoryID,
		Remark:        r.Remark.String,
		Date:          date,
		CreatedAt:     created,
		UpdatedAt:     updated,
	}, nil
}
