// Package storetest holds behavioural tests shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dailymoney/internal/core"
	"dailymoney/internal/store"
)

// Factory returns a fresh, empty store whose clock is now.
type Factory func(t *testing.T, now func() time.Time) store.Store

// Clock returns a clock that starts at base and advances one second per call.
func Clock(base time.Time) func() time.Time {
	var mu sync.Mutex
	cur := base
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := cur
		cur = cur.Add(time.Second)
		return t
	}
}

// Run executes the shared store contract against newStore.
func Run(t *testing.T, newStore Factory) {
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	open := func(t *testing.T) store.Store {
		t.Helper()
		s := newStore(t, Clock(base))
		t.Cleanup(func() { s.Close() })
		return s
	}

	t.Run("account book crud and ordering", func(t *testing.T) { testAccountBooks(t, open(t)) })
	t.Run("category exists and ordering", func(t *testing.T) { testCategories(t, open(t)) })
	t.Run("transaction references", func(t *testing.T) { testTransactionReferences(t, open(t)) })
	t.Run("out of range dates", func(t *testing.T) { testOutOfRangeDates(t, open(t)) })
	t.Run("cascade delete account book", func(t *testing.T) { testCascadeAccountBook(t, open(t)) })
	t.Run("cascade delete category", func(t *testing.T) { testCascadeCategory(t, open(t)) })
	t.Run("list transactions", func(t *testing.T) { testListTransactions(t, open(t)) })
	t.Run("category totals", func(t *testing.T) { testCategoryTotals(t, open(t)) })
	t.Run("transaction years", func(t *testing.T) { testTransactionYears(t, open(t)) })
}

func mustBook(t *testing.T, s store.Store, name string) int64 {
	t.Helper()
	id, err := s.InsertAccountBook(context.Background(), core.AccountBook{Name: name})
	if err != nil {
		t.Fatalf("insert account book %q: %v", name, err)
	}
	return id
}

func mustCategory(t *testing.T, s store.Store, name string, isExpense bool) int64 {
	t.Helper()
	id, err := s.InsertCategory(context.Background(), core.Category{Name: name, Color: core.DefaultCategoryColor, IsExpense: isExpense})
	if err != nil {
		t.Fatalf("insert category %q: %v", name, err)
	}
	return id
}

func mustTransaction(t *testing.T, s store.Store, book, category int64, cents int64, date time.Time) int64 {
	t.Helper()
	id, err := s.InsertTransaction(context.Background(), core.Transaction{
		Amount:        core.Money{Cents: cents},
		AccountBookID: book,
		CategoryID:    category,
		Date:          date,
	})
	if err != nil {
		t.Fatalf("insert transaction: %v", err)
	}
	return id
}

func testAccountBooks(t *testing.T, s store.Store) {
	ctx := context.Background()
	first := mustBook(t, s, "first")
	second := mustBook(t, s, "second")
	if first == second {
		t.Fatalf("expected distinct ids, got %d twice", first)
	}

	books, err := s.ListAccountBooks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(books) != 2 || books[0].ID != second || books[1].ID != first {
		t.Fatalf("expected newest first, got %+v", books)
	}

	got, err := s.GetAccountBook(ctx, first)
	if err != nil || got.Name != "first" {
		t.Fatalf("get: %+v err=%v", got, err)
	}

	got.Name = "renamed"
	got.Description = "desc"
	got.Color = 0xFF00FF00
	if err := s.UpdateAccountBook(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, _ := s.GetAccountBook(ctx, first)
	if updated.Name != "renamed" || updated.Description != "desc" || updated.Color != 0xFF00FF00 {
		t.Fatalf("update not applied: %+v", updated)
	}
	if !updated.CreatedAt.Equal(got.CreatedAt) || !updated.UpdatedAt.After(got.UpdatedAt) {
		t.Fatalf("unexpected timestamps: created %v->%v updated %v->%v",
			got.CreatedAt, updated.CreatedAt, got.UpdatedAt, updated.UpdatedAt)
	}

	// missing ids are a silent no-op
	if err := s.UpdateAccountBook(ctx, core.AccountBook{ID: 999, Name: "ghost"}); err != nil {
		t.Fatalf("update missing: %v", err)
	}
	if n, _ := s.CountAccountBooks(ctx); n != 2 {
		t.Fatalf("expected 2 books, got %d", n)
	}

	if _, err := s.GetAccountBook(ctx, 999); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testCategories(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCategory(t, s, "餐饮", true)
	mustCategory(t, s, "交通", true)
	mustCategory(t, s, "工资", false)
	// same name in the other partition is allowed
	mustCategory(t, s, "餐饮", false)

	if _, err := s.InsertCategory(ctx, core.Category{Name: "餐饮", Color: 1, IsExpense: true}); !errors.Is(err, core.ErrDuplicateCategory) {
		t.Fatalf("expected ErrDuplicateCategory, got %v", err)
	}

	exists, err := s.CategoryExists(ctx, "餐饮", true)
	if err != nil || !exists {
		t.Fatalf("expected exists, got %v err=%v", exists, err)
	}
	exists, _ = s.CategoryExists(ctx, "交通", false)
	if exists {
		t.Fatalf("交通 should not exist as income")
	}

	all, err := s.ListCategories(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 categories, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		if prev.IsExpense && !cur.IsExpense {
			t.Fatalf("income must come before expense: %+v", all)
		}
		if prev.IsExpense == cur.IsExpense && prev.Name > cur.Name {
			t.Fatalf("names out of order: %q > %q", prev.Name, cur.Name)
		}
	}

	expense, _ := s.ListCategoriesByType(ctx, true)
	if len(expense) != 2 {
		t.Fatalf("expected 2 expense categories, got %d", len(expense))
	}
}

func testTransactionReferences(t *testing.T, s store.Store) {
	ctx := context.Background()
	book := mustBook(t, s, "book")
	cat := mustCategory(t, s, "餐饮", true)
	date := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.InsertTransaction(ctx, core.Transaction{Amount: core.Money{Cents: 100}, AccountBookID: 999, CategoryID: cat, Date: date})
	if !errors.Is(err, core.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference for book, got %v", err)
	}
	_, err = s.InsertTransaction(ctx, core.Transaction{Amount: core.Money{Cents: 100}, AccountBookID: book, CategoryID: 999, Date: date})
	if !errors.Is(err, core.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference for category, got %v", err)
	}

	id := mustTransaction(t, s, book, cat, 100, date)
	tx, err := s.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !tx.Date.Equal(date) || tx.Amount.Cents != 100 {
		t.Fatalf("unexpected transaction %+v", tx)
	}

	tx.CategoryID = 999
	if err := s.UpdateTransaction(ctx, tx); !errors.Is(err, core.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference on update, got %v", err)
	}

	tx.CategoryID = cat
	tx.Amount = core.Money{Cents: 250}
	tx.Remark = "lunch"
	if err := s.UpdateTransaction(ctx, tx); err != nil {
		t.Fatalf("update: %v", err)
	}
	tx, _ = s.GetTransaction(ctx, id)
	if tx.Amount.Cents != 250 || tx.Remark != "lunch" {
		t.Fatalf("update not applied: %+v", tx)
	}

	if err := s.DeleteTransaction(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetTransaction(ctx, id); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func testOutOfRangeDates(t *testing.T, s store.Store) {
	ctx := context.Background()
	book := mustBook(t, s, "book")
	cat := mustCategory(t, s, "餐饮", true)
	valid := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	id := mustTransaction(t, s, book, cat, 100, valid)

	for _, d := range []time.Time{
		time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(0, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(-1, 6, 1, 0, 0, 0, 0, time.UTC),
	} {
		_, err := s.InsertTransaction(ctx, core.Transaction{Amount: core.Money{Cents: 100}, AccountBookID: book, CategoryID: cat, Date: d})
		if !errors.Is(err, core.ErrInvalidDate) {
			t.Fatalf("insert %v: expected ErrInvalidDate, got %v", d, err)
		}
		err = s.UpdateTransaction(ctx, core.Transaction{ID: id, Amount: core.Money{Cents: 100}, AccountBookID: book, CategoryID: cat, Date: d})
		if !errors.Is(err, core.ErrInvalidDate) {
			t.Fatalf("update %v: expected ErrInvalidDate, got %v", d, err)
		}
	}

	// the ledger stays readable
	list, err := s.ListTransactions(ctx, store.TransactionQuery{AccountBookID: book})
	if err != nil || len(list) != 1 || !list[0].Date.Equal(valid) {
		t.Fatalf("expected the one valid transaction, got %d err=%v", len(list), err)
	}
	years, err := s.TransactionYears(ctx, book)
	if err != nil || len(years) != 1 || years[0] != 2024 {
		t.Fatalf("unexpected years %v err=%v", years, err)
	}
}

func testCascadeAccountBook(t *testing.T, s store.Store) {
	ctx := context.Background()
	keep := mustBook(t, s, "keep")
	drop := mustBook(t, s, "drop")
	cat := mustCategory(t, s, "餐饮", true)
	date := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mustTransaction(t, s, keep, cat, 100, date)
	mustTransaction(t, s, drop, cat, 200, date)
	mustTransaction(t, s, drop, cat, 300, date)

	if err := s.DeleteAccountBook(ctx, drop); err != nil {
		t.Fatalf("delete book: %v", err)
	}
	left, err := s.ListTransactions(ctx, store.TransactionQuery{AccountBookID: drop})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected no transactions for deleted book, got %d", len(left))
	}
	kept, _ := s.ListTransactions(ctx, store.TransactionQuery{AccountBookID: keep})
	if len(kept) != 1 {
		t.Fatalf("expected other book untouched, got %d", len(kept))
	}
	if _, err := s.GetAccountBook(ctx, drop); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected book gone, got %v", err)
	}
}

func testCascadeCategory(t *testing.T, s store.Store) {
	ctx := context.Background()
	book := mustBook(t, s, "book")
	food := mustCategory(t, s, "餐饮", true)
	bus := mustCategory(t, s, "交通", true)
	date := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mustTransaction(t, s, book, food, 100, date)
	mustTransaction(t, s, book, bus, 200, date)

	if err := s.DeleteCategory(ctx, food); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	left, _ := s.ListTransactions(ctx, store.TransactionQuery{CategoryID: food})
	if len(left) != 0 {
		t.Fatalf("expected no transactions for deleted category, got %d", len(left))
	}
	all, _ := s.ListTransactions(ctx, store.TransactionQuery{AccountBookID: book})
	if len(all) != 1 || all[0].CategoryID != bus {
		t.Fatalf("expected only 交通 transaction left, got %+v", all)
	}
}

func testListTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	book := mustBook(t, s, "book")
	cat := mustCategory(t, s, "餐饮", true)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 23, 59, 59, 999_000_000, time.UTC)
	mustTransaction(t, s, book, cat, 1, start.Add(-time.Millisecond))
	onStart := mustTransaction(t, s, book, cat, 2, start)
	middle := mustTransaction(t, s, book, cat, 3, time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC))
	onEnd := mustTransaction(t, s, book, cat, 4, end)
	mustTransaction(t, s, book, cat, 5, end.Add(time.Millisecond))

	got, err := s.ListTransactions(ctx, store.TransactionQuery{AccountBookID: book, Start: start, End: end})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []int64{onEnd, middle, onStart}
	if len(got) != len(want) {
		t.Fatalf("expected %d transactions, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected id %d, got %d", i, id, got[i].ID)
		}
		if got[i].Category.Name != "餐饮" || !got[i].IsExpense() {
			t.Fatalf("category not joined: %+v", got[i])
		}
	}

	all, _ := s.ListTransactions(ctx, store.TransactionQuery{AccountBookID: book})
	if len(all) != 5 {
		t.Fatalf("expected 5 transactions, got %d", len(all))
	}
}

func testCategoryTotals(t *testing.T, s store.Store) {
	ctx := context.Background()
	book := mustBook(t, s, "book")
	other := mustBook(t, s, "other")
	food := mustCategory(t, s, "餐饮", true)
	bus := mustCategory(t, s, "交通", true)
	salary := mustCategory(t, s, "工资", false)

	in := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	mustTransaction(t, s, book, food, 1000, in)
	mustTransaction(t, s, book, food, 500, in)
	mustTransaction(t, s, book, bus, 3000, in)
	mustTransaction(t, s, book, salary, 500000, in)
	mustTransaction(t, s, other, food, 9999, in)
	mustTransaction(t, s, book, food, 7777, time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 23, 59, 59, 999_000_000, time.UTC)

	totals, err := s.CategoryTotals(ctx, book, start, end, true)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("expected 2 expense categories, got %+v", totals)
	}
	if totals[0].Category.ID != bus || totals[0].Total.Cents != 3000 || totals[0].Count != 1 {
		t.Fatalf("unexpected first total %+v", totals[0])
	}
	if totals[1].Category.ID != food || totals[1].Total.Cents != 1500 || totals[1].Count != 2 {
		t.Fatalf("unexpected second total %+v", totals[1])
	}

	income, _ := s.CategoryTotals(ctx, book, start, end, false)
	if len(income) != 1 || income[0].Total.Cents != 500000 {
		t.Fatalf("unexpected income totals %+v", income)
	}

	empty, err := s.CategoryTotals(ctx, book, start.AddDate(5, 0, 0), end.AddDate(5, 0, 0), true)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected no totals, got %+v err=%v", empty, err)
	}
}

func testTransactionYears(t *testing.T, s store.Store) {
	ctx := context.Background()
	book := mustBook(t, s, "book")
	other := mustBook(t, s, "other")
	cat := mustCategory(t, s, "餐饮", true)

	mustTransaction(t, s, book, cat, 1, time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC))
	mustTransaction(t, s, book, cat, 1, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	mustTransaction(t, s, book, cat, 1, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))
	mustTransaction(t, s, book, cat, 1, time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC))
	mustTransaction(t, s, other, cat, 1, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC))

	years, err := s.TransactionYears(ctx, book)
	if err != nil {
		t.Fatalf("years: %v", err)
	}
	want := []int{2024, 2023, 2022}
	if len(years) != len(want) {
		t.Fatalf("expected %v, got %v", want, years)
	}
	for i := range want {
		if years[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, years)
		}
	}

	none, err := s.TransactionYears(ctx, 999)
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no years, got %v err=%v", none, err)
	}
}
