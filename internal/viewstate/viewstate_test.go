package viewstate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dailymoney/internal/core"
	applog "dailymoney/internal/log"
	"dailymoney/internal/repository"
	"dailymoney/internal/services"
	"dailymoney/internal/store"
	"dailymoney/internal/store/memory"
)

var errDisk = errors.New("sqlite: disk I/O error")

// brokenStore fails every transaction read while down is set.
type brokenStore struct {
	*memory.Store
	down atomic.Bool
}

func (b *brokenStore) ListTransactions(ctx context.Context, q store.TransactionQuery) ([]core.TransactionDetail, error) {
	if b.down.Load() {
		return nil, errDisk
	}
	return b.Store.ListTransactions(ctx, q)
}

func (b *brokenStore) CategoryTotals(ctx context.Context, id int64, start, end time.Time, isExpense bool) ([]core.CategoryTotal, error) {
	if b.down.Load() {
		return nil, errDisk
	}
	return b.Store.CategoryTotals(ctx, id, start, end, isExpense)
}

func (b *brokenStore) TransactionYears(ctx context.Context, id int64) ([]int, error) {
	if b.down.Load() {
		return nil, errDisk
	}
	return b.Store.TransactionYears(ctx, id)
}

type env struct {
	store  *brokenStore
	repos  *repository.Repositories
	stats  *services.StatisticsService
	logger *applog.Logger
	book   int64
	food   int64
	salary int64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	s := &brokenStore{Store: memory.New()}
	repos := repository.New(s)
	res, err := services.NewBootstrapper(repos.AccountBooks, repos.Categories, nil).Run(ctx)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	e := &env{
		store:  s,
		repos:  repos,
		stats:  services.NewStatisticsService(repos.Transactions, repos.Tracker, services.DefaultStatisticsConfig(), nil),
		logger: applog.New(applog.Config{Output: io.Discard}),
		book:   res.DefaultAccountBookID,
	}
	cats, _ := repos.Categories.List(ctx)
	for _, c := range cats {
		switch {
		case c.Name == "餐饮" && c.IsExpense:
			e.food = c.ID
		case c.Name == "工资" && !c.IsExpense:
			e.salary = c.ID
		}
	}
	return e
}

func waitState[S any](t *testing.T, ch <-chan S, ok func(S) bool) S {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s, open := <-ch:
			if !open {
				t.Fatal("changes closed unexpectedly")
			}
			if ok(s) {
				return s
			}
		case <-deadline:
			t.Fatal("timed out waiting for state")
			var zero S
			return zero
		}
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name    string
		failure string
		err     error
		want    string
	}{
		{"duplicate wins", MsgCreateCategoryFailed, fmt.Errorf("insert: %w", core.ErrDuplicateCategory), MsgDuplicateCategory},
		{"empty name", MsgCreateAccountBookFailed, core.ErrEmptyName, "创建账本失败: 名称不能为空"},
		{"invalid amount", MsgAddTransactionFailed, fmt.Errorf("validate: %w", core.ErrInvalidAmount), "添加交易记录失败: 金额无效"},
		{"driver text hidden", MsgDeleteCategoryFailed, errDisk, MsgDeleteCategoryFailed},
		{"joined", MsgLoadStatisticsFailed, errors.Join(errDisk, core.ErrInvalidPeriod), "加载统计数据失败: 统计周期无效"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.failure, tt.err); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestAccountBooks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := newEnv(t)
	c := NewAccountBooks(e.repos.AccountBooks, e.logger)
	changes := c.Changes(ctx)
	c.Start(ctx)

	st := waitState(t, changes, func(s AccountBooksState) bool { return len(s.Books) == 1 })
	if st.SelectedID != e.book || st.Selected() == nil || st.Selected().Name != services.DefaultAccountBookName {
		t.Fatalf("expected default book selected, got %+v", st)
	}

	if _, err := c.Create(ctx, "  ", "", 0); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	st = c.State()
	if st.Error != "创建账本失败: 名称不能为空" || st.Loading {
		t.Fatalf("unexpected state after validation failure: %+v", st.Status)
	}
	if n, _ := e.store.CountAccountBooks(ctx); n != 1 {
		t.Fatalf("validation failure must not touch the store, have %d books", n)
	}

	id, err := c.Create(ctx, "旅行", "出差", 0xFF00FF00)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if st := c.State(); st.Error != "" || st.Loading {
		t.Fatalf("expected clean status after success, got %+v", st.Status)
	}
	waitState(t, changes, func(s AccountBooksState) bool { return len(s.Books) == 2 })

	c.Select(id)
	if err := c.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	st = waitState(t, changes, func(s AccountBooksState) bool { return len(s.Books) == 1 })
	if st.SelectedID != e.book {
		t.Fatalf("expected selection to fall back to remaining book, got %d", st.SelectedID)
	}

	c.Select(0)
	if err := c.LoadDefault(ctx); err != nil || c.State().SelectedID != e.book {
		t.Fatalf("load default: selected=%d err=%v", c.State().SelectedID, err)
	}
}

func TestCategories(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := newEnv(t)
	c := NewCategories(e.repos.Categories, e.logger)
	changes := c.Changes(ctx)
	c.Start(ctx)

	waitState(t, changes, func(s CategoriesState) bool { return len(s.Expense) == 8 && len(s.Income) == 4 })

	if _, err := c.Create(ctx, "餐饮", 0, true); !errors.Is(err, core.ErrDuplicateCategory) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if st := c.State(); st.Error != MsgDuplicateCategory || st.Loading {
		t.Fatalf("unexpected status %+v", st.Status)
	}
	all, _ := e.repos.Categories.List(ctx)
	if len(all) != 12 {
		t.Fatalf("duplicate must not be inserted, have %d", len(all))
	}

	// same name is fine for the other type
	id, err := c.Create(ctx, "餐饮", 0, false)
	if err != nil {
		t.Fatalf("create income: %v", err)
	}
	st := waitState(t, changes, func(s CategoriesState) bool { return len(s.Income) == 5 })
	if st.Error != "" {
		t.Fatalf("error should be cleared, got %q", st.Error)
	}

	cat := c.Get(ctx, id)
	if cat == nil || cat.Color != core.DefaultCategoryColor {
		t.Fatalf("unexpected category %+v", cat)
	}
	if missing := c.Get(ctx, 9999); missing != nil {
		t.Fatalf("expected nil, got %+v", missing)
	}

	cat.Name = ""
	if err := c.Update(ctx, *cat); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}

	if err := c.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	waitState(t, changes, func(s CategoriesState) bool { return len(s.Income) == 4 })
}

func TestTransactions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := newEnv(t)
	c := NewTransactions(e.repos.Transactions, e.stats, e.logger)
	defer c.Stop()
	changes := c.Changes(ctx)

	if err := c.SelectYear(ctx, 2024); err != nil {
		t.Fatalf("select year: %v", err)
	}
	if err := c.SetAccountBook(ctx, e.book); err != nil {
		t.Fatalf("set account book: %v", err)
	}

	if _, err := c.Add(ctx, core.Money{}, e.food, "", time.Time{}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if st := c.State(); st.Error != "添加交易记录失败: 金额无效" || st.Loading {
		t.Fatalf("unexpected status %+v", st.Status)
	}

	march := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	if _, err := c.Add(ctx, core.Money{Cents: 10000}, e.food, "午饭", march); err != nil {
		t.Fatalf("add expense: %v", err)
	}
	incomeID, err := c.Add(ctx, core.Money{Cents: 500000}, e.salary, "", march)
	if err != nil {
		t.Fatalf("add income: %v", err)
	}

	st := c.State()
	if st.Error != "" || st.Loading {
		t.Fatalf("unexpected status %+v", st.Status)
	}
	if st.Statistics == nil || st.Statistics.TotalExpense.Cents != 10000 || st.Statistics.TotalIncome.Cents != 500000 {
		t.Fatalf("unexpected statistics %+v", st.Statistics)
	}

	st = waitState(t, changes, func(s TransactionsState) bool {
		return len(s.Transactions) == 2 && len(s.AvailableYears) == 1
	})
	if st.AvailableYears[0] != 2024 {
		t.Fatalf("unexpected years %v", st.AvailableYears)
	}

	if err := c.LoadMonthStatistics(ctx, 2024, 3); err != nil {
		t.Fatalf("month statistics: %v", err)
	}
	if ps := c.State().Statistics; ps == nil || ps.Month != 3 || ps.TotalIncome.Cents != 500000 {
		t.Fatalf("unexpected month statistics %+v", ps)
	}
	if err := c.LoadMonthStatistics(ctx, 2024, 13); err == nil {
		t.Fatal("expected invalid month to fail")
	}
	if st := c.State(); st.Error != "加载月度统计数据失败: 统计周期无效" {
		t.Fatalf("unexpected error %q", st.Error)
	}

	if err := c.Delete(ctx, incomeID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ps := c.State().Statistics; ps == nil || !ps.TotalIncome.IsZero() || ps.IsMonth() {
		t.Fatalf("expected year statistics without income, got %+v", ps)
	}
	waitState(t, changes, func(s TransactionsState) bool { return len(s.Transactions) == 1 })

	if err := c.SelectYear(ctx, 2023); err != nil {
		t.Fatalf("select 2023: %v", err)
	}
	if ps := c.State().Statistics; ps == nil || ps.Year != 2023 || !ps.TotalExpense.IsZero() {
		t.Fatalf("expected empty 2023, got %+v", ps)
	}
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := NewStatistics(e.stats, e.logger)

	add := func(cents, category int64, date time.Time) {
		t.Helper()
		if _, err := e.repos.Transactions.Create(ctx, core.Transaction{
			Amount: core.Money{Cents: cents}, AccountBookID: e.book, CategoryID: category, Date: date,
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	add(10000, e.food, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	add(500000, e.salary, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))

	if err := c.Select(ctx, e.book, 2024); err != nil {
		t.Fatalf("select: %v", err)
	}
	st := c.State()
	if st.Mock || st.Error != "" || st.Loading {
		t.Fatalf("unexpected status %+v mock=%v", st.Status, st.Mock)
	}
	if st.TotalExpense.String() != "100.00" || st.TotalIncome.String() != "5000.00" {
		t.Fatalf("unexpected totals %s/%s", st.TotalExpense, st.TotalIncome)
	}
	if st.Monthly.Expense[2].Total.Cents != 10000 || st.Monthly.Income[2].Total.Cents != 500000 {
		t.Fatalf("unexpected march point %+v/%+v", st.Monthly.Expense[2], st.Monthly.Income[2])
	}
	if len(st.ExpenseByCategory) != 1 || st.ExpenseByCategory[0].Percentage != 100 {
		t.Fatalf("unexpected expense breakdown %+v", st.ExpenseByCategory)
	}
	if len(st.IncomeByCategory) != 1 || st.IncomeByCategory[0].Category.Name != "工资" {
		t.Fatalf("unexpected income breakdown %+v", st.IncomeByCategory)
	}
	if len(st.AvailableYears) != 1 || st.AvailableYears[0] != 2024 {
		t.Fatalf("unexpected years %v", st.AvailableYears)
	}

	// empty year is real zero data
	if err := c.SelectYear(ctx, 2020); err != nil {
		t.Fatalf("select 2020: %v", err)
	}
	st = c.State()
	if st.Mock || !st.TotalExpense.IsZero() || len(st.ExpenseByCategory) != 0 {
		t.Fatalf("expected zero data for 2020, got %+v", st)
	}

	e.store.down.Store(true)
	e.stats.Invalidate(ctx)
	if err := c.SelectYear(ctx, 2024); !errors.Is(err, errDisk) {
		t.Fatalf("expected store error, got %v", err)
	}
	st = c.State()
	if !st.Mock || st.Error != MsgLoadStatisticsFailed || st.Loading {
		t.Fatalf("expected mock fallback with error, got mock=%v status=%+v", st.Mock, st.Status)
	}
	if st.TotalExpense.Cents != 29500*100 || st.Monthly.Income[11].Total.Cents != 1100000 {
		t.Fatalf("unexpected mock totals %s", st.TotalExpense)
	}
	if len(st.ExpenseByCategory) != 0 {
		t.Fatalf("mock data carries no breakdown, got %+v", st.ExpenseByCategory)
	}

	e.store.down.Store(false)
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if st := c.State(); st.Mock || st.Error != "" {
		t.Fatalf("expected recovery, got mock=%v error=%q", st.Mock, st.Error)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestOperationIDReachesStoreLogs(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	var out syncBuffer
	logger := applog.New(applog.Config{Output: &out, Level: slog.LevelDebug})
	c := NewAccountBooks(e.repos.AccountBooks, logger)

	id, err := c.Create(ctx, "旅行", "", 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := c.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var storeLine, doneLine string
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.Contains(line, "deleted from memory") {
			storeLine = line
		}
		if strings.Contains(line, "Operation completed") && strings.Contains(line, "operation=delete") {
			doneLine = line
		}
	}
	idPattern := regexp.MustCompile(`operation_id=(\S+)`)
	storeID := idPattern.FindStringSubmatch(storeLine)
	doneID := idPattern.FindStringSubmatch(doneLine)
	if storeID == nil || doneID == nil {
		t.Fatalf("expected operation ids in store and coordinator logs:\n%s", out.String())
	}
	if storeID[1] != doneID[1] {
		t.Fatalf("store logged %s, coordinator %s", storeID[1], doneID[1])
	}
	if !strings.Contains(storeLine, "account_book_id="+fmt.Sprint(id)) {
		t.Errorf("store line lacks the book id: %s", storeLine)
	}
}

func TestLoadingStaysOnWhileOperationsOverlap(t *testing.T) {
	ctx := context.Background()
	logger := applog.New(applog.Config{Output: io.Discard})
	h := newHolder(CategoriesState{}, func(s *CategoriesState) *Status { return &s.Status })

	started := make(chan struct{})
	release := make(chan struct{})
	slowDone := make(chan error, 1)
	go func() {
		slowDone <- h.run(ctx, logger, applog.OpLoad, MsgLoadStatisticsFailed, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := h.run(ctx, logger, applog.OpCreate, MsgCreateCategoryFailed, func(context.Context) error { return errDisk }); err == nil {
		t.Fatal("expected the quick operation to fail")
	}
	st := h.get()
	if !st.Loading {
		t.Fatal("loading cleared while another operation is still running")
	}
	if st.Error != MsgCreateCategoryFailed {
		t.Fatalf("unexpected error %q", st.Error)
	}

	h.fail(MsgDuplicateCategory)
	if !h.get().Loading {
		t.Fatal("a validation failure must not clear loading of a running operation")
	}

	close(release)
	if err := <-slowDone; err != nil {
		t.Fatalf("slow operation: %v", err)
	}
	if st := h.get(); st.Loading {
		t.Fatal("loading should be off once every operation finished")
	}
}
