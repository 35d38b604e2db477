package viewstate

import (
	"context"
	"sync"
	"time"

	"dailymoney/internal/core"
	applog "dailymoney/internal/log"
	"dailymoney/internal/repository"
	"dailymoney/internal/services"
)

type TransactionsState struct {
	AccountBookID  int64
	Transactions   []core.TransactionDetail
	AvailableYears []int
	// Year is the year Statistics refers to.
	Year int
	// Statistics covers Year, or a single month after LoadMonthStatistics.
	Statistics *core.PeriodStatistics
	Status
}

// Transactions follows the transactions of the selected ledger and keeps
// its period statistics current after every change.
type Transactions struct {
	repo   *repository.TransactionRepository
	stats  *services.StatisticsService
	logger *applog.Logger
	h      *holder[TransactionsState]

	mu          sync.Mutex
	stopWatches context.CancelFunc
}

func NewTransactions(repo *repository.TransactionRepository, stats *services.StatisticsService, logger *applog.Logger) *Transactions {
	initial := TransactionsState{Year: time.Now().Year()}
	return &Transactions{
		repo:   repo,
		stats:  stats,
		logger: logger.WithComponent(applog.ComponentViewState).With("coordinator", "transactions"),
		h:      newHolder(initial, func(s *TransactionsState) *Status { return &s.Status }),
	}
}

func (c *Transactions) State() TransactionsState { return c.h.get() }

func (c *Transactions) Changes(ctx context.Context) <-chan TransactionsState { return c.h.changes(ctx) }

// SetAccountBook switches to a ledger: live views of the previous ledger stop,
// views of the new one start under ctx, and the year statistics reload.
func (c *Transactions) SetAccountBook(ctx context.Context, accountBookID int64) error {
	c.mu.Lock()
	if c.stopWatches != nil {
		c.stopWatches()
	}
	watchCtx, cancel := context.WithCancel(ctx)
	c.stopWatches = cancel
	c.mu.Unlock()

	c.h.update(func(s *TransactionsState) {
		s.AccountBookID = accountBookID
		s.Transactions = nil
		s.AvailableYears = nil
		s.Statistics = nil
	})

	txs := c.repo.WatchByAccountBook(watchCtx, accountBookID)
	years := c.repo.WatchAvailableYears(watchCtx, accountBookID)
	go func() {
		for list := range txs {
			c.h.update(func(s *TransactionsState) {
				if s.AccountBookID == accountBookID {
					s.Transactions = list
				}
			})
		}
	}()
	go func() {
		for list := range years {
			c.h.update(func(s *TransactionsState) {
				if s.AccountBookID == accountBookID {
					s.AvailableYears = list
				}
			})
		}
	}()

	return c.loadYear(ctx, accountBookID, c.State().Year)
}

// Stop ends the live views of the current ledger.
func (c *Transactions) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopWatches != nil {
		c.stopWatches()
		c.stopWatches = nil
	}
}

// Add records a transaction in the selected ledger. A zero date means now.
func (c *Transactions) Add(ctx context.Context, amount core.Money, categoryID int64, remark string, date time.Time) (int64, error) {
	accountBookID := c.State().AccountBookID
	t := core.Transaction{
		Amount:        amount,
		AccountBookID: accountBookID,
		CategoryID:    categoryID,
		Remark:        remark,
		Date:          date,
	}
	if t.Date.IsZero() {
		t.Date = time.Now()
	}
	if err := t.Validate(); err != nil {
		c.h.fail(Message(MsgAddTransactionFailed, err))
		return 0, err
	}

	var id int64
	err := c.h.run(ctx, c.logger, applog.OpCreate, MsgAddTransactionFailed, func(ctx context.Context) error {
		var err error
		id, err = c.repo.Create(ctx, t)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, c.loadYear(ctx, accountBookID, c.State().Year)
}

func (c *Transactions) Update(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		c.h.fail(Message(MsgUpdateTransactionFailed, err))
		return err
	}
	err := c.h.run(ctx, c.logger, applog.OpUpdate, MsgUpdateTransactionFailed, func(ctx context.Context) error {
		return c.repo.Update(ctx, t)
	})
	if err != nil {
		return err
	}
	return c.loadYear(ctx, t.AccountBookID, c.State().Year)
}

func (c *Transactions) Delete(ctx context.Context, id int64) error {
	err := c.h.run(ctx, c.logger, applog.OpDelete, MsgDeleteTransactionFailed, func(ctx context.Context) error {
		return c.repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	st := c.State()
	return c.loadYear(ctx, st.AccountBookID, st.Year)
}

// SelectYear switches the statistics to another year of the ledger.
func (c *Transactions) SelectYear(ctx context.Context, year int) error {
	c.h.update(func(s *TransactionsState) { s.Year = year })
	return c.loadYear(ctx, c.State().AccountBookID, year)
}

// LoadMonthStatistics replaces the statistics with one month's.
func (c *Transactions) LoadMonthStatistics(ctx context.Context, year, month int) error {
	accountBookID := c.State().AccountBookID
	return c.h.run(ctx, c.logger, applog.OpLoad, MsgLoadMonthlyStatisticsFailed, func(ctx context.Context) error {
		ps, err := c.stats.MonthStatistics(ctx, accountBookID, year, month)
		if err != nil {
			return err
		}
		c.h.update(func(s *TransactionsState) { s.Statistics = &ps })
		return nil
	})
}

func (c *Transactions) loadYear(ctx context.Context, accountBookID int64, year int) error {
	return c.h.run(ctx, c.logger, applog.OpLoad, MsgLoadStatisticsFailed, func(ctx context.Context) error {
		ps, err := c.stats.YearStatistics(ctx, accountBookID, year)
		if err != nil {
			return err
		}
		c.h.update(func(s *TransactionsState) {
			if s.AccountBookID == accountBookID && s.Year == year {
				s.Statistics = &ps
			}
		})
		return nil
	})
}
