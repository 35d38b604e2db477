package viewstate

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"dailymoney/internal/core"
	applog "dailymoney/internal/log"
	"dailymoney/internal/services"
)

type StatisticsState struct {
	AccountBookID  int64
	Year           int
	AvailableYears []int
	Monthly        core.MonthlySeries
	// Breakdowns are ordered by total, largest first.
	ExpenseByCategory []core.CategoryStatistics
	IncomeByCategory  []core.CategoryStatistics
	TotalExpense      core.Money
	TotalIncome       core.Money
	// Mock is set when Monthly is the illustrative fallback series.
	Mock bool
	Status
}

// Statistics aggregates one year of a ledger for the statistics screen.
type Statistics struct {
	stats  *services.StatisticsService
	logger *applog.Logger
	h      *holder[StatisticsState]
}

func NewStatistics(stats *services.StatisticsService, logger *applog.Logger) *Statistics {
	initial := StatisticsState{Year: time.Now().Year()}
	return &Statistics{
		stats:  stats,
		logger: logger.WithComponent(applog.ComponentViewState).With("coordinator", "statistics"),
		h:      newHolder(initial, func(s *StatisticsState) *Status { return &s.Status }),
	}
}

func (c *Statistics) State() StatisticsState { return c.h.get() }

func (c *Statistics) Changes(ctx context.Context) <-chan StatisticsState { return c.h.changes(ctx) }

// Select loads year of the ledger, replacing the held aggregates.
func (c *Statistics) Select(ctx context.Context, accountBookID int64, year int) error {
	c.h.update(func(s *StatisticsState) {
		s.AccountBookID = accountBookID
		s.Year = year
	})
	return c.load(ctx, accountBookID, year)
}

// SelectYear keeps the ledger and loads another year.
func (c *Statistics) SelectYear(ctx context.Context, year int) error {
	return c.Select(ctx, c.State().AccountBookID, year)
}

// Refresh reloads the current selection.
func (c *Statistics) Refresh(ctx context.Context) error {
	st := c.State()
	return c.load(ctx, st.AccountBookID, st.Year)
}

func (c *Statistics) load(ctx context.Context, accountBookID int64, year int) error {
	return c.h.run(ctx, c.logger, applog.OpLoad, MsgLoadStatisticsFailed, func(ctx context.Context) error {
		var (
			monthly    core.MonthlySeries
			monthlyErr error
			period     core.PeriodStatistics
			periodErr  error
			years      []int
			yearsErr   error
		)

		// a failed load does not cancel the others; every piece is applied
		var g errgroup.Group
		g.Go(func() error {
			monthly, monthlyErr = c.stats.MonthlyStatistics(ctx, accountBookID, year)
			return monthlyErr
		})
		g.Go(func() error {
			period, periodErr = c.stats.YearStatistics(ctx, accountBookID, year)
			return periodErr
		})
		g.Go(func() error {
			years, yearsErr = c.stats.AvailableYears(ctx, accountBookID)
			return yearsErr
		})
		failed := g.Wait() != nil

		c.h.update(func(s *StatisticsState) {
			if s.AccountBookID != accountBookID || s.Year != year {
				return
			}
			s.Monthly = monthly
			s.Mock = monthly.Mock
			s.TotalExpense = monthly.TotalExpense
			s.TotalIncome = monthly.TotalIncome
			s.ExpenseByCategory, s.IncomeByCategory = nil, nil
			if periodErr == nil {
				for _, cs := range period.CategoryStats {
					if cs.Category.IsExpense {
						s.ExpenseByCategory = append(s.ExpenseByCategory, cs)
					} else {
						s.IncomeByCategory = append(s.IncomeByCategory, cs)
					}
				}
			}
			if yearsErr == nil {
				s.AvailableYears = years
			}
		})

		if failed {
			return errors.Join(monthlyErr, periodErr, yearsErr)
		}
		return nil
	})
}
