package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"dailymoney/internal/cache"
	"dailymoney/internal/core"
	applog "dailymoney/internal/log"
	"dailymoney/internal/repository"
	"dailymoney/internal/stats"
)

// StatisticsConfig sizes the result caches.
type StatisticsConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

func DefaultStatisticsConfig() StatisticsConfig {
	return StatisticsConfig{CacheSize: 64, CacheTTL: 5 * time.Minute}
}

// StatisticsService answers the statistics queries of a ledger. Results are
// cached until the next write to any table.
type StatisticsService struct {
	transactions *repository.TransactionRepository
	logger       *slog.Logger

	periods *cache.LRUCache[core.PeriodStatistics]
	series  *cache.LRUCache[core.MonthlySeries]
	years   *cache.LRUCache[[]int]

	// mu orders purges against cache writes. generation changes on every
	// purge; loads started before a purge are not cached.
	mu         sync.Mutex
	generation uint64
}

// NewStatisticsService registers a purge hook on tracker when it is not nil.
func NewStatisticsService(transactions *repository.TransactionRepository, tracker *repository.Tracker, cfg StatisticsConfig, logger *slog.Logger) *StatisticsService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &StatisticsService{
		transactions: transactions,
		logger:       logger,
		periods:      cache.NewLRUCache[core.PeriodStatistics](cfg.CacheSize, cfg.CacheTTL),
		series:       cache.NewLRUCache[core.MonthlySeries](cfg.CacheSize, cfg.CacheTTL),
		years:        cache.NewLRUCache[[]int](cfg.CacheSize, cfg.CacheTTL),
	}
	if tracker != nil {
		tracker.OnChange(func(ctx context.Context, tables []repository.Table) {
			s.Invalidate(ctx)
		})
	}
	return s
}

// RegisterCaches adds the service caches to m for periodic expiry.
func (s *StatisticsService) RegisterCaches(m *cache.Manager) {
	m.Register("period_statistics", s.periods)
	m.Register("monthly_series", s.series)
	m.Register("available_years", s.years)
}

// Invalidate drops every cached result.
func (s *StatisticsService) Invalidate(ctx context.Context) {
	s.mu.Lock()
	s.generation++
	n := s.periods.Purge() + s.series.Purge() + s.years.Purge()
	s.mu.Unlock()
	if n > 0 {
		s.logger.DebugContext(ctx, "Statistics cache purged", "entries", n)
	}
}

func (s *StatisticsService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// remember runs set only when no purge happened since gen was read.
func (s *StatisticsService) remember(gen uint64, set func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen {
		set()
	}
}

// YearStatistics summarizes a whole calendar year.
func (s *StatisticsService) YearStatistics(ctx context.Context, accountBookID int64, year int) (core.PeriodStatistics, error) {
	return s.periodStatistics(ctx, accountBookID, year, 0)
}

// MonthStatistics summarizes one month (1-12).
func (s *StatisticsService) MonthStatistics(ctx context.Context, accountBookID int64, year, month int) (core.PeriodStatistics, error) {
	if month < 1 || month > 12 {
		return core.PeriodStatistics{}, fmt.Errorf("month %d: %w", month, core.ErrInvalidPeriod)
	}
	return s.periodStatistics(ctx, accountBookID, year, month)
}

func (s *StatisticsService) periodStatistics(ctx context.Context, accountBookID int64, year, month int) (core.PeriodStatistics, error) {
	start, end, err := stats.Period(year, month)
	if err != nil {
		return core.PeriodStatistics{}, err
	}

	key := fmt.Sprintf("%d:%d:%d", accountBookID, year, month)
	if ps, ok := s.periods.Get(key); ok {
		return clonePeriod(ps), nil
	}
	gen := s.currentGeneration()

	var expense, income []core.CategoryTotal
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expense, err = s.transactions.CategoryTotals(gctx, accountBookID, start, end, true)
		return err
	})
	g.Go(func() error {
		var err error
		income, err = s.transactions.CategoryTotals(gctx, accountBookID, start, end, false)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logFailure(ctx, "Failed to load period statistics", err, accountBookID, year, month)
		return core.PeriodStatistics{}, fmt.Errorf("load category totals: %w", err)
	}

	ps := stats.Combine(year, month, expense, income)
	s.remember(gen, func() { s.periods.Set(key, clonePeriod(ps)) })
	return ps, nil
}

// MonthlyStatistics returns the twelve-month series of a year. When the
// store fails the illustrative mock series is returned (Mock set) together
// with the error. A year without data is a real zero series.
func (s *StatisticsService) MonthlyStatistics(ctx context.Context, accountBookID int64, year int) (core.MonthlySeries, error) {
	if _, _, err := stats.Period(year, 0); err != nil {
		return core.MonthlySeries{}, err
	}

	key := fmt.Sprintf("%d:%d", accountBookID, year)
	if ms, ok := s.series.Get(key); ok {
		return cloneSeries(ms), nil
	}
	gen := s.currentGeneration()

	details, err := s.transactions.ListByYear(ctx, accountBookID, year)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return core.MonthlySeries{}, err
		}
		s.logFailure(ctx, "Failed to load monthly statistics, using mock data", err, accountBookID, year, 0)
		return stats.MockYear(year), fmt.Errorf("load transactions: %w", err)
	}

	ms := stats.MonthlySeries(year, stats.EntriesFrom(details))
	s.remember(gen, func() { s.series.Set(key, cloneSeries(ms)) })
	return ms, nil
}

// AvailableYears lists the ledger's years with data, newest first.
func (s *StatisticsService) AvailableYears(ctx context.Context, accountBookID int64) ([]int, error) {
	key := fmt.Sprint(accountBookID)
	if years, ok := s.years.Get(key); ok {
		return slices.Clone(years), nil
	}
	gen := s.currentGeneration()

	years, err := s.transactions.AvailableYears(ctx, accountBookID)
	if err != nil {
		return nil, fmt.Errorf("load available years: %w", err)
	}
	s.remember(gen, func() { s.years.Set(key, slices.Clone(years)) })
	return years, nil
}

func (s *StatisticsService) logFailure(ctx context.Context, msg string, err error, accountBookID int64, year, month int) {
	fields := applog.NewFields().
		WithAccountBook(accountBookID).
		WithPeriod(year, month).
		WithError(err, applog.ErrorTypeDatabase)
	s.logger.WarnContext(ctx, msg, fields.ToSlice()...)
}

// Cached values are copied in and out so callers may modify their results.
func clonePeriod(ps core.PeriodStatistics) core.PeriodStatistics {
	ps.CategoryStats = slices.Clone(ps.CategoryStats)
	return ps
}

func cloneSeries(ms core.MonthlySeries) core.MonthlySeries {
	ms.Expense = slices.Clone(ms.Expense)
	ms.Income = slices.Clone(ms.Income)
	return ms
}
