package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"dailymoney/internal/cache"
	"dailymoney/internal/cli"
	"dailymoney/internal/config"
	applog "dailymoney/internal/log"
	"dailymoney/internal/repository"
	"dailymoney/internal/services"
	"dailymoney/internal/viewstate"
)

func main() {
	follow := flag.Bool("follow", false, "keep running and log the ledger summary after every change")
	flag.Parse()

	// Load .env file for local development (ignore errors in production)
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	if err := run(logger, cfg, *follow); err != nil {
		logger.Error("dailymoney failed", applog.FieldError, err)
		os.Exit(1)
	}
}

func run(logger *applog.Logger, cfg *config.Config, follow bool) error {
	res, err := cli.OpenStore(context.Background(), logger, cfg)
	if err != nil {
		return err
	}

	repos := repository.New(res.Store)
	statistics := services.NewStatisticsService(repos.Transactions, repos.Tracker, services.StatisticsConfig{
		CacheSize: cfg.StatsCacheSize,
		CacheTTL:  cfg.StatsCacheTTL,
	}, logger.WithComponent(applog.ComponentStatistics).Logger)

	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	statistics.RegisterCaches(caches)
	caches.StartCleanup(cfg.CacheCleanupInterval)

	transactions := viewstate.NewTransactions(repos.Transactions, statistics, logger)

	ctx, stop, done := cli.GracefulShutdown(logger.Logger, 10*time.Second, func() {
		transactions.Stop()
		caches.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close store", applog.FieldError, err)
		}
	})
	defer func() {
		stop()
		<-done
	}()

	logger.InfoContext(ctx, "Starting dailymoney", applog.FieldBackend, cfg.DataBackend)

	boot := services.NewBootstrapper(repos.AccountBooks, repos.Categories, logger.WithComponent(applog.ComponentBootstrap).Logger)
	if _, err := boot.Run(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	books := viewstate.NewAccountBooks(repos.AccountBooks, logger)
	if err := books.LoadDefault(ctx); err != nil {
		return fmt.Errorf("load default account book: %w", err)
	}
	selected := books.State().SelectedID

	if err := transactions.SetAccountBook(ctx, selected); err != nil {
		logger.WarnContext(ctx, "Year statistics unavailable", applog.FieldError, err)
	}

	summary := viewstate.NewStatistics(statistics, logger)
	if err := summary.Select(ctx, selected, time.Now().Year()); err != nil {
		logger.WarnContext(ctx, "Statistics loaded with errors", applog.FieldError, err)
	}
	logSummary(ctx, logger, summary.State())

	if !follow {
		return nil
	}

	for st := range transactions.Changes(ctx) {
		if st.Loading {
			continue
		}
		if err := summary.Refresh(ctx); err != nil && ctx.Err() == nil {
			logger.WarnContext(ctx, "Statistics refresh failed", applog.FieldError, err)
		}
		logSummary(ctx, logger, summary.State())
	}
	return nil
}

func logSummary(ctx context.Context, logger *applog.Logger, st viewstate.StatisticsState) {
	logger.InfoContext(ctx, "Ledger summary",
		applog.FieldAccountBookID, st.AccountBookID,
		applog.FieldYear, st.Year,
		"total_expense", st.TotalExpense.String(),
		"total_income", st.TotalIncome.String(),
		"expense_categories", len(st.ExpenseByCategory),
		"income_categories", len(st.IncomeByCategory),
		"years", st.AvailableYears,
		applog.FieldMock, st.Mock,
	)
	for _, cs := range st.ExpenseByCategory {
		logger.DebugContext(ctx, "Expense category",
			applog.FieldCategoryID, cs.Category.ID,
			"name", cs.Category.Name,
			"total", cs.Total.String(),
			"percentage", fmt.Sprintf("%.1f", cs.Percentage),
		)
	}
}
