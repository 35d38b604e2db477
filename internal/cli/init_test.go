package cli

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"dailymoney/internal/config"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}
	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := SetupLogger(tt.level)
			if !logger.Enabled(ctx, tt.want) {
				t.Errorf("level %v should be enabled", tt.want)
			}
			if tt.want > slog.LevelDebug && logger.Enabled(ctx, tt.want-4) {
				t.Errorf("level below %v should be disabled", tt.want)
			}
		})
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	logger := SetupLogger("error")

	res, err := OpenStore(ctx, logger, &config.Config{DataBackend: "memory", MemoryFixture: true, MemoryFixtureSeed: 2})
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	defer res.Cleanup()
	if years, err := res.Store.TransactionYears(ctx, 1); err != nil || len(years) != 2 {
		t.Fatalf("fixture years = %v, err = %v", years, err)
	}

	if _, err := OpenStore(ctx, logger, &config.Config{DataBackend: "nope"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestGracefulShutdownStop(t *testing.T) {
	var cleaned atomic.Bool
	ctx, stop, done := GracefulShutdown(slog.Default(), time.Second, func() { cleaned.Store(true) })
	stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not finish")
	}
	if ctx.Err() == nil {
		t.Error("context should be cancelled")
	}
	if !cleaned.Load() {
		t.Error("cleanup should have run")
	}
}
