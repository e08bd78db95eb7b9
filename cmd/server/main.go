// Package main is the entry point for the runway cash-flow modeling engine.
// It loads the entity files, wires the calculation stack, runs the baseline
// projection for the coming year, and reports the derived indicators.
//
// The application follows clean architecture principles:
// - Domain layer is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/runway/internal/config"
	"github.com/aristath/runway/internal/di"
	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/internal/kpi"
	"github.com/aristath/runway/pkg/logger"
)

func main() {
	os.Exit(run())
}

// run carries the real work so deferred cleanup happens before the process
// exits with the error-mapped code.
func run() int {
	// Load configuration first to get log level.
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Error().Err(err).Msg("Failed to load configuration")
		return domain.ExitCode(err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting runway")

	// Wire all dependencies: database, entity store, calculator registry,
	// scenario manager, engine and the analysis drivers.
	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to wire dependencies")
		return domain.ExitCode(err)
	}
	defer container.Close()

	// Sync the store from the entity files when the directory exists; an
	// absent directory just means we run on whatever is persisted.
	if _, statErr := os.Stat(cfg.EntitiesDir); statErr == nil {
		if err := container.Store.SyncFromDir(cfg.EntitiesDir); err != nil {
			log.Error().Err(err).Str("path", cfg.EntitiesDir).Msg("Failed to sync entities")
			return domain.ExitCode(err)
		}
		container.Engine.ClearCache()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := domain.FirstOfMonth(time.Now())
	end := domain.AddMonths(start, 11)

	frame, err := container.Engine.CalculateContext(ctx, start, end, "baseline")
	if err != nil {
		log.Error().Err(err).Msg("Baseline calculation failed")
		return domain.ExitCode(err)
	}

	report := kpi.ComputeAll(frame)
	log.Info().
		Str("scenario", frame.ScenarioName).
		Int("months", frame.Len()).
		Float64("total_revenue", frame.TotalRevenue()).
		Float64("total_expenses", frame.TotalExpenses()).
		Float64("final_cash_balance", frame.FinalCashBalance()).
		Float64("runway_months", report.RunwayMonths).
		Float64("burn_rate", report.BurnRate).
		Msg("Baseline projection complete")

	for _, alert := range kpi.Alerts(report) {
		event := log.Warn()
		if alert.Severity == kpi.SeverityInfo {
			event = log.Info()
		}
		event.
			Str("metric", alert.Metric).
			Float64("value", alert.Value).
			Float64("threshold", alert.Threshold).
			Msg(alert.Message)
	}

	return domain.ExitOK
}
