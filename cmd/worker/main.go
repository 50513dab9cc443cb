package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/handler/http/respond"
	pgRepo "notify-dispatch/internal/infra/adapter/persistence/postgres"
	"notify-dispatch/internal/infra/db"
	workerPkg "notify-dispatch/internal/infra/worker"
	obsMetrics "notify-dispatch/internal/observability/metrics"
	"notify-dispatch/internal/observability/slo"
	"notify-dispatch/internal/repository"
)

func waitForMigrations(logger *slog.Logger, db *sql.DB) {
	const probe = "SELECT 1 FROM deliveries LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := db.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	// Shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("sweep_schedule", workerConfig.SweepSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("stale_lease", workerConfig.StaleLease),
		slog.Duration("retention_period", workerConfig.RetentionPeriod),
		slog.Duration("sweep_timeout", workerConfig.SweepTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	store := pgRepo.NewDeliveryRepo(database)

	// Start metrics HTTP server (shuts itself down when ctx is canceled)
	startMetricsServer(ctx, logger, database)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)

	scheduler := startSweepScheduler(logger, store, database, workerConfig, workerMetrics)
	healthServer.SetReady(true)
	logger.Info("worker started",
		slog.String("schedule", workerConfig.SweepSchedule),
		slog.String("timezone", workerConfig.Timezone))

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := healthServer.Start(egCtx); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		// Drop readiness first so the orchestrator stops probing, then let
		// any sweep already running finish before the process exits.
		healthServer.SetReady(false)
		logger.Info("stopping sweep scheduler")
		<-scheduler.Stop().Done()
		return nil
	})

	if err := eg.Wait(); err != nil {
		logger.Error("worker terminated", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

// initLogger initializes and returns a structured logger based on environment configuration.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the database connection and waits for migrations to complete.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	waitForMigrations(logger, database)
	return database
}

// startSweepScheduler wires the maintenance sweeps into a cron scheduler and
// starts it. The returned scheduler is stopped by main during shutdown.
func startSweepScheduler(logger *slog.Logger, store repository.DeliveryRepository, database *sql.DB, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) *cron.Cron {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.SweepSchedule, func() {
		runSweeps(logger, store, database, cfg, metrics)
	})
	if err != nil {
		logger.Error("failed to add sweep job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()
	return c
}

// runSweeps executes one round of maintenance in a fixed order: fail stale
// in-flight records first so the retention sweep and the state gauges see
// their terminal states in the same round.
func runSweeps(logger *slog.Logger, store repository.DeliveryRepository, database *sql.DB, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	// Envelopes are held in memory only, so a record orphaned by a crash
	// or restart never completes on its own; the stale sweep is what moves
	// it to a terminal state.
	runSweep(logger, cfg, metrics, "stale", func(ctx context.Context) (int64, error) {
		return store.FailStale(ctx, cfg.StaleLease, "delivery lease expired")
	})

	runSweep(logger, cfg, metrics, "retention", func(ctx context.Context) (int64, error) {
		return store.PurgeTerminal(ctx, cfg.RetentionPeriod)
	})

	runSweep(logger, cfg, metrics, "gauges", func(ctx context.Context) (int64, error) {
		return -1, refreshStateGauges(ctx, store)
	})

	updateDBStats(database)
}

// runSweep runs one maintenance pass under the sweep timeout and records its
// outcome. fn reports how many records it touched; a negative count means
// the pass has no record count (gauge refresh).
func runSweep(logger *slog.Logger, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics, name string, fn func(ctx context.Context) (int64, error)) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SweepTimeout)
	defer cancel()

	swept, err := fn(ctx)
	metrics.RecordSweepDuration(name, time.Since(start).Seconds())
	if err != nil {
		// 機密情報をマスクしてログ出力
		logger.Error("sweep failed",
			slog.String("sweep", name),
			slog.Any("error", respond.SanitizeError(err)))
		metrics.RecordSweepRun(name, "failure")
		return
	}

	metrics.RecordSweepRun(name, "success")
	metrics.RecordLastSuccess(name)

	attrs := []any{
		slog.String("sweep", name),
		slog.Duration("duration", time.Since(start)),
	}
	if swept >= 0 {
		metrics.RecordRecordsSwept(name, swept)
		attrs = append(attrs, slog.Int64("records", swept))
	}
	logger.Info("sweep completed", attrs...)
}

// refreshStateGauges refreshes the per-state delivery gauges. States with no
// rows are reported as zero so a drained state is distinguishable from a
// missing scrape.
func refreshStateGauges(ctx context.Context, store repository.DeliveryRepository) error {
	counts, err := store.CountByState(ctx)
	if err != nil {
		return err
	}

	states := []entity.DeliveryState{
		entity.StatePending,
		entity.StateSending,
		entity.StateSucceeded,
		entity.StatePendingRetry,
		entity.StateFailed,
	}
	for _, state := range states {
		obsMetrics.UpdateDeliveriesByState(state.String(), int(counts[state]))
	}

	if terminal := counts[entity.StateSucceeded] + counts[entity.StateFailed]; terminal > 0 {
		slo.UpdateDeliverySuccess(float64(counts[entity.StateSucceeded]) / float64(terminal))
	}
	return nil
}

// updateDBStats exports connection pool statistics for capacity planning.
func updateDBStats(database *sql.DB) {
	stats := database.Stats()
	obsMetrics.UpdateDBConnectionStats(stats.InUse, stats.Idle)
}
