package main

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"notify-dispatch/internal/common/pagination"
	"notify-dispatch/internal/config"
	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/infra/adapter/persistence/memory"
	pgRepo "notify-dispatch/internal/infra/adapter/persistence/postgres"
	"notify-dispatch/internal/infra/db"
	"notify-dispatch/internal/infra/events"
	"notify-dispatch/internal/infra/provider"
	"notify-dispatch/internal/infra/ratelimit"
	"notify-dispatch/internal/observability/tracing"
	pkgconfig "notify-dispatch/internal/pkg/config"
	"notify-dispatch/internal/repository"
	"notify-dispatch/internal/usecase/dispatch"
	appConfig "notify-dispatch/pkg/config"
	"notify-dispatch/pkg/quota"

	hhttp "notify-dispatch/internal/handler/http"
	"notify-dispatch/internal/handler/http/notification"
	"notify-dispatch/internal/handler/http/requestid"

	_ "notify-dispatch/docs" // swagger docs
)

// @title           Notify Dispatch API
// @version         1.0
// @description     マルチチャネル通知配送システムの REST API
// @description     SMS・Email・WhatsApp への通知送信依頼と配送状態の確認機能を提供します。

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

func main() {
	logger := initLogger()
	store, database := initStore(logger)
	if database != nil {
		defer func() {
			if err := database.Close(); err != nil {
				logger.Error("failed to close database", slog.Any("error", err))
			}
		}()
	}

	version := cmp.Or(os.Getenv("VERSION"), "dev")
	components := setupServer(logger, store, database, version)

	runServer(logger, components, version)
}

// initLogger builds the JSON logger. LOG_LEVEL accepts debug, warn, and
// error; anything else means info.
func initLogger() *slog.Logger {
	var level slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// initStore selects the delivery store backend. When DATABASE_URL is set
// the postgres store is used and migrations run before the server starts;
// otherwise an in-memory store keeps the API usable for local development,
// at the cost of losing delivery records on restart.
func initStore(logger *slog.Logger) (repository.DeliveryRepository, *sql.DB) {
	if os.Getenv("DATABASE_URL") == "" {
		logger.Warn("DATABASE_URL not set, using in-memory delivery store")
		return memory.NewDeliveryRepo(), nil
	}

	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	return pgRepo.NewDeliveryRepo(database), database
}

// ServerComponents holds components needed for server operation and cleanup.
type ServerComponents struct {
	Handler       http.Handler
	Service       dispatch.Service
	Publisher     *events.KafkaPublisher
	QuotaLimiter  *quota.Limiter
	PruneInterval time.Duration
}

// setupServer configures and returns the HTTP handler with all routes and middleware,
// along with the dispatch service and background components for shutdown handling.
func setupServer(logger *slog.Logger, store repository.DeliveryRepository, database *sql.DB, version string) *ServerComponents {
	// Load dispatch configuration (channels, dispatcher pool, events)
	cfgMetrics := pkgconfig.NewConfigMetrics("api")
	dispatchCfg := config.LoadDispatchConfig(logger, cfgMetrics)

	limiter, adapters := buildChannels(logger, dispatchCfg)
	publisher := connectEventPublisher(logger, dispatchCfg)

	// A typed nil must not reach the service as a non-nil interface
	var eventPublisher dispatch.EventPublisher
	if publisher != nil {
		eventPublisher = publisher
	}

	svc := dispatch.NewService(dispatchCfg, store, limiter, adapters, eventPublisher)

	quotaCfg, err := appConfig.LoadQuotaConfig()
	if err != nil {
		logger.Error("failed to load quota configuration", slog.Any("error", err))
		os.Exit(1)
	}
	quotaLimiter, quotaStore := buildQuota(logger, quotaCfg)

	rootMux := setupRoutes(database, version, svc, adapters, quotaStore, logger)
	handler := applyMiddleware(logger, rootMux, quotaLimiter)

	return &ServerComponents{
		Handler:       handler,
		Service:       svc,
		Publisher:     publisher,
		QuotaLimiter:  quotaLimiter,
		PruneInterval: quotaCfg.PruneInterval,
	}
}

// connectEventPublisher connects to the configured brokers, or returns nil
// when events are disabled. Publishing is best-effort, so a broken broker
// setup must not prevent the API from serving deliveries.
func connectEventPublisher(logger *slog.Logger, cfg *config.DispatchConfig) *events.KafkaPublisher {
	if !cfg.EventsEnabled() {
		return nil
	}

	publisher, err := events.NewKafkaPublisher(cfg.Events)
	if err != nil {
		logger.Warn("event publisher unavailable, delivery transitions will not be published",
			slog.Any("error", err))
		return nil
	}

	logger.Info("event publisher connected",
		slog.Any("brokers", cfg.Events.Brokers),
		slog.String("topic", cfg.Events.Topic))
	return publisher
}

// buildQuota assembles the per-caller request quota, or returns nils when
// the quota is disabled.
func buildQuota(logger *slog.Logger, cfg *appConfig.QuotaConfig) (*quota.Limiter, quota.Store) {
	if !cfg.Enabled {
		logger.Warn("request quota is DISABLED - not recommended for production")
		return nil, nil
	}

	quotaMetrics := quota.NewPrometheusMetrics(prometheus.DefaultRegisterer, "api")
	store := quota.NewMemoryStore(quota.MemoryStoreConfig{
		RequestsPerSec: cfg.RequestsPerSec,
		Burst:          cfg.Burst,
		MaxKeys:        cfg.MaxKeys,
		OnEvict:        quotaMetrics.RecordEvictions,
	})

	limiter := quota.New(quota.Config{
		RequestsPerSec: cfg.RequestsPerSec,
		Burst:          cfg.Burst,
		MaxKeys:        cfg.MaxKeys,
		IdleTTL:        cfg.IdleTTL,
	}, quota.Options{
		Store:   store,
		Metrics: quotaMetrics,
	})

	logger.Info("request quota initialized",
		slog.Bool("enabled", true),
		slog.Float64("requests_per_sec", cfg.RequestsPerSec),
		slog.Int("burst", cfg.Burst),
		slog.Int("max_keys", cfg.MaxKeys),
		slog.Duration("idle_ttl", cfg.IdleTTL),
	)
	return limiter, store
}

// buildChannels constructs the per-channel token bucket limiter and the
// provider adapters for every enabled channel. Channels with unknown names
// are skipped so a typo in the config file cannot take down the API.
func buildChannels(logger *slog.Logger, cfg *config.DispatchConfig) (*ratelimit.ChannelLimiter, []dispatch.ChannelAdapter) {
	settings := make(map[entity.Channel]ratelimit.Settings)
	var adapters []dispatch.ChannelAdapter

	for _, name := range cfg.EnabledChannels() {
		channel, err := entity.ParseChannel(name)
		if err != nil {
			logger.Warn("unknown channel in configuration, skipping",
				slog.String("channel", name))
			continue
		}

		chCfg, _ := cfg.Channel(name)
		settings[channel] = ratelimit.Settings{
			Capacity:     chCfg.RateLimitCapacity,
			RefillPerSec: chCfg.RateLimitRefillPerSec,
		}
		adapters = append(adapters, provider.ForChannel(channel, chCfg))

		logger.Info("channel enabled",
			slog.String("channel", name),
			slog.Int("max_attempts", chCfg.MaxAttempts),
			slog.Int("rate_limit_capacity", chCfg.RateLimitCapacity),
			slog.Float64("rate_limit_refill_per_sec", chCfg.RateLimitRefillPerSec),
		)
	}

	if len(adapters) == 0 {
		logger.Warn("no channels enabled, all submissions will be rejected")
	}

	return ratelimit.New(settings), adapters
}

// setupRoutes registers all HTTP routes.
func setupRoutes(
	database *sql.DB,
	version string,
	svc dispatch.Service,
	adapters []dispatch.ChannelAdapter,
	quotaStore quota.Store,
	logger *slog.Logger,
) *http.ServeMux {
	mux := http.NewServeMux()

	paginationCfg := pagination.LoadFromEnv()

	// 通知配送エンドポイント
	notification.Register(mux, svc, paginationCfg, logger)

	// ヘルスチェックエンドポイント
	mux.Handle("/health", &hhttp.HealthHandler{
		DB:         database,
		Version:    version,
		Adapters:   adapters,
		QuotaStore: quotaStore,
	})
	mux.Handle("/ready", &hhttp.ReadyHandler{DB: database})
	mux.Handle("/live", &hhttp.LiveHandler{})
	mux.Handle("/metrics", hhttp.MetricsHandler())

	// Swagger UI
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}

// applyMiddleware wraps the handler with the middleware chain, outermost
// first. Quota sits after logging so rejected callers still produce a log
// line, and before body limit and validation so over-limit callers are
// turned away cheaply.
func applyMiddleware(logger *slog.Logger, handler http.Handler, quotaLimiter *quota.Limiter) http.Handler {
	requestTimeout := appConfig.GetEnvDuration("REQUEST_TIMEOUT", 30*time.Second)

	chain := []func(http.Handler) http.Handler{
		requestid.Middleware,
		tracing.Middleware,
		hhttp.Recover(logger),
		hhttp.Logging(logger),
	}
	if quotaLimiter != nil {
		chain = append(chain, hhttp.Quota(quotaLimiter))
	}
	chain = append(chain,
		hhttp.LimitRequestBody(1<<20), // 1MB limit
		hhttp.InputValidation(),
		hhttp.Timeout(requestTimeout),
		hhttp.MetricsMiddleware,
	)

	for i := len(chain) - 1; i >= 0; i-- {
		handler = chain[i](handler)
	}
	return handler
}

// runServer starts the HTTP server and blocks until a shutdown signal.
func runServer(logger *slog.Logger, components *ServerComponents, version string) {
	// Context for background goroutines (quota janitor)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if components.QuotaLimiter != nil {
		components.QuotaLimiter.StartJanitor(ctx, components.PruneInterval)
		logger.Info("quota janitor started",
			slog.Duration("interval", components.PruneInterval))
	}

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           components.Handler,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	shutdown(logger, srv, components)
	cancel()
	logger.Info("server stopped")
}

// shutdown drains the server in dependency order: stop accepting requests,
// settle in-flight deliveries and pending retries, then close the event
// publisher after the last transition is published.
func shutdown(logger *slog.Logger, srv *http.Server, components *ServerComponents) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer drainCancel()
	if err := components.Service.Shutdown(drainCtx); err != nil {
		logger.Error("dispatcher shutdown incomplete", slog.Any("error", err))
	}

	if components.Publisher != nil {
		if err := components.Publisher.Close(); err != nil {
			logger.Error("event publisher close failed", slog.Any("error", err))
		}
	}
}
