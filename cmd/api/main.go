package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dnakit/internal/api"
	"dnakit/internal/config"
	"dnakit/internal/database"
	"dnakit/internal/domain"
	"dnakit/internal/events"
	"dnakit/internal/logging"
	"dnakit/internal/metrics"
	"dnakit/internal/repository"
	"dnakit/internal/service"
	"dnakit/internal/session"
	"dnakit/internal/telemetry"
	"dnakit/internal/upstream"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	shutdownTracing := telemetry.Setup(cfg.App.Name, cfg.App.Version, &logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init journal database")
		return err
	}
	defer db.Close()
	if counts, err := db.CountByOutcome(context.Background()); err == nil {
		logger.Info().Interface("journal_outcomes", counts).Msg("action journal opened")
	}

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer (func() { _ = repository.Close(redisClient) })()
	}
	snapshots := initSnapshots(cfg, redisClient, &logger)

	bus := events.NewEventBus()
	bus.OnError(func(event *events.Event, err error) {
		logger.Error().Err(err).Str("event_type", event.Type).Msg("event handler failed")
	})
	events.SubscribeJournal(bus, db, events.DefaultJournalRetry)

	client := upstream.NewClient(cfg.Upstream, &logger)
	if redisClient != nil {
		client.UseRedisCache(redisClient, cfg.Upstream.LookupCacheTTL)
	}

	reconciler := service.NewReconciler(client, snapshots, db, bus, service.ReconcilerConfig{
		KitFetchConcurrency: cfg.Upstream.KitFetchConcurrency,
		ResultURLTemplate:   cfg.Results.URLTemplate,
	}, &logger)
	kitEditor := service.NewKitEditor(client, bus, &logger)

	sessions := session.NewParser(cfg.Auth)
	if !sessions.Verifying() {
		logger.Warn().Msg("auth.jwt_secret is empty: session tokens are decoded without signature verification")
	}

	httpServer := api.NewHTTPServer(cfg, api.Services{
		Bookings: reconciler,
		Kits:     kitEditor,
		Sessions: sessions,
		Ready:    db.PingContext,
	}, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, &logger)

	if cfg.Database.Backup.Enabled {
		backup := database.NewBackupService(db, cfg.Database.Backup, &logger)
		go backup.Start(ctx)
	}

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing with in-memory snapshots")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initSnapshots(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.SnapshotRepository {
	memory := repository.NewMemorySnapshotRepository(cfg.Snapshot.TTL, logger)
	if redisClient == nil {
		return memory
	}
	primary := repository.NewRedisSnapshotRepository(redisClient, cfg.Snapshot.TTL, logger)
	return repository.NewFailoverSnapshotRepository(primary, memory, logger)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().
		Int("http_port", cfg.HTTP.Port).
		Str("upstream", cfg.Upstream.BaseURL).
		Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return errors.New("http server stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
