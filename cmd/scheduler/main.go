package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"armada/internal/config"
	"armada/internal/database"
	"armada/internal/events"
	"armada/internal/logging"
	"armada/internal/metrics"
	"armada/internal/scheduler"
	"armada/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Options{
		Driver:       cfg.Database.Driver,
		Path:         cfg.Database.Path,
		DSN:          cfg.Database.Postgres.DSN(),
		MaxOpenConns: cfg.Database.Postgres.MaxConnections,
	}, &logger)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("init database")
		return err
	}
	defer db.Close()

	loc, err := cfg.Settlement.Location()
	if err != nil {
		return fmt.Errorf("load settlement timezone: %w", err)
	}

	// события планировщика уходят в тот же exchange, что и события API
	eventBus := events.NewEventBus(&logger)
	publisher := events.NewPublisher(cfg.Broker.AMQPURL, &logger)
	defer publisher.Close()
	events.NewForwarder(publisher, cfg.Broker.Exchange, &logger).Attach(eventBus)

	ledger := service.NewLedgerService(db, db, eventBus, &logger)
	settlement := service.NewSettlementService(db, db, ledger, db, eventBus, service.SystemClock{}, loc, &logger)
	jobs := scheduler.NewJobs(settlement, service.SystemClock{}, loc, &logger)

	var backup cron.Job
	if cfg.Backup.Enabled {
		if db.Driver() == database.DriverSQLite {
			backup = database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		} else {
			logger.Warn().Str("driver", db.Driver()).Msg("backups are only supported for sqlite, job disabled")
		}
	}

	sched, err := scheduler.New(cfg.Scheduler, jobs, backup, &logger)
	if err != nil {
		return err
	}

	startMetrics(ctx, cfg, &logger)

	sched.RunNow()
	sched.Start()
	logger.Info().Int("jobs", sched.Entries()).Str("timezone", cfg.Scheduler.Timezone).Msg("scheduler started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sched.Stop(shutdownCtx)

	logger.Info().Msg("scheduler stopped")
	return nil
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
	logger := baseLogger.With().Str("component", "scheduler-main").Logger()

	return cfg, logger, closer, nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
