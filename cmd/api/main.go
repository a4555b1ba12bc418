package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"armada/internal/api"
	"armada/internal/auth"
	"armada/internal/config"
	"armada/internal/database"
	"armada/internal/domain"
	"armada/internal/events"
	"armada/internal/logging"
	"armada/internal/metrics"
	"armada/internal/models"
	"armada/internal/notify"
	"armada/internal/repository"
	"armada/internal/service"
	"armada/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
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

	vehicles, err := loadVehicles(&logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, vehicles, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	loc, err := cfg.Settlement.Location()
	if err != nil {
		return fmt.Errorf("load settlement timezone: %w", err)
	}

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	idempotency := initIdempotencyStore(redisClient, &logger)

	eventBus := events.NewEventBus(&logger)
	publisher := events.NewPublisher(cfg.Broker.AMQPURL, &logger)
	defer publisher.Close()
	events.NewForwarder(publisher, cfg.Broker.Exchange, &logger).Attach(eventBus)

	notifier, err := initNotifier(cfg, &logger)
	if err != nil {
		return err
	}
	notificationWorker := worker.NewNotificationWorker(
		db,
		notifier,
		redisClient,
		worker.PolicyFromConfig(cfg.Notifications.Retry),
		worker.Options{
			QueueKey:      cfg.Notifications.QueueKey,
			DeadLetterKey: cfg.Notifications.DeadLetterKey,
			PollInterval:  cfg.Notifications.PollInterval,
		},
		&logger,
	)
	worker.NewNotificationSubscriber(notificationWorker).Attach(eventBus)
	go notificationWorker.Start(ctx)

	ledger := service.NewLedgerService(db, db, eventBus, &logger)
	settlement := service.NewSettlementService(db, db, ledger, db, eventBus, service.SystemClock{}, loc, &logger)

	metrics.Register()

	checks := map[string]api.HealthCheck{"store": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return repository.Ping(ctx, redisClient) }
	}

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, checks, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
		go grpcServer.Monitor(ctx, 15*time.Second)
	}

	httpServer := api.NewHTTPServer(cfg.API, api.Deps{
		Settlement:  settlement,
		Ledger:      ledger,
		Tokens:      auth.NewTokenManager(cfg.API.Auth),
		Idempotency: idempotency,
		Location:    loc,
		Checks:      checks,
	}, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
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

func loadVehicles(logger *zerolog.Logger) ([]models.Vehicle, error) {
	vehiclesPath := os.Getenv("VEHICLES_PATH")
	if vehiclesPath == "" {
		vehiclesPath = "configs/vehicles.yaml"
	}
	data, err := os.ReadFile(vehiclesPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("vehicles_path", vehiclesPath).Msg("fleet seed not found, skipping sync")
			return nil, nil
		}
		logger.Error().Err(err).Str("vehicles_path", vehiclesPath).Msg("read vehicles")
		return nil, err
	}

	var fleet struct {
		Vehicles []models.Vehicle `yaml:"vehicles"`
	}
	if err := yaml.Unmarshal(data, &fleet); err != nil {
		logger.Error().Err(err).Str("vehicles_path", vehiclesPath).Msg("parse vehicles")
		return nil, err
	}
	if err := config.ValidateVehicles(fleet.Vehicles); err != nil {
		logger.Error().Err(err).Msg("vehicles validation failed")
		return nil, err
	}

	return fleet.Vehicles, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, vehicles []models.Vehicle, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, database.Options{
		Driver:       cfg.Database.Driver,
		Path:         cfg.Database.Path,
		DSN:          cfg.Database.Postgres.DSN(),
		MaxOpenConns: cfg.Database.Postgres.MaxConnections,
	}, logger)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("init database")
		return nil, err
	}

	if len(vehicles) > 0 {
		if err := db.SyncVehicles(ctx, vehicles); err != nil {
			logger.Error().Err(err).Msg("fleet sync failed")
		}
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initIdempotencyStore(redisClient *redis.Client, logger *zerolog.Logger) domain.IdempotencyStore {
	memory := repository.NewMemoryIdempotencyStore()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverIdempotencyStore(repository.NewRedisIdempotencyStore(redisClient), memory, logger)
}

func initNotifier(cfg *config.Config, logger *zerolog.Logger) (domain.Notifier, error) {
	tg := cfg.Notifications.Telegram
	if !tg.Enabled {
		return notify.NewLogNotifier(logger), nil
	}
	bot, err := notify.NewBotSender(tg)
	if err != nil {
		logger.Error().Err(err).Msg("telegram init failed")
		return nil, err
	}
	logger.Info().Str("bot", bot.Self.UserName).Int("chats", len(tg.ChatIDs)).Msg("telegram notifier ready")
	return notify.NewTelegramNotifier(bot, tg.ChatIDs, logger), nil
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Bool("grpc", grpcServer != nil).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}
