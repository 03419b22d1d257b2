package components

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jcuenca6779/urbandrive/internal/api"
	"github.com/jcuenca6779/urbandrive/internal/config"
	"github.com/jcuenca6779/urbandrive/internal/rabbit"
	"github.com/jcuenca6779/urbandrive/internal/service"
	"github.com/jcuenca6779/urbandrive/internal/storage/postgres"
	"github.com/jcuenca6779/urbandrive/internal/storage/redis"
	"github.com/jcuenca6779/urbandrive/pkg/logger"
)

type Components struct {
	logger     *slog.Logger
	HttpServer *api.Server
	Postgres   *postgres.Postgres
	Redis      *redis.Redis
	Publisher  *rabbit.Publisher
	Consumer   *rabbit.Consumer
}

func InitComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	logger.Info("Initializing Postgres")

	storage, err := postgres.NewPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to init postgres",
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("failed to init postgres: %w", err)
	}

	logger.Info("Initializing Redis")
	redisClient, err := redis.NewRedis(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init redis: %w", err)
	}

	gameStore := redis.NewGameStore(redisClient.Client)

	logger.Info("Initializing RabbitMQ publisher")
	publisher := rabbit.NewPublisher(cfg.Rabbit, logger)
	if err := publisher.Start(); err != nil {
		// Broker may come up later; the publisher reconnects on its own.
		logger.Warn("rabbitmq unavailable at startup, will keep retrying",
			slog.Any("error", err),
		)
	}

	classifier := service.NewSeverityClient(cfg.AI, logger)
	incidentSvc := service.NewIncidentService(storage.Incidents(), publisher, classifier, logger)
	engine := service.NewGamificationEngine(gameStore, logger)

	consumer := rabbit.NewConsumer(cfg.Rabbit, engine, logger)

	srv := service.NewService(incidentSvc, engine)

	httpServer := api.NewServer(cfg, logger, srv)
	logger.Info("Initialized server")

	return &Components{
		logger:     logger,
		HttpServer: httpServer,
		Postgres:   storage,
		Redis:      redisClient,
		Publisher:  publisher,
		Consumer:   consumer,
	}, nil
}

func SetupLogger(env string) *slog.Logger {
	switch env {
	case "local":
		return logger.SetupPrettySlog()
	case "dev":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	default:
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	}
}

func (c *Components) ShutdownAll() {
	start := time.Now()
	c.logger.Info("Shutting down components")

	if c.Publisher != nil {
		c.Publisher.Close()
	}

	c.Postgres.Pool.Close()
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.logger.Error("Redis close failed", slog.String("err", err.Error()))
		}
	}

	c.logger.Info("All components stopped",
		slog.Duration("latency", time.Since(start)))
}
