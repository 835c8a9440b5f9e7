package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/printhub/printhub-api/internal/config"
	"github.com/printhub/printhub-api/internal/middleware"
	"github.com/printhub/printhub-api/internal/pkg/database"
	"github.com/printhub/printhub-api/internal/pkg/events"
	"github.com/printhub/printhub-api/internal/pkg/jwt"
	"github.com/printhub/printhub-api/internal/pkg/logger"
	"github.com/printhub/printhub-api/internal/pkg/storage"
	"github.com/printhub/printhub-api/internal/pkg/txretry"
	"github.com/printhub/printhub-api/internal/store/memory"
	"github.com/printhub/printhub-api/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Str("store", cfg.StoreDriver).
		Msg("Starting PrintHub API")

	ctx := context.Background()

	var store backend
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		store = memory.New()
	case config.StoreDriverPostgres:
		db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer database.ClosePostgres(db)
		store = postgres.New(db)
	default:
		log.Fatal().Str("driver", cfg.StoreDriver).Msg("Unknown STORE_DRIVER")
	}

	redis, err := database.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	var publisher events.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.EventsExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	} else {
		log.Warn().Msg("AMQP URL not configured, domain events are dropped")
	}

	var objects storage.Storage
	s3Storage, err := storage.NewS3Storage(ctx, storage.Config{
		Endpoint:   cfg.S3Endpoint,
		Region:     cfg.S3Region,
		Bucket:     cfg.S3Bucket,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		PublicURL:  cfg.S3PublicURL,
		PresignTTL: cfg.S3PresignTTL,
	})
	switch {
	case err == nil:
		objects = s3Storage
	case errors.Is(err, storage.ErrNotConfigured):
		log.Warn().Msg("S3 storage not configured, model uploads disabled")
	default:
		log.Fatal().Err(err).Msg("Failed to create S3 storage")
	}

	handler := newRouter(deps{
		store:     store,
		publisher: publisher,
		retry: txretry.Policy{
			MaxAttempts: cfg.TxMaxAttempts,
			Backoff:     cfg.TxRetryBackoff,
		},
		objects:        objects,
		jwt:            jwt.NewService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAccessTTL),
		allowedOrigins: cfg.AllowedOrigins,
		rateLimit: middleware.RateLimit(middleware.RateLimitConfig{
			Enabled:        cfg.RateLimitEnabled,
			Prefix:         "printhub:rl",
			Capacity:       cfg.RateLimitCapacity,
			RefillTokens:   cfg.RateLimitRefill,
			RefillInterval: cfg.RateLimitInterval,
			TTL:            10 * time.Minute,
		}, redis),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return
	}

	log.Info().Msg("Server exited properly")
}
