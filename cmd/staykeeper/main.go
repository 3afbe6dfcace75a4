package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"staykeeper/internal/app/clock"
	"staykeeper/internal/app/engine"
	"staykeeper/internal/infra/broker/kafka"
	"staykeeper/internal/infra/config"
	ginserver "staykeeper/internal/infra/http/gin"
	"staykeeper/internal/infra/obs"
	"staykeeper/internal/infra/outbox"
	"staykeeper/internal/infra/security"
	"staykeeper/internal/infra/storage/memory"
)

const (
	serviceName      = "staykeeper"
	bookingConfirmed = "booking.confirmed"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := obs.NewLogger(getenv("APP_ENV", "dev"))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger = obs.NewLogger(cfg.Env)

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("store initialization failed", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer st.close()
	logger.Info("store ready", "driver", cfg.StoreDriver)

	discounts := memory.NewDiscountTable()
	if path := getenv("DISCOUNTS_FIXTURES", ""); path != "" {
		if err := loadDiscountFixtures(path, discounts, logger); err != nil {
			logger.Warn("discount fixtures load failed", "error", err, "path", path)
		}
	}

	eng := engine.New(engine.Dependencies{
		UoW:                st.uow,
		Outbox:             st.outbox,
		Idempotency:        st.idempotency,
		Discounts:          discounts,
		Clock:              clock.NewSystem(),
		Logger:             logger,
		CommissionRate:     cfg.CommissionRate,
		CommissionDueAfter: cfg.CommissionDueAfter,
		TxTimeout:          cfg.StoreTimeout,
	})

	listingsPath := cfg.ListingsFixtures
	if listingsPath == "" {
		listingsPath = defaultFixturesPath("listings.json")
	}
	if err := loadListingFixtures(ctx, st.uow, listingsPath, logger); err != nil {
		logger.Warn("listing fixtures load failed", "error", err, "path", listingsPath)
	}
	usersPath := cfg.UsersFixtures
	if usersPath == "" {
		usersPath = defaultFixturesPath("users.json")
	}
	if err := loadUserFixtures(ctx, st.uow, usersPath, logger); err != nil {
		logger.Warn("user fixtures load failed", "error", err, "path", usersPath)
	}

	auth := ginserver.AuthMiddleware{Logger: logger}
	if cfg.JWTSecret != "" {
		tokens, err := security.NewTokenService(cfg.JWTSecret, 0)
		if err != nil {
			logger.Error("token service initialization failed", "error", err)
			os.Exit(1)
		}
		auth.Tokens = tokens
	} else {
		logger.Warn("JWT_SECRET not set, every request is anonymous")
	}

	health := obs.HealthHandlers{Checks: map[string]obs.Check{cfg.StoreDriver: st.ping}}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, health, ginserver.Handlers{
		Booking:        ginserver.BookingHandler{Commands: eng.Commands, Queries: eng.Queries, Logger: logger},
		Availability:   ginserver.AvailabilityHandler{Queries: eng.Queries, Logger: logger},
		Commission:     ginserver.CommissionHandler{Commands: eng.Commands, Queries: eng.Queries, Logger: logger},
		AuthMiddleware: auth.Handle,
	})

	var background sync.WaitGroup
	if cfg.EventsEnabled() {
		if err := startEvents(ctx, &background, cfg, st, eng, logger); err != nil {
			logger.Error("event pipeline initialization failed", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("KAFKA_BROKERS not set, outbox relay and commission consumer disabled")
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		stop()
		background.Wait()
		os.Exit(1)
	}
	background.Wait()
	logger.Info("HTTP server stopped")
}

// startEvents runs the outbox relay and the booking.confirmed consumer until
// ctx is cancelled.
func startEvents(ctx context.Context, wg *sync.WaitGroup, cfg config.Config, st *store, eng *engine.Engine, logger *slog.Logger) error {
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, kafka.NewConfig(serviceName))
	if err != nil {
		return err
	}
	worker := &outbox.Worker{
		Store:       st.relay,
		Producer:    producer,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
		Logger:      logger.With("component", "outbox"),
	}
	worker.Prepare()
	st.onFlush(worker.Wake)

	var retry time.Duration
	if len(cfg.RetryBackoff) > 0 {
		retry = cfg.RetryBackoff[0]
	}
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, kafka.NewConfig(serviceName), kafka.CloudEventHandler{
		Handler: eng.BookingConfirmed,
		Inbox:   st.inbox,
		Logger:  logger.With("component", "consumer"),
	}, logger, retry)
	if err != nil {
		_ = producer.Close()
		return err
	}
	topic := outbox.TopicFor(cfg.KafkaTopicPrefix, bookingConfirmed)

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer producer.Close()
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox worker stopped", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		defer consumer.Close()
		logger.Info("commission consumer starting", "topic", topic, "group", cfg.KafkaGroupID)
		if err := consumer.Run(ctx, []string{topic}); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("commission consumer stopped", "error", err)
		}
	}()
	return nil
}

func defaultFixturesPath(name string) string {
	candidates := []string{
		filepath.Join("data", name),
		filepath.Join("..", "..", "data", name),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
