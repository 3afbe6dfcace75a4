package main

import (
	"context"
	"fmt"
	"log/slog"

	"staykeeper/internal/app/middleware"
	appoutbox "staykeeper/internal/app/outbox"
	"staykeeper/internal/app/uow"
	"staykeeper/internal/infra/broker/kafka"
	"staykeeper/internal/infra/config"
	mongostore "staykeeper/internal/infra/db/mongo"
	"staykeeper/internal/infra/db/relational"
	"staykeeper/internal/infra/inbox"
	"staykeeper/internal/infra/outbox"
	"staykeeper/internal/infra/storage/memory"
)

// store bundles everything the selected driver provides.
type store struct {
	uow         uow.UoWFactory
	outbox      appoutbox.Outbox
	relay       outbox.Store
	idempotency middleware.IdempotencyStore
	inbox       kafka.Inbox
	onFlush     func(fn func())
	ping        func(ctx context.Context) error
	close       func()
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return openMemory(cfg), nil
	case config.DriverMongo:
		return openMongo(ctx, cfg, logger)
	case config.DriverPostgres, config.DriverSQLite:
		return openRelational(ctx, cfg, logger)
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}

func openMemory(cfg config.Config) *store {
	mem := memory.NewStore()
	box := memory.NewOutbox(mem)
	return &store{
		uow:         mem,
		outbox:      box,
		relay:       box,
		idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		onFlush:     box.OnFlush,
		ping:        func(context.Context) error { return nil },
		close:       func() {},
	}
}

func openMongo(ctx context.Context, cfg config.Config, logger *slog.Logger) (*store, error) {
	client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB, cfg.StoreTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	fail := func(err error) (*store, error) {
		_ = client.Close(context.Background())
		return nil, err
	}
	if err := mongostore.EnsureIndexes(ctx, client.DB, cfg.IdempotencyTTL); err != nil {
		return fail(fmt.Errorf("ensure indexes: %w", err))
	}
	box, err := outbox.NewMongoStore(ctx, client.DB)
	if err != nil {
		return fail(fmt.Errorf("outbox indexes: %w", err))
	}
	received, err := inbox.NewStore(ctx, client.DB, cfg.KafkaGroupID, cfg.IdempotencyTTL)
	if err != nil {
		return fail(fmt.Errorf("inbox indexes: %w", err))
	}
	return &store{
		uow:         mongostore.Factory{DB: client.DB},
		outbox:      box,
		relay:       box,
		idempotency: mongostore.NewIdempotencyStore(client.DB),
		inbox:       received,
		onFlush:     box.OnFlush,
		ping:        client.Ping,
		close: func() {
			if err := client.Close(context.Background()); err != nil {
				logger.Warn("mongo disconnect failed", "error", err)
			}
		},
	}, nil
}

func openRelational(ctx context.Context, cfg config.Config, logger *slog.Logger) (*store, error) {
	db, err := relational.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.StoreDriver, err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	box := relational.NewOutboxStore(db)
	return &store{
		uow:         relational.Factory{DB: db},
		outbox:      box,
		relay:       box,
		idempotency: relational.NewIdempotencyStore(db, cfg.IdempotencyTTL),
		inbox:       relational.NewInboxStore(db, cfg.KafkaGroupID),
		onFlush:     box.OnFlush,
		ping:        db.Ping,
		close: func() {
			if err := db.Close(); err != nil {
				logger.Warn("database close failed", "error", err)
			}
		},
	}, nil
}
