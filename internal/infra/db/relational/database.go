// Package relational stores the engine's aggregates in PostgreSQL or SQLite
// through gorm. Schema changes are goose migrations embedded in the binary.
package relational

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

//go:embed migrations
var migrations embed.FS

// goose keeps its base FS and dialect in package state.
var migrateMu sync.Mutex

type DB struct {
	Gorm    *gorm.DB
	Dialect Dialect
}

// Connect opens PostgreSQL for postgres:// URLs and SQLite for anything else.
// The SQLite dialector runs on the pure Go modernc engine, so builds need no cgo.
func Connect(dsn string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := &gorm.Config{
		Logger: gormlogger.New(
			slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
			gormlogger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		logger.Info("connecting to postgres")
		db, err := gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, err
		}
		return &DB{Gorm: db, Dialect: DialectPostgres}, nil
	}

	logger.Info("using sqlite", slog.String("dsn", dsn))
	db, err := gorm.Open(gormsqlite.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One connection serializes every unit of work, which is the only writer
	// isolation SQLite offers. It also keeps :memory: databases alive.
	sqlDB.SetMaxOpenConns(1)
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, err
	}
	return &DB{Gorm: db, Dialect: DialectSQLite}, nil
}

// Migrate applies every pending migration for the dialect.
func (d *DB) Migrate(ctx context.Context) error {
	sqlDB, err := d.Gorm.DB()
	if err != nil {
		return err
	}
	gooseDialect, dir := "postgres", "migrations/postgres"
	if d.Dialect == DialectSQLite {
		gooseDialect, dir = "sqlite3", "migrations/sqlite"
	}

	migrateMu.Lock()
	defer migrateMu.Unlock()
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(gooseDialect); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, sqlDB, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func (d *DB) Ping(ctx context.Context) error {
	sqlDB, err := d.Gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *DB) Close() error {
	sqlDB, err := d.Gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
