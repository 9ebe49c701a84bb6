package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
	checkoutmigrations "github.com/goliatone/go-checkout/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type persistenceConfig struct {
	store core.StoreConfig
}

func (c persistenceConfig) GetDebug() bool { return c.store.Debug }
func (c persistenceConfig) GetDriver() string { return c.store.Driver }
func (c persistenceConfig) GetServer() string { return c.store.DSN }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string { return "go-checkout" }

// openPersistence connects to the configured store and applies the checkout
// migrations for its dialect.
func openPersistence(ctx context.Context, cfg core.StoreConfig) (*persistence.Client, error) {
	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = core.StoreDriverSQLite
	}
	cfg.Driver = driver

	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	dialect, err := checkoutmigrations.DialectForDriver(driver)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	migrationSet, err := checkoutmigrations.ForDialect(dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("load migrations: %w", err)
	}

	var client *persistence.Client
	switch dialect {
	case checkoutmigrations.DialectPostgres:
		client, err = persistence.New(persistenceConfig{store: cfg}, sqlDB, pgdialect.New())
	default:
		sqlDB.SetMaxOpenConns(1)
		client, err = persistence.New(persistenceConfig{store: cfg}, sqlDB, sqlitedialect.New())
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("persistence client: %w", err)
	}

	client.RegisterSQLMigrations(migrationSet.FS)
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return client, nil
}
