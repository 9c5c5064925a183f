// Package database opens the queried database and executes generated SQL.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Config holds the connection settings.
type Config struct {
	// Driver is a database/sql driver name: pgx, sqlite (pure Go) or sqlite3 (cgo).
	Driver          string
	URL             string
	PingTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func (c Config) Validate() error {
	switch c.Driver {
	case "pgx", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.URL == "" {
		return errors.New("database URL is required")
	}
	if c.PingTimeout <= 0 {
		return errors.New("ping timeout must be positive")
	}
	if c.MaxOpenConns < 1 {
		return errors.New("max open conns must be >= 1")
	}
	if c.MaxIdleConns < 0 {
		return errors.New("max idle conns must be >= 0")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max idle conns must be <= max open conns")
	}
	if c.ConnMaxLifetime < 0 {
		return errors.New("conn max lifetime must be >= 0")
	}
	if c.ConnMaxIdleTime < 0 {
		return errors.New("conn max idle time must be >= 0")
	}
	return nil
}

// Open connects and pings the database. A database that cannot be reached
// within PingTimeout is an error.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return db, nil
}
