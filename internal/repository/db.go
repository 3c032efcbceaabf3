package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver "pgx"
	_ "modernc.org/sqlite"             // database/sql driver "sqlite"

	"github.com/sgaravatti/cantieri-docs/internal/common"
)

type Config struct {
	DSN             string
	MaxConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// DB wraps *sql.DB with the driver it was opened with, so repositories can
// rebind placeholders for Postgres.
type DB struct {
	*sql.DB
	driver string
}

// Rebind rewrites `?` placeholders to `$n` for the pgx driver.
func (d *DB) Rebind(query string) string {
	if d.driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Open connects to the configured database. Postgres DSNs go through pgx;
// anything else is treated as a SQLite file path, which is the zero-setup
// default for a single-site deployment.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	driver := "sqlite"
	dsn := cfg.DSN
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "pgx"
	} else if !strings.Contains(dsn, "?") {
		// modernc sqlite leaves foreign keys off unless asked per connection
		dsn += "?_pragma=foreign_keys(1)"
	}
	logger.Info("connecting to database", "driver", driver)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		logger.Error("failed to open database", "driver", driver, "error", err)
		return nil, fmt.Errorf("%w: open: %v", common.ErrDatabase, err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if driver == "sqlite" {
		// single writer; avoids SQLITE_BUSY under concurrent uploads
		db.SetMaxOpenConns(1)
	}
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	pingCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		logger.Error("database ping failed", "error", err)
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping: %v", common.ErrDatabase, err)
	}
	return &DB{DB: db, driver: driver}, nil
}

// HealthCheck pings the database with a bounded timeout.
func HealthCheck(ctx context.Context, db *DB, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return db.PingContext(ctx)
}
