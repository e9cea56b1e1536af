package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/sqlrag/sqlrag/internal/dialect"
)

type Config struct {
	Target          dialect.Target
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// Open returns a pooled handle for the target and verifies it with a ping.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	driver := cfg.Target.DriverName()
	if driver == "" {
		return nil, fmt.Errorf("unsupported database type %q", cfg.Target.Kind)
	}
	dsn := cfg.Target.DriverDSN()
	if dsn == "" {
		return nil, fmt.Errorf("%s connection details are required", cfg.Target.Kind)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", cfg.Target.Kind, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", cfg.Target.Kind, err)
	}

	return db, nil
}
