package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Open connects to the configured store and wraps it in a bun.DB.
// For sqlite the DSN is a file path, for libsql a Turso URL and for postgres a connection URL.
func Open(ctx context.Context, opts Options) (*bun.DB, error) {
	var (
		sqldb *sql.DB
		db    *bun.DB
		err   error
	)

	switch opts.Driver {
	case DriverSQLite, "":
		if opts.DSN == "" || opts.DSN == ":memory:" {
			return nil, fmt.Errorf("sqlite requires a file path, got %q", opts.DSN)
		}
		log.Info("Opening local SQLite database", "path", opts.DSN)
		sqldb, err = sql.Open("sqlite3", sqliteDSN(opts.DSN))
		if err != nil {
			return nil, fmt.Errorf("failed to open local database: %w", err)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DriverLibSQL:
		log.Info("Opening Turso database", "url", opts.DSN)
		dsn := opts.DSN
		if opts.AuthToken != "" {
			dsn += "?authToken=" + opts.AuthToken
		}
		sqldb, err = sql.Open("libsql", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open db %s: %w", opts.DSN, err)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DriverPostgres:
		log.Info("Opening PostgreSQL database")
		sqldb = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(opts.DSN)))
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrUnavailable, err)
	}
	return db, nil
}

// InitDB opens the store and brings its schema up to date.
// The returned teardown closes the database.
func InitDB(ctx context.Context, opts Options) (*bun.DB, func(), error) {
	db, err := Open(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	if err := Migrate(ctx, db, opts.Driver); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	teardown := func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", "error", err)
		}
	}
	log.Info("Database initialized successfully", "driver", opts.Driver)
	return db, teardown, nil
}

// sqliteDSN serializes writers at BEGIN so concurrent transactions wait on the
// busy timeout instead of failing mid-transaction.
func sqliteDSN(path string) string {
	return "file:" + path + "?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on&_journal_mode=WAL"
}

// Connect opens and migrates the store, builds the pool over it and verifies
// a pooled connection answers before returning. The teardown closes both.
func Connect(ctx context.Context, opts Options, poolCfg PoolConfig) (*Pool, func(), error) {
	db, dbTeardown, err := InitDB(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	pool, err := NewPool(ctx, db, poolCfg)
	if err != nil {
		dbTeardown()
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.HealthCheck(ctx); err != nil {
		pool.Close()
		dbTeardown()
		return nil, nil, fmt.Errorf("startup health check failed: %w", err)
	}
	return pool, func() {
		pool.Close()
		dbTeardown()
	}, nil
}
