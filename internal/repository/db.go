package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// DB wraps database/sql with the dialect needed for placeholder rebinding
// and, for postgres DSNs, the pgx pool backing it.
type DB struct {
	*sql.DB
	pool     *pgxpool.Pool
	postgres bool
}

// Open connects by DSN scheme: postgres:// DSNs get a pgx pool wrapped for
// database/sql; anything else (file path, ":memory:") opens sqlite.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		return openPostgres(ctx, cfg, logger)
	}
	return openSQLite(cfg, logger)
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to postgres")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "receipt-scanner"

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &DB{DB: stdlib.OpenDBFromPool(pool), pool: pool, postgres: true}, nil
}

func openSQLite(cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("opening sqlite database", "dsn", cfg.DSN)
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single connection: in-memory databases are per-connection, and the
	// file database has a single writer anyway
	db.SetMaxOpenConns(1)
	return &DB{DB: db}, nil
}

// Close closes the database connections gracefully.
func (d *DB) Close(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := d.DB.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
	}
	if d.pool != nil {
		d.pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return d.PingContext(ctx)
}

// rebind converts "?" placeholders to "$N" for postgres.
func (d *DB) rebind(query string) string {
	if !d.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Migrate creates the schema when absent. Column types are chosen to read
// identically through both drivers.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS receipts (
			id           TEXT PRIMARY KEY,
			filename     TEXT NOT NULL,
			path         TEXT NOT NULL,
			mime_type    TEXT NOT NULL,
			size_bytes   BIGINT NOT NULL DEFAULT 0,
			upload_date  TEXT NOT NULL,
			merchant     TEXT,
			tx_date      TEXT,
			total        DOUBLE PRECISION,
			confidence   REAL,
			raw_text     TEXT,
			processed_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS line_items (
			receipt_id TEXT NOT NULL REFERENCES receipts(id) ON DELETE CASCADE,
			line_index INTEGER NOT NULL,
			name       TEXT NOT NULL,
			price      DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (receipt_id, line_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_receipts_upload_date ON receipts (upload_date)`,
	}
	for _, stmt := range stmts {
		if _, err := d.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
