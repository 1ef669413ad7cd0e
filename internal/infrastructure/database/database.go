package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config holds database connection configuration.
type Config struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ConnString renders cfg as a pgx keyword/value connection string.
func (cfg Config) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s pool_max_conns=%d pool_min_conns=%d pool_max_conn_lifetime=%s",
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.User,
		cfg.Password,
		cfg.SSLMode,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
	)
}

// NewPool creates a PostgreSQL connection pool and verifies it with a ping.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Migrations lists the embedded migration files in execution order.
func Migrations() ([]string, error) {
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// Migrator is the subset of *pgxpool.Pool RunMigrations needs.
type Migrator interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

const (
	createSchemaMigrations = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	selectAppliedVersions = `SELECT version FROM schema_migrations`
	insertAppliedVersion  = `INSERT INTO schema_migrations (version) VALUES ($1)`
)

// RunMigrations applies every embedded migration not yet recorded in
// schema_migrations, each in its own transaction. It returns how many ran.
func RunMigrations(ctx context.Context, db Migrator, log *slog.Logger) (int, error) {
	files, err := Migrations()
	if err != nil {
		return 0, err
	}

	if _, err := db.Exec(ctx, createSchemaMigrations); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	rows, err := db.Query(ctx, selectAppliedVersions)
	if err != nil {
		return 0, fmt.Errorf("list applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, fmt.Errorf("scan applied migrations: %w", err)
	}
	applied := make(map[string]struct{}, len(versions))
	for _, v := range versions {
		applied[v] = struct{}{}
	}

	var ran int
	for _, file := range files {
		version := MigrationVersion(file)
		if _, ok := applied[version]; ok {
			continue
		}

		sqlBytes, err := migrationsFS.ReadFile(file)
		if err != nil {
			return ran, fmt.Errorf("read migration %s: %w", file, err)
		}
		if err := apply(ctx, db, version, string(sqlBytes)); err != nil {
			return ran, err
		}

		ran++
		log.Info("migration applied", "version", version)
	}

	return ran, nil
}

// MigrationVersion is the file name without directory and extension,
// e.g. "001_create_crpt_exchange_log".
func MigrationVersion(file string) string {
	return strings.TrimSuffix(path.Base(file), path.Ext(file))
}

func apply(ctx context.Context, db Migrator, version, sql string) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", version, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("execute migration %s: %w", version, err)
	}
	if _, err := tx.Exec(ctx, insertAppliedVersion, version); err != nil {
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", version, err)
	}
	return nil
}
