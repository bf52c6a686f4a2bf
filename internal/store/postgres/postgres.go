// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/crater/internal/model"
	"github.com/alfredjeanlab/crater/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) AddBuildResult(ctx context.Context, result *model.BuildResult) error {
	return queryAddBuildResult(ctx, s.db, result)
}

func (s *PostgresStore) GetBuildResult(ctx context.Context, key model.BuildResultKey) (*model.BuildResult, error) {
	return queryGetBuildResult(ctx, s.db, key)
}

func (s *PostgresStore) GetResults(ctx context.Context, toolchain string) ([]*model.BuildResult, error) {
	return queryGetResults(ctx, s.db, toolchain)
}

func (s *PostgresStore) GetResultPairs(ctx context.Context, from, to string) ([]model.ResultPair, error) {
	return queryGetResultPairs(ctx, s.db, from, to)
}

func (s *PostgresStore) ListResultToolchains(ctx context.Context) ([]string, error) {
	return queryListResultToolchains(ctx, s.db)
}

func (s *PostgresStore) AddCustomToolchain(ctx context.Context, tc *model.CustomToolchain) error {
	return queryAddCustomToolchain(ctx, s.db, tc)
}

func (s *PostgresStore) GetCustomToolchain(ctx context.Context, toolchain string) (*model.CustomToolchain, error) {
	return queryGetCustomToolchain(ctx, s.db, toolchain)
}

func (s *PostgresStore) ListCustomToolchains(ctx context.Context) ([]*model.CustomToolchain, error) {
	return queryListCustomToolchains(ctx, s.db)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) AddBuildResult(ctx context.Context, result *model.BuildResult) error {
	return queryAddBuildResult(ctx, s.tx, result)
}

func (s *txStore) GetBuildResult(ctx context.Context, key model.BuildResultKey) (*model.BuildResult, error) {
	return queryGetBuildResult(ctx, s.tx, key)
}

func (s *txStore) GetResults(ctx context.Context, toolchain string) ([]*model.BuildResult, error) {
	return queryGetResults(ctx, s.tx, toolchain)
}

func (s *txStore) GetResultPairs(ctx context.Context, from, to string) ([]model.ResultPair, error) {
	return queryGetResultPairs(ctx, s.tx, from, to)
}

func (s *txStore) ListResultToolchains(ctx context.Context) ([]string, error) {
	return queryListResultToolchains(ctx, s.tx)
}

func (s *txStore) AddCustomToolchain(ctx context.Context, tc *model.CustomToolchain) error {
	return queryAddCustomToolchain(ctx, s.tx, tc)
}

func (s *txStore) GetCustomToolchain(ctx context.Context, toolchain string) (*model.CustomToolchain, error) {
	return queryGetCustomToolchain(ctx, s.tx, toolchain)
}

func (s *txStore) ListCustomToolchains(ctx context.Context) ([]*model.CustomToolchain, error) {
	return queryListCustomToolchains(ctx, s.tx)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
