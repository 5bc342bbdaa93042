// Package postgres keeps readings in PostgreSQL. Unlike the in-memory ring
// it never evicts; the configured history size only bounds what dashboards
// load.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/motionrelay/internal/model"
	"github.com/alfredjeanlab/motionrelay/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Pool sizes the connection pool. A reporter fleet posts small rows at a
// steady rate, so few connections go a long way.
type Pool struct {
	MaxConns    int
	MaxIdle     int
	MaxLifetime time.Duration
}

// DefaultPool is used for zero Pool fields.
var DefaultPool = Pool{MaxConns: 10, MaxIdle: 2, MaxLifetime: 10 * time.Minute}

func (p Pool) withDefaults() Pool {
	if p.MaxConns <= 0 {
		p.MaxConns = DefaultPool.MaxConns
	}
	if p.MaxIdle <= 0 {
		p.MaxIdle = min(DefaultPool.MaxIdle, p.MaxConns)
	}
	if p.MaxLifetime <= 0 {
		p.MaxLifetime = DefaultPool.MaxLifetime
	}
	return p
}

// PostgresStore is a store.Store over a *sql.DB.
type PostgresStore struct {
	db *sql.DB
}

var _ store.Store = (*PostgresStore)(nil)

// New connects to databaseURL and brings the schema up to date before
// returning.
func New(ctx context.Context, databaseURL string, pool Pool) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	pool = pool.withDefaults()
	db.SetMaxOpenConns(pool.MaxConns)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// migrateUp applies the embedded migrations. An up-to-date schema is not
// an error.
func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}
	target, err := migratepg.WithInstance(db, &migratepg.Config{MigrationsTable: "motion_schema_migrations"})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", target)
	if err != nil {
		return err
	}
	if err := m.Up(); !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) RecordReading(ctx context.Context, r *model.Reading) error {
	return queryRecordReading(ctx, s.db, r)
}

func (s *PostgresStore) GetReading(ctx context.Context, id string) (*model.Reading, error) {
	r, err := queryGetReading(ctx, s.db, id)
	return r, mapNoRows(err)
}

// LatestReading returns store.ErrNotFound while the table is empty.
func (s *PostgresStore) LatestReading(ctx context.Context) (*model.Reading, error) {
	r, err := queryLatestReading(ctx, s.db)
	return r, mapNoRows(err)
}

func (s *PostgresStore) ListReadings(ctx context.Context, filter model.ReadingFilter) ([]*model.Reading, int, error) {
	return queryListReadings(ctx, s.db, filter)
}

func (s *PostgresStore) Stats(ctx context.Context) (model.Stats, error) {
	return queryStats(ctx, s.db)
}

func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
