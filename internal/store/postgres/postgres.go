// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/store"
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

// NewWithDB wraps an existing connection without running migrations.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
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

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateDiscussion(ctx context.Context, d *model.Discussion) error {
	return queryCreateDiscussion(ctx, s.db, d)
}

func (s *PostgresStore) GetDiscussion(ctx context.Context, id string) (*model.Discussion, error) {
	return queryGetDiscussion(ctx, s.db, id)
}

func (s *PostgresStore) SaveDiscussion(ctx context.Context, d *model.Discussion) error {
	return querySaveDiscussion(ctx, s.db, d)
}

func (s *PostgresStore) ListDiscussions(ctx context.Context, filter model.DiscussionFilter) ([]*model.Discussion, int, error) {
	return queryListDiscussions(ctx, s.db, filter)
}

func (s *PostgresStore) CreateSector(ctx context.Context, sec *model.Sector) error {
	return queryCreateSector(ctx, s.db, sec)
}

func (s *PostgresStore) GetSector(ctx context.Context, id string) (*model.Sector, error) {
	return queryGetSector(ctx, s.db, id)
}

func (s *PostgresStore) ListSectors(ctx context.Context) ([]*model.Sector, error) {
	return queryListSectors(ctx, s.db)
}

func (s *PostgresStore) UpdateSector(ctx context.Context, sec *model.Sector) error {
	return queryUpdateSector(ctx, s.db, sec)
}

func (s *PostgresStore) CreateAgent(ctx context.Context, a *model.Agent) error {
	return queryCreateAgent(ctx, s.db, a)
}

func (s *PostgresStore) GetAgent(ctx context.Context, id string) (*model.Agent, error) {
	return queryGetAgent(ctx, s.db, id)
}

func (s *PostgresStore) ListAgents(ctx context.Context, sectorID string) ([]*model.Agent, error) {
	return queryListAgents(ctx, s.db, sectorID)
}

func (s *PostgresStore) UpdateAgent(ctx context.Context, a *model.Agent) error {
	return queryUpdateAgent(ctx, s.db, a)
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *PostgresStore) GetEvents(ctx context.Context, discussionID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.db, discussionID)
}

func (s *PostgresStore) AddExecution(ctx context.Context, e *model.ExecutionEntry) (bool, error) {
	return queryAddExecution(ctx, s.db, e)
}

func (s *PostgresStore) ListExecutions(ctx context.Context, sectorID string) ([]*model.ExecutionEntry, error) {
	return queryListExecutions(ctx, s.db, sectorID)
}

func (s *PostgresStore) SetExecutionStatus(ctx context.Context, id string, status model.ExecutionStatus) error {
	return querySetExecutionStatus(ctx, s.db, id, status)
}

func (s *PostgresStore) UpsertCandle(ctx context.Context, c *model.Candle) error {
	return queryUpsertCandle(ctx, s.db, c)
}

func (s *PostgresStore) LastCandle(ctx context.Context, sectorID string) (*model.Candle, error) {
	return queryLastCandle(ctx, s.db, sectorID)
}

func (s *PostgresStore) ListCandles(ctx context.Context, sectorID string, filter model.CandleFilter) ([]*model.Candle, error) {
	return queryListCandles(ctx, s.db, sectorID, filter)
}

func (s *PostgresStore) CountCandles(ctx context.Context) (int, error) {
	return queryCountCandles(ctx, s.db)
}

func (s *PostgresStore) SetSectorQuote(ctx context.Context, sectorID string, q model.Quote) error {
	return querySetSectorQuote(ctx, s.db, sectorID, q)
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

func (s *txStore) CreateDiscussion(ctx context.Context, d *model.Discussion) error {
	return queryCreateDiscussion(ctx, s.tx, d)
}

func (s *txStore) GetDiscussion(ctx context.Context, id string) (*model.Discussion, error) {
	return queryGetDiscussion(ctx, s.tx, id)
}

func (s *txStore) SaveDiscussion(ctx context.Context, d *model.Discussion) error {
	return querySaveDiscussion(ctx, s.tx, d)
}

func (s *txStore) ListDiscussions(ctx context.Context, filter model.DiscussionFilter) ([]*model.Discussion, int, error) {
	return queryListDiscussions(ctx, s.tx, filter)
}

func (s *txStore) CreateSector(ctx context.Context, sec *model.Sector) error {
	return queryCreateSector(ctx, s.tx, sec)
}

func (s *txStore) GetSector(ctx context.Context, id string) (*model.Sector, error) {
	return queryGetSector(ctx, s.tx, id)
}

func (s *txStore) ListSectors(ctx context.Context) ([]*model.Sector, error) {
	return queryListSectors(ctx, s.tx)
}

func (s *txStore) UpdateSector(ctx context.Context, sec *model.Sector) error {
	return queryUpdateSector(ctx, s.tx, sec)
}

func (s *txStore) CreateAgent(ctx context.Context, a *model.Agent) error {
	return queryCreateAgent(ctx, s.tx, a)
}

func (s *txStore) GetAgent(ctx context.Context, id string) (*model.Agent, error) {
	return queryGetAgent(ctx, s.tx, id)
}

func (s *txStore) ListAgents(ctx context.Context, sectorID string) ([]*model.Agent, error) {
	return queryListAgents(ctx, s.tx, sectorID)
}

func (s *txStore) UpdateAgent(ctx context.Context, a *model.Agent) error {
	return queryUpdateAgent(ctx, s.tx, a)
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.tx, event)
}

func (s *txStore) GetEvents(ctx context.Context, discussionID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.tx, discussionID)
}

func (s *txStore) AddExecution(ctx context.Context, e *model.ExecutionEntry) (bool, error) {
	return queryAddExecution(ctx, s.tx, e)
}

func (s *txStore) ListExecutions(ctx context.Context, sectorID string) ([]*model.ExecutionEntry, error) {
	return queryListExecutions(ctx, s.tx, sectorID)
}

func (s *txStore) SetExecutionStatus(ctx context.Context, id string, status model.ExecutionStatus) error {
	return querySetExecutionStatus(ctx, s.tx, id, status)
}

func (s *txStore) UpsertCandle(ctx context.Context, c *model.Candle) error {
	return queryUpsertCandle(ctx, s.tx, c)
}

func (s *txStore) LastCandle(ctx context.Context, sectorID string) (*model.Candle, error) {
	return queryLastCandle(ctx, s.tx, sectorID)
}

func (s *txStore) ListCandles(ctx context.Context, sectorID string, filter model.CandleFilter) ([]*model.Candle, error) {
	return queryListCandles(ctx, s.tx, sectorID, filter)
}

func (s *txStore) CountCandles(ctx context.Context) (int, error) {
	return queryCountCandles(ctx, s.tx)
}

func (s *txStore) SetSectorQuote(ctx context.Context, sectorID string, q model.Quote) error {
	return querySetSectorQuote(ctx, s.tx, sectorID, q)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
