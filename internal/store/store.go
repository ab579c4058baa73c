package store

import (
	"context"
	"errors"

	"github.com/ayushsreejith06/max/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for MAX. It is durable storage
// only; the engine serializes writers to a discussion itself.
type Store interface {
	// Discussions
	CreateDiscussion(ctx context.Context, d *model.Discussion) error
	GetDiscussion(ctx context.Context, id string) (*model.Discussion, error)
	SaveDiscussion(ctx context.Context, d *model.Discussion) error
	ListDiscussions(ctx context.Context, filter model.DiscussionFilter) ([]*model.Discussion, int, error) // returns discussions, total count, error

	// Sectors
	CreateSector(ctx context.Context, s *model.Sector) error
	GetSector(ctx context.Context, id string) (*model.Sector, error)
	ListSectors(ctx context.Context) ([]*model.Sector, error)
	UpdateSector(ctx context.Context, s *model.Sector) error

	// Agents
	CreateAgent(ctx context.Context, a *model.Agent) error
	GetAgent(ctx context.Context, id string) (*model.Agent, error)
	ListAgents(ctx context.Context, sectorID string) ([]*model.Agent, error) // empty sectorID lists all
	UpdateAgent(ctx context.Context, a *model.Agent) error

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	GetEvents(ctx context.Context, discussionID string) ([]*model.Event, error)

	// Executions. AddExecution is idempotent by item ID and reports whether
	// a new entry was written.
	AddExecution(ctx context.Context, e *model.ExecutionEntry) (bool, error)
	ListExecutions(ctx context.Context, sectorID string) ([]*model.ExecutionEntry, error) // empty sectorID lists all
	SetExecutionStatus(ctx context.Context, id string, status model.ExecutionStatus) error

	// Market data. SetSectorQuote touches only the sector's market fields.
	UpsertCandle(ctx context.Context, c *model.Candle) error
	LastCandle(ctx context.Context, sectorID string) (*model.Candle, error)
	ListCandles(ctx context.Context, sectorID string, filter model.CandleFilter) ([]*model.Candle, error) // oldest first
	CountCandles(ctx context.Context) (int, error)
	SetSectorQuote(ctx context.Context, sectorID string, q model.Quote) error

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
