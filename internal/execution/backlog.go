// Package execution hands approved checklist items to the execution backlog.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ayushsreejith06/max/internal/events"
	"github.com/ayushsreejith06/max/internal/idgen"
	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/store"
)

// ErrNotApproved is returned when a non-APPROVED item is submitted.
var ErrNotApproved = errors.New("only approved items can be queued for execution")

// Backlog turns approved items into queued execution entries.
type Backlog struct {
	store     store.Store
	publisher events.Publisher
	now       func() time.Time
}

// Option configures a Backlog.
type Option func(*Backlog)

// WithClock overrides the backlog's time source.
func WithClock(now func() time.Time) Option {
	return func(b *Backlog) { b.now = now }
}

// New creates a Backlog. A nil publisher disables events.
func New(s store.Store, p events.Publisher, opts ...Option) *Backlog {
	if p == nil {
		p = &events.NoopPublisher{}
	}
	b := &Backlog{store: s, publisher: p, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Submit queues item for execution. Submitting the same item twice creates
// one entry; the retry is a no-op.
func (b *Backlog) Submit(ctx context.Context, d *model.Discussion, item model.ChecklistItem) error {
	if item.Status != model.ItemApproved {
		return fmt.Errorf("submit %s (%s): %w", item.ID, item.Status, ErrNotApproved)
	}

	entry := &model.ExecutionEntry{
		ID:                idgen.Must(idgen.PrefixExecution),
		DiscussionID:      d.ID,
		SectorID:          d.SectorID,
		ItemID:            item.ID,
		AgentID:           item.AgentID,
		Action:            item.Action,
		Symbol:            item.Symbol,
		Amount:            item.Amount,
		AllocationPercent: item.AllocationPercent,
		Confidence:        item.Confidence,
		Status:            model.ExecutionQueued,
		SubmittedAt:       b.now().UTC(),
	}
	if dec, ok := d.LatestDecision(item.ID); ok {
		entry.Score = dec.Score
	}

	created, err := b.store.AddExecution(ctx, entry)
	if err != nil {
		return fmt.Errorf("queue execution for %s: %w", item.ID, err)
	}
	if !created {
		slog.Debug("execution already queued", "item_id", item.ID, "discussion_id", d.ID)
		return nil
	}

	if err := b.publisher.Publish(ctx, events.TopicExecutionQueued, events.ExecutionQueued{Entry: entry}); err != nil {
		slog.Warn("failed to publish execution", "item_id", item.ID, "error", err)
	}
	return nil
}

// Resolve records the execution collaborator's outcome for a queued entry.
func (b *Backlog) Resolve(ctx context.Context, entry *model.ExecutionEntry, status model.ExecutionStatus, output string) error {
	if status != model.ExecutionExecuted && status != model.ExecutionFailed {
		return fmt.Errorf("resolve %s: invalid status %q", entry.ID, status)
	}
	if err := b.store.SetExecutionStatus(ctx, entry.ID, status); err != nil {
		return fmt.Errorf("resolve %s: %w", entry.ID, err)
	}
	entry.Status = status
	ev := events.ExecutionUpdated{ExecutionID: entry.ID, SectorID: entry.SectorID, Status: status, Output: output}
	if err := b.publisher.Publish(ctx, events.TopicExecutionUpdated, ev); err != nil {
		slog.Warn("failed to publish execution update", "execution_id", entry.ID, "error", err)
	}
	return nil
}

// List returns queued entries, optionally for one sector.
func (b *Backlog) List(ctx context.Context, sectorID string) ([]*model.ExecutionEntry, error) {
	entries, err := b.store.ListExecutions(ctx, sectorID)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	return entries, nil
}
