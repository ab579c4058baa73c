// Package gate decides whether a sector may open a new discussion.
package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ayushsreejith06/max/internal/config"
	"github.com/ayushsreejith06/max/internal/events"
	"github.com/ayushsreejith06/max/internal/idgen"
	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/store"
)

// Reason explains why TryStart declined.
type Reason string

const (
	ReasonActiveDiscussion Reason = "active_discussion"
	ReasonNoBalance        Reason = "no_balance"
	ReasonNoParticipants   Reason = "no_participants"
	ReasonLowConfidence    Reason = "low_confidence"
	ReasonTooSoon          Reason = "too_soon"
	ReasonSectorNotFound   Reason = "sector_not_found"
	ReasonStoreError       Reason = "store_error"
)

// Result is the outcome of an admission attempt.
type Result struct {
	Started      bool   `json:"started"`
	DiscussionID string `json:"discussion_id,omitempty"`
	Reason       Reason `json:"reason,omitempty"`
	Detail       string `json:"detail,omitempty"`
}

func declined(r Reason, format string, args ...any) Result {
	return Result{Reason: r, Detail: fmt.Sprintf(format, args...)}
}

// Gate admits new discussions one sector at a time.
type Gate struct {
	store     store.Store
	cfg       config.GateConfig
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	sectors map[string]*sync.Mutex
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the time source used for the interval check.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithPublisher sets where discussion-created events go.
func WithPublisher(p events.Publisher) Option {
	return func(g *Gate) { g.publisher = p }
}

// WithLogger sets the gate logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// New creates a Gate.
func New(s store.Store, cfg config.GateConfig, opts ...Option) *Gate {
	g := &Gate{
		store:     s,
		cfg:       cfg,
		publisher: &events.NoopPublisher{},
		logger:    slog.Default(),
		now:       time.Now,
		sectors:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) sectorLock(id string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.sectors[id]
	if !ok {
		m = &sync.Mutex{}
		g.sectors[id] = m
	}
	return m
}

// TryStart opens a discussion for the sector when every admission condition
// holds. It never returns an error; failures are reported as a Reason.
func (g *Gate) TryStart(ctx context.Context, sectorID string) Result {
	m := g.sectorLock(sectorID)
	m.Lock()
	defer m.Unlock()

	sector, err := g.store.GetSector(ctx, sectorID)
	if errors.Is(err, store.ErrNotFound) {
		return declined(ReasonSectorNotFound, "sector %s does not exist", sectorID)
	}
	if err != nil {
		return g.storeError("get sector", sectorID, err)
	}

	_, active, err := g.store.ListDiscussions(ctx, model.DiscussionFilter{
		SectorID: sectorID,
		Status: []model.DiscussionStatus{
			model.DiscussionOpen,
			model.DiscussionInProgress,
			model.DiscussionDecided,
		},
		Limit: 1,
	})
	if err != nil {
		return g.storeError("list discussions", sectorID, err)
	}
	if active > 0 {
		return declined(ReasonActiveDiscussion, "sector %s has %d discussion(s) in progress", sectorID, active)
	}

	if !(sector.Balance > 0) {
		return declined(ReasonNoBalance, "sector %s balance is %.2f", sectorID, sector.Balance)
	}

	agents, err := g.store.ListAgents(ctx, sectorID)
	if err != nil {
		return g.storeError("list agents", sectorID, err)
	}
	workers := 0
	for _, a := range agents {
		if a.IsManager() {
			continue
		}
		workers++
		if a.Confidence < g.cfg.ConfidenceThreshold {
			return declined(ReasonLowConfidence, "agent %s confidence %.0f is below %.0f", a.ID, a.Confidence, g.cfg.ConfidenceThreshold)
		}
	}
	if workers == 0 {
		return declined(ReasonNoParticipants, "sector %s has no non-manager agents", sectorID)
	}

	now := g.now().UTC()
	if last := sector.LastDiscussionAt; last != nil {
		if wait := g.cfg.MinInterval - now.Sub(*last); wait > 0 {
			return declined(ReasonTooSoon, "next discussion allowed in %s", wait.Round(time.Second))
		}
	}

	d := &model.Discussion{
		ID:           idgen.Must(idgen.PrefixDiscussion),
		SectorID:     sectorID,
		Title:        fmt.Sprintf("%s discussion", sector.Name),
		Participants: make([]string, 0, len(agents)),
		Status:       model.DiscussionOpen,
		CurrentRound: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, a := range agents {
		d.Participants = append(d.Participants, a.ID)
	}
	created := events.DiscussionCreated{
		DiscussionID: d.ID,
		SectorID:     sectorID,
		Participants: d.Participants,
	}
	payload, err := json.Marshal(created)
	if err != nil {
		return g.storeError("marshal event", sectorID, err)
	}

	err = g.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateDiscussion(ctx, d); err != nil {
			return fmt.Errorf("create discussion: %w", err)
		}
		sector.LastDiscussionAt = &now
		sector.UpdatedAt = now
		if err := tx.UpdateSector(ctx, sector); err != nil {
			return fmt.Errorf("update sector: %w", err)
		}
		return tx.RecordEvent(ctx, &model.Event{
			ID:           idgen.Must(idgen.PrefixEvent),
			Topic:        events.TopicDiscussionCreated,
			DiscussionID: d.ID,
			SectorID:     sectorID,
			Payload:      payload,
			CreatedAt:    now,
		})
	})
	if err != nil {
		return g.storeError("start discussion", sectorID, err)
	}

	if err := g.publisher.Publish(ctx, events.TopicDiscussionCreated, created); err != nil {
		g.logger.Warn("failed to publish event", "topic", events.TopicDiscussionCreated, "discussion_id", d.ID, "error", err)
	}
	g.logger.Info("discussion started", "discussion_id", d.ID, "sector_id", sectorID, "participants", len(d.Participants))
	return Result{Started: true, DiscussionID: d.ID}
}

func (g *Gate) storeError(op, sectorID string, err error) Result {
	g.logger.Error("gate "+op+" failed", "sector_id", sectorID, "error", err)
	return declined(ReasonStoreError, "%s: %v", op, err)
}
