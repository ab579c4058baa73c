// Package engine runs the discussion state machine: rounds of worker
// proposals, manager evaluation passes, round advancement and closure.
//
// Every mutating operation holds a per-discussion lock for its whole
// read-modify-write, so a discussion has exactly one writer at a time while
// different discussions proceed concurrently.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ayushsreejith06/max/internal/config"
	"github.com/ayushsreejith06/max/internal/events"
	"github.com/ayushsreejith06/max/internal/idgen"
	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/presence"
	"github.com/ayushsreejith06/max/internal/proposal"
	"github.com/ayushsreejith06/max/internal/revision"
	"github.com/ayushsreejith06/max/internal/scorer"
	"github.com/ayushsreejith06/max/internal/store"
)

const instrumentationName = "github.com/ayushsreejith06/max/internal/engine"

var (
	// ErrDiscussionClosed is returned by mutators called on a CLOSED discussion.
	ErrDiscussionClosed = errors.New("discussion is closed")
	// ErrNotClosable is returned by Close while items are unresolved.
	ErrNotClosable = errors.New("discussion has unresolved checklist items")
	// ErrRoundAlreadyRun is returned when the current round already collected proposals.
	ErrRoundAlreadyRun = errors.New("round already run")
)

// Handoff receives approved items once their discussion closes.
type Handoff interface {
	Submit(ctx context.Context, d *model.Discussion, item model.ChecklistItem) error
}

// Engine drives discussions through rounds, evaluation and closure.
type Engine struct {
	store     store.Store
	source    proposal.Source
	handoff   Handoff
	cfg       config.Tuning
	scorer    *scorer.Scorer
	revision  *revision.Protocol
	publisher events.Publisher
	presence  *presence.Tracker
	logger    *slog.Logger
	now       func() time.Time
	locks     *keyedMutex
	inst      *instruments
	tracer    trace.Tracer

	scorerOpts []scorer.Option
	meter      metric.Meter
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source. Timeouts compare against it.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithPublisher sets where lifecycle events go.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithRules replaces the scorer's default sector rules.
func WithRules(r scorer.RulesChecker) Option {
	return func(e *Engine) { e.scorerOpts = append(e.scorerOpts, scorer.WithRules(r)) }
}

// WithAlignment replaces the scorer's default keyword alignment.
func WithAlignment(a scorer.AlignmentScorer) Option {
	return func(e *Engine) { e.scorerOpts = append(e.scorerOpts, scorer.WithAlignment(a)) }
}

// WithPresence records agent activity on the given tracker.
func WithPresence(t *presence.Tracker) Option {
	return func(e *Engine) { e.presence = t }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMeter sets the meter used for engine metrics.
func WithMeter(m metric.Meter) Option {
	return func(e *Engine) { e.meter = m }
}

// WithTracer sets the tracer used for engine spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// New creates an Engine. handoff may be nil, in which case approved items
// are only marked.
func New(s store.Store, source proposal.Source, handoff Handoff, cfg config.Tuning, opts ...Option) *Engine {
	e := &Engine{
		store:     s,
		source:    source,
		handoff:   handoff,
		cfg:       cfg,
		publisher: &events.NoopPublisher{},
		logger:    slog.Default(),
		now:       time.Now,
		locks:     newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.meter == nil {
		e.meter = otel.Meter(instrumentationName)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(instrumentationName)
	}
	e.inst = newInstruments(e.meter)
	e.scorer = scorer.New(cfg.Scoring, append([]scorer.Option{scorer.WithLogger(e.logger)}, e.scorerOpts...)...)
	e.revision = revision.New(cfg.Revision)
	return e
}

// Get returns the current state of a discussion.
func (e *Engine) Get(ctx context.Context, id string) (*model.Discussion, error) {
	d, err := e.store.GetDiscussion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get discussion %s: %w", id, err)
	}
	return d, nil
}

// CanClose reports whether every item is terminal and none awaits revision.
// A discussion without items can always close.
func CanClose(d *model.Discussion) bool {
	for i := range d.Checklist {
		it := &d.Checklist[i]
		if !it.Status.IsTerminal() || it.RequiresRevision {
			return false
		}
	}
	return true
}

// loadOpen fetches a discussion for mutation, refusing closed ones.
func (e *Engine) loadOpen(ctx context.Context, id string) (*model.Discussion, error) {
	d, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status.IsClosed() {
		return d, fmt.Errorf("discussion %s: %w", id, ErrDiscussionClosed)
	}
	return d, nil
}

func (e *Engine) sector(ctx context.Context, d *model.Discussion) (*model.Sector, error) {
	s, err := e.store.GetSector(ctx, d.SectorID)
	if err != nil {
		return nil, fmt.Errorf("get sector %s for discussion %s: %w", d.SectorID, d.ID, err)
	}
	return s, nil
}

func (e *Engine) save(ctx context.Context, d *model.Discussion) error {
	if err := e.store.SaveDiscussion(ctx, d); err != nil {
		return fmt.Errorf("save discussion %s: %w", d.ID, err)
	}
	return nil
}

// recordAndPublish persists an event to the store and publishes it.
// Both operations are best-effort; failures are logged but do not block the caller.
func (e *Engine) recordAndPublish(ctx context.Context, topic string, d *model.Discussion, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		e.logger.Warn("failed to marshal event", "topic", topic, "discussion_id", d.ID, "error", err)
		return
	}
	if err := e.store.RecordEvent(ctx, &model.Event{
		ID:           idgen.Must(idgen.PrefixEvent),
		Topic:        topic,
		DiscussionID: d.ID,
		SectorID:     d.SectorID,
		Payload:      payload,
		CreatedAt:    e.now().UTC(),
	}); err != nil {
		e.logger.Warn("failed to record event", "topic", topic, "discussion_id", d.ID, "error", err)
	}
	if err := e.publisher.Publish(ctx, topic, event); err != nil {
		e.logger.Warn("failed to publish event", "topic", topic, "discussion_id", d.ID, "error", err)
	}
}

func (e *Engine) recordActivity(a presence.Activity) {
	if e.presence != nil {
		e.presence.Record(a)
	}
}
