// Package server exposes the engine over HTTP+JSON and streams engine
// events to SSE clients.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ayushsreejith06/max/internal/engine"
	"github.com/ayushsreejith06/max/internal/gate"
	"github.com/ayushsreejith06/max/internal/idgen"
	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/presence"
	"github.com/ayushsreejith06/max/internal/store"
)

// Server serves the MAX API.
type Server struct {
	store    store.Store
	engine   *engine.Engine
	gate     *gate.Gate
	hub      *Hub
	Presence *presence.Tracker
}

// New returns a Server. hub should be the Hub the engine publishes to so
// the event stream carries engine events.
func New(s store.Store, eng *engine.Engine, g *gate.Gate, hub *Hub) *Server {
	if hub == nil {
		hub = NewHub()
	}
	return &Server{
		store:  s,
		engine: eng,
		gate:   g,
		hub:    hub,
	}
}

// recordEvent persists an audit event for records the engine does not own.
// Failures are logged and never fail the request.
func (s *Server) recordEvent(ctx context.Context, topic, sectorID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal event", "topic", topic, "error", err)
		return
	}
	if err := s.store.RecordEvent(ctx, &model.Event{
		ID:        idgen.Must(idgen.PrefixEvent),
		Topic:     topic,
		SectorID:  sectorID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		slog.Warn("failed to record event", "topic", topic, "error", err)
	}
	if err := s.hub.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

// inputError indicates invalid user input and maps to 400.
type inputError string

func (e inputError) Error() string { return string(e) }

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	var ve *model.ValidationError
	var ie inputError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &ve), errors.As(err, &ie):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrDiscussionClosed),
		errors.Is(err, engine.ErrNotClosable),
		errors.Is(err, engine.ErrRoundAlreadyRun),
		errors.Is(err, model.ErrBackwardTransition),
		errors.Is(err, model.ErrTerminalStatus):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// validationFields extracts field errors from a *model.ValidationError.
func validationFields(err error) []fieldError {
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	out := make([]fieldError, 0, len(ve.Errors))
	for _, fe := range ve.Errors {
		out = append(out, fieldError{Field: fe.Field, Message: fe.Message})
	}
	return out
}
