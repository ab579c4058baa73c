package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ayushsreejith06/max/internal/events"
	"github.com/ayushsreejith06/max/internal/model"
)

// Resolver records the outcome of an execution.
type Resolver interface {
	Resolve(ctx context.Context, entry *model.ExecutionEntry, status model.ExecutionStatus, output string) error
}

// Handler runs the execution hook for every queued trade.
type Handler struct {
	resolver Resolver
	command  string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewHandler creates a hook handler. command is run through sh -c.
func NewHandler(r Resolver, command string, timeout time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{resolver: r, command: command, timeout: timeout, logger: logger}
}

// HandleQueued runs the hook for one entry and resolves it as executed on a
// zero exit status or failed otherwise. The entry is passed as JSON on stdin
// and its key fields as MAX_* environment variables.
func (h *Handler) HandleQueued(ctx context.Context, entry *model.ExecutionEntry) Result {
	stdin, err := json.Marshal(entry)
	if err != nil {
		return Result{Err: fmt.Errorf("marshal entry: %w", err)}
	}
	env := map[string]string{
		"MAX_EXECUTION_ID": entry.ID,
		"MAX_SECTOR_ID":    entry.SectorID,
		"MAX_ACTION":       string(entry.Action),
		"MAX_SYMBOL":       entry.Symbol,
		"MAX_AMOUNT":       strconv.FormatFloat(entry.Amount, 'f', 2, 64),
	}

	result := Execute(ctx, h.command, h.timeout, stdin, env)
	status := model.ExecutionExecuted
	if result.Err != nil {
		status = model.ExecutionFailed
	}
	if err := h.resolver.Resolve(ctx, entry, status, result.Output); err != nil {
		h.logger.Error("hooks: failed to resolve execution", "id", entry.ID, "err", err)
	}

	h.logger.Info("hooks: executed trade hook",
		"id", entry.ID, "action", entry.Action, "symbol", entry.Symbol, "ok", result.Err == nil)
	return result
}

// StartSubscriber listens for queued executions on the event bus and runs
// the hook for each. It blocks until ctx is cancelled.
func (h *Handler) StartSubscriber(ctx context.Context, sub events.Subscriber) error {
	ch, cancel, err := sub.Subscribe(events.TopicExecutionQueued)
	if err != nil {
		return fmt.Errorf("hooks: subscribe: %w", err)
	}
	defer cancel()

	h.logger.Info("hooks: subscriber started", "command", h.command)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hooks: subscriber stopping")
			return nil
		case msg, ok := <-ch:
			if !ok {
				h.logger.Info("hooks: subscription channel closed")
				return nil
			}

			var ev events.ExecutionQueued
			if err := json.Unmarshal(msg.Data, &ev); err != nil || ev.Entry == nil {
				h.logger.Warn("hooks: bad event payload", "err", err)
				continue
			}
			if res := h.HandleQueued(ctx, ev.Entry); res.Err != nil {
				h.logger.Warn("hooks: trade hook failed", "id", ev.Entry.ID, "err", res.Err, "output", res.Output)
			}
		}
	}
}
