package engine

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ayushsreejith06/max/internal/events"
	"github.com/ayushsreejith06/max/internal/idgen"
	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/presence"
)

// Advance ends the current round. A closable discussion is closed; otherwise
// the next round opens with unresolved items carried over, and past the
// round cap every unresolved item is rejected and the discussion closed.
func (e *Engine) Advance(ctx context.Context, id string) (*model.Discussion, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	d, err := e.loadOpen(ctx, id)
	if err != nil {
		return nil, err
	}

	if CanClose(d) {
		if err := e.closeLocked(ctx, d, model.SnapshotClosed, 0); err != nil {
			return nil, err
		}
		return d, nil
	}

	now := e.now().UTC()
	if d.CurrentRound < e.cfg.Rounds.MaxRounds {
		d.RoundHistory = append(d.RoundHistory, model.NewRoundSnapshot(d, model.SnapshotAdvanced, now))
		from := d.CurrentRound
		d.CurrentRound++
		d.UpdatedAt = now
		if err := e.save(ctx, d); err != nil {
			return nil, err
		}
		carried := 0
		for i := range d.Checklist {
			if !d.Checklist[i].Status.IsTerminal() {
				carried++
			}
		}
		e.logger.Info("round advanced", "discussion_id", d.ID, "round", d.CurrentRound, "carried", carried)
		e.recordAndPublish(ctx, events.TopicDiscussionAdvanced, d, events.DiscussionAdvanced{
			DiscussionID: d.ID,
			SectorID:     d.SectorID,
			FromRound:    from,
			ToRound:      d.CurrentRound,
			Carried:      carried,
		})
		return d, nil
	}

	forced := 0
	for i := range d.Checklist {
		it := &d.Checklist[i]
		if it.Status.IsTerminal() {
			it.RequiresRevision = false
			continue
		}
		forceReject(it, "timed out: round limit reached")
		forced++
	}
	e.inst.failsafe.Add(ctx, int64(forced))
	e.logger.Warn("round limit reached", "discussion_id", d.ID, "round", d.CurrentRound, "forced", forced)
	if err := e.closeLocked(ctx, d, model.SnapshotRoundCap, forced); err != nil {
		return nil, err
	}
	return d, nil
}

// Close finalizes a discussion whose items are all resolved. Closing a
// closed discussion is a no-op.
func (e *Engine) Close(ctx context.Context, id string) (d *model.Discussion, err error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Close", trace.WithAttributes(attribute.String("discussion_id", id)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	unlock := e.locks.Lock(id)
	defer unlock()

	d, err = e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status.IsClosed() {
		e.retryHandoffLocked(ctx, d)
		return d, nil
	}
	if !CanClose(d) {
		return nil, fmt.Errorf("close discussion %s: %w", id, ErrNotClosable)
	}
	if err := e.closeLocked(ctx, d, model.SnapshotClosed, 0); err != nil {
		return nil, err
	}
	return d, nil
}

// closeLocked archives the final round, finalizes the approved items and
// hands them off. The caller holds the discussion lock and has checked
// that every item is terminal.
func (e *Engine) closeLocked(ctx context.Context, d *model.Discussion, reason string, forced int) error {
	now := e.now().UTC()
	d.RoundHistory = append(d.RoundHistory, model.NewRoundSnapshot(d, reason, now))
	if err := d.Transition(model.DiscussionDecided); err != nil {
		return fmt.Errorf("close discussion %s: %w", d.ID, err)
	}
	if err := d.Transition(model.DiscussionClosed); err != nil {
		return fmt.Errorf("close discussion %s: %w", d.ID, err)
	}

	d.FinalizedChecklist = nil
	var handoff []model.ChecklistItem
	for i := range d.Checklist {
		it := &d.Checklist[i]
		if it.Status != model.ItemApproved {
			continue
		}
		var score float64
		if dec, ok := d.LatestDecision(it.ID); ok {
			score = dec.Score
		}
		d.FinalizedChecklist = append(d.FinalizedChecklist, model.ApprovedItemSummary{
			ItemID:            it.ID,
			AgentID:           it.AgentID,
			Action:            it.Action,
			Symbol:            it.Symbol,
			Amount:            it.Amount,
			AllocationPercent: it.AllocationPercent,
			Confidence:        it.Confidence,
			Score:             score,
		})
		if it.ExecutionSubmittedAt == nil {
			submitted := now
			it.ExecutionSubmittedAt = &submitted
			handoff = append(handoff, it.Clone())
		}
	}
	closedAt := now
	d.ClosedAt = &closedAt
	d.UpdatedAt = now

	if err := e.save(ctx, d); err != nil {
		return err
	}

	e.submitHandoff(ctx, d, handoff)

	e.inst.closed.Add(ctx, 1)
	e.logger.Info("discussion closed",
		"discussion_id", d.ID,
		"rounds", d.CurrentRound,
		"approved", len(d.FinalizedChecklist),
		"forced", forced)
	e.recordAndPublish(ctx, events.TopicDiscussionClosed, d, events.DiscussionClosed{
		DiscussionID: d.ID,
		SectorID:     d.SectorID,
		Rounds:       d.CurrentRound,
		Approved:     d.FinalizedChecklist,
		Forced:       forced,
	})
	return nil
}

// submitHandoff hands items to the execution backlog. Items whose
// submission fails lose their submitted marker so a later Close or sweep
// retries them.
func (e *Engine) submitHandoff(ctx context.Context, d *model.Discussion, items []model.ChecklistItem) {
	if e.handoff == nil || len(items) == 0 {
		return
	}
	failed := make(map[string]bool)
	for _, it := range items {
		if err := e.handoff.Submit(ctx, d, it); err != nil {
			failed[it.ID] = true
			e.logger.Warn("execution handoff failed", "discussion_id", d.ID, "item_id", it.ID, "error", err)
		}
	}
	if len(failed) == 0 {
		return
	}
	for i := range d.Checklist {
		if failed[d.Checklist[i].ID] {
			d.Checklist[i].ExecutionSubmittedAt = nil
		}
	}
	if err := e.save(ctx, d); err != nil {
		e.logger.Error("failed to save handoff retry state", "discussion_id", d.ID, "error", err)
	}
}

// pendingHandoff returns the approved items of a closed discussion that
// were never handed off, marking them submitted at now.
func pendingHandoff(d *model.Discussion, now time.Time) []model.ChecklistItem {
	var items []model.ChecklistItem
	for i := range d.Checklist {
		it := &d.Checklist[i]
		if it.Status != model.ItemApproved || it.ExecutionSubmittedAt != nil {
			continue
		}
		submitted := now
		it.ExecutionSubmittedAt = &submitted
		items = append(items, it.Clone())
	}
	return items
}

// RetryHandoff resubmits approved items of a closed discussion whose
// earlier handoff failed. It returns how many items were resubmitted.
func (e *Engine) RetryHandoff(ctx context.Context, id string) (int, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	d, err := e.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if !d.Status.IsClosed() {
		return 0, nil
	}
	return e.retryHandoffLocked(ctx, d), nil
}

func (e *Engine) retryHandoffLocked(ctx context.Context, d *model.Discussion) int {
	if e.handoff == nil {
		return 0
	}
	items := pendingHandoff(d, e.now().UTC())
	if len(items) == 0 {
		return 0
	}
	if err := e.save(ctx, d); err != nil {
		e.logger.Error("failed to mark handoff retry", "discussion_id", d.ID, "error", err)
		return 0
	}
	e.logger.Info("retrying execution handoff", "discussion_id", d.ID, "items", len(items))
	e.submitHandoff(ctx, d, items)
	return len(items)
}

// Run drives a discussion through rounds, evaluation and advancement until
// it closes. It runs at most MaxRounds rounds.
func (e *Engine) Run(ctx context.Context, id string) (*model.Discussion, error) {
	for i := 0; i <= e.cfg.Rounds.MaxRounds; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, err := e.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if d.Status.IsClosed() {
			return d, nil
		}
		if d.RoundsRun < d.CurrentRound {
			if _, err := e.RunRound(ctx, id); err != nil {
				return nil, err
			}
		}
		report, err := e.EvaluatePass(ctx, id)
		if err != nil {
			return nil, err
		}
		if report.Closed {
			return report.Discussion, nil
		}
		d, err = e.Advance(ctx, id)
		if err != nil {
			return nil, err
		}
		if d.Status.IsClosed() {
			return d, nil
		}
	}
	return nil, fmt.Errorf("run discussion %s: still open after %d rounds", id, e.cfg.Rounds.MaxRounds)
}

// AddMessage appends a free-text message. agentID may be empty for
// messages from outside the sector.
func (e *Engine) AddMessage(ctx context.Context, id, agentID, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &model.ValidationError{Errors: []model.FieldError{{Field: "content", Message: "is required"}}}
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	d, err := e.loadOpen(ctx, id)
	if err != nil {
		return nil, err
	}

	msg := model.Message{
		ID:           uuid.NewString(),
		DiscussionID: d.ID,
		AgentID:      agentID,
		Content:      content,
		Round:        d.CurrentRound,
		CreatedAt:    e.now().UTC(),
	}
	if agentID != "" {
		a, err := e.store.GetAgent(ctx, agentID)
		if err != nil {
			return nil, fmt.Errorf("message author %s: %w", agentID, err)
		}
		msg.AgentName = a.Name
	}
	d.Messages = append(d.Messages, msg)
	d.UpdatedAt = msg.CreatedAt
	if err := e.save(ctx, d); err != nil {
		return nil, err
	}

	if agentID != "" {
		e.recordActivity(presence.Activity{
			AgentID:      agentID,
			SectorID:     d.SectorID,
			DiscussionID: d.ID,
			Kind:         presence.KindMessage,
			Detail:       content,
		})
	}
	e.recordAndPublish(ctx, events.TopicDiscussionMessage, d, events.MessagePosted{
		SectorID: d.SectorID,
		Message:  msg,
	})
	return &msg, nil
}

// SubmitItem appends a manually authored item to the current round. The
// author must be a participant. A NaN confidence means none was given and
// takes the scoring default.
func (e *Engine) SubmitItem(ctx context.Context, id string, item model.ChecklistItem) (*model.ChecklistItem, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	d, err := e.loadOpen(ctx, id)
	if err != nil {
		return nil, err
	}
	sector, err := e.sector(ctx, d)
	if err != nil {
		return nil, err
	}

	if item.Symbol == "" {
		item.Symbol = sector.Symbol
	}
	if math.IsNaN(item.Confidence) {
		item.Confidence = e.cfg.Scoring.DefaultConfidence
	}
	if item.Amount == 0 && item.AllocationPercent > 0 {
		item.Amount = item.AllocationPercent * sector.Balance / 100
	}
	if err := model.ValidateChecklistItem(&item, sector); err != nil {
		return nil, err
	}
	if !slices.Contains(d.Participants, item.AgentID) {
		return nil, &model.ValidationError{Errors: []model.FieldError{{
			Field:   "agent_id",
			Message: fmt.Sprintf("%s is not a participant of %s", item.AgentID, d.ID),
		}}}
	}
	if err := d.Transition(model.DiscussionInProgress); err != nil {
		return nil, fmt.Errorf("discussion %s: %w", id, err)
	}

	now := e.now().UTC()
	item = model.ChecklistItem{
		ID:                idgen.Must(idgen.PrefixItem),
		AgentID:           item.AgentID,
		Round:             d.CurrentRound,
		Action:            item.Action,
		Symbol:            item.Symbol,
		Amount:            item.Amount,
		AllocationPercent: item.AllocationPercent,
		Confidence:        item.Confidence,
		Reasoning:         strings.TrimSpace(item.Reasoning),
		Status:            model.ItemPending,
		CreatedAt:         now,
	}
	d.Checklist = append(d.Checklist, item)
	d.UpdatedAt = now
	if err := e.save(ctx, d); err != nil {
		return nil, err
	}

	e.recordActivity(presence.Activity{
		AgentID:      item.AgentID,
		SectorID:     d.SectorID,
		DiscussionID: d.ID,
		Kind:         presence.KindItem,
		Detail:       fmt.Sprintf("%s %s %.2f", item.Action, item.Symbol, item.Amount),
	})
	e.logger.Info("item submitted", "discussion_id", d.ID, "item_id", item.ID, "agent_id", item.AgentID)
	return &item, nil
}
