package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ayushsreejith06/max/internal/events"
	"github.com/ayushsreejith06/max/internal/idgen"
	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/presence"
	"github.com/ayushsreejith06/max/internal/proposal"
)

// maxConcurrentProposals bounds the per-round fan-out to the proposal source.
const maxConcurrentProposals = 8

type proposalResult struct {
	agent    *model.Agent
	decision proposal.Decision
	fallback bool
}

// RunRound collects one proposal from every non-manager participant and
// appends them to the checklist for the current round.
func (e *Engine) RunRound(ctx context.Context, id string) (d *model.Discussion, err error) {
	ctx, span := e.tracer.Start(ctx, "Engine.RunRound", trace.WithAttributes(attribute.String("discussion_id", id)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	unlock := e.locks.Lock(id)
	defer unlock()

	d, err = e.loadOpen(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.RoundsRun >= d.CurrentRound {
		return nil, fmt.Errorf("discussion %s round %d: %w", id, d.CurrentRound, ErrRoundAlreadyRun)
	}
	sector, err := e.sector(ctx, d)
	if err != nil {
		return nil, err
	}
	if err := d.Transition(model.DiscussionInProgress); err != nil {
		return nil, fmt.Errorf("discussion %s: %w", id, err)
	}

	workers := e.workers(ctx, d)
	results := e.collectProposals(ctx, workers, sector)

	now := e.now().UTC()
	symbol := sector.Symbol
	if syms := sector.Symbols(); symbol == "" && len(syms) > 0 {
		symbol = syms[0]
	}
	fallbacks := 0
	for _, r := range results {
		dec := r.decision
		item := model.ChecklistItem{
			ID:                idgen.Must(idgen.PrefixItem),
			AgentID:           r.agent.ID,
			Round:             d.CurrentRound,
			Action:            dec.Action,
			Symbol:            symbol,
			Amount:            dec.AllocationPercent * sector.Balance / 100,
			AllocationPercent: dec.AllocationPercent,
			Confidence:        dec.Confidence,
			Reasoning:         dec.Reasoning,
			Status:            model.ItemPending,
			CreatedAt:         now,
		}
		d.Checklist = append(d.Checklist, item)
		d.Messages = append(d.Messages, model.Message{
			ID:           uuid.NewString(),
			DiscussionID: d.ID,
			AgentID:      r.agent.ID,
			AgentName:    r.agent.Name,
			Content:      proposalMessage(dec, symbol),
			Round:        d.CurrentRound,
			CreatedAt:    now,
		})
		if r.fallback {
			fallbacks++
		}
		e.recordActivity(presence.Activity{
			AgentID:      r.agent.ID,
			SectorID:     d.SectorID,
			DiscussionID: d.ID,
			Kind:         presence.KindProposal,
			Detail:       fmt.Sprintf("%s %s %.0f%%", dec.Action, symbol, dec.AllocationPercent),
			Fallback:     r.fallback,
		})
	}
	d.RoundsRun = d.CurrentRound
	d.UpdatedAt = now

	if err := e.save(ctx, d); err != nil {
		return nil, err
	}

	e.inst.rounds.Add(ctx, 1)
	span.SetAttributes(attribute.Int("round", d.CurrentRound), attribute.Int("proposals", len(results)))
	e.logger.Info("round completed",
		"discussion_id", d.ID,
		"round", d.CurrentRound,
		"proposals", len(results),
		"fallbacks", fallbacks)
	e.recordAndPublish(ctx, events.TopicRoundCompleted, d, events.RoundCompleted{
		DiscussionID: d.ID,
		SectorID:     d.SectorID,
		Round:        d.CurrentRound,
		Items:        len(results),
		Fallbacks:    fallbacks,
	})
	return d, nil
}

// workers resolves the participants that propose, in participant order.
// Unknown agents are skipped with a warning.
func (e *Engine) workers(ctx context.Context, d *model.Discussion) []*model.Agent {
	var out []*model.Agent
	for _, agentID := range d.Participants {
		a, err := e.store.GetAgent(ctx, agentID)
		if err != nil {
			e.logger.Warn("skipping participant", "discussion_id", d.ID, "agent_id", agentID, "error", err)
			continue
		}
		if a.IsManager() {
			continue
		}
		out = append(out, a)
	}
	return out
}

// collectProposals asks every worker concurrently. A failing or malformed
// proposal degrades to the conservative default; it never fails the round.
func (e *Engine) collectProposals(ctx context.Context, workers []*model.Agent, sector *model.Sector) []proposalResult {
	results := make([]proposalResult, len(workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProposals)
	for i, agent := range workers {
		g.Go(func() error {
			raw, err := e.source.Generate(gctx, agent, sector)
			fallbackReason := proposal.FailureReason(agent.Name, err)
			if err != nil {
				e.logger.Warn("proposal failed, using default",
					"agent_id", agent.ID,
					"sector_id", sector.ID,
					"error", err)
				raw = nil
			}
			results[i] = proposalResult{
				agent:    agent,
				decision: proposal.Normalize(raw, fallbackReason),
				fallback: err != nil || proposal.ExtractJSON(string(raw)) == "",
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func proposalMessage(dec proposal.Decision, symbol string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", dec.Action, symbol)
	if dec.Action != model.ActionHold {
		fmt.Fprintf(&b, " %.0f%%", dec.AllocationPercent)
	}
	fmt.Fprintf(&b, " (confidence %.0f): %s", dec.Confidence, dec.Reasoning)
	return b.String()
}
