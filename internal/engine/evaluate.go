package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ayushsreejith06/max/internal/events"
	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/presence"
	"github.com/ayushsreejith06/max/internal/revision"
	"github.com/ayushsreejith06/max/internal/scorer"
)

// PassReport summarizes one evaluation pass.
type PassReport struct {
	Discussion *model.Discussion `json:"discussion"`
	Evaluated  int               `json:"evaluated"`
	Approved   int               `json:"approved"`
	Rejected   int               `json:"rejected"` // scorer rejections, before the revision protocol ran
	Revised    int               `json:"revised"`
	GaveUp     int               `json:"gave_up"`
	TimedOut   int               `json:"timed_out"`
	Skipped    int               `json:"skipped"`
	Closed     bool              `json:"closed"`
}

// EvaluatePass applies item timeouts, scores every item awaiting a verdict
// and closes the discussion when nothing is left unresolved.
func (e *Engine) EvaluatePass(ctx context.Context, id string) (report *PassReport, err error) {
	ctx, span := e.tracer.Start(ctx, "Engine.EvaluatePass", trace.WithAttributes(attribute.String("discussion_id", id)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	unlock := e.locks.Lock(id)
	defer unlock()

	start := time.Now()
	d, err := e.loadOpen(ctx, id)
	if err != nil {
		return nil, err
	}
	sector, err := e.sector(ctx, d)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	report = &PassReport{Discussion: d}
	report.TimedOut = e.applyTimeouts(ctx, d, now)

	var decided []events.ItemDecided
	for i := range d.Checklist {
		it := &d.Checklist[i]
		if !it.NeedsEvaluation() {
			continue
		}
		// An item left REVISE_REQUIRED by an interrupted pass gets its
		// worker's answer before it is scored again.
		if it.Status == model.ItemReviseRequired {
			switch e.respond(d, it, now) {
			case revision.GaveUp:
				report.GaveUp++
				continue
			case revision.Revised:
				report.Revised++
			}
		}

		res, err := e.score(ctx, it, sector)
		if err != nil {
			report.Skipped++
			e.logger.Warn("item evaluation skipped",
				"discussion_id", d.ID,
				"item_id", it.ID,
				"error", err)
			continue
		}

		dec := model.ManagerDecision{
			ItemID:    it.ID,
			Round:     d.CurrentRound,
			Item:      it.Clone(),
			Approved:  res.Approved(),
			Score:     res.Score,
			Breakdown: res.Breakdown,
			Reason:    res.Reason,
			DecidedAt: now,
		}
		d.ManagerDecisions = append(d.ManagerDecisions, dec)
		evaluatedAt := now
		it.EvaluatedAt = &evaluatedAt
		report.Evaluated++
		e.inst.evaluated.Add(ctx, 1)

		if res.Approved() {
			_ = it.SetStatus(model.ItemApproved, res.Reason)
			report.Approved++
			e.inst.approved.Add(ctx, 1)
		} else {
			report.Rejected++
			e.inst.rejected.Add(ctx, 1)
			if res.Failsafe {
				e.inst.failsafe.Add(ctx, 1)
			}
			_ = it.SetStatus(model.ItemReviseRequired, res.Reason)
			it.RequiresRevision = true
			requiredAt := now
			it.RevisionRequiredAt = &requiredAt
			switch e.respond(d, it, now) {
			case revision.GaveUp:
				report.GaveUp++
			case revision.Revised:
				report.Revised++
			}
		}
		decided = append(decided, events.ItemDecided{
			DiscussionID: d.ID,
			SectorID:     d.SectorID,
			Decision:     dec,
			Status:       it.Status,
		})
	}

	if report.TimedOut+report.Evaluated+report.GaveUp > 0 {
		d.UpdatedAt = now
		if err := e.save(ctx, d); err != nil {
			return nil, err
		}
	}
	for _, ev := range decided {
		e.recordAndPublish(ctx, events.TopicItemDecided, d, ev)
	}

	if hasWork(d) && CanClose(d) {
		if err := e.closeLocked(ctx, d, model.SnapshotClosed, 0); err != nil {
			return nil, err
		}
		report.Closed = true
	}

	span.SetAttributes(
		attribute.Int("evaluated", report.Evaluated),
		attribute.Int("approved", report.Approved),
		attribute.Bool("closed", report.Closed))
	e.inst.passDuration.Record(ctx, time.Since(start).Seconds())
	e.logger.Info("evaluation pass",
		"discussion_id", d.ID,
		"round", d.CurrentRound,
		"evaluated", report.Evaluated,
		"approved", report.Approved,
		"revised", report.Revised,
		"timed_out", report.TimedOut,
		"closed", report.Closed)
	e.recordAndPublish(ctx, events.TopicDiscussionEvaluated, d, events.DiscussionEvaluated{
		DiscussionID: d.ID,
		SectorID:     d.SectorID,
		Round:        d.CurrentRound,
		Evaluated:    report.Evaluated,
		Approved:     report.Approved,
		Revised:      report.Revised,
		Rejected:     report.Rejected,
		TimedOut:     report.TimedOut,
		Closed:       report.Closed,
	})
	return report, nil
}

// score evaluates a copy of the item so a panicking collaborator cannot
// leave it half-updated.
func (e *Engine) score(ctx context.Context, it *model.ChecklistItem, sector *model.Sector) (res scorer.Result, err error) {
	if err := ctx.Err(); err != nil {
		return scorer.Result{}, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scorer panic: %v", r)
		}
	}()
	c := it.Clone()
	return e.scorer.Evaluate(ctx, &c, sector), nil
}

// respond runs the worker side of the revision protocol on a rejected item.
func (e *Engine) respond(d *model.Discussion, it *model.ChecklistItem, now time.Time) revision.Outcome {
	out := e.revision.Respond(it, now)
	if out != revision.NoOp {
		e.recordActivity(presence.Activity{
			AgentID:      it.AgentID,
			SectorID:     d.SectorID,
			DiscussionID: d.ID,
			Kind:         presence.KindRevision,
			Detail:       out.String() + ": " + it.StatusReason,
		})
	}
	return out
}

// applyTimeouts rejects items that waited too long for a verdict or a
// revision. It returns how many items it rejected.
func (e *Engine) applyTimeouts(ctx context.Context, d *model.Discussion, now time.Time) int {
	rc := e.cfg.Rounds
	n := 0
	for i := range d.Checklist {
		it := &d.Checklist[i]
		var reason string
		switch it.Status {
		case model.ItemPending:
			if now.Sub(it.CreatedAt) > rc.PendingTimeout {
				reason = fmt.Sprintf("timed out: pending longer than %s", rc.PendingTimeout)
			}
		case model.ItemReviseRequired:
			since := it.CreatedAt
			if it.RevisionRequiredAt != nil {
				since = *it.RevisionRequiredAt
			}
			if now.Sub(since) > rc.RevisionTimeout {
				reason = fmt.Sprintf("timed out: no revision within %s", rc.RevisionTimeout)
			}
		case model.ItemResubmitted:
			since := it.CreatedAt
			if k := len(it.PreviousVersions); k > 0 {
				since = it.PreviousVersions[k-1].RecordedAt
			}
			if now.Sub(since) > rc.PendingTimeout {
				reason = fmt.Sprintf("timed out: resubmission pending longer than %s", rc.PendingTimeout)
			}
		}
		if reason == "" {
			continue
		}
		forceReject(it, reason)
		n++
		e.inst.failsafe.Add(ctx, 1)
		e.logger.Info("item timed out", "discussion_id", d.ID, "item_id", it.ID, "reason", reason)
	}
	return n
}

// Expire applies item timeouts and closes the discussion if that leaves it
// closable. It never scores. A discussion that never ran a round is closed
// once it is older than the pending timeout.
func (e *Engine) Expire(ctx context.Context, id string) (*model.Discussion, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	d, err := e.loadOpen(ctx, id)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	timedOut := e.applyTimeouts(ctx, d, now)
	closable := hasWork(d) && CanClose(d)
	stale := !hasWork(d) && now.Sub(d.CreatedAt) > e.cfg.Rounds.PendingTimeout

	if closable || stale {
		if err := e.closeLocked(ctx, d, model.SnapshotClosed, timedOut); err != nil {
			return nil, err
		}
		return d, nil
	}
	if timedOut > 0 {
		d.UpdatedAt = now
		if err := e.save(ctx, d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// hasWork reports whether a discussion ran a round or received items by hand.
// An empty discussion is only closed by the stale path.
func hasWork(d *model.Discussion) bool {
	return d.RoundsRun > 0 || len(d.Checklist) > 0
}

func forceReject(it *model.ChecklistItem, reason string) {
	it.RequiresRevision = false
	_ = it.SetStatus(model.ItemRejected, reason)
}
