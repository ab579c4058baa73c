// Package scorer implements the manager's evaluation of checklist items:
// hard rule checks, a weighted composite score and a lenient decision rule
// backed by a post-hoc failsafe.
package scorer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/ayushsreejith06/max/internal/config"
	"github.com/ayushsreejith06/max/internal/model"
)

// FailsafePrefix marks reasons produced by the post-hoc failsafe.
const FailsafePrefix = "failsafe: "

// Result is the verdict for one item.
type Result struct {
	Status    model.ItemStatus     `json:"status"`
	Reason    string               `json:"reason"`
	Score     float64              `json:"score"`
	Breakdown model.ScoreBreakdown `json:"breakdown"`
	Failsafe  bool                 `json:"failsafe,omitempty"`
}

// Approved reports whether the item passed.
func (r Result) Approved() bool {
	return r.Status == model.ItemApproved
}

// Scorer evaluates checklist items for a sector's manager.
type Scorer struct {
	cfg       config.ScoringConfig
	rules     RulesChecker
	alignment AlignmentScorer
	logger    *slog.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithRules replaces the default SectorRules checker.
func WithRules(r RulesChecker) Option {
	return func(s *Scorer) { s.rules = r }
}

// WithAlignment replaces the default KeywordAlignment scorer.
func WithAlignment(a AlignmentScorer) Option {
	return func(s *Scorer) { s.alignment = a }
}

// WithLogger sets the logger used for skipped checks.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scorer) { s.logger = l }
}

// New creates a Scorer.
func New(cfg config.ScoringConfig, opts ...Option) *Scorer {
	s := &Scorer{
		cfg:       cfg,
		rules:     SectorRules{},
		alignment: KeywordAlignment{Default: cfg.DefaultAlignment},
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Evaluate scores item against sector and returns APPROVED or REJECTED.
// Rules-checker failures are logged and the failed check is skipped.
func (s *Scorer) Evaluate(ctx context.Context, item *model.ChecklistItem, sector *model.Sector) Result {
	conf := s.confidence(item.Confidence)
	amount := item.Amount
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}

	bd := model.ScoreBreakdown{
		Confidence: conf,
		Impact:     s.impact(item.Action, amount),
		Risk:       s.risk(item.Action, amount, conf, sector.BaseRisk),
	}
	bd.Alignment = clamp(s.alignment.Alignment(item, sector, conf), 0, 100)
	score := s.composite(bd)

	res := Result{Score: score, Breakdown: bd}

	if reason, rejected := s.hardConstraints(ctx, item, sector, amount, bd.Risk); rejected {
		res.Status = model.ItemRejected
		res.Reason = reason
		return res
	}

	res.Status, res.Reason = s.decide(score, conf, bd.Risk)

	// Catch anything the decision rule let through below the floor,
	// including NaN scores.
	if floor := s.cfg.ApprovalFloor(); res.Approved() && !(score >= floor) {
		res.Status = model.ItemRejected
		res.Reason = fmt.Sprintf("%sscore %.1f below approval floor %.1f", FailsafePrefix, score, floor)
		res.Failsafe = true
	}
	return res
}

func (s *Scorer) hardConstraints(ctx context.Context, item *model.ChecklistItem, sector *model.Sector, amount, risk float64) (string, bool) {
	trade := TradeCheck{
		Action: item.Action,
		Symbol: item.Symbol,
		Amount: item.Amount,
	}
	if sector.CurrentPrice > 0 {
		trade.Quantity = amount / sector.CurrentPrice
	}

	rr, err := s.rules.ValidateTrade(ctx, sector, trade)
	switch {
	case err != nil:
		s.logger.Warn("trade validation skipped", "item_id", item.ID, "err", err)
	case !rr.Valid:
		return "trade rule violation: " + strings.Join(rr.Errors, "; "), true
	}

	ok, err := s.rules.CheckRiskAppetite(ctx, sector, risk)
	switch {
	case err != nil:
		s.logger.Warn("risk appetite check skipped", "item_id", item.ID, "err", err)
	case !ok:
		return fmt.Sprintf("risk level %.1f exceeds sector risk appetite", risk), true
	}
	return "", false
}

func (s *Scorer) decide(score, conf, risk float64) (model.ItemStatus, string) {
	c := s.cfg
	switch {
	case c.ApprovalThreshold-score > c.MaterialGap:
		return model.ItemRejected, fmt.Sprintf("score %.1f is more than %.0f below threshold %.0f", score, c.MaterialGap, c.ApprovalThreshold)
	case conf < c.MinConfidence:
		return model.ItemRejected, fmt.Sprintf("confidence %.0f below minimum %.0f", conf, c.MinConfidence)
	case risk > c.HighRisk && conf < c.HighRiskMinConfidence:
		return model.ItemRejected, fmt.Sprintf("risk %.1f too high for confidence %.0f", risk, conf)
	}
	return model.ItemApproved, fmt.Sprintf("score %.1f meets approval criteria", score)
}

func (s *Scorer) confidence(v float64) float64 {
	if math.IsNaN(v) {
		return s.cfg.DefaultConfidence
	}
	return clamp(v, 0, 100)
}

var impactFactor = map[model.ActionType]float64{
	model.ActionBuy:       1.2,
	model.ActionSell:      0.9,
	model.ActionRebalance: 1.1,
}

var actionRisk = map[model.ActionType]float64{
	model.ActionBuy:       10,
	model.ActionSell:      6,
	model.ActionRebalance: 8,
	model.ActionHold:      0,
}

func (s *Scorer) impact(action model.ActionType, amount float64) float64 {
	base := math.Min(100, math.Max(0, amount)/s.cfg.ReferenceAmount*100)
	factor, ok := impactFactor[action]
	if !ok {
		factor = 1
	}
	return math.Min(100, base*factor)
}

func (s *Scorer) risk(action model.ActionType, amount, conf, baseRisk float64) float64 {
	r := 0.4*clamp(baseRisk, 0, 100) +
		math.Min(30, math.Max(0, amount)/s.cfg.ReferenceAmount*30) +
		actionRisk[action] +
		(100-conf)*0.2
	return clamp(r, 0, 100)
}

func (s *Scorer) composite(bd model.ScoreBreakdown) float64 {
	w := s.cfg.Weights
	return w.Confidence*bd.Confidence +
		w.Impact*bd.Impact +
		w.Risk*(100-bd.Risk) +
		w.Alignment*bd.Alignment
}

func clamp(f, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, f))
}
