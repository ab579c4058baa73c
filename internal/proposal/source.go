package proposal

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/ayushsreejith06/max/internal/model"
)

// Source produces one raw proposal for an agent in a sector. Output may be
// malformed; callers pass it through Normalize.
type Source interface {
	Generate(ctx context.Context, agent *model.Agent, sector *model.Sector) ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, agent *model.Agent, sector *model.Sector) ([]byte, error)

// Generate calls f.
func (f SourceFunc) Generate(ctx context.Context, agent *model.Agent, sector *model.Sector) ([]byte, error) {
	return f(ctx, agent, sector)
}

// allocationByTolerance is the percentage of sector balance an agent commits
// per proposal.
var allocationByTolerance = map[model.RiskTolerance]float64{
	model.RiskLow:        5,
	model.RiskMedium:     10,
	model.RiskHigh:       20,
	model.RiskAggressive: 30,
}

// HeuristicSource derives proposals from an agent's personality and the
// sector's latest price move. It is deterministic and needs no network.
type HeuristicSource struct {
	// MomentumPercent is the absolute change percent above which agents
	// follow the move. Defaults to 0.5.
	MomentumPercent float64
}

var _ Source = HeuristicSource{}

// Generate implements Source.
func (h HeuristicSource) Generate(ctx context.Context, agent *model.Agent, sector *model.Sector) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if agent == nil || sector == nil {
		return nil, fmt.Errorf("heuristic proposal: agent and sector are required")
	}

	threshold := h.MomentumPercent
	if threshold <= 0 {
		threshold = 0.5
	}

	action := model.ActionHold
	move := sector.ChangePercent
	switch {
	case move >= threshold:
		action = model.ActionBuy
	case move <= -threshold:
		action = model.ActionSell
	}
	// Contrarian styles fade the move.
	if strings.Contains(strings.ToLower(agent.Personality.DecisionStyle), "contrarian") {
		switch action {
		case model.ActionBuy:
			action = model.ActionSell
		case model.ActionSell:
			action = model.ActionBuy
		}
	}

	allocation := 0.0
	if action != model.ActionHold {
		var ok bool
		allocation, ok = allocationByTolerance[agent.Personality.RiskTolerance]
		if !ok {
			allocation = allocationByTolerance[model.RiskMedium]
		}
	}

	confidence := agent.Confidence
	if confidence <= 0 {
		confidence = 50
	}
	confidence = math.Min(100, confidence+math.Min(10, math.Abs(move)*2))

	reasoning := fmt.Sprintf("%s sees %s %s %.2f%%", agent.Name, sector.Symbol, direction(move), math.Abs(move))
	if sector.Description != "" {
		reasoning += "; " + strings.ToLower(strings.TrimSpace(sector.Description))
	}

	return json.Marshal(map[string]any{
		"action":            action,
		"allocationPercent": allocation,
		"confidence":        math.Round(confidence*100) / 100,
		"reasoning":         reasoning,
	})
}

func direction(move float64) string {
	switch {
	case move > 0:
		return "up"
	case move < 0:
		return "down"
	}
	return "flat at"
}
