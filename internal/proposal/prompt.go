package proposal

import (
	"fmt"
	"strings"

	"github.com/ayushsreejith06/max/internal/model"
)

const systemPrompt = `You are a trading agent in a sector desk. Reply with exactly one JSON object and nothing else:
{"action": "BUY" | "SELL" | "HOLD", "allocationPercent": 0-100, "confidence": 1-100, "reasoning": "one or two sentences"}`

// Prompt is the text sent to a language-model source.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt describes the agent and sector to a language model.
func BuildPrompt(agent *model.Agent, sector *model.Sector) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Agent: %s (role %s)\n", agent.Name, agent.Role)
	fmt.Fprintf(&b, "Risk tolerance: %s\n", orDash(string(agent.Personality.RiskTolerance)))
	fmt.Fprintf(&b, "Decision style: %s\n", orDash(agent.Personality.DecisionStyle))
	fmt.Fprintf(&b, "Current confidence: %.0f\n\n", agent.Confidence)

	fmt.Fprintf(&b, "Sector: %s (%s)\n", sector.Name, sector.Symbol)
	if sector.Description != "" {
		fmt.Fprintf(&b, "Goal: %s\n", sector.Description)
	}
	fmt.Fprintf(&b, "Price: %.2f, change %.2f (%.2f%%), volume %d\n",
		sector.CurrentPrice, sector.Change, sector.ChangePercent, sector.Volume)
	fmt.Fprintf(&b, "Available balance: %.2f\n", sector.Balance)
	fmt.Fprintf(&b, "Allowed symbols: %s\n", strings.Join(sector.Symbols(), ", "))
	b.WriteString("\nPropose your next trade for this sector.")

	return Prompt{System: systemPrompt, User: b.String()}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
