package model

import "time"

// ScoreBreakdown holds the sub-scores that make up a composite score.
// Every value is on a 0-100 scale.
type ScoreBreakdown struct {
	Confidence float64 `json:"confidence"`
	Impact     float64 `json:"impact"`
	Risk       float64 `json:"risk"`
	Alignment  float64 `json:"alignment"`
}

// ManagerDecision records one evaluation of one checklist item. Later passes
// append new decisions rather than replacing old ones.
type ManagerDecision struct {
	ItemID    string         `json:"item_id"`
	Round     int            `json:"round"`
	Item      ChecklistItem  `json:"item"`
	Approved  bool           `json:"approved"`
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
	Reason    string         `json:"reason"`
	DecidedAt time.Time      `json:"decided_at"`
}

func cloneDecisions(ds []ManagerDecision) []ManagerDecision {
	if ds == nil {
		return nil
	}
	out := make([]ManagerDecision, len(ds))
	for i, d := range ds {
		out[i] = d
		out[i].Item = d.Item.Clone()
	}
	return out
}

// Snapshot reasons.
const (
	SnapshotAdvanced = "advanced"
	SnapshotClosed   = "closed"
	SnapshotRoundCap = "round_cap"
)

// RoundSnapshot is an archival copy of a discussion taken when a round ends.
type RoundSnapshot struct {
	Round      int               `json:"round"`
	Reason     string            `json:"reason"`
	Checklist  []ChecklistItem   `json:"checklist"`
	Decisions  []ManagerDecision `json:"decisions,omitempty"`
	Messages   []Message         `json:"messages,omitempty"`
	ArchivedAt time.Time         `json:"archived_at"`
}

// NewRoundSnapshot deep-copies the discussion's current round state.
func NewRoundSnapshot(d *Discussion, reason string, at time.Time) RoundSnapshot {
	return RoundSnapshot{
		Round:      d.CurrentRound,
		Reason:     reason,
		Checklist:  cloneItems(d.Checklist),
		Decisions:  cloneDecisions(d.ManagerDecisions),
		Messages:   append([]Message(nil), d.Messages...),
		ArchivedAt: at,
	}
}

func (rs RoundSnapshot) clone() RoundSnapshot {
	c := rs
	c.Checklist = cloneItems(rs.Checklist)
	c.Decisions = cloneDecisions(rs.Decisions)
	c.Messages = append([]Message(nil), rs.Messages...)
	return c
}

// ApprovedItemSummary is the finalized view of an approved item.
type ApprovedItemSummary struct {
	ItemID            string     `json:"item_id"`
	AgentID           string     `json:"agent_id"`
	Action            ActionType `json:"action"`
	Symbol            string     `json:"symbol"`
	Amount            float64    `json:"amount"`
	AllocationPercent float64    `json:"allocation_percent"`
	Confidence        float64    `json:"confidence"`
	Score             float64    `json:"score"`
}
