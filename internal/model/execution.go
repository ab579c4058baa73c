package model

import (
	"encoding/json"
	"time"
)

// ExecutionStatus tracks an entry in the execution backlog.
type ExecutionStatus string

const (
	ExecutionQueued   ExecutionStatus = "queued"
	ExecutionExecuted ExecutionStatus = "executed"
	ExecutionFailed   ExecutionStatus = "failed"
)

// ExecutionEntry is an approved trade waiting for the execution collaborator.
type ExecutionEntry struct {
	ID                string          `json:"id"`
	DiscussionID      string          `json:"discussion_id"`
	SectorID          string          `json:"sector_id"`
	ItemID            string          `json:"item_id"`
	AgentID           string          `json:"agent_id"`
	Action            ActionType      `json:"action"`
	Symbol            string          `json:"symbol"`
	Amount            float64         `json:"amount"`
	AllocationPercent float64         `json:"allocation_percent"`
	Confidence        float64         `json:"confidence"`
	Score             float64         `json:"score"`
	Status            ExecutionStatus `json:"status"`
	SubmittedAt       time.Time       `json:"submitted_at"`
}

// Event is a persisted event record, mirroring what is published to NATS.
type Event struct {
	ID           string          `json:"id"`
	Topic        string          `json:"topic"`
	DiscussionID string          `json:"discussion_id,omitempty"`
	SectorID     string          `json:"sector_id,omitempty"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"created_at"`
}

// DiscussionFilter holds criteria for listing discussions.
type DiscussionFilter struct {
	SectorID string             `json:"sector_id,omitempty"`
	Status   []DiscussionStatus `json:"status,omitempty"`
	Limit    int                `json:"limit,omitempty"`
	Offset   int                `json:"offset,omitempty"`
}

// Matches reports whether d satisfies the filter, ignoring paging.
func (f DiscussionFilter) Matches(d *Discussion) bool {
	if f.SectorID != "" && d.SectorID != f.SectorID {
		return false
	}
	if len(f.Status) == 0 {
		return true
	}
	for _, s := range f.Status {
		if d.Status == s {
			return true
		}
	}
	return false
}
