package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrBackwardTransition is returned when a discussion status change would
// move the lifecycle backwards.
var ErrBackwardTransition = errors.New("discussion status cannot move backwards")

// DiscussionStatus is the lifecycle state of a discussion.
type DiscussionStatus string

const (
	DiscussionOpen       DiscussionStatus = "OPEN"
	DiscussionInProgress DiscussionStatus = "IN_PROGRESS"
	DiscussionDecided    DiscussionStatus = "DECIDED"
	DiscussionClosed     DiscussionStatus = "CLOSED"
)

// String returns the string representation of the status.
func (s DiscussionStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s DiscussionStatus) IsValid() bool {
	switch s {
	case DiscussionOpen, DiscussionInProgress, DiscussionDecided, DiscussionClosed:
		return true
	}
	return false
}

// IsClosed reports whether the discussion has reached its final state.
func (s DiscussionStatus) IsClosed() bool {
	return s == DiscussionClosed
}

// rank orders statuses along the lifecycle.
func (s DiscussionStatus) rank() int {
	switch s {
	case DiscussionOpen:
		return 0
	case DiscussionInProgress:
		return 1
	case DiscussionDecided:
		return 2
	case DiscussionClosed:
		return 3
	}
	return -1
}

// discussionAliases maps legacy and lower-case spellings to canonical statuses.
var discussionAliases = map[string]DiscussionStatus{
	"open":        DiscussionOpen,
	"created":     DiscussionOpen,
	"active":      DiscussionInProgress,
	"in_progress": DiscussionInProgress,
	"in-progress": DiscussionInProgress,
	"inprogress":  DiscussionInProgress,
	"decided":     DiscussionDecided,
	"closed":      DiscussionClosed,
	"finalized":   DiscussionClosed,
	"accepted":    DiscussionClosed,
	"completed":   DiscussionClosed,
	"archived":    DiscussionClosed,
}

// ParseDiscussionStatus normalizes a status string, accepting legacy aliases
// case-insensitively. It reports false for unknown values.
func ParseDiscussionStatus(s string) (DiscussionStatus, bool) {
	st, ok := discussionAliases[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

// UnmarshalJSON decodes a status, normalizing legacy aliases.
func (s *DiscussionStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	st, ok := ParseDiscussionStatus(raw)
	if !ok {
		return fmt.Errorf("unknown discussion status %q", raw)
	}
	*s = st
	return nil
}

// Message is one entry in a discussion's message log.
type Message struct {
	ID           string    `json:"id"`
	DiscussionID string    `json:"discussion_id"`
	AgentID      string    `json:"agent_id,omitempty"`
	AgentName    string    `json:"agent_name,omitempty"`
	Content      string    `json:"content"`
	Round        int       `json:"round,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Discussion is a round-based negotiation over a sector's next trades.
type Discussion struct {
	ID                 string                `json:"id"`
	SectorID           string                `json:"sector_id"`
	Title              string                `json:"title,omitempty"`
	Participants       []string              `json:"participants"`
	Messages           []Message             `json:"messages,omitempty"`
	Status             DiscussionStatus      `json:"status"`
	CurrentRound       int                   `json:"current_round"`
	RoundsRun          int                   `json:"rounds_run"`
	Checklist          []ChecklistItem       `json:"checklist"`
	ManagerDecisions   []ManagerDecision     `json:"manager_decisions,omitempty"`
	RoundHistory       []RoundSnapshot       `json:"round_history,omitempty"`
	FinalizedChecklist []ApprovedItemSummary `json:"finalized_checklist,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
	ClosedAt           *time.Time            `json:"closed_at,omitempty"`
}

// Transition moves the discussion forward to the given status. Moving to the
// current status is a no-op.
func (d *Discussion) Transition(to DiscussionStatus) error {
	if !to.IsValid() {
		return fmt.Errorf("invalid discussion status %q", to)
	}
	if to.rank() < d.Status.rank() {
		return fmt.Errorf("%w: %s -> %s", ErrBackwardTransition, d.Status, to)
	}
	d.Status = to
	return nil
}

// Item returns a pointer to the checklist item with the given ID, or nil.
func (d *Discussion) Item(id string) *ChecklistItem {
	for i := range d.Checklist {
		if d.Checklist[i].ID == id {
			return &d.Checklist[i]
		}
	}
	return nil
}

// LatestDecision returns the most recent manager decision for an item.
func (d *Discussion) LatestDecision(itemID string) (ManagerDecision, bool) {
	for i := len(d.ManagerDecisions) - 1; i >= 0; i-- {
		if d.ManagerDecisions[i].ItemID == itemID {
			return d.ManagerDecisions[i], true
		}
	}
	return ManagerDecision{}, false
}

// Clone returns a deep copy of the discussion.
func (d *Discussion) Clone() *Discussion {
	c := *d
	c.Participants = append([]string(nil), d.Participants...)
	c.Messages = append([]Message(nil), d.Messages...)
	c.Checklist = cloneItems(d.Checklist)
	c.ManagerDecisions = cloneDecisions(d.ManagerDecisions)
	c.RoundHistory = make([]RoundSnapshot, len(d.RoundHistory))
	for i, rs := range d.RoundHistory {
		c.RoundHistory[i] = rs.clone()
	}
	if d.RoundHistory == nil {
		c.RoundHistory = nil
	}
	c.FinalizedChecklist = append([]ApprovedItemSummary(nil), d.FinalizedChecklist...)
	if d.ClosedAt != nil {
		t := *d.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}

// DiscussionSummary is the list view of a discussion.
type DiscussionSummary struct {
	ID            string           `json:"id"`
	SectorID      string           `json:"sector_id"`
	SectorSymbol  string           `json:"sector_symbol,omitempty"`
	Title         string           `json:"title,omitempty"`
	Status        DiscussionStatus `json:"status"`
	CurrentRound  int              `json:"current_round"`
	AgentIDs      []string         `json:"agent_ids"`
	MessagesCount int              `json:"messages_count"`
	ItemCount     int              `json:"item_count"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Summary builds the list view. sectorSymbol may be empty.
func (d *Discussion) Summary(sectorSymbol string) DiscussionSummary {
	return DiscussionSummary{
		ID:            d.ID,
		SectorID:      d.SectorID,
		SectorSymbol:  sectorSymbol,
		Title:         d.Title,
		Status:        d.Status,
		CurrentRound:  d.CurrentRound,
		AgentIDs:      append([]string(nil), d.Participants...),
		MessagesCount: len(d.Messages),
		ItemCount:     len(d.Checklist),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}
