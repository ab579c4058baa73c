package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTerminalStatus is returned when a status change is attempted on an item
// that has already reached a terminal status.
var ErrTerminalStatus = errors.New("checklist item is in a terminal status")

// ActionType is the kind of trade a checklist item proposes.
type ActionType string

const (
	ActionBuy       ActionType = "BUY"
	ActionSell      ActionType = "SELL"
	ActionHold      ActionType = "HOLD"
	ActionRebalance ActionType = "REBALANCE"
)

// String returns the string representation of the action.
func (a ActionType) String() string {
	return string(a)
}

// IsValid checks whether the action is a known value.
func (a ActionType) IsValid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold, ActionRebalance:
		return true
	}
	return false
}

// ParseActionType parses an action case-insensitively.
func ParseActionType(s string) (ActionType, bool) {
	a := ActionType(strings.ToUpper(strings.TrimSpace(s)))
	return a, a.IsValid()
}

// ItemStatus is the evaluation state of a checklist item.
type ItemStatus string

const (
	ItemPending         ItemStatus = "PENDING"
	ItemReviseRequired  ItemStatus = "REVISE_REQUIRED"
	ItemResubmitted     ItemStatus = "RESUBMITTED"
	ItemApproved        ItemStatus = "APPROVED"
	ItemRejected        ItemStatus = "REJECTED"
	ItemAcceptRejection ItemStatus = "ACCEPT_REJECTION"
)

// String returns the string representation of the status.
func (s ItemStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemPending, ItemReviseRequired, ItemResubmitted, ItemApproved, ItemRejected, ItemAcceptRejection:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is defined from s.
func (s ItemStatus) IsTerminal() bool {
	switch s {
	case ItemApproved, ItemRejected, ItemAcceptRejection:
		return true
	}
	return false
}

// ParseItemStatus parses an item status case-insensitively.
func ParseItemStatus(s string) (ItemStatus, bool) {
	st := ItemStatus(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.IsValid()
}

// ItemVersion is the state of an item before one of its revisions.
type ItemVersion struct {
	Amount            float64    `json:"amount"`
	AllocationPercent float64    `json:"allocation_percent"`
	Confidence        float64    `json:"confidence"`
	Reasoning         string     `json:"reasoning"`
	Status            ItemStatus `json:"status"`
	Reason            string     `json:"reason,omitempty"`
	RevisionCount     int        `json:"revision_count"`
	RecordedAt        time.Time  `json:"recorded_at"`
}

// ChecklistItem is one agent's trade proposal and its evaluation state.
type ChecklistItem struct {
	ID                   string        `json:"id"`
	AgentID              string        `json:"agent_id"`
	Round                int           `json:"round"`
	Action               ActionType    `json:"action"`
	Symbol               string        `json:"symbol"`
	Amount               float64       `json:"amount"`
	AllocationPercent    float64       `json:"allocation_percent"`
	Confidence           float64       `json:"confidence"`
	Reasoning            string        `json:"reasoning"`
	Status               ItemStatus    `json:"status"`
	StatusReason         string        `json:"status_reason,omitempty"`
	RequiresRevision     bool          `json:"requires_revision"`
	RevisionCount        int           `json:"revision_count"`
	PreviousVersions     []ItemVersion `json:"previous_versions,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	EvaluatedAt          *time.Time    `json:"evaluated_at,omitempty"`
	RevisionRequiredAt   *time.Time    `json:"revision_required_at,omitempty"`
	ExecutionSubmittedAt *time.Time    `json:"execution_submitted_at,omitempty"`
}

// SetStatus changes the item's status and reason. Terminal items refuse any
// change.
func (it *ChecklistItem) SetStatus(to ItemStatus, reason string) error {
	if it.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminalStatus, it.ID, it.Status)
	}
	if !to.IsValid() {
		return fmt.Errorf("invalid item status %q", to)
	}
	it.Status = to
	it.StatusReason = reason
	return nil
}

// NeedsEvaluation reports whether the scorer should look at the item.
func (it *ChecklistItem) NeedsEvaluation() bool {
	switch it.Status {
	case ItemPending, ItemResubmitted, ItemReviseRequired:
		return true
	}
	return false
}

// Snapshot captures the current state for PreviousVersions.
func (it *ChecklistItem) Snapshot(at time.Time) ItemVersion {
	return ItemVersion{
		Amount:            it.Amount,
		AllocationPercent: it.AllocationPercent,
		Confidence:        it.Confidence,
		Reasoning:         it.Reasoning,
		Status:            it.Status,
		Reason:            it.StatusReason,
		RevisionCount:     it.RevisionCount,
		RecordedAt:        at,
	}
}

// Clone returns a deep copy of the item.
func (it ChecklistItem) Clone() ChecklistItem {
	c := it
	c.PreviousVersions = append([]ItemVersion(nil), it.PreviousVersions...)
	c.EvaluatedAt = cloneTime(it.EvaluatedAt)
	c.RevisionRequiredAt = cloneTime(it.RevisionRequiredAt)
	c.ExecutionSubmittedAt = cloneTime(it.ExecutionSubmittedAt)
	return c
}

func cloneItems(items []ChecklistItem) []ChecklistItem {
	if items == nil {
		return nil
	}
	out := make([]ChecklistItem, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
