// Package revision decides how a worker answers a rejected checklist item:
// revise and resubmit, or accept the rejection.
package revision

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ayushsreejith06/max/internal/config"
	"github.com/ayushsreejith06/max/internal/model"
)

// Outcome describes what Respond did.
type Outcome int

const (
	// NoOp means the item was not awaiting revision.
	NoOp Outcome = iota
	// Revised means the item was amended and resubmitted.
	Revised
	// GaveUp means the item moved to ACCEPT_REJECTION.
	GaveUp
)

func (o Outcome) String() string {
	switch o {
	case Revised:
		return "revised"
	case GaveUp:
		return "gave_up"
	}
	return "noop"
}

var (
	hardConstraintWords = []string{"rule", "policy", "violation", "not allowed", "prohibited"}
	riskWords           = []string{"risk", "volatil", "exposure"}
)

// Protocol applies the revision rules with the configured cap and penalty.
type Protocol struct {
	cfg config.RevisionConfig
}

// New creates a Protocol.
func New(cfg config.RevisionConfig) *Protocol {
	return &Protocol{cfg: cfg}
}

// Respond handles one REVISE_REQUIRED item in place. Items in any other
// status are left untouched.
func (p *Protocol) Respond(item *model.ChecklistItem, now time.Time) Outcome {
	if item.Status != model.ItemReviseRequired {
		return NoOp
	}
	reason := strings.ToLower(item.StatusReason)

	if item.RevisionCount >= p.cfg.MaxRevisions {
		p.giveUp(item, fmt.Sprintf("revision limit %d reached: %s", p.cfg.MaxRevisions, item.StatusReason))
		return GaveUp
	}
	if containsAny(reason, hardConstraintWords) {
		p.giveUp(item, "hard constraint cannot be revised: "+item.StatusReason)
		return GaveUp
	}

	item.PreviousVersions = append(item.PreviousVersions, item.Snapshot(now))
	if containsAny(reason, riskWords) {
		item.Amount /= 2
		item.AllocationPercent /= 2
		item.Confidence = math.Max(1, item.Confidence-p.cfg.ConfidencePenalty)
	}
	item.RevisionCount++
	item.RequiresRevision = false
	// REVISE_REQUIRED is not terminal, so SetStatus cannot fail here.
	_ = item.SetStatus(model.ItemResubmitted, fmt.Sprintf("revision %d after: %s", item.RevisionCount, item.StatusReason))
	return Revised
}

func (p *Protocol) giveUp(item *model.ChecklistItem, reason string) {
	item.RequiresRevision = false
	_ = item.SetStatus(model.ItemAcceptRejection, reason)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
