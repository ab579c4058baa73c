package revision

import (
	"strings"
	"testing"
	"time"

	"github.com/ayushsreejith06/max/internal/config"
	"github.com/ayushsreejith06/max/internal/model"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func rejected(reason string, revisions int) *model.ChecklistItem {
	return &model.ChecklistItem{
		ID:                "item-1",
		Action:            model.ActionBuy,
		Amount:            4000,
		AllocationPercent: 20,
		Confidence:        60,
		Status:            model.ItemReviseRequired,
		StatusReason:      reason,
		RequiresRevision:  true,
		RevisionCount:     revisions,
	}
}

func TestRespond(t *testing.T) {
	p := New(config.DefaultTuning().Revision)
	for _, tc := range []struct {
		name           string
		item           *model.ChecklistItem
		wantOutcome    Outcome
		wantStatus     model.ItemStatus
		wantAmount     float64
		wantAllocation float64
		wantConfidence float64
		wantRevisions  int
	}{
		{
			name:           "ScoreGapRevises",
			item:           rejected("score 40.0 is more than 20 below threshold 70", 0),
			wantOutcome:    Revised,
			wantStatus:     model.ItemResubmitted,
			wantAmount:     4000,
			wantAllocation: 20,
			wantConfidence: 60,
			wantRevisions:  1,
		},
		{
			name:           "RiskReasonHalves",
			item:           rejected("risk level 85.0 exceeds sector risk appetite", 1),
			wantOutcome:    Revised,
			wantStatus:     model.ItemResubmitted,
			wantAmount:     2000,
			wantAllocation: 10,
			wantConfidence: 55,
			wantRevisions:  2,
		},
		{
			name:           "VolatilityHalves",
			item:           rejected("Too VOLATILE for now", 0),
			wantOutcome:    Revised,
			wantStatus:     model.ItemResubmitted,
			wantAmount:     2000,
			wantAllocation: 10,
			wantConfidence: 55,
			wantRevisions:  1,
		},
		{
			name:           "CapReached",
			item:           rejected("score 40.0 is more than 20 below threshold 70", 2),
			wantOutcome:    GaveUp,
			wantStatus:     model.ItemAcceptRejection,
			wantAmount:     4000,
			wantAllocation: 20,
			wantConfidence: 60,
			wantRevisions:  2,
		},
		{
			name:           "RuleViolationGivesUp",
			item:           rejected("trade rule violation: symbol \"X\" is not allowed", 0),
			wantOutcome:    GaveUp,
			wantStatus:     model.ItemAcceptRejection,
			wantAmount:     4000,
			wantAllocation: 20,
			wantConfidence: 60,
			wantRevisions:  0,
		},
		{
			name:           "PolicyGivesUp",
			item:           rejected("Prohibited by desk POLICY", 1),
			wantOutcome:    GaveUp,
			wantStatus:     model.ItemAcceptRejection,
			wantAmount:     4000,
			wantAllocation: 20,
			wantConfidence: 60,
			wantRevisions:  1,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Respond(tc.item, now)
			if got != tc.wantOutcome {
				t.Fatalf("outcome = %s, want %s", got, tc.wantOutcome)
			}
			it := tc.item
			if it.Status != tc.wantStatus {
				t.Errorf("Status = %s, want %s", it.Status, tc.wantStatus)
			}
			if it.RequiresRevision {
				t.Error("RequiresRevision should be cleared")
			}
			if it.Amount != tc.wantAmount || it.AllocationPercent != tc.wantAllocation || it.Confidence != tc.wantConfidence {
				t.Errorf("amount/allocation/confidence = %v/%v/%v, want %v/%v/%v",
					it.Amount, it.AllocationPercent, it.Confidence, tc.wantAmount, tc.wantAllocation, tc.wantConfidence)
			}
			if it.RevisionCount != tc.wantRevisions {
				t.Errorf("RevisionCount = %d, want %d", it.RevisionCount, tc.wantRevisions)
			}
			if tc.wantOutcome == Revised {
				if len(it.PreviousVersions) != 1 {
					t.Fatalf("PreviousVersions = %d, want 1", len(it.PreviousVersions))
				}
				prev := it.PreviousVersions[0]
				if prev.Amount != 4000 || prev.Status != model.ItemReviseRequired || !prev.RecordedAt.Equal(now) {
					t.Errorf("snapshot = %+v", prev)
				}
			} else if len(it.PreviousVersions) != 0 {
				t.Errorf("giving up should not snapshot, got %d versions", len(it.PreviousVersions))
			}
		})
	}
}

func TestRespond_ConfidenceFloor(t *testing.T) {
	it := rejected("exposure too large", 0)
	it.Confidence = 3
	New(config.DefaultTuning().Revision).Respond(it, now)
	if it.Confidence != 1 {
		t.Errorf("Confidence = %v, want floor 1", it.Confidence)
	}
}

func TestRespond_NoOpOutsideReviseRequired(t *testing.T) {
	p := New(config.DefaultTuning().Revision)
	for _, st := range []model.ItemStatus{model.ItemPending, model.ItemResubmitted, model.ItemApproved, model.ItemRejected, model.ItemAcceptRejection} {
		it := rejected("risk", 0)
		it.Status = st
		if got := p.Respond(it, now); got != NoOp {
			t.Errorf("%s: outcome = %s, want noop", st, got)
		}
		if it.Status != st || it.Amount != 4000 {
			t.Errorf("%s: item was modified", st)
		}
	}
}

// TestRespond_Bounded cycles an item through reject/revise until it stops;
// it must give up after exactly MaxRevisions revisions.
func TestRespond_Bounded(t *testing.T) {
	p := New(config.DefaultTuning().Revision)
	it := rejected("score too low", 0)
	revisions := 0
	for i := 0; i < 10; i++ {
		out := p.Respond(it, now)
		if out == GaveUp {
			break
		}
		revisions++
		it.Status = model.ItemReviseRequired
		it.StatusReason = "score too low"
		it.RequiresRevision = true
	}
	if revisions != 2 {
		t.Errorf("revisions = %d, want 2", revisions)
	}
	if it.Status != model.ItemAcceptRejection {
		t.Errorf("Status = %s, want ACCEPT_REJECTION", it.Status)
	}
	if !strings.Contains(it.StatusReason, "revision limit 2 reached") {
		t.Errorf("StatusReason = %q", it.StatusReason)
	}
}
