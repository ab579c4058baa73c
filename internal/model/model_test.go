package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDiscussionStatus_IsValid(t *testing.T) {
	for _, tc := range []struct {
		status DiscussionStatus
		want   bool
	}{
		{DiscussionOpen, true},
		{DiscussionInProgress, true},
		{DiscussionDecided, true},
		{DiscussionClosed, true},
		{DiscussionStatus(""), false},
		{DiscussionStatus("open"), false},
	} {
		if got := tc.status.IsValid(); got != tc.want {
			t.Errorf("DiscussionStatus(%q).IsValid() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestParseDiscussionStatus(t *testing.T) {
	for _, tc := range []struct {
		in     string
		want   DiscussionStatus
		wantOK bool
	}{
		{"OPEN", DiscussionOpen, true},
		{"open", DiscussionOpen, true},
		{"created", DiscussionOpen, true},
		{"Active", DiscussionInProgress, true},
		{"in_progress", DiscussionInProgress, true},
		{"IN_PROGRESS", DiscussionInProgress, true},
		{"decided", DiscussionDecided, true},
		{"closed", DiscussionClosed, true},
		{"finalized", DiscussionClosed, true},
		{"accepted", DiscussionClosed, true},
		{"COMPLETED", DiscussionClosed, true},
		{"archived", DiscussionClosed, true},
		{" closed ", DiscussionClosed, true},
		{"bogus", "", false},
		{"", "", false},
	} {
		got, ok := ParseDiscussionStatus(tc.in)
		if ok != tc.wantOK || got != tc.want {
			t.Errorf("ParseDiscussionStatus(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestDiscussionStatus_UnmarshalJSONNormalizesAliases(t *testing.T) {
	var d struct {
		Status DiscussionStatus `json:"status"`
	}
	if err := json.Unmarshal([]byte(`{"status":"active"}`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Status != DiscussionInProgress {
		t.Errorf("Status = %q, want %q", d.Status, DiscussionInProgress)
	}
	if err := json.Unmarshal([]byte(`{"status":"nonsense"}`), &d); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestDiscussion_TransitionForwardOnly(t *testing.T) {
	d := &Discussion{Status: DiscussionOpen}
	for _, to := range []DiscussionStatus{DiscussionInProgress, DiscussionInProgress, DiscussionDecided, DiscussionClosed} {
		if err := d.Transition(to); err != nil {
			t.Fatalf("Transition(%s): %v", to, err)
		}
	}
	err := d.Transition(DiscussionInProgress)
	if !errors.Is(err, ErrBackwardTransition) {
		t.Fatalf("expected ErrBackwardTransition, got %v", err)
	}
	if d.Status != DiscussionClosed {
		t.Errorf("Status = %q after refused transition, want CLOSED", d.Status)
	}
}

func TestItemStatus_IsTerminal(t *testing.T) {
	for _, tc := range []struct {
		status ItemStatus
		want   bool
	}{
		{ItemPending, false},
		{ItemReviseRequired, false},
		{ItemResubmitted, false},
		{ItemApproved, true},
		{ItemRejected, true},
		{ItemAcceptRejection, true},
	} {
		if got := tc.status.IsTerminal(); got != tc.want {
			t.Errorf("ItemStatus(%q).IsTerminal() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestChecklistItem_SetStatusRefusesTerminal(t *testing.T) {
	it := &ChecklistItem{ID: "item-1", Status: ItemPending}
	if err := it.SetStatus(ItemApproved, "ok"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	err := it.SetStatus(ItemRejected, "late")
	if !errors.Is(err, ErrTerminalStatus) {
		t.Fatalf("expected ErrTerminalStatus, got %v", err)
	}
	if it.Status != ItemApproved || it.StatusReason != "ok" {
		t.Errorf("item mutated after terminal: %+v", it)
	}
}

func TestParseActionType(t *testing.T) {
	for _, tc := range []struct {
		in     string
		want   ActionType
		wantOK bool
	}{
		{"buy", ActionBuy, true},
		{"SELL", ActionSell, true},
		{" hold ", ActionHold, true},
		{"Rebalance", ActionRebalance, true},
		{"short", ActionType("SHORT"), false},
	} {
		got, ok := ParseActionType(tc.in)
		if ok != tc.wantOK || (ok && got != tc.want) {
			t.Errorf("ParseActionType(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestDiscussion_CloneIsDeep(t *testing.T) {
	now := time.Now()
	d := &Discussion{
		ID:           "disc-1",
		Participants: []string{"a1"},
		Checklist:    []ChecklistItem{{ID: "item-1", Status: ItemPending, EvaluatedAt: &now}},
		ManagerDecisions: []ManagerDecision{
			{ItemID: "item-1", Item: ChecklistItem{ID: "item-1"}},
		},
	}
	c := d.Clone()
	c.Participants[0] = "changed"
	c.Checklist[0].Status = ItemApproved
	*c.Checklist[0].EvaluatedAt = now.Add(time.Hour)

	if d.Participants[0] != "a1" {
		t.Error("participants aliased")
	}
	if d.Checklist[0].Status != ItemPending {
		t.Error("checklist aliased")
	}
	if !d.Checklist[0].EvaluatedAt.Equal(now) {
		t.Error("evaluated_at aliased")
	}
}

func TestDiscussion_LatestDecision(t *testing.T) {
	d := &Discussion{ManagerDecisions: []ManagerDecision{
		{ItemID: "a", Score: 10},
		{ItemID: "b", Score: 20},
		{ItemID: "a", Score: 30},
	}}
	got, ok := d.LatestDecision("a")
	if !ok || got.Score != 30 {
		t.Errorf("LatestDecision(a) = %+v, %v; want score 30", got, ok)
	}
	if _, ok := d.LatestDecision("missing"); ok {
		t.Error("expected no decision for unknown item")
	}
}

func TestSector_AllowsSymbol(t *testing.T) {
	s := &Sector{Symbol: "TECH"}
	if !s.AllowsSymbol("tech") {
		t.Error("sector symbol should be allowed by default")
	}
	if s.AllowsSymbol("NRG") {
		t.Error("foreign symbol should not be allowed")
	}
	s.AllowedSymbols = []string{"AAPL", "MSFT"}
	if s.AllowsSymbol("TECH") {
		t.Error("explicit allow-list should replace the default")
	}
	if !s.AllowsSymbol("MSFT") {
		t.Error("MSFT should be allowed")
	}
}

func TestDiscussionFilter_Matches(t *testing.T) {
	d := &Discussion{SectorID: "sec-1", Status: DiscussionInProgress}
	for _, tc := range []struct {
		name   string
		filter DiscussionFilter
		want   bool
	}{
		{"Empty", DiscussionFilter{}, true},
		{"Sector", DiscussionFilter{SectorID: "sec-1"}, true},
		{"OtherSector", DiscussionFilter{SectorID: "sec-2"}, false},
		{"Status", DiscussionFilter{Status: []DiscussionStatus{DiscussionOpen, DiscussionInProgress}}, true},
		{"WrongStatus", DiscussionFilter{Status: []DiscussionStatus{DiscussionClosed}}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Matches(d); got != tc.want {
				t.Errorf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}
