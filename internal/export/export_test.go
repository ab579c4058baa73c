package export

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/store/memory"
)

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	st := memory.New()

	for _, sec := range []*model.Sector{
		{ID: "sec-zzz", Name: "Energy", Symbol: "NRG", Balance: 500, CreatedAt: now},
		{ID: "sec-aaa", Name: "Technology", Symbol: "TECH", Balance: 10000, CreatedAt: now},
	} {
		if err := st.CreateSector(ctx, sec); err != nil {
			t.Fatalf("CreateSector: %v", err)
		}
	}
	if err := st.CreateAgent(ctx, &model.Agent{ID: "agt-1", SectorID: "sec-aaa", Name: "Ada", Role: model.RoleTrader, Status: model.AgentActive}); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	if err := st.CreateDiscussion(ctx, &model.Discussion{
		ID: "disc-1", SectorID: "sec-aaa", Status: model.DiscussionClosed, CurrentRound: 1,
		Participants: []string{"agt-1"},
		Checklist: []model.ChecklistItem{{
			ID: "item-1", AgentID: "agt-1", Action: model.ActionBuy, Symbol: "TECH", Amount: 2000, Status: model.ItemApproved,
		}},
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("CreateDiscussion: %v", err)
	}
	if _, err := st.AddExecution(ctx, &model.ExecutionEntry{
		ID: "exec-1", DiscussionID: "disc-1", SectorID: "sec-aaa", ItemID: "item-1",
		Action: model.ActionBuy, Symbol: "TECH", Amount: 2000, Status: model.ExecutionQueued, SubmittedAt: now,
	}); err != nil {
		t.Fatalf("AddExecution: %v", err)
	}
	return st
}

func TestExportJSONL_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), memory.New(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (header only), got %d", len(lines))
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Version != "1" || h.Type != "header" || h.SectorCount != 0 || h.DiscussionCount != 0 {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestExportJSONL_AllKinds(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), seededStore(t), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	// header + 2 sectors + 1 agent + 1 discussion + 1 execution
	if len(lines) != 6 {
		t.Fatalf("expected 6 lines, got %d:\n%s", len(lines), buf.String())
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.SectorCount != 2 || h.AgentCount != 1 || h.DiscussionCount != 1 || h.ExecutionCount != 1 {
		t.Fatalf("header counts = %+v", h)
	}

	wantTypes := []string{"sector", "sector", "agent", "discussion", "execution"}
	for i, want := range wantTypes {
		var rec struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal([]byte(lines[i+1]), &rec); err != nil {
			t.Fatalf("unmarshal line %d: %v", i+1, err)
		}
		if rec.Type != want {
			t.Errorf("line %d type = %q, want %q", i+1, rec.Type, want)
		}
	}

	// Sectors are sorted by ID.
	var first struct {
		Data model.Sector `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &first); err != nil {
		t.Fatalf("unmarshal sector: %v", err)
	}
	if first.Data.ID != "sec-aaa" {
		t.Errorf("first sector = %q, want sec-aaa", first.Data.ID)
	}

	var disc struct {
		Data model.Discussion `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[4]), &disc); err != nil {
		t.Fatalf("unmarshal discussion: %v", err)
	}
	if disc.Data.Status != model.DiscussionClosed || len(disc.Data.Checklist) != 1 {
		t.Errorf("discussion = %+v", disc.Data)
	}
}

func nonEmptyLines(s string) []string {
	var result []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			result = append(result, line)
		}
	}
	return result
}
