package seed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/store/memory"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestLoadFile(t *testing.T) {
	f, err := LoadFile("testdata/fixture.yaml")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(f.Sectors) != 2 {
		t.Fatalf("sectors = %d, want 2", len(f.Sectors))
	}
	tech := f.Sectors[0]
	if tech.Symbol != "TECH" || tech.Balance != 10000 || len(tech.AllowedSymbols) != 3 {
		t.Errorf("tech sector = %+v", tech.Sector)
	}
	if len(tech.Agents) != 3 {
		t.Fatalf("tech agents = %d, want 3", len(tech.Agents))
	}
	mom := tech.Agents[1]
	if mom.SectorID != "sec-tech" || mom.Status != model.AgentActive || mom.Personality.RiskTolerance != model.RiskHigh {
		t.Errorf("momentum agent = %+v", mom)
	}
	if analyst := tech.Agents[2]; !strings.HasPrefix(analyst.ID, "agt-") {
		t.Errorf("generated agent id = %q", analyst.ID)
	}
}

func TestParse_Errors(t *testing.T) {
	for _, tc := range []struct {
		name string
		yaml string
		want string
	}{
		{"Empty", "  \n", "empty"},
		{"UnknownField", "sectors:\n  - name: X\n    symbol: X\n    colour: red\n", "decode"},
		{"InvalidSector", "sectors:\n  - name: X\n    base_risk: 150\n", "symbol"},
		{"InvalidAgent", "sectors:\n  - name: X\n    symbol: X\n    agents:\n      - name: A\n        role: pilot\n", "role"},
		{"DuplicateID", "sectors:\n  - id: s1\n    name: X\n    symbol: X\n  - id: s1\n    name: Y\n    symbol: Y\n", "duplicate"},
		{"ForeignSector", "sectors:\n  - id: s1\n    name: X\n    symbol: X\n    agents:\n      - name: A\n        sector_id: s2\n", "nested"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	f, err := LoadFile("testdata/fixture.yaml")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	res, err := Apply(ctx, st, f, now)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res != (Result{SectorsCreated: 2, AgentsCreated: 3}) {
		t.Errorf("first apply = %+v", res)
	}

	// A later discussion stamps the sector; reseeding must keep it.
	sec, _ := st.GetSector(ctx, "sec-tech")
	last := now.Add(time.Minute)
	sec.LastDiscussionAt = &last
	if err := st.UpdateSector(ctx, sec); err != nil {
		t.Fatalf("UpdateSector: %v", err)
	}

	f.Sectors[0].Balance = 12000
	res, err = Apply(ctx, st, f, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if res != (Result{SectorsUpdated: 2, AgentsUpdated: 3}) {
		t.Errorf("second apply = %+v", res)
	}

	sec, _ = st.GetSector(ctx, "sec-tech")
	if sec.Balance != 12000 {
		t.Errorf("balance = %v, want 12000", sec.Balance)
	}
	if sec.LastDiscussionAt == nil || !sec.LastDiscussionAt.Equal(last) {
		t.Errorf("LastDiscussionAt = %v, want %v", sec.LastDiscussionAt, last)
	}
	if !sec.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", sec.CreatedAt, now)
	}

	agents, _ := st.ListAgents(ctx, "sec-tech")
	if len(agents) != 3 {
		t.Errorf("agents = %d, want 3", len(agents))
	}
}
