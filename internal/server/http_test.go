package server

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ayushsreejith06/max/internal/engine"
	"github.com/ayushsreejith06/max/internal/gate"
	"github.com/ayushsreejith06/max/internal/model"
)

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, http.MethodGet, "/v1/health", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[map[string]string](t, rec)["status"]; got != "ok" {
		t.Errorf("status = %q", got)
	}
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, "s3cret")

	expectStatus(t, env.do(t, http.MethodGet, "/v1/health", nil), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodGet, "/v1/sectors", nil), http.StatusUnauthorized)
	expectStatus(t, env.doAuth(t, http.MethodGet, "/v1/sectors", nil, "wrong"), http.StatusUnauthorized)
	expectStatus(t, env.doAuth(t, http.MethodGet, "/v1/sectors", nil, "s3cret"), http.StatusOK)
}

func TestSectors(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodPost, "/v1/sectors", map[string]any{
		"name": "Energy", "symbol": "nrg", "balance": 5000, "base_risk": 55,
	})
	expectStatus(t, rec, http.StatusCreated)
	created := decode[model.Sector](t, rec)
	if !strings.HasPrefix(created.ID, "sec-") || created.Symbol != "NRG" {
		t.Errorf("created = %+v", created)
	}

	rec = env.do(t, http.MethodPatch, "/v1/sectors/"+created.ID, map[string]any{"balance": 7500})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[model.Sector](t, rec); got.Balance != 7500 || got.Name != "Energy" {
		t.Errorf("patched = %+v", got)
	}

	rec = env.do(t, http.MethodGet, "/v1/sectors", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[map[string][]model.Sector](t, rec)["sectors"]; len(got) != 2 {
		t.Errorf("sectors = %d, want 2", len(got))
	}

	expectStatus(t, env.do(t, http.MethodGet, "/v1/sectors/sec-missing", nil), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodPost, "/v1/sectors", map[string]any{"colour": "red"}), http.StatusBadRequest)

	rec = env.do(t, http.MethodPost, "/v1/sectors", map[string]any{"name": "Bad", "symbol": "BAD", "base_risk": 150})
	expectStatus(t, rec, http.StatusBadRequest)
	body := decode[struct {
		Fields []fieldError `json:"fields"`
	}](t, rec)
	if len(body.Fields) != 1 || body.Fields[0].Field != "base_risk" {
		t.Errorf("fields = %+v", body.Fields)
	}
}

func TestAgents(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodPost, "/v1/agents", map[string]any{
		"sector_id": "sec-1", "name": "Contrarian", "role": "analyst", "confidence": 70,
		"personality": map[string]any{"risk_tolerance": "low", "decision_style": "contrarian"},
	})
	expectStatus(t, rec, http.StatusCreated)
	a := decode[model.Agent](t, rec)
	if a.Status != model.AgentActive || a.Personality.RiskTolerance != model.RiskLow {
		t.Errorf("agent = %+v", a)
	}

	expectStatus(t, env.do(t, http.MethodGet, "/v1/agents/"+a.ID, nil), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodGet, "/v1/agents/agt-missing", nil), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodPost, "/v1/agents", map[string]any{"sector_id": "sec-missing", "name": "X"}), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodPost, "/v1/agents", map[string]any{"sector_id": "sec-1", "name": "X", "role": "pilot"}), http.StatusBadRequest)

	rec = env.do(t, http.MethodGet, "/v1/agents?sector_id=sec-1", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[map[string][]model.Agent](t, rec)["agents"]; len(got) != 3 {
		t.Errorf("agents = %d, want 3", len(got))
	}

	evts := env.hubEvents(t, 0)
	if len(evts) != 1 || evts[0].Topic != "max.agent.status" {
		t.Errorf("hub events = %v", evts)
	}
}

func TestDiscussionLifecycle(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.startDiscussion(t)

	rec := env.do(t, http.MethodPost, "/v1/sectors/sec-1/discussions", nil)
	expectStatus(t, rec, http.StatusConflict)
	if res := decode[gate.Result](t, rec); res.Reason != gate.ReasonActiveDiscussion {
		t.Errorf("second start = %+v", res)
	}

	rec = env.do(t, http.MethodPost, "/v1/discussions/"+id+"/rounds", nil)
	expectStatus(t, rec, http.StatusOK)
	d := decode[model.Discussion](t, rec)
	if d.Status != model.DiscussionInProgress || len(d.Checklist) != 1 {
		t.Fatalf("after round: status %s, %d items", d.Status, len(d.Checklist))
	}

	expectStatus(t, env.do(t, http.MethodPost, "/v1/discussions/"+id+"/rounds", nil), http.StatusConflict)
	expectStatus(t, env.do(t, http.MethodPost, "/v1/discussions/"+id+"/close", nil), http.StatusConflict)

	rec = env.do(t, http.MethodPost, "/v1/discussions/"+id+"/evaluate", nil)
	expectStatus(t, rec, http.StatusOK)
	report := decode[engine.PassReport](t, rec)
	if report.Approved != 1 || !report.Closed {
		t.Errorf("report = approved %d closed %v", report.Approved, report.Closed)
	}

	expectStatus(t, env.do(t, http.MethodPost, "/v1/discussions/"+id+"/rounds", nil), http.StatusConflict)

	rec = env.do(t, http.MethodGet, "/v1/executions?sector_id=sec-1", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[map[string][]model.ExecutionEntry](t, rec)["executions"]; len(got) != 1 || got[0].Amount != 2000 {
		t.Errorf("executions = %+v", got)
	}

	rec = env.do(t, http.MethodGet, "/v1/discussions/"+id+"/events", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[map[string][]model.Event](t, rec)["events"]; len(got) < 3 {
		t.Errorf("events = %d, want created, round and closed at least", len(got))
	}

	rec = env.do(t, http.MethodGet, "/v1/discussions?status=finalized", nil)
	expectStatus(t, rec, http.StatusOK)
	list := decode[struct {
		Discussions []model.DiscussionSummary `json:"discussions"`
		Total       int                       `json:"total"`
	}](t, rec)
	if list.Total != 1 || list.Discussions[0].SectorSymbol != "TECH" || list.Discussions[0].ItemCount != 1 {
		t.Errorf("list = %+v", list)
	}

	rec = env.do(t, http.MethodGet, "/v1/agents/roster?sector_id=sec-1", nil)
	expectStatus(t, rec, http.StatusOK)
	roster := decode[map[string][]rosterEntry](t, rec)["agents"]
	if len(roster) != 1 || roster[0].AgentID != "agt-1" || roster[0].Name != "Momentum Trader" {
		t.Errorf("roster = %+v", roster)
	}
}

func TestRun(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.startDiscussion(t)

	rec := env.do(t, http.MethodPost, "/v1/discussions/"+id+"/run", nil)
	expectStatus(t, rec, http.StatusOK)
	if d := decode[model.Discussion](t, rec); d.Status != model.DiscussionClosed || len(d.FinalizedChecklist) != 1 {
		t.Errorf("run = %s with %d finalized", d.Status, len(d.FinalizedChecklist))
	}

	// Closing a closed discussion is a no-op.
	expectStatus(t, env.do(t, http.MethodPost, "/v1/discussions/"+id+"/close", nil), http.StatusOK)
}

func TestAdvance(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.startDiscussion(t)
	expectStatus(t, env.do(t, http.MethodPost, "/v1/discussions/"+id+"/rounds", nil), http.StatusOK)

	rec := env.do(t, http.MethodPost, "/v1/discussions/"+id+"/advance", nil)
	expectStatus(t, rec, http.StatusOK)
	if d := decode[model.Discussion](t, rec); d.CurrentRound != 2 {
		t.Errorf("current round = %d, want 2", d.CurrentRound)
	}
}

func TestMessagesAndItems(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.startDiscussion(t)
	base := "/v1/discussions/" + id

	rec := env.do(t, http.MethodPost, base+"/messages", map[string]any{"agent_id": "agt-1", "content": "watching the open"})
	expectStatus(t, rec, http.StatusCreated)
	if msg := decode[model.Message](t, rec); msg.AgentName != "Momentum Trader" {
		t.Errorf("message = %+v", msg)
	}
	expectStatus(t, env.do(t, http.MethodPost, base+"/messages", map[string]any{"agent_id": "agt-1", "content": " "}), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodPost, base+"/messages", map[string]any{"agent_id": "agt-ghost", "content": "hi"}), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodPost, base+"/messages", map[string]any{"content": "hi"}), http.StatusBadRequest)

	rec = env.do(t, http.MethodPost, base+"/items", map[string]any{
		"agent_id": "agt-1", "action": "buy", "allocation_percent": 10, "confidence": 70, "reasoning": "dip",
	})
	expectStatus(t, rec, http.StatusCreated)
	if it := decode[model.ChecklistItem](t, rec); it.Action != model.ActionBuy || it.Amount != 1000 || it.Status != model.ItemPending {
		t.Errorf("item = %+v", it)
	}
	expectStatus(t, env.do(t, http.MethodPost, base+"/items", map[string]any{"agent_id": "agt-1", "action": "short"}), http.StatusBadRequest)

	expectStatus(t, env.do(t, http.MethodPost, "/v1/discussions/disc-missing/messages", map[string]any{"agent_id": "agt-1", "content": "hi"}), http.StatusNotFound)
}

func TestSubmitItem_DefaultConfidence(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.startDiscussion(t)
	base := "/v1/discussions/" + id

	rec := env.do(t, http.MethodPost, base+"/items", map[string]any{
		"agent_id": "agt-1", "action": "BUY", "allocation_percent": 20,
	})
	expectStatus(t, rec, http.StatusCreated)
	if it := decode[model.ChecklistItem](t, rec); it.Confidence != 50 {
		t.Errorf("omitted confidence = %v, want 50", it.Confidence)
	}

	rec = env.do(t, http.MethodPost, base+"/items", map[string]any{
		"agent_id": "agt-1", "action": "BUY", "allocation_percent": 20, "confidence": 0,
	})
	expectStatus(t, rec, http.StatusCreated)
	if it := decode[model.ChecklistItem](t, rec); it.Confidence != 0 {
		t.Errorf("explicit confidence = %v, want 0", it.Confidence)
	}
}

func TestListCandles(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		c := &model.Candle{SectorID: "sec-1", Timestamp: start.Add(time.Duration(i) * 5 * time.Minute), Value: 100 + float64(i)}
		if err := env.store.UpsertCandle(ctx, c); err != nil {
			t.Fatalf("UpsertCandle: %v", err)
		}
	}

	rec := env.do(t, http.MethodGet, "/v1/sectors/sec-1/candles", nil)
	expectStatus(t, rec, http.StatusOK)
	if all := decode[[]model.Candle](t, rec); len(all) != 4 || all[0].Value != 100 {
		t.Errorf("candles = %+v", all)
	}

	rec = env.do(t, http.MethodGet, "/v1/sectors/sec-1/candles?limit=2", nil)
	expectStatus(t, rec, http.StatusOK)
	if last := decode[[]model.Candle](t, rec); len(last) != 2 || last[1].Value != 103 {
		t.Errorf("limited candles = %+v", last)
	}

	rec = env.do(t, http.MethodGet, "/v1/sectors/sec-1/candles?since=2026-03-01T09:10:00Z", nil)
	expectStatus(t, rec, http.StatusOK)
	if since := decode[[]model.Candle](t, rec); len(since) != 2 || since[0].Value != 102 {
		t.Errorf("candles since = %+v", since)
	}

	expectStatus(t, env.do(t, http.MethodGet, "/v1/sectors/sec-1/candles?since=yesterday", nil), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodGet, "/v1/sectors/sec-missing/candles", nil), http.StatusNotFound)
}

func TestListDiscussions_BadQuery(t *testing.T) {
	env := newTestEnv(t, "")
	expectStatus(t, env.do(t, http.MethodGet, "/v1/discussions?status=bogus", nil), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodGet, "/v1/discussions?limit=-1", nil), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodGet, "/v1/discussions/disc-missing", nil), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodGet, "/v1/discussions/disc-missing/events", nil), http.StatusNotFound)
}
