package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ayushsreejith06/max/internal/config"
	"github.com/ayushsreejith06/max/internal/engine"
	"github.com/ayushsreejith06/max/internal/execution"
	"github.com/ayushsreejith06/max/internal/gate"
	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/presence"
	"github.com/ayushsreejith06/max/internal/proposal"
	"github.com/ayushsreejith06/max/internal/store"
	"github.com/ayushsreejith06/max/internal/store/memory"
)

const approvable = `{"action":"BUY","allocationPercent":20,"confidence":80,"reasoning":"momentum"}`

type testEnv struct {
	srv     *Server
	handler http.Handler
	store   *memory.Store
	hub     *Hub
}

// newTestEnv wires a server over a memory store seeded with one sector, a
// manager and one trader whose proposals always pass.
func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	if err := st.CreateSector(ctx, &model.Sector{
		ID: "sec-1", Name: "Technology", Symbol: "TECH", Balance: 10000, BaseRisk: 30,
	}); err != nil {
		t.Fatalf("CreateSector: %v", err)
	}
	for _, a := range []*model.Agent{
		{ID: "agt-mgr", SectorID: "sec-1", Name: "Desk Manager", Role: model.RoleManager, Status: model.AgentActive},
		{ID: "agt-1", SectorID: "sec-1", Name: "Momentum Trader", Role: model.RoleTrader, Status: model.AgentActive, Confidence: 80},
	} {
		if err := st.CreateAgent(ctx, a); err != nil {
			t.Fatalf("CreateAgent: %v", err)
		}
	}

	hub := NewHub()
	tracker := presence.New()
	source := proposal.SourceFunc(func(context.Context, *model.Agent, *model.Sector) ([]byte, error) {
		return []byte(approvable), nil
	})
	eng := engine.New(st, source, execution.New(st, hub), config.DefaultTuning(),
		engine.WithPublisher(hub), engine.WithPresence(tracker))
	g := gate.New(st, config.DefaultTuning().Gate, gate.WithPublisher(hub))

	srv := New(st, eng, g, hub)
	srv.Presence = tracker
	return &testEnv{srv: srv, handler: srv.NewHTTPHandler(token), store: st, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAuth(t, method, path, body, "")
}

func (e *testEnv) doAuth(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, want, rec.Body.String())
	}
}

func (e *testEnv) startDiscussion(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/sectors/sec-1/discussions", nil)
	expectStatus(t, rec, http.StatusCreated)
	res := decode[gate.Result](t, rec)
	if res.DiscussionID == "" {
		t.Fatalf("start result = %+v", res)
	}
	return res.DiscussionID
}

func TestErrorStatus(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want int
	}{
		{&model.ValidationError{Errors: []model.FieldError{{Field: "name", Message: "is required"}}}, http.StatusBadRequest},
		{inputError("bad"), http.StatusBadRequest},
		{engine.ErrNotClosable, http.StatusConflict},
		{engine.ErrDiscussionClosed, http.StatusConflict},
		{engine.ErrRoundAlreadyRun, http.StatusConflict},
		{context.Canceled, http.StatusServiceUnavailable},
		{errors.New("disk full"), http.StatusInternalServerError},
		{fmt.Errorf("get discussion x: %w", store.ErrNotFound), http.StatusNotFound},
	} {
		if got := errorStatus(tc.err); got != tc.want {
			t.Errorf("errorStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
