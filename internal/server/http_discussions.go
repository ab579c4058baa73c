package server

import (
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/ayushsreejith06/max/internal/model"
)

// handleListDiscussions handles GET /v1/discussions.
func (s *Server) handleListDiscussions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.DiscussionFilter{SectorID: q.Get("sector_id")}
	if v := q.Get("status"); v != "" {
		for _, raw := range strings.Split(v, ",") {
			st, ok := model.ParseDiscussionStatus(raw)
			if !ok {
				writeErr(w, r, inputError(fmt.Sprintf("unknown status %q", raw)))
				return
			}
			filter.Status = append(filter.Status, st)
		}
	}
	var err error
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		writeErr(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		writeErr(w, r, err)
		return
	}

	ctx := r.Context()
	discussions, total, err := s.store.ListDiscussions(ctx, filter)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	symbols := make(map[string]string)
	if sectors, err := s.store.ListSectors(ctx); err == nil {
		for _, sec := range sectors {
			symbols[sec.ID] = sec.Symbol
		}
	}
	summaries := make([]model.DiscussionSummary, 0, len(discussions))
	for _, d := range discussions {
		summaries = append(summaries, d.Summary(symbols[d.SectorID]))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"discussions": summaries,
		"total":       total,
	})
}

// handleGetDiscussion handles GET /v1/discussions/{id}.
func (s *Server) handleGetDiscussion(w http.ResponseWriter, r *http.Request) {
	d, err := s.engine.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleRunRound handles POST /v1/discussions/{id}/rounds.
func (s *Server) handleRunRound(w http.ResponseWriter, r *http.Request) {
	d, err := s.engine.RunRound(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleEvaluate handles POST /v1/discussions/{id}/evaluate.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.EvaluatePass(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleAdvance handles POST /v1/discussions/{id}/advance.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	d, err := s.engine.Advance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleRun handles POST /v1/discussions/{id}/run.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	d, err := s.engine.Run(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleClose handles POST /v1/discussions/{id}/close.
func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	d, err := s.engine.Close(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type addMessageInput struct {
	AgentID string `json:"agent_id"`
	Content string `json:"content"`
}

// handleAddMessage handles POST /v1/discussions/{id}/messages.
func (s *Server) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	var in addMessageInput
	if err := decodeBody(r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	if in.AgentID == "" {
		writeErr(w, r, inputError("agent_id is required"))
		return
	}

	msg, err := s.engine.AddMessage(r.Context(), r.PathValue("id"), in.AgentID, in.Content)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

type submitItemInput struct {
	AgentID           string   `json:"agent_id"`
	Action            string   `json:"action"`
	Symbol            string   `json:"symbol"`
	AllocationPercent float64  `json:"allocation_percent"`
	Confidence        *float64 `json:"confidence"`
	Reasoning         string   `json:"reasoning"`
}

// handleSubmitItem handles POST /v1/discussions/{id}/items.
func (s *Server) handleSubmitItem(w http.ResponseWriter, r *http.Request) {
	var in submitItemInput
	if err := decodeBody(r, &in); err != nil {
		writeErr(w, r, err)
		return
	}

	// An absent confidence takes the engine's scoring default.
	confidence := math.NaN()
	if in.Confidence != nil {
		confidence = *in.Confidence
	}
	it, err := s.engine.SubmitItem(r.Context(), r.PathValue("id"), model.ChecklistItem{
		AgentID:           in.AgentID,
		Action:            model.ActionType(strings.ToUpper(strings.TrimSpace(in.Action))),
		Symbol:            strings.ToUpper(strings.TrimSpace(in.Symbol)),
		AllocationPercent: in.AllocationPercent,
		Confidence:        confidence,
		Reasoning:         in.Reasoning,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

// handleGetEvents handles GET /v1/discussions/{id}/events.
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if _, err := s.store.GetDiscussion(ctx, id); err != nil {
		writeErr(w, r, err)
		return
	}
	evts, err := s.store.GetEvents(ctx, id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if evts == nil {
		evts = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}

// handleListExecutions handles GET /v1/executions.
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListExecutions(r.Context(), r.URL.Query().Get("sector_id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if entries == nil {
		entries = []*model.ExecutionEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": entries})
}
