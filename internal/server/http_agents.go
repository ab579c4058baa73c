package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ayushsreejith06/max/internal/events"
	"github.com/ayushsreejith06/max/internal/idgen"
	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/store"
)

type createAgentInput struct {
	SectorID    string            `json:"sector_id"`
	Name        string            `json:"name"`
	Role        model.AgentRole   `json:"role"`
	Status      model.AgentStatus `json:"status"`
	Confidence  float64           `json:"confidence"`
	Personality model.Personality `json:"personality"`
}

// handleListAgents handles GET /v1/agents.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.store.ListAgents(r.Context(), r.URL.Query().Get("sector_id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if agents == nil {
		agents = []*model.Agent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

// handleCreateAgent handles POST /v1/agents.
func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var in createAgentInput
	if err := decodeBody(r, &in); err != nil {
		writeErr(w, r, err)
		return
	}

	ctx := r.Context()
	if in.SectorID != "" {
		if _, err := s.store.GetSector(ctx, in.SectorID); errors.Is(err, store.ErrNotFound) {
			writeErr(w, r, inputError(fmt.Sprintf("sector %s does not exist", in.SectorID)))
			return
		} else if err != nil {
			writeErr(w, r, err)
			return
		}
	}

	now := time.Now().UTC()
	a := &model.Agent{
		ID:          idgen.Must(idgen.PrefixAgent),
		SectorID:    in.SectorID,
		Name:        strings.TrimSpace(in.Name),
		Role:        in.Role,
		Status:      in.Status,
		Confidence:  in.Confidence,
		Personality: in.Personality,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if a.Role == "" {
		a.Role = model.RoleGeneral
	}
	if a.Status == "" {
		a.Status = model.AgentActive
	}
	if err := model.ValidateAgent(a); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.store.CreateAgent(ctx, a); err != nil {
		writeErr(w, r, err)
		return
	}

	s.recordEvent(ctx, events.TopicAgentStatus, a.SectorID, events.AgentStatus{
		AgentID:  a.ID,
		SectorID: a.SectorID,
		Status:   a.Status,
		LastSeen: now,
	})
	writeJSON(w, http.StatusCreated, a)
}

// handleGetAgent handles GET /v1/agents/{id}.
func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetAgent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
