package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/presence"
)

const defaultRosterStale = 30 * time.Minute

type rosterEntry struct {
	presence.Entry
	Name string          `json:"name,omitempty"`
	Role model.AgentRole `json:"role,omitempty"`
}

// handleAgentRoster handles GET /v1/agents/roster.
// Returns live agent presence, enriched with names from the store.
func (s *Server) handleAgentRoster(w http.ResponseWriter, r *http.Request) {
	if s.Presence == nil {
		writeJSON(w, http.StatusOK, map[string]any{"agents": []rosterEntry{}})
		return
	}

	q := r.URL.Query()
	staleThreshold := defaultRosterStale
	if v := q.Get("stale_threshold_secs"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			staleThreshold = time.Duration(secs) * time.Second
		}
	}

	entries := s.Presence.Roster(q.Get("sector_id"), staleThreshold)
	out := make([]rosterEntry, 0, len(entries))
	for _, e := range entries {
		re := rosterEntry{Entry: e}
		// Presence may know agents the store has since dropped.
		if a, err := s.store.GetAgent(r.Context(), e.AgentID); err == nil {
			re.Name = a.Name
			re.Role = a.Role
		}
		out = append(out, re)
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": out})
}
