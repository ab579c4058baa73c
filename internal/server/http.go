package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)

	mux.HandleFunc("GET /v1/sectors", s.handleListSectors)
	mux.HandleFunc("POST /v1/sectors", s.handleCreateSector)
	mux.HandleFunc("GET /v1/sectors/{id}", s.handleGetSector)
	mux.HandleFunc("PATCH /v1/sectors/{id}", s.handleUpdateSector)
	mux.HandleFunc("GET /v1/sectors/{id}/candles", s.handleListCandles)
	mux.HandleFunc("POST /v1/sectors/{id}/discussions", s.handleStartDiscussion)

	mux.HandleFunc("GET /v1/agents", s.handleListAgents)
	mux.HandleFunc("POST /v1/agents", s.handleCreateAgent)
	mux.HandleFunc("GET /v1/agents/roster", s.handleAgentRoster)
	mux.HandleFunc("GET /v1/agents/{id}", s.handleGetAgent)

	mux.HandleFunc("GET /v1/discussions", s.handleListDiscussions)
	mux.HandleFunc("GET /v1/discussions/{id}", s.handleGetDiscussion)
	mux.HandleFunc("POST /v1/discussions/{id}/rounds", s.handleRunRound)
	mux.HandleFunc("POST /v1/discussions/{id}/evaluate", s.handleEvaluate)
	mux.HandleFunc("POST /v1/discussions/{id}/advance", s.handleAdvance)
	mux.HandleFunc("POST /v1/discussions/{id}/run", s.handleRun)
	mux.HandleFunc("POST /v1/discussions/{id}/close", s.handleClose)
	mux.HandleFunc("POST /v1/discussions/{id}/messages", s.handleAddMessage)
	mux.HandleFunc("POST /v1/discussions/{id}/items", s.handleSubmitItem)
	mux.HandleFunc("GET /v1/discussions/{id}/events", s.handleGetEvents)

	mux.HandleFunc("GET /v1/executions", s.handleListExecutions)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	return AuthMiddleware(authToken, mux)
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody decodes a JSON request body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return inputError("invalid JSON body: " + err.Error())
	}
	return nil
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, inputError(key + " must be a non-negative integer")
	}
	return n, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeErr maps err to a status code and writes it. Validation errors carry
// their field list.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	if fields := validationFields(err); fields != nil {
		writeJSON(w, status, map[string]any{"error": err.Error(), "fields": fields})
		return
	}
	writeError(w, status, err.Error())
}
