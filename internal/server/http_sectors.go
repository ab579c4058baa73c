package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/ayushsreejith06/max/internal/gate"
	"github.com/ayushsreejith06/max/internal/idgen"
	"github.com/ayushsreejith06/max/internal/model"
)

// sectorInput is the body of POST and PATCH /v1/sectors. Nil fields are left
// unchanged on PATCH.
type sectorInput struct {
	Name           *string  `json:"name"`
	Symbol         *string  `json:"symbol"`
	Description    *string  `json:"description"`
	AllowedSymbols []string `json:"allowed_symbols"`
	Balance        *float64 `json:"balance"`
	BaseRisk       *float64 `json:"base_risk"`
	RiskAppetite   *float64 `json:"risk_appetite"`
	MaxTradeAmount *float64 `json:"max_trade_amount"`
	CurrentPrice   *float64 `json:"current_price"`
}

func (in sectorInput) apply(sec *model.Sector) {
	if in.Name != nil {
		sec.Name = strings.TrimSpace(*in.Name)
	}
	if in.Symbol != nil {
		sec.Symbol = strings.ToUpper(strings.TrimSpace(*in.Symbol))
	}
	if in.Description != nil {
		sec.Description = *in.Description
	}
	if in.AllowedSymbols != nil {
		sec.AllowedSymbols = make([]string, 0, len(in.AllowedSymbols))
		for _, sym := range in.AllowedSymbols {
			sec.AllowedSymbols = append(sec.AllowedSymbols, strings.ToUpper(strings.TrimSpace(sym)))
		}
	}
	if in.Balance != nil {
		sec.Balance = *in.Balance
	}
	if in.BaseRisk != nil {
		sec.BaseRisk = *in.BaseRisk
	}
	if in.RiskAppetite != nil {
		sec.RiskAppetite = *in.RiskAppetite
	}
	if in.MaxTradeAmount != nil {
		sec.MaxTradeAmount = *in.MaxTradeAmount
	}
	if in.CurrentPrice != nil {
		sec.CurrentPrice = *in.CurrentPrice
	}
}

// handleListSectors handles GET /v1/sectors.
func (s *Server) handleListSectors(w http.ResponseWriter, r *http.Request) {
	sectors, err := s.store.ListSectors(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if sectors == nil {
		sectors = []*model.Sector{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sectors": sectors})
}

// handleCreateSector handles POST /v1/sectors.
func (s *Server) handleCreateSector(w http.ResponseWriter, r *http.Request) {
	var in sectorInput
	if err := decodeBody(r, &in); err != nil {
		writeErr(w, r, err)
		return
	}

	now := time.Now().UTC()
	sec := &model.Sector{
		ID:        idgen.Must(idgen.PrefixSector),
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.apply(sec)
	if err := model.ValidateSector(sec); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.store.CreateSector(r.Context(), sec); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sec)
}

// handleGetSector handles GET /v1/sectors/{id}.
func (s *Server) handleGetSector(w http.ResponseWriter, r *http.Request) {
	sec, err := s.store.GetSector(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

// handleUpdateSector handles PATCH /v1/sectors/{id}.
func (s *Server) handleUpdateSector(w http.ResponseWriter, r *http.Request) {
	var in sectorInput
	if err := decodeBody(r, &in); err != nil {
		writeErr(w, r, err)
		return
	}

	sec, err := s.store.GetSector(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	in.apply(sec)
	if err := model.ValidateSector(sec); err != nil {
		writeErr(w, r, err)
		return
	}
	sec.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateSector(r.Context(), sec); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

// handleListCandles handles GET /v1/sectors/{id}/candles. Candles come back
// oldest first; limit keeps the most recent ones.
func (s *Server) handleListCandles(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetSector(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}

	var (
		filter model.CandleFilter
		err    error
	)
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		writeErr(w, r, err)
		return
	}
	if v := r.URL.Query().Get("since"); v != "" {
		if filter.Since, err = time.Parse(time.RFC3339, v); err != nil {
			writeErr(w, r, inputError("since must be an RFC 3339 timestamp"))
			return
		}
	}

	candles, err := s.store.ListCandles(r.Context(), id, filter)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if candles == nil {
		candles = []*model.Candle{}
	}
	writeJSON(w, http.StatusOK, candles)
}

// handleStartDiscussion handles POST /v1/sectors/{id}/discussions. A
// declined start is a 409 carrying the gate's reason.
func (s *Server) handleStartDiscussion(w http.ResponseWriter, r *http.Request) {
	res := s.gate.TryStart(r.Context(), r.PathValue("id"))
	switch {
	case res.Started:
		writeJSON(w, http.StatusCreated, res)
	case res.Reason == gate.ReasonSectorNotFound:
		writeJSON(w, http.StatusNotFound, res)
	case res.Reason == gate.ReasonStoreError:
		writeJSON(w, http.StatusInternalServerError, res)
	default:
		writeJSON(w, http.StatusConflict, res)
	}
}
