package model

import "time"

// Candle is one sector index sample. Candles are keyed by sector and
// timestamp; writing the same key again replaces the value.
type Candle struct {
	SectorID  string    `json:"sector_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Quote is the market snapshot kept on a sector.
type Quote struct {
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
}

// CandleFilter selects candles for one sector.
type CandleFilter struct {
	Since time.Time // zero means no lower bound
	Limit int       // most recent Limit candles; 0 means all
}

// Apply copies q onto the sector's market fields.
func (s *Sector) Apply(q Quote) {
	s.CurrentPrice = q.Price
	s.Change = q.Change
	s.ChangePercent = q.ChangePercent
	s.Volume = q.Volume
}
