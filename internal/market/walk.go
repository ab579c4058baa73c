package market

import (
	"math"
	"math/rand/v2"
	"sync"
)

// Trend is the bias of a sector's random walk.
type Trend string

const (
	TrendUp       Trend = "up"
	TrendDown     Trend = "down"
	TrendVolatile Trend = "volatile"
)

var trends = []Trend{TrendUp, TrendDown, TrendVolatile}

const (
	minPrice = 0.01

	trendWeight    = 0.2
	waveAmplitude  = 0.3
	waveStep       = 0.1
	momentumWeight = 0.2
	momentumDecay  = 0.7
	noiseWeight    = 0.3
	trendFlipOdds  = 0.1
)

type walkState struct {
	trend    Trend
	phase    float64
	momentum float64
}

// Walk generates per-sector prices from a biased random walk smoothed by a
// sine wave and carried momentum. Every step moves the price by well under
// one percent. It is safe for concurrent use.
type Walk struct {
	mu     sync.Mutex
	rng    *rand.Rand
	states map[string]*walkState
}

// NewWalk creates a walk drawing from rng.
func NewWalk(rng *rand.Rand) *Walk {
	return &Walk{rng: rng, states: make(map[string]*walkState)}
}

// Next returns the price that follows base for sectorID. The result never
// drops below one cent.
func (w *Walk) Next(sectorID string, base float64) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	st, ok := w.states[sectorID]
	if !ok {
		st = &walkState{trend: w.pickTrend(), phase: w.rng.Float64() * 2 * math.Pi}
		w.states[sectorID] = st
	}

	direction := 1.0
	switch st.trend {
	case TrendDown:
		direction = -1
	case TrendVolatile:
		if w.rng.IntN(2) == 0 {
			direction = -1
		}
	}

	st.phase += waveStep
	if st.phase > 2*math.Pi {
		st.phase -= 2 * math.Pi
	}

	noise := w.rng.Float64() - 0.5
	pct := direction*trendWeight +
		math.Sin(st.phase)*waveAmplitude +
		st.momentum*momentumWeight +
		noise*noiseWeight

	st.momentum = st.momentum*momentumDecay + pct*(1-momentumDecay)
	if w.rng.Float64() < trendFlipOdds {
		st.trend = w.pickTrend()
	}

	return math.Max(minPrice, base*(1+pct/100))
}

// Volume returns a synthetic traded volume between 1000 and 10000.
func (w *Walk) Volume() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return 1000 + w.rng.Int64N(9001)
}

// Trend reports the current bias for sectorID, or "" before its first step.
func (w *Walk) Trend(sectorID string) Trend {
	w.mu.Lock()
	defer w.mu.Unlock()
	if st, ok := w.states[sectorID]; ok {
		return st.trend
	}
	return ""
}

func (w *Walk) pickTrend() Trend {
	return trends[w.rng.IntN(len(trends))]
}
