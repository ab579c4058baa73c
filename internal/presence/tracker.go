// Package presence tracks live agent activity for the agent roster.
//
// The engine records an Activity every time an agent proposes or posts a
// message. A background reaper goroutine marks agents that have been quiet
// for longer than a configurable threshold as offline, and the OnIdle
// callback lets the caller persist that transition.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Activity kinds recorded by the engine.
const (
	KindProposal = "proposal"
	KindMessage  = "message"
	KindRevision = "revision"
	KindItem     = "item"
)

// Entry represents a single agent's live presence state.
type Entry struct {
	AgentID       string    `json:"agent_id"`
	SectorID      string    `json:"sector_id,omitempty"`
	DiscussionID  string    `json:"discussion_id,omitempty"` // last discussion the agent acted in
	LastSeen      time.Time `json:"last_seen"`
	FirstSeen     time.Time `json:"first_seen"`
	LastKind      string    `json:"last_kind"`
	Detail        string    `json:"detail,omitempty"` // e.g. "BUY TECH 20%"
	IdleSecs      float64   `json:"idle_secs"`
	ActivityCount int64     `json:"activity_count"`
	FallbackCount int64     `json:"fallback_count"` // proposals that degraded to the default
	Offline       bool      `json:"offline,omitempty"`
	OfflineSince  time.Time `json:"offline_since,omitempty"`
}

// Activity is one observed action by an agent.
type Activity struct {
	AgentID      string
	SectorID     string
	DiscussionID string
	Kind         string
	Detail       string
	Fallback     bool
}

// ReaperConfig configures the background idle-agent reaper.
type ReaperConfig struct {
	// IdleThreshold is how long an agent must be quiet before being marked offline.
	// Default: 15 minutes.
	IdleThreshold time.Duration

	// EvictAfter is how long after going offline before an agent is removed
	// from the in-memory map.
	// Default: 30 minutes.
	EvictAfter time.Duration

	// SweepInterval is how often the reaper scans for idle agents.
	// Default: 60 seconds.
	SweepInterval time.Duration

	// OnIdle is called for each agent newly marked offline.
	// Called outside the lock.
	OnIdle func(agentID, sectorID string)
}

// Tracker maintains an in-memory roster of active agents.
type Tracker struct {
	mu      sync.RWMutex
	agents  map[string]*agentState
	started time.Time
	now     func() time.Time

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type agentState struct {
	sectorID      string
	discussionID  string
	firstSeen     time.Time
	lastSeen      time.Time
	lastKind      string
	detail        string
	activityCount int64
	fallbackCount int64
	offline       bool
	offlineSince  time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the tracker's time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a new presence tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		agents: make(map[string]*agentState),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.started = t.now()
	return t
}

// Record updates the presence state for an agent.
func (t *Tracker) Record(a Activity) {
	if a.AgentID == "" {
		return
	}

	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.agents[a.AgentID]
	if !ok {
		state = &agentState{firstSeen: now}
		t.agents[a.AgentID] = state
	}

	if state.offline {
		slog.Info("presence: agent back online", "agent_id", a.AgentID)
		state.offline = false
		state.offlineSince = time.Time{}
	}

	state.lastSeen = now
	state.lastKind = a.Kind
	state.activityCount++
	if a.Fallback {
		state.fallbackCount++
	}
	if a.SectorID != "" {
		state.sectorID = a.SectorID
	}
	if a.DiscussionID != "" {
		state.discussionID = a.DiscussionID
	}
	if a.Detail != "" {
		state.detail = a.Detail
	}
}

// Roster returns a snapshot of all tracked agents, sorted by most recently active.
// sectorID filters to one sector when non-empty. staleThreshold excludes agents
// quiet for longer than it; pass 0 to include all agents ever seen.
func (t *Tracker) Roster(sectorID string, staleThreshold time.Duration) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	entries := make([]Entry, 0, len(t.agents))

	for id, state := range t.agents {
		if sectorID != "" && state.sectorID != sectorID {
			continue
		}
		idle := now.Sub(state.lastSeen)
		if staleThreshold > 0 && idle > staleThreshold {
			continue
		}

		firstSeen := state.firstSeen
		if firstSeen.IsZero() {
			firstSeen = t.started
		}

		entries = append(entries, Entry{
			AgentID:       id,
			SectorID:      state.sectorID,
			DiscussionID:  state.discussionID,
			LastSeen:      state.lastSeen,
			FirstSeen:     firstSeen,
			LastKind:      state.lastKind,
			Detail:        state.detail,
			IdleSecs:      idle.Seconds(),
			ActivityCount: state.activityCount,
			FallbackCount: state.fallbackCount,
			Offline:       state.offline,
			OfflineSince:  state.offlineSince,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastSeen.Equal(entries[j].LastSeen) {
			return entries[i].AgentID < entries[j].AgentID
		}
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})

	return entries
}

// StartReaper launches a background goroutine that periodically marks idle
// agents offline. Call Stop() to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.IdleThreshold == 0 {
		cfg.IdleThreshold = 15 * time.Minute
	}
	if cfg.EvictAfter == 0 {
		cfg.EvictAfter = 30 * time.Minute
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 60 * time.Second
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	slog.Info("presence: reaper started",
		"idle_threshold", cfg.IdleThreshold,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig) {
	now := t.now()

	type idleAgent struct {
		id       string
		sectorID string
	}
	var newlyIdle []idleAgent

	t.mu.Lock()
	for id, state := range t.agents {
		if state.offline {
			if !state.offlineSince.IsZero() && now.Sub(state.offlineSince) > cfg.EvictAfter {
				delete(t.agents, id)
			}
			continue
		}
		if now.Sub(state.lastSeen) > cfg.IdleThreshold {
			state.offline = true
			state.offlineSince = now
			newlyIdle = append(newlyIdle, idleAgent{id: id, sectorID: state.sectorID})
		}
	}
	t.mu.Unlock()

	for _, a := range newlyIdle {
		slog.Info("presence: reaper marked agent offline",
			"agent_id", a.id,
			"threshold", cfg.IdleThreshold)
		if cfg.OnIdle != nil {
			cfg.OnIdle(a.id, a.sectorID)
		}
	}
}
