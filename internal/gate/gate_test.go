package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayushsreejith06/max/internal/config"
	"github.com/ayushsreejith06/max/internal/events"
	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/store"
	"github.com/ayushsreejith06/max/internal/store/memory"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type capturePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (c *capturePublisher) Publish(_ context.Context, topic string, _ any) error {
	c.mu.Lock()
	c.topics = append(c.topics, topic)
	c.mu.Unlock()
	return nil
}

func (c *capturePublisher) Close() error { return nil }

// failingStore fails discussion listing.
type failingStore struct {
	*memory.Store
}

func (failingStore) ListDiscussions(context.Context, model.DiscussionFilter) ([]*model.Discussion, int, error) {
	return nil, 0, errors.New("connection reset")
}

func seed(t *testing.T, s store.Store, sector *model.Sector, agents ...*model.Agent) {
	t.Helper()
	ctx := context.Background()
	if err := s.CreateSector(ctx, sector); err != nil {
		t.Fatalf("CreateSector: %v", err)
	}
	for _, a := range agents {
		if err := s.CreateAgent(ctx, a); err != nil {
			t.Fatalf("CreateAgent: %v", err)
		}
	}
}

func healthySector() *model.Sector {
	return &model.Sector{ID: "sec-1", Name: "Technology", Symbol: "TECH", Balance: 10000}
}

func agent(id string, role model.AgentRole, confidence float64) *model.Agent {
	return &model.Agent{ID: id, SectorID: "sec-1", Name: id, Role: role, Status: model.AgentActive, Confidence: confidence}
}

func TestTryStart(t *testing.T) {
	recent := now.Add(-30 * time.Second)
	old := now.Add(-2 * time.Minute)

	for _, tc := range []struct {
		name     string
		sector   *model.Sector
		agents   []*model.Agent
		existing model.DiscussionStatus
		sectorID string
		want     Reason
	}{
		{
			name:   "Started",
			sector: healthySector(),
			agents: []*model.Agent{agent("agt-mgr", model.RoleManager, 0), agent("agt-1", model.RoleTrader, 80)},
		},
		{
			name:   "StartedAfterInterval",
			sector: &model.Sector{ID: "sec-1", Name: "Tech", Symbol: "TECH", Balance: 1, LastDiscussionAt: &old},
			agents: []*model.Agent{agent("agt-1", model.RoleTrader, 65)},
		},
		{
			name:     "SectorNotFound",
			sector:   healthySector(),
			agents:   []*model.Agent{agent("agt-1", model.RoleTrader, 80)},
			sectorID: "sec-missing",
			want:     ReasonSectorNotFound,
		},
		{
			name:     "ActiveDiscussion",
			sector:   healthySector(),
			agents:   []*model.Agent{agent("agt-1", model.RoleTrader, 80)},
			existing: model.DiscussionInProgress,
			want:     ReasonActiveDiscussion,
		},
		{
			name:   "NoBalance",
			sector: &model.Sector{ID: "sec-1", Name: "Tech", Symbol: "TECH"},
			agents: []*model.Agent{agent("agt-1", model.RoleTrader, 80)},
			want:   ReasonNoBalance,
		},
		{
			name:   "OnlyManager",
			sector: healthySector(),
			agents: []*model.Agent{agent("agt-mgr", model.RoleManager, 90)},
			want:   ReasonNoParticipants,
		},
		{
			name:   "LowConfidence",
			sector: healthySector(),
			agents: []*model.Agent{agent("agt-1", model.RoleTrader, 80), agent("agt-2", model.RoleAnalyst, 64.9)},
			want:   ReasonLowConfidence,
		},
		{
			name:   "TooSoon",
			sector: &model.Sector{ID: "sec-1", Name: "Tech", Symbol: "TECH", Balance: 1, LastDiscussionAt: &recent},
			agents: []*model.Agent{agent("agt-1", model.RoleTrader, 80)},
			want:   ReasonTooSoon,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			st := memory.New()
			seed(t, st, tc.sector, tc.agents...)
			if tc.existing != "" {
				if err := st.CreateDiscussion(ctx, &model.Discussion{
					ID: "disc-old", SectorID: "sec-1", Status: tc.existing, CurrentRound: 1,
				}); err != nil {
					t.Fatalf("CreateDiscussion: %v", err)
				}
			}
			pub := &capturePublisher{}
			g := New(st, config.DefaultTuning().Gate, WithClock(func() time.Time { return now }), WithPublisher(pub))

			sectorID := tc.sectorID
			if sectorID == "" {
				sectorID = "sec-1"
			}
			res := g.TryStart(ctx, sectorID)

			if tc.want != "" {
				if res.Started || res.Reason != tc.want || res.Detail == "" {
					t.Fatalf("result = %+v, want declined with %s", res, tc.want)
				}
				if len(pub.topics) != 0 {
					t.Errorf("declined start published %v", pub.topics)
				}
				return
			}

			if !res.Started || res.DiscussionID == "" {
				t.Fatalf("result = %+v, want started", res)
			}
			d, err := st.GetDiscussion(ctx, res.DiscussionID)
			if err != nil {
				t.Fatalf("GetDiscussion: %v", err)
			}
			if d.Status != model.DiscussionOpen || d.CurrentRound != 1 || len(d.Participants) != len(tc.agents) {
				t.Errorf("discussion = %+v", d)
			}
			sec, _ := st.GetSector(ctx, "sec-1")
			if sec.LastDiscussionAt == nil || !sec.LastDiscussionAt.Equal(now) {
				t.Errorf("LastDiscussionAt = %v, want %v", sec.LastDiscussionAt, now)
			}
			if len(pub.topics) != 1 || pub.topics[0] != events.TopicDiscussionCreated {
				t.Errorf("published = %v", pub.topics)
			}
			evs, _ := st.GetEvents(ctx, res.DiscussionID)
			if len(evs) != 1 || evs[0].Topic != events.TopicDiscussionCreated {
				t.Errorf("recorded events = %v", evs)
			}
		})
	}
}

func TestTryStart_ClosedDiscussionDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seed(t, st, healthySector(), agent("agt-1", model.RoleTrader, 80))
	_ = st.CreateDiscussion(ctx, &model.Discussion{ID: "disc-old", SectorID: "sec-1", Status: model.DiscussionClosed})

	g := New(st, config.DefaultTuning().Gate, WithClock(func() time.Time { return now }))
	if res := g.TryStart(ctx, "sec-1"); !res.Started {
		t.Errorf("result = %+v, want started", res)
	}
}

func TestTryStart_StoreError(t *testing.T) {
	st := memory.New()
	seed(t, st, healthySector(), agent("agt-1", model.RoleTrader, 80))

	g := New(failingStore{st}, config.DefaultTuning().Gate)
	res := g.TryStart(context.Background(), "sec-1")
	if res.Started || res.Reason != ReasonStoreError {
		t.Errorf("result = %+v, want store_error", res)
	}
}

func TestTryStart_SerializedPerSector(t *testing.T) {
	st := memory.New()
	seed(t, st, healthySector(), agent("agt-1", model.RoleTrader, 80))
	g := New(st, config.DefaultTuning().Gate, WithClock(func() time.Time { return now }))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started int
		reasons = map[Reason]int{}
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := g.TryStart(context.Background(), "sec-1")
			mu.Lock()
			defer mu.Unlock()
			if res.Started {
				started++
			} else {
				reasons[res.Reason]++
			}
		}()
	}
	wg.Wait()

	if started != 1 || reasons[ReasonActiveDiscussion] != 9 {
		t.Errorf("started = %d, declined = %v; want 1 start and 9 active_discussion", started, reasons)
	}
}
