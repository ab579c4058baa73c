// Package memory implements store.Store in process memory. It backs the
// server when no database is configured and most engine tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/store"
)

// Store is an in-memory store.Store. Records are deep-copied on the way in
// and on the way out, so callers never share state with the store.
type Store struct {
	mu sync.Mutex
	d  *data
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{d: newData()}
}

func (s *Store) CreateDiscussion(ctx context.Context, d *model.Discussion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.createDiscussion(d)
}

func (s *Store) GetDiscussion(ctx context.Context, id string) (*model.Discussion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.getDiscussion(id)
}

func (s *Store) SaveDiscussion(ctx context.Context, d *model.Discussion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.saveDiscussion(d)
}

func (s *Store) ListDiscussions(ctx context.Context, filter model.DiscussionFilter) ([]*model.Discussion, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.listDiscussions(filter)
}

func (s *Store) CreateSector(ctx context.Context, sec *model.Sector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.createSector(sec)
}

func (s *Store) GetSector(ctx context.Context, id string) (*model.Sector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.getSector(id)
}

func (s *Store) ListSectors(ctx context.Context) ([]*model.Sector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.listSectors(), nil
}

func (s *Store) UpdateSector(ctx context.Context, sec *model.Sector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.updateSector(sec)
}

func (s *Store) CreateAgent(ctx context.Context, a *model.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.createAgent(a)
}

func (s *Store) GetAgent(ctx context.Context, id string) (*model.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.getAgent(id)
}

func (s *Store) ListAgents(ctx context.Context, sectorID string) ([]*model.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.listAgents(sectorID), nil
}

func (s *Store) UpdateAgent(ctx context.Context, a *model.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.updateAgent(a)
}

func (s *Store) RecordEvent(ctx context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.recordEvent(e)
	return nil
}

func (s *Store) GetEvents(ctx context.Context, discussionID string) ([]*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.getEvents(discussionID), nil
}

func (s *Store) AddExecution(ctx context.Context, e *model.ExecutionEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.addExecution(e), nil
}

func (s *Store) ListExecutions(ctx context.Context, sectorID string) ([]*model.ExecutionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.listExecutions(sectorID), nil
}

func (s *Store) SetExecutionStatus(ctx context.Context, id string, status model.ExecutionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.setExecutionStatus(id, status)
}

func (s *Store) UpsertCandle(ctx context.Context, c *model.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.upsertCandle(c)
}

func (s *Store) LastCandle(ctx context.Context, sectorID string) (*model.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.lastCandle(sectorID)
}

func (s *Store) ListCandles(ctx context.Context, sectorID string, filter model.CandleFilter) ([]*model.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.listCandles(sectorID, filter), nil
}

func (s *Store) CountCandles(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.countCandles(), nil
}

func (s *Store) SetSectorQuote(ctx context.Context, sectorID string, q model.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.setSectorQuote(sectorID, q)
}

// RunInTransaction holds the store lock for the duration of fn and restores
// the prior state if fn fails. fn must only use the tx it is given; calling
// back into s deadlocks.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.d.clone()
	if err := fn(&txStore{d: s.d}); err != nil {
		s.d = backup
		return err
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// txStore implements store.Store over the parent's data without locking;
// the parent holds its lock for the whole transaction.
type txStore struct {
	d *data
}

var _ store.Store = (*txStore)(nil)

func (t *txStore) CreateDiscussion(_ context.Context, d *model.Discussion) error {
	return t.d.createDiscussion(d)
}

func (t *txStore) GetDiscussion(_ context.Context, id string) (*model.Discussion, error) {
	return t.d.getDiscussion(id)
}

func (t *txStore) SaveDiscussion(_ context.Context, d *model.Discussion) error {
	return t.d.saveDiscussion(d)
}

func (t *txStore) ListDiscussions(_ context.Context, filter model.DiscussionFilter) ([]*model.Discussion, int, error) {
	return t.d.listDiscussions(filter)
}

func (t *txStore) CreateSector(_ context.Context, s *model.Sector) error {
	return t.d.createSector(s)
}

func (t *txStore) GetSector(_ context.Context, id string) (*model.Sector, error) {
	return t.d.getSector(id)
}

func (t *txStore) ListSectors(context.Context) ([]*model.Sector, error) {
	return t.d.listSectors(), nil
}

func (t *txStore) UpdateSector(_ context.Context, s *model.Sector) error {
	return t.d.updateSector(s)
}

func (t *txStore) CreateAgent(_ context.Context, a *model.Agent) error {
	return t.d.createAgent(a)
}

func (t *txStore) GetAgent(_ context.Context, id string) (*model.Agent, error) {
	return t.d.getAgent(id)
}

func (t *txStore) ListAgents(_ context.Context, sectorID string) ([]*model.Agent, error) {
	return t.d.listAgents(sectorID), nil
}

func (t *txStore) UpdateAgent(_ context.Context, a *model.Agent) error {
	return t.d.updateAgent(a)
}

func (t *txStore) RecordEvent(_ context.Context, e *model.Event) error {
	t.d.recordEvent(e)
	return nil
}

func (t *txStore) GetEvents(_ context.Context, discussionID string) ([]*model.Event, error) {
	return t.d.getEvents(discussionID), nil
}

func (t *txStore) AddExecution(_ context.Context, e *model.ExecutionEntry) (bool, error) {
	return t.d.addExecution(e), nil
}

func (t *txStore) ListExecutions(_ context.Context, sectorID string) ([]*model.ExecutionEntry, error) {
	return t.d.listExecutions(sectorID), nil
}

func (t *txStore) SetExecutionStatus(_ context.Context, id string, status model.ExecutionStatus) error {
	return t.d.setExecutionStatus(id, status)
}

func (t *txStore) UpsertCandle(_ context.Context, c *model.Candle) error {
	return t.d.upsertCandle(c)
}

func (t *txStore) LastCandle(_ context.Context, sectorID string) (*model.Candle, error) {
	return t.d.lastCandle(sectorID)
}

func (t *txStore) ListCandles(_ context.Context, sectorID string, filter model.CandleFilter) ([]*model.Candle, error) {
	return t.d.listCandles(sectorID, filter), nil
}

func (t *txStore) CountCandles(context.Context) (int, error) {
	return t.d.countCandles(), nil
}

func (t *txStore) SetSectorQuote(_ context.Context, sectorID string, q model.Quote) error {
	return t.d.setSectorQuote(sectorID, q)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (t *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

// Close is a no-op for a transaction store.
func (t *txStore) Close() error {
	return nil
}

type data struct {
	discussions map[string]*model.Discussion
	sectors     map[string]*model.Sector
	agents      map[string]*model.Agent
	events      []*model.Event
	executions  []*model.ExecutionEntry
	execByItem  map[string]bool
	candles     map[string][]model.Candle // per sector, ordered by timestamp
}

func newData() *data {
	return &data{
		discussions: make(map[string]*model.Discussion),
		sectors:     make(map[string]*model.Sector),
		agents:      make(map[string]*model.Agent),
		execByItem:  make(map[string]bool),
		candles:     make(map[string][]model.Candle),
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.discussions {
		c.discussions[k] = v.Clone()
	}
	for k, v := range d.sectors {
		c.sectors[k] = copySector(v)
	}
	for k, v := range d.agents {
		cp := *v
		c.agents[k] = &cp
	}
	for _, e := range d.events {
		cp := *e
		c.events = append(c.events, &cp)
	}
	for _, e := range d.executions {
		cp := *e
		c.executions = append(c.executions, &cp)
	}
	for k, v := range d.execByItem {
		c.execByItem[k] = v
	}
	for k, v := range d.candles {
		c.candles[k] = append([]model.Candle(nil), v...)
	}
	return c
}

func (d *data) createDiscussion(disc *model.Discussion) error {
	if _, ok := d.discussions[disc.ID]; ok {
		return fmt.Errorf("create discussion %s: already exists", disc.ID)
	}
	d.discussions[disc.ID] = disc.Clone()
	return nil
}

func (d *data) getDiscussion(id string) (*model.Discussion, error) {
	disc, ok := d.discussions[id]
	if !ok {
		return nil, fmt.Errorf("discussion %s: %w", id, store.ErrNotFound)
	}
	return disc.Clone(), nil
}

func (d *data) saveDiscussion(disc *model.Discussion) error {
	if _, ok := d.discussions[disc.ID]; !ok {
		return fmt.Errorf("save discussion %s: %w", disc.ID, store.ErrNotFound)
	}
	d.discussions[disc.ID] = disc.Clone()
	return nil
}

func (d *data) listDiscussions(filter model.DiscussionFilter) ([]*model.Discussion, int, error) {
	var matched []*model.Discussion
	for _, disc := range d.discussions {
		if filter.Matches(disc) {
			matched = append(matched, disc)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	out := make([]*model.Discussion, len(matched))
	for i, disc := range matched {
		out[i] = disc.Clone()
	}
	return out, total, nil
}

func copySector(s *model.Sector) *model.Sector {
	cp := *s
	cp.AllowedSymbols = append([]string(nil), s.AllowedSymbols...)
	if s.LastDiscussionAt != nil {
		t := *s.LastDiscussionAt
		cp.LastDiscussionAt = &t
	}
	return &cp
}

func (d *data) createSector(s *model.Sector) error {
	if _, ok := d.sectors[s.ID]; ok {
		return fmt.Errorf("create sector %s: already exists", s.ID)
	}
	d.sectors[s.ID] = copySector(s)
	return nil
}

func (d *data) getSector(id string) (*model.Sector, error) {
	s, ok := d.sectors[id]
	if !ok {
		return nil, fmt.Errorf("sector %s: %w", id, store.ErrNotFound)
	}
	return copySector(s), nil
}

func (d *data) listSectors() []*model.Sector {
	out := make([]*model.Sector, 0, len(d.sectors))
	for _, s := range d.sectors {
		out = append(out, copySector(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (d *data) updateSector(s *model.Sector) error {
	if _, ok := d.sectors[s.ID]; !ok {
		return fmt.Errorf("update sector %s: %w", s.ID, store.ErrNotFound)
	}
	d.sectors[s.ID] = copySector(s)
	return nil
}

func (d *data) createAgent(a *model.Agent) error {
	if _, ok := d.agents[a.ID]; ok {
		return fmt.Errorf("create agent %s: already exists", a.ID)
	}
	cp := *a
	d.agents[a.ID] = &cp
	return nil
}

func (d *data) getAgent(id string) (*model.Agent, error) {
	a, ok := d.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", id, store.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (d *data) listAgents(sectorID string) []*model.Agent {
	var out []*model.Agent
	for _, a := range d.agents {
		if sectorID != "" && a.SectorID != sectorID {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (d *data) updateAgent(a *model.Agent) error {
	if _, ok := d.agents[a.ID]; !ok {
		return fmt.Errorf("update agent %s: %w", a.ID, store.ErrNotFound)
	}
	cp := *a
	d.agents[a.ID] = &cp
	return nil
}

func (d *data) recordEvent(e *model.Event) {
	cp := *e
	cp.Payload = append([]byte(nil), e.Payload...)
	d.events = append(d.events, &cp)
}

func (d *data) getEvents(discussionID string) []*model.Event {
	var out []*model.Event
	for _, e := range d.events {
		if e.DiscussionID == discussionID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

func (d *data) addExecution(e *model.ExecutionEntry) bool {
	if d.execByItem[e.ItemID] {
		return false
	}
	cp := *e
	d.executions = append(d.executions, &cp)
	d.execByItem[e.ItemID] = true
	return true
}

func (d *data) listExecutions(sectorID string) []*model.ExecutionEntry {
	var out []*model.ExecutionEntry
	for _, e := range d.executions {
		if sectorID != "" && e.SectorID != sectorID {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out
}

func (d *data) setExecutionStatus(id string, status model.ExecutionStatus) error {
	for _, e := range d.executions {
		if e.ID == id {
			e.Status = status
			return nil
		}
	}
	return fmt.Errorf("execution %s: %w", id, store.ErrNotFound)
}

func (d *data) upsertCandle(c *model.Candle) error {
	if _, ok := d.sectors[c.SectorID]; !ok {
		return fmt.Errorf("candle for sector %s: %w", c.SectorID, store.ErrNotFound)
	}
	list := d.candles[c.SectorID]
	i := sort.Search(len(list), func(i int) bool { return !list[i].Timestamp.Before(c.Timestamp) })
	if i < len(list) && list[i].Timestamp.Equal(c.Timestamp) {
		list[i].Value = c.Value
		return nil
	}
	d.candles[c.SectorID] = slices.Insert(list, i, *c)
	return nil
}

func (d *data) lastCandle(sectorID string) (*model.Candle, error) {
	list := d.candles[sectorID]
	if len(list) == 0 {
		return nil, fmt.Errorf("candle for sector %s: %w", sectorID, store.ErrNotFound)
	}
	c := list[len(list)-1]
	return &c, nil
}

func (d *data) listCandles(sectorID string, filter model.CandleFilter) []*model.Candle {
	list := d.candles[sectorID]
	if !filter.Since.IsZero() {
		i := sort.Search(len(list), func(i int) bool { return !list[i].Timestamp.Before(filter.Since) })
		list = list[i:]
	}
	if filter.Limit > 0 && len(list) > filter.Limit {
		list = list[len(list)-filter.Limit:]
	}
	out := make([]*model.Candle, len(list))
	for i := range list {
		c := list[i]
		out[i] = &c
	}
	return out
}

func (d *data) countCandles() int {
	n := 0
	for _, list := range d.candles {
		n += len(list)
	}
	return n
}

func (d *data) setSectorQuote(sectorID string, q model.Quote) error {
	s, ok := d.sectors[sectorID]
	if !ok {
		return fmt.Errorf("sector %s: %w", sectorID, store.ErrNotFound)
	}
	s.Apply(q)
	return nil
}
