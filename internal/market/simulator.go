// Package market simulates sector index prices. On every interval boundary
// it writes one candle per sector, moves the sector's quote and publishes
// both, so proposal sources always see a live change percent.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ayushsreejith06/max/internal/events"
	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/store"
)

const (
	// DefaultInterval is the candle width.
	DefaultInterval = 5 * time.Minute

	// BackfillWindow is how much history Backfill writes into an empty store.
	BackfillWindow = 24 * time.Hour

	defaultBasePrice = 100.0
)

// Simulator writes synthetic candles for every sector.
type Simulator struct {
	store     store.Store
	publisher events.Publisher
	interval  time.Duration
	walk      *Walk
	now       func() time.Time
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithPublisher sets where candle and quote events go.
func WithPublisher(p events.Publisher) Option {
	return func(s *Simulator) { s.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// WithRand seeds the price walk, for reproducible runs.
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulator) { s.walk = NewWalk(rng) }
}

// New creates a simulator that ticks every interval. A non-positive interval
// uses DefaultInterval.
func New(s store.Store, interval time.Duration, opts ...Option) *Simulator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	sim := &Simulator{
		store:     s,
		publisher: &events.NoopPublisher{},
		interval:  interval,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(sim)
	}
	if sim.walk == nil {
		sim.walk = NewWalk(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
	}
	return sim
}

// Bucket truncates t to the start of its candle.
func (s *Simulator) Bucket(t time.Time) time.Time {
	return t.UTC().Truncate(s.interval)
}

// Start backfills when asked, then ticks on every interval boundary.
func (s *Simulator) Start(backfill bool) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if backfill {
			s.Backfill(ctx)
		}
		s.run(ctx)
	}()
}

// Stop cancels the simulator and waits for the current tick to finish.
func (s *Simulator) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Simulator) run(ctx context.Context) {
	for {
		now := s.now()
		next := s.Bucket(now).Add(s.interval)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.TickOnce(ctx, next)
		}
	}
}

// TickOnce writes the candle at ts for every sector and publishes it. A
// failing sector does not stop the others. It returns how many sectors
// were updated.
func (s *Simulator) TickOnce(ctx context.Context, ts time.Time) int {
	return s.tick(ctx, s.Bucket(ts), true)
}

// Backfill writes BackfillWindow of history ending at the current candle
// when the store holds no candles at all. Backfilled candles are not
// published. It returns how many candles were written.
func (s *Simulator) Backfill(ctx context.Context) int {
	n, err := s.store.CountCandles(ctx)
	if err != nil {
		s.logger.Error("market backfill: count candles", "err", err)
		return 0
	}
	if n > 0 {
		s.logger.Info("market backfill skipped, candles exist", "candles", n)
		return 0
	}

	steps := int(BackfillWindow / s.interval)
	start := s.Bucket(s.now().Add(-BackfillWindow))
	written := 0
	for i := 0; i < steps; i++ {
		if ctx.Err() != nil {
			break
		}
		written += s.tick(ctx, start.Add(time.Duration(i)*s.interval), false)
	}
	s.logger.Info("market backfill completed", "candles", written, "steps", steps)
	return written
}

func (s *Simulator) tick(ctx context.Context, ts time.Time, publish bool) int {
	sectors, err := s.store.ListSectors(ctx)
	if err != nil {
		s.logger.Error("market tick: list sectors", "err", err)
		return 0
	}

	ok := 0
	for _, sec := range sectors {
		if ctx.Err() != nil {
			return ok
		}
		candle, quote, err := s.advance(ctx, sec.ID, ts)
		if err != nil {
			s.logger.Warn("market tick failed", "sector_id", sec.ID, "err", err)
			continue
		}
		ok++
		if publish {
			s.publish(ctx, candle, quote)
		}
	}
	if publish {
		s.logger.Debug("market tick", "timestamp", ts, "sectors", ok)
	}
	return ok
}

// advance moves one sector to ts inside a transaction so the candle and the
// quote change together.
func (s *Simulator) advance(ctx context.Context, sectorID string, ts time.Time) (model.Candle, model.Quote, error) {
	var (
		candle model.Candle
		quote  model.Quote
	)
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		sec, err := tx.GetSector(ctx, sectorID)
		if err != nil {
			return err
		}

		base := sec.CurrentPrice
		last, err := tx.LastCandle(ctx, sectorID)
		switch {
		case err == nil:
			base = last.Value
		case !errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("last candle: %w", err)
		}
		if base <= 0 {
			base = defaultBasePrice
		}

		price := s.walk.Next(sectorID, base)
		prev := sec.CurrentPrice
		if prev <= 0 {
			prev = base
		}
		quote = model.Quote{
			Price:         price,
			Change:        price - prev,
			ChangePercent: (price - prev) / prev * 100,
			Volume:        s.walk.Volume(),
		}
		candle = model.Candle{SectorID: sectorID, Timestamp: ts, Value: price}

		if err := tx.UpsertCandle(ctx, &candle); err != nil {
			return err
		}
		return tx.SetSectorQuote(ctx, sectorID, quote)
	})
	return candle, quote, err
}

func (s *Simulator) publish(ctx context.Context, c model.Candle, q model.Quote) {
	if err := s.publisher.Publish(ctx, events.TopicMarketCandle, events.MarketCandle{SectorID: c.SectorID, Candle: c}); err != nil {
		s.logger.Warn("failed to publish candle", "sector_id", c.SectorID, "err", err)
	}
	if err := s.publisher.Publish(ctx, events.TopicMarketUpdate, events.MarketUpdate{SectorID: c.SectorID, Quote: q, Timestamp: c.Timestamp}); err != nil {
		s.logger.Warn("failed to publish market update", "sector_id", c.SectorID, "err", err)
	}
}
