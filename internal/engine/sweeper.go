package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ayushsreejith06/max/internal/model"
)

// Sweeper periodically expires items in every open discussion so stalled
// discussions resolve without a driver.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper that runs every interval.
func NewSweeper(e *Engine, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{engine: e, interval: interval, logger: logger}
}

// Start begins sweeping. It sweeps once immediately, then on each tick.
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the sweeper and waits for the current sweep to finish.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sweeper) run(ctx context.Context) {
	s.SweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce expires every non-closed discussion and returns how many it
// closed.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	open, _, err := s.engine.store.ListDiscussions(ctx, model.DiscussionFilter{
		Status: []model.DiscussionStatus{
			model.DiscussionOpen,
			model.DiscussionInProgress,
			model.DiscussionDecided,
		},
	})
	if err != nil {
		s.logger.Error("sweep list failed", "err", err)
		return 0
	}

	closed := 0
	for _, d := range open {
		if ctx.Err() != nil {
			return closed
		}
		got, err := s.engine.Expire(ctx, d.ID)
		switch {
		case errors.Is(err, ErrDiscussionClosed):
			// closed by another writer since the listing
		case err != nil:
			s.logger.Warn("sweep expire failed", "discussion_id", d.ID, "err", err)
		case got.Status.IsClosed():
			closed++
		}
	}
	if closed > 0 {
		s.logger.Info("sweep completed", "checked", len(open), "closed", closed)
	}
	s.retryHandoffs(ctx)
	return closed
}

// handoffRetryWindow bounds how many recently closed discussions a sweep
// checks for failed execution handoffs.
const handoffRetryWindow = 200

func (s *Sweeper) retryHandoffs(ctx context.Context) {
	closed, _, err := s.engine.store.ListDiscussions(ctx, model.DiscussionFilter{
		Status: []model.DiscussionStatus{model.DiscussionClosed},
		Limit:  handoffRetryWindow,
	})
	if err != nil {
		s.logger.Error("sweep list closed failed", "err", err)
		return
	}
	for _, d := range closed {
		if ctx.Err() != nil {
			return
		}
		if !hasPendingHandoff(d) {
			continue
		}
		if n, err := s.engine.RetryHandoff(ctx, d.ID); err != nil {
			s.logger.Warn("sweep handoff retry failed", "discussion_id", d.ID, "err", err)
		} else if n > 0 {
			s.logger.Info("sweep retried handoff", "discussion_id", d.ID, "items", n)
		}
	}
}

func hasPendingHandoff(d *model.Discussion) bool {
	for _, it := range d.Checklist {
		if it.Status == model.ItemApproved && it.ExecutionSubmittedAt == nil {
			return true
		}
	}
	return false
}
