package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/ayushsreejith06/max/internal/store"
)

// Destination is the interface for an export target (S3, git, etc.).
type Destination interface {
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
}

// Result summarises one export pass.
type Result struct {
	Written   int // destinations that accepted the dump
	Unchanged int // destinations skipped because they already hold this content
	Failed    int
	Bytes     int
}

// Scheduler pushes the JSONL dump to its destinations on an interval. A
// destination is only written when the store's content differs from what
// it last accepted; a failed write is retried on the next pass.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	accepted []string // content digest per destination

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler over the given destinations. A zero
// interval is fine when only ExportOnce is used.
func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
		accepted:     make([]string, len(destinations)),
	}
}

// Start exports once right away, then on every tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.ExportOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.ExportOnce(ctx)
			}
		}
	}()
}

// Stop cancels the scheduler and waits for a running export.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// ExportOnce dumps the store and writes it to every destination that does
// not already hold the same content.
func (s *Scheduler) ExportOnce(ctx context.Context) Result {
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.store, &buf); err != nil {
		s.logger.Error("export failed", "err", err)
		return Result{Failed: len(s.destinations)}
	}
	data := buf.Bytes()
	digest := contentDigest(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	res := Result{Bytes: len(data)}
	for i, dest := range s.destinations {
		if s.accepted[i] == digest {
			res.Unchanged++
			continue
		}
		if err := dest.Write(ctx, data); err != nil {
			s.logger.Error("export destination write failed", "destination", i, "err", err)
			res.Failed++
			continue
		}
		s.accepted[i] = digest
		res.Written++
	}

	if res.Written > 0 || res.Failed > 0 {
		s.logger.Info("export completed", "written", res.Written, "unchanged", res.Unchanged, "failed", res.Failed, "bytes", res.Bytes)
	}
	return res
}

// contentDigest hashes the dump without its header line, whose timestamp
// changes on every pass.
func contentDigest(data []byte) string {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[i+1:]
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
