package proposal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ayushsreejith06/max/internal/model"
)

// ErrEmptyProposal is returned by sources that received an empty response.
var ErrEmptyProposal = errors.New("empty proposal")

// newBackOff builds the retry schedule; tests swap it for a zero backoff.
var newBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 4 * time.Second
	return b
}

type retrySource struct {
	next     Source
	maxTries uint
}

// WithRetry wraps src so transient failures are retried with exponential
// backoff, up to maxTries attempts in total. Context cancellation stops the
// retries immediately.
func WithRetry(src Source, maxTries uint) Source {
	if maxTries <= 1 {
		return src
	}
	return &retrySource{next: src, maxTries: maxTries}
}

func (r *retrySource) Generate(ctx context.Context, agent *model.Agent, sector *model.Sector) ([]byte, error) {
	attempt := 0
	return backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		out, err := r.next.Generate(ctx, agent, sector)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			slog.Warn("proposal attempt failed", "agent_id", agent.ID, "attempt", attempt, "err", err)
			return nil, err
		}
		return out, nil
	}, backoff.WithBackOff(newBackOff()), backoff.WithMaxTries(r.maxTries))
}
