// Package txretry retries store transactions that lost a write conflict.
package txretry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// ErrConflict is returned (wrapped) by stores when a transaction was aborted
// because a concurrent writer touched the same rows. The transaction had no effect.
var ErrConflict = errors.New("transient transaction conflict")

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultPolicy returns 3 attempts starting at 25ms and doubling.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Backoff: 25 * time.Millisecond}
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Backoff
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = 20 * p.Backoff
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.attempts()-1)), ctx)
}

// Do runs fn until it succeeds, fails with a non-conflict error, or the
// attempts are exhausted. The final conflict is returned wrapped in ErrConflict.
func Do(ctx context.Context, p Policy, op string, fn func() error) error {
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err != nil && !errors.Is(err, ErrConflict) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx), func(err error, next time.Duration) {
		log.Debug().
			Str("op", op).
			Int("attempt", attempt).
			Dur("next", next).
			Err(err).
			Msg("transaction conflict, retrying")
	})

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return err
	case errors.Is(err, ErrConflict):
		return fmt.Errorf("%w: %s gave up after %d attempts", ErrConflict, op, attempt)
	default:
		return err
	}
}
