// Package retry runs an operation with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

var (
	ErrExhausted          = errors.New("retry attempts exhausted")
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")
)

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the fraction (0..1) of each delay that is randomized.
	Jitter float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 10,
		BaseDelay:   3 * time.Second,
		MaxDelay:    60 * time.Second,
		Jitter:      0.2,
	}
}

type Result[T any] struct {
	Value    T
	Attempts int
	Err      error
}

func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Delay returns the wait before the attempt following the given one (1-based),
// before jitter is applied.
func (p Policy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

func (p Policy) jittered(attempt int) time.Duration {
	delay := p.Delay(attempt)
	if p.Jitter <= 0 || delay <= 0 {
		return delay
	}
	j := p.Jitter
	if j > 1 {
		j = 1
	}
	spread := float64(delay) * j
	return time.Duration(float64(delay) - spread + rand.Float64()*2*spread)
}

// Do calls fn until it succeeds, the attempts run out or ctx is done.
// On exhaustion the result error wraps both ErrExhausted and the last error.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) Result[T] {
	var res Result[T]
	if p.MaxAttempts <= 0 {
		res.Err = ErrInvalidMaxAttempts
		return res
	}
	logger := logutil.GetLogger(ctx)
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}
		res.Attempts = attempt
		value, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Debug("operation succeeded after retry", zap.Int("attempt", attempt))
			}
			res.Value = value
			return res
		}
		lastErr = err
		if errors.Is(err, ErrPermanent) {
			break
		}
		if attempt == p.MaxAttempts {
			break
		}
		wait := p.jittered(attempt)
		logger.Debug("operation failed, will retry",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.MaxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			res.Err = ctx.Err()
			return res
		case <-timer.C:
		}
	}
	res.Err = fmt.Errorf("%w after %d attempts: %w", ErrExhausted, res.Attempts, lastErr)
	return res
}

// ErrPermanent marks an error that must not be retried. Wrap it with
// Permanent so the original error stays reachable through errors.Is/As.
var ErrPermanent = errors.New("permanent error")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() []error { return []error{ErrPermanent, e.err} }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
