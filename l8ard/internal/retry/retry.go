// Package retry runs calls to external collaborators (object storage, GDAL) with a
// bounded backoff policy.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy controls retry behaviour for external calls.
type Policy interface {
	NextDelay(attempt int, err error) (time.Duration, bool)
}

type backoffPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	retryable   func(error) bool
}

// DefaultPolicy returns a conservative policy: three attempts, exponential backoff from
// 500ms, retrying every error except context cancellation and permanent errors.
func DefaultPolicy() Policy {
	return NewPolicy(3, 500*time.Millisecond, nil)
}

// NewPolicy builds an exponential backoff policy. A nil retryable func retries
// every non-permanent error.
func NewPolicy(maxAttempts int, baseDelay time.Duration, retryable func(error) bool) Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &backoffPolicy{maxAttempts: maxAttempts, baseDelay: baseDelay, retryable: retryable}
}

// Never disables retries.
type Never struct{}

// NextDelay implements Policy.
func (Never) NextDelay(int, error) (time.Duration, bool) {
	return 0, false
}

func (p *backoffPolicy) NextDelay(attempt int, err error) (time.Duration, bool) {
	if attempt >= p.maxAttempts || err == nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return 0, false
	}
	if p.retryable != nil && !p.retryable(err) {
		return 0, false
	}
	return backoff(p.baseDelay, attempt), true
}

func backoff(base time.Duration, attempt int) time.Duration {
	shift := attempt - 1
	if shift < 0 {
		shift = 0
	}
	return base * time.Duration(1<<uint(shift))
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds or the policy gives up, honouring ctx between attempts.
func Do(ctx context.Context, policy Policy, fn func(context.Context) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if policy == nil {
		policy = DefaultPolicy()
	}
	attempt := 1
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		delay, again := policy.NextDelay(attempt, err)
		if !again {
			var perm *permanentError
			if errors.As(err, &perm) {
				return perm.err
			}
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		attempt++
	}
}
