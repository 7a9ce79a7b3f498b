package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"
)

const (
	defaultBackoffInitial = 200 * time.Millisecond
	defaultBackoffMax     = 2 * time.Second
)

// Policy bounds how often and how fast a failing call is retried.
type Policy struct {
	// MaxRetries is the number of extra attempts after the first one.
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// JitterFrac applies +/- jitter to backoff sleeps (0.2 = +/-20%).
	JitterFrac float64
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BackoffInitial <= 0 {
		p.BackoffInitial = defaultBackoffInitial
	}
	if p.BackoffMax <= 0 {
		p.BackoffMax = defaultBackoffMax
	}
	if p.BackoffMax < p.BackoffInitial {
		p.BackoffMax = p.BackoffInitial
	}
	if p.JitterFrac < 0 {
		p.JitterFrac = 0
	}
	return p
}

// TransientError marks an error as retryable.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

// Do calls fn until it succeeds, returns a non-transient error, the policy is
// exhausted, or ctx is done. It returns the number of attempts made and the
// last error.
func Do(
	ctx context.Context,
	p Policy,
	fn func(ctx context.Context, attempt int) error,
) (int, error) {
	p = p.withDefaults()

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt, err
		}

		err := fn(ctx, attempt)
		if err == nil {
			return attempt + 1, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return attempt + 1, ctx.Err()
		}
		if !IsTransient(err) || attempt >= p.MaxRetries {
			return attempt + 1, err
		}

		t := time.NewTimer(p.Backoff(attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return attempt + 1, err
		}
	}
}

// Backoff returns the sleep before the retry following attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.withDefaults()

	sleep := p.BackoffInitial
	for i := 0; i < attempt && sleep < p.BackoffMax; i++ {
		sleep *= 2
		if sleep > p.BackoffMax {
			sleep = p.BackoffMax
			break
		}
	}
	if p.JitterFrac == 0 {
		return sleep
	}
	j := 1 + (rand.Float64()*2-1)*p.JitterFrac
	return time.Duration(float64(sleep) * j)
}
