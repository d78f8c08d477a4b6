package retry

import (
	"context"
	"errors"
	"math"
	"time"
)

// Policy configures bounded retries with exponential backoff.
type Policy struct {
	Attempts     int           `yaml:"attempts" json:"attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
}

// DefaultPolicy is used when configuration leaves the policy empty.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:     3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

// Normalize replaces out-of-range fields with usable values.
func (p Policy) Normalize() Policy {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.MaxDelay > 0 && p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	return p
}

// Delay returns the pause after the k-th failed attempt (k starts at 1):
// min(InitialDelay * Multiplier^(k-1), MaxDelay).
func (p Policy) Delay(k int) time.Duration {
	if k < 1 {
		k = 1
	}
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(k-1))
	if p.MaxDelay > 0 && (d > float64(p.MaxDelay) || math.IsInf(d, 1)) {
		return p.MaxDelay
	}
	if d > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// PermanentError stops the retry loop on the first occurrence.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Stopper is implemented by errors that know they must not be retried.
type Stopper interface {
	Permanent() bool
}

// IsPermanent reports whether err (or anything it wraps) is marked permanent.
func IsPermanent(err error) bool {
	var pErr *PermanentError
	if errors.As(err, &pErr) {
		return true
	}
	var s Stopper
	return errors.As(err, &s) && s.Permanent()
}

// Outcome describes how Do arrived at its result.
type Outcome struct {
	Attempts int
	Fallback bool
	LastErr  error
}

type Sleeper func(ctx context.Context, d time.Duration) error

type options struct {
	onRetry func(attempt int, err error, wait time.Duration)
	sleep   Sleeper
}

type Option func(*options)

// OnRetry is called before each backoff sleep.
func OnRetry(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(o *options) { o.onRetry = fn }
}

// WithSleeper replaces the context-aware timer sleep.
func WithSleeper(s Sleeper) Option {
	return func(o *options) { o.sleep = s }
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs fn until it succeeds or the policy's attempt budget is spent, then
// returns fallback(). It never returns an error; the outcome carries the last
// failure for logging.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error), fallback func() T, opts ...Option) (T, Outcome) {
	o := options{sleep: sleepCtx}
	for _, opt := range opts {
		opt(&o)
	}
	p = p.Normalize()

	var out Outcome
	for k := 1; k <= p.Attempts; k++ {
		if err := ctx.Err(); err != nil {
			out.LastErr = err
			break
		}
		out.Attempts = k
		v, err := fn(ctx, k)
		if err == nil {
			out.LastErr = nil
			return v, out
		}
		out.LastErr = err
		if IsPermanent(err) || k == p.Attempts {
			break
		}
		wait := p.Delay(k)
		if o.onRetry != nil {
			o.onRetry(k, err, wait)
		}
		if err := o.sleep(ctx, wait); err != nil {
			break
		}
	}
	out.Fallback = true
	return fallback(), out
}
