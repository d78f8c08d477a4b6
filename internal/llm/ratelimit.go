package llm

import (
	"context"
	"math"
	"sync"
	"time"

	"sitegen/internal/llmclient"
)

// limiter is a token bucket refilled from the clock. Its refill rate starts
// at the configured ceiling and is lowered when the provider reports that
// its remaining requests would not last until the quota window resets.
type limiter struct {
	mu      sync.Mutex
	ceiling float64
	rate    float64
	burst   float64
	tokens  float64
	last    time.Time
	now     func() time.Time

	closed chan struct{}
	once   sync.Once
}

// newLimiter returns nil (disabled) when rps <= 0.
func newLimiter(rps float64, burst int) *limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	l := &limiter{
		ceiling: rps,
		rate:    rps,
		burst:   float64(burst),
		tokens:  float64(burst),
		now:     time.Now,
		closed:  make(chan struct{}),
	}
	l.last = l.now()
	return l
}

func (l *limiter) refill(now time.Time) {
	if elapsed := now.Sub(l.last); elapsed > 0 {
		l.tokens = math.Min(l.burst, l.tokens+elapsed.Seconds()*l.rate)
	}
	l.last = now
}

// reserve takes a token and returns how long the caller waits for it.
// Tokens may go negative; later callers queue behind earlier ones.
func (l *limiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill(l.now())
	l.tokens--
	if l.tokens >= 0 {
		return 0
	}
	return time.Duration(-l.tokens / l.rate * float64(time.Second))
}

func (l *limiter) unreserve() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens = math.Min(l.burst, l.tokens+1)
}

// Acquire blocks until a token is available or the context is canceled.
func (l *limiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	wait := l.reserve()
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		l.unreserve()
		return ctx.Err()
	case <-l.closed:
		l.unreserve()
		return context.Canceled
	case <-t.C:
		return nil
	}
}

// pace spreads the remaining requests of q over the time left until its
// reset, never exceeding the configured rate. Without a usable signal the
// configured rate applies again.
func (l *limiter) pace(q llmclient.Quota) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.refill(now)
	rate := l.ceiling
	if q.RemainingRequests > 0 && q.ResetAt.After(now) {
		if paced := float64(q.RemainingRequests) / q.ResetAt.Sub(now).Seconds(); paced < rate {
			rate = paced
		}
	}
	l.rate = rate
}

// Rate returns the current refill rate in requests per second.
func (l *limiter) Rate() float64 {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rate
}

func (l *limiter) Stop() {
	if l == nil {
		return
	}
	l.once.Do(func() { close(l.closed) })
}
