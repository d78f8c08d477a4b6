package llmclient

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitHeaders are normalized provider rate-limit signals.
type RateLimitHeaders struct {
	RetryAfter time.Duration

	LimitRequests     int
	LimitTokens       int
	RemainingRequests int
	RemainingTokens   int

	ResetRequests time.Duration
	ResetTokens   time.Duration
}

// NextWait converts the signals into the time until a call may succeed.
func (h RateLimitHeaders) NextWait() time.Duration {
	if h.RetryAfter > 0 {
		return h.RetryAfter
	}
	if h.RemainingTokens == 0 && h.ResetTokens > 0 {
		return h.ResetTokens
	}
	if h.RemainingRequests == 0 && h.ResetRequests > 0 {
		return h.ResetRequests
	}
	return 0
}

// ParseRateLimitHeaders reads retry-after and x-ratelimit-* headers.
// Remaining counters that are absent are reported as -1.
func ParseRateLimitHeaders(h http.Header, now time.Time) (RateLimitHeaders, bool) {
	out := RateLimitHeaders{RemainingRequests: -1, RemainingTokens: -1}
	found := false

	readInt := func(key string) (int, bool) {
		v := strings.TrimSpace(h.Get(key))
		if v == "" {
			return 0, false
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	readDur := func(key string) (time.Duration, bool) {
		v := strings.TrimSpace(h.Get(key))
		if v == "" {
			return 0, false
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d, true
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(f * float64(time.Second)), true
		}
		return 0, false
	}

	if v := strings.TrimSpace(h.Get("retry-after")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			out.RetryAfter = time.Duration(n) * time.Second
			found = true
		} else if t, err := http.ParseTime(v); err == nil && t.After(now) {
			out.RetryAfter = t.Sub(now)
			found = true
		}
	}
	if v, ok := readInt("x-ratelimit-limit-requests"); ok {
		out.LimitRequests = v
		found = true
	}
	if v, ok := readInt("x-ratelimit-limit-tokens"); ok {
		out.LimitTokens = v
		found = true
	}
	if v, ok := readInt("x-ratelimit-remaining-requests"); ok {
		out.RemainingRequests = v
		found = true
	}
	if v, ok := readInt("x-ratelimit-remaining-tokens"); ok {
		out.RemainingTokens = v
		found = true
	}
	if v, ok := readDur("x-ratelimit-reset-requests"); ok {
		out.ResetRequests = v
		found = true
	}
	if v, ok := readDur("x-ratelimit-reset-tokens"); ok {
		out.ResetTokens = v
		found = true
	}
	return out, found
}

// Quota is a snapshot of a hosted provider's quota state.
type Quota struct {
	RemainingRequests int       `json:"remaining_requests"`
	RemainingTokens   int       `json:"remaining_tokens"`
	ResetAt           time.Time `json:"reset_at,omitempty"`
	Exhausted         bool      `json:"exhausted"`
}

// QuotaTracker records remaining units from response metadata and, once the
// provider reports exhaustion, fails calls locally until the reset time.
type QuotaTracker struct {
	mu       sync.Mutex
	provider string
	cooldown time.Duration
	now      func() time.Time

	remainingRequests int
	remainingTokens   int
	resetAt           time.Time
	blockedUntil      time.Time
}

// NewQuotaTracker uses cooldown when a quota error carries no reset hint.
func NewQuotaTracker(provider string, cooldown time.Duration) *QuotaTracker {
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &QuotaTracker{
		provider:          provider,
		cooldown:          cooldown,
		now:               time.Now,
		remainingRequests: -1,
		remainingTokens:   -1,
	}
}

// Check returns a QuotaExceeded error while the tracker is blocking.
func (q *QuotaTracker) Check() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	if now.Before(q.blockedUntil) {
		return &ProviderError{
			Kind:       KindQuotaExceeded,
			Provider:   q.provider,
			RetryAfter: q.blockedUntil.Sub(now),
			Err:        errQuotaShortCircuit,
		}
	}
	return nil
}

// Observe records headers from a successful response.
func (q *QuotaTracker) Observe(h RateLimitHeaders) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if h.RemainingRequests >= 0 {
		q.remainingRequests = h.RemainingRequests
	}
	if h.RemainingTokens >= 0 {
		q.remainingTokens = h.RemainingTokens
	}
	reset := h.ResetRequests
	if h.ResetTokens > reset {
		reset = h.ResetTokens
	}
	if reset > 0 {
		q.resetAt = q.now().Add(reset)
	}
	if q.remainingRequests == 0 || q.remainingTokens == 0 {
		if wait := h.NextWait(); wait > 0 {
			q.blockedUntil = q.now().Add(wait)
		}
	}
}

// Exhausted blocks calls for retryAfter, or the configured cooldown when zero.
// It returns the time blocking ends.
func (q *QuotaTracker) Exhausted(retryAfter time.Duration) time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	if retryAfter <= 0 {
		retryAfter = q.cooldown
	}
	until := q.now().Add(retryAfter)
	if until.After(q.blockedUntil) {
		q.blockedUntil = until
	}
	q.resetAt = q.blockedUntil
	return q.blockedUntil
}

func (q *QuotaTracker) Snapshot() Quota {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Quota{
		RemainingRequests: q.remainingRequests,
		RemainingTokens:   q.remainingTokens,
		ResetAt:           q.resetAt,
		Exhausted:         q.now().Before(q.blockedUntil),
	}
}

type quotaError string

func (e quotaError) Error() string { return string(e) }

const errQuotaShortCircuit = quotaError("quota exhausted, waiting for reset")
