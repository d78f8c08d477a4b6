package llmclient

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRateLimitHeaders(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h := http.Header{}
	h.Set("retry-after", "7")
	h.Set("x-ratelimit-limit-requests", "100")
	h.Set("x-ratelimit-remaining-requests", "0")
	h.Set("x-ratelimit-reset-requests", "1m30s")
	h.Set("x-ratelimit-reset-tokens", "2.5")

	got, ok := ParseRateLimitHeaders(h, now)
	require.True(t, ok)
	assert.Equal(t, 7*time.Second, got.RetryAfter)
	assert.Equal(t, 100, got.LimitRequests)
	assert.Equal(t, 0, got.RemainingRequests)
	assert.Equal(t, -1, got.RemainingTokens)
	assert.Equal(t, 90*time.Second, got.ResetRequests)
	assert.Equal(t, 2500*time.Millisecond, got.ResetTokens)
	assert.Equal(t, 7*time.Second, got.NextWait())

	h = http.Header{}
	h.Set("retry-after", now.Add(time.Minute).Format(http.TimeFormat))
	got, ok = ParseRateLimitHeaders(h, now)
	require.True(t, ok)
	assert.Equal(t, time.Minute, got.RetryAfter)

	_, ok = ParseRateLimitHeaders(http.Header{}, now)
	assert.False(t, ok)
}

func TestQuotaTrackerBlocksUntilReset(t *testing.T) {
	now := time.Unix(1000, 0)
	q := NewQuotaTracker("hosted", 10*time.Second)
	q.now = func() time.Time { return now }

	require.NoError(t, q.Check())
	q.Exhausted(0)
	err := q.Check()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQuotaExceeded))
	assert.True(t, q.Snapshot().Exhausted)

	now = now.Add(11 * time.Second)
	assert.NoError(t, q.Check())
	assert.False(t, q.Snapshot().Exhausted)
}

func TestQuotaTrackerObserveZeroRemaining(t *testing.T) {
	now := time.Unix(0, 0)
	q := NewQuotaTracker("hosted", time.Minute)
	q.now = func() time.Time { return now }

	q.Observe(RateLimitHeaders{RemainingRequests: 0, RemainingTokens: -1, ResetRequests: 5 * time.Second})
	assert.Error(t, q.Check())
	snap := q.Snapshot()
	assert.Equal(t, 0, snap.RemainingRequests)
	assert.Equal(t, now.Add(5*time.Second), snap.ResetAt)

	now = now.Add(6 * time.Second)
	assert.NoError(t, q.Check())
}
