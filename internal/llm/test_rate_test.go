package llm

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegen/internal/llmclient"
)

// spyProvider records when calls reach it and replays scripted results.
type spyProvider struct {
	llmclient.Provider

	mu    sync.Mutex
	times []time.Time
	errs  []error
	texts []string
}

func newSpy(texts ...string) *spyProvider {
	return &spyProvider{Provider: llmclient.NewFakeClient(nil), texts: texts}
}

func (s *spyProvider) Generate(ctx context.Context, prompt string, p llmclient.Params) (llmclient.RawOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.times)
	s.times = append(s.times, time.Now())
	if n < len(s.errs) && s.errs[n] != nil {
		return llmclient.RawOutput{}, s.errs[n]
	}
	text := "{}"
	if len(s.texts) > 0 {
		text = s.texts[min(n, len(s.texts)-1)]
	}
	return llmclient.RawOutput{Text: text, Bytes: len(text), OutputTokens: 3, Provider: s.Name(), Model: s.Model()}, nil
}

func (s *spyProvider) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.times)
}

func TestRate_RPS_2PerSecond_Burst1_Spacing(t *testing.T) {
	rec := newSpy()
	cli := Wrap(rec, RateLimit(2, 1))
	t.Cleanup(func() { _ = cli.Close() })

	ctx := context.Background()
	start := time.Now()
	_, err := cli.Generate(ctx, "p", llmclient.Params{})
	require.NoError(t, err)
	_, err = cli.Generate(ctx, "p", llmclient.Params{})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 450*time.Millisecond)
	assert.Equal(t, 2, rec.calls())
}

func TestRate_RPS_2PerSecond_Burst2_FirstTwoImmediate(t *testing.T) {
	cli := RateLimit(2, 2)(newSpy())
	t.Cleanup(func() { _ = cli.Close() })

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 2; i++ {
		_, err := cli.Generate(ctx, "p", llmclient.Params{})
		require.NoError(t, err)
	}
	firstTwo := time.Since(start)

	start3 := time.Now()
	_, err := cli.Generate(ctx, "p", llmclient.Params{})
	require.NoError(t, err)

	assert.Less(t, firstTwo, 100*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start3), 450*time.Millisecond)
}

func TestRate_CanceledContextIsTimeout(t *testing.T) {
	cli := RateLimit(0.01, 1)(newSpy())
	t.Cleanup(func() { _ = cli.Close() })

	_, err := cli.Generate(context.Background(), "p", llmclient.Params{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = cli.Generate(ctx, "p", llmclient.Params{})
	assert.ErrorIs(t, err, llmclient.ErrTimeout)
}

func TestRate_DisabledWhenZero(t *testing.T) {
	assert.Nil(t, newLimiter(0, 5))
	var l *limiter
	assert.NoError(t, l.Acquire(context.Background()))
	l.pace(llmclient.Quota{RemainingRequests: 1, ResetAt: time.Now().Add(time.Hour)})
	l.Stop()
}

func TestRate_StopReleasesWaiters(t *testing.T) {
	l := newLimiter(0.01, 1)
	require.NoError(t, l.Acquire(context.Background()))
	go func() {
		time.Sleep(20 * time.Millisecond)
		l.Stop()
	}()
	assert.ErrorIs(t, l.Acquire(context.Background()), context.Canceled)
	l.Stop()
}

func TestRate_PacesToRemainingQuota(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newLimiter(10, 1)
	l.now = func() time.Time { return now }

	l.pace(llmclient.Quota{RemainingRequests: 30, ResetAt: now.Add(time.Minute)})
	assert.InDelta(t, 0.5, l.Rate(), 1e-9)

	l.pace(llmclient.Quota{RemainingRequests: 1000, ResetAt: now.Add(time.Minute)})
	assert.Equal(t, 10.0, l.Rate())

	l.pace(llmclient.Quota{RemainingRequests: 30, ResetAt: now.Add(-time.Second)})
	assert.Equal(t, 10.0, l.Rate())

	l.pace(llmclient.Quota{RemainingRequests: -1})
	assert.Equal(t, 10.0, l.Rate())
}

type quotaSpy struct {
	*spyProvider
	quota llmclient.Quota
}

func (q *quotaSpy) Quota() llmclient.Quota { return q.quota }

func TestRate_MiddlewareReadsQuotaBeneathWrappers(t *testing.T) {
	spy := &quotaSpy{
		spyProvider: newSpy(),
		quota:       llmclient.Quota{RemainingRequests: 6, ResetAt: time.Now().Add(time.Minute)},
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	cli := Wrap(spy, RateLimit(5, 1), WithLogging(quiet))
	t.Cleanup(func() { _ = cli.Close() })

	_, err := cli.Generate(context.Background(), "p", llmclient.Params{})
	require.NoError(t, err)

	rl := cli.(*rateLimited).rl
	assert.InDelta(t, 0.1, rl.Rate(), 0.01)
}
