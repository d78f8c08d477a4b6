package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordSleeps(into *[]time.Duration) Option {
	return WithSleeper(func(ctx context.Context, d time.Duration) error {
		*into = append(*into, d)
		return ctx.Err()
	})
}

func TestPolicyDelaySchedule(t *testing.T) {
	p := Policy{Attempts: 6, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 3}
	want := []time.Duration{
		100 * time.Millisecond,
		300 * time.Millisecond,
		900 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, p.Delay(i+1), "attempt %d", i+1)
	}
}

func TestDoAlwaysFailingUsesWholeBudget(t *testing.T) {
	p := Policy{Attempts: 4, InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2}
	var sleeps []time.Duration
	calls := 0
	v, out := Do(context.Background(), p, func(context.Context, int) (string, error) {
		calls++
		return "", errors.New("boom")
	}, func() string { return "fallback" }, recordSleeps(&sleeps))

	assert.Equal(t, "fallback", v)
	assert.Equal(t, 4, calls)
	assert.True(t, out.Fallback)
	assert.Equal(t, 4, out.Attempts)
	assert.EqualError(t, out.LastErr, "boom")
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}, sleeps)
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	var sleeps []time.Duration
	var retried []int
	v, out := Do(context.Background(), Policy{Attempts: 3, InitialDelay: time.Millisecond, Multiplier: 2},
		func(_ context.Context, attempt int) (int, error) {
			if attempt < 3 {
				return 0, errors.New("transient")
			}
			return 42, nil
		},
		func() int { return -1 },
		recordSleeps(&sleeps),
		OnRetry(func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) }),
	)
	assert.Equal(t, 42, v)
	assert.False(t, out.Fallback)
	assert.NoError(t, out.LastErr)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, []int{1, 2}, retried)
	assert.Len(t, sleeps, 2)
}

type quotaErr struct{}

func (quotaErr) Error() string   { return "quota" }
func (quotaErr) Permanent() bool { return true }

func TestDoStopsOnPermanent(t *testing.T) {
	for name, err := range map[string]error{
		"wrapped": Permanent(errors.New("nope")),
		"stopper": quotaErr{},
	} {
		t.Run(name, func(t *testing.T) {
			calls := 0
			v, out := Do(context.Background(), Policy{Attempts: 5}, func(context.Context, int) (string, error) {
				calls++
				return "", err
			}, func() string { return "fb" })
			assert.Equal(t, "fb", v)
			assert.Equal(t, 1, calls)
			assert.True(t, out.Fallback)
			assert.True(t, IsPermanent(out.LastErr))
		})
	}
}

func TestDoCancelledContextFallsBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	v, out := Do(ctx, Policy{Attempts: 5, InitialDelay: time.Hour, Multiplier: 2}, func(context.Context, int) (string, error) {
		calls++
		cancel()
		return "", errors.New("fail")
	}, func() string { return "fb" })
	require.Equal(t, "fb", v)
	assert.Equal(t, 1, calls)
	assert.True(t, out.Fallback)
}

func TestNormalize(t *testing.T) {
	p := Policy{Attempts: 0, InitialDelay: -time.Second, Multiplier: 0.5}.Normalize()
	assert.Equal(t, 1, p.Attempts)
	assert.Equal(t, time.Duration(0), p.InitialDelay)
	assert.Equal(t, 1.0, p.Multiplier)
	assert.Nil(t, Permanent(nil))
}
