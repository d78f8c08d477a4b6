package progress

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerPercentIsMonotonic(t *testing.T) {
	r := NewRegistry(time.Minute)
	tr := r.Create("run-1", "w-1")

	tr.Update(GeneratingHeader, "", 12, "Generated header")
	tr.Update(GeneratingFooter, "", 8, "stale")
	p := tr.Snapshot()
	assert.Equal(t, GeneratingFooter, p.State)
	assert.Equal(t, 12.0, p.Percent)

	tr.Update(GeneratingPage, "Home", 150, "too far")
	assert.Equal(t, 100.0, tr.Snapshot().Percent)
}

func TestTrackerIgnoresUpdatesAfterTerminal(t *testing.T) {
	r := NewRegistry(time.Minute)
	tr := r.Create("run-1", "w-1")
	tr.Fail(errors.New("disk full"), "Saving failed")
	tr.Update(Saving, "", 92, "late")
	tr.Complete("late")

	p := tr.Snapshot()
	assert.Equal(t, Failed, p.State)
	assert.Equal(t, "disk full", p.Err)
	assert.Equal(t, "Saving failed", p.Message)
}

func TestFallbacksRecorded(t *testing.T) {
	r := NewRegistry(time.Minute)
	tr := r.Create("run-1", "w-1")
	tr.Fallback("header")
	tr.Fallback("page Home")
	snap := tr.Snapshot()
	assert.Equal(t, []string{"header", "page Home"}, snap.Fallbacks)

	snap.Fallbacks[0] = "mutated"
	assert.Equal(t, "header", tr.Snapshot().Fallbacks[0])
}

func TestRegistryRetainsFinishedRuns(t *testing.T) {
	r := NewRegistry(time.Minute)
	tr := r.Create("run-1", "w-1")
	tr.Complete("Website generated")

	r.mu.RLock()
	_, live := r.live["run-1"]
	r.mu.RUnlock()
	assert.False(t, live)

	p, ok := r.Get("run-1")
	require.True(t, ok)
	assert.Equal(t, Completed, p.State)
	assert.Equal(t, 100.0, p.Percent)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryRetentionExpires(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	r.Create("run-1", "w-1").Cancel("Cancelled")
	_, ok := r.Get("run-1")
	require.True(t, ok)
	assert.Eventually(t, func() bool {
		_, ok := r.Get("run-1")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestSubscribeStreamsUntilTerminal(t *testing.T) {
	r := NewRegistry(time.Minute)
	tr := r.Create("run-1", "w-1")
	ch, cancel, ok := r.Subscribe("run-1")
	require.True(t, ok)
	defer cancel()

	tr.Update(GeneratingHeader, "", 5, "Generating header")
	tr.Complete("done")

	var states []State
	for p := range ch {
		states = append(states, p.State)
	}
	assert.Equal(t, []State{NotStarted, GeneratingHeader, Completed}, states)
}

func TestSubscribeSlowReaderKeepsLatest(t *testing.T) {
	r := NewRegistry(time.Minute)
	tr := r.Create("run-1", "w-1")
	ch, cancel, ok := r.Subscribe("run-1")
	require.True(t, ok)
	defer cancel()

	for i := 1; i <= 3*subscriberBuffer; i++ {
		tr.Update(GeneratingPage, "Home", float64(i), "working")
	}
	var last Progress
	n := 0
	for len(ch) > 0 {
		last = <-ch
		n++
	}
	assert.Equal(t, subscriberBuffer, n)
	assert.Equal(t, float64(3*subscriberBuffer), last.Percent)
}

func TestSubscribeFinishedRun(t *testing.T) {
	r := NewRegistry(time.Minute)
	r.Create("run-1", "w-1").Complete("done")

	ch, _, ok := r.Subscribe("run-1")
	require.True(t, ok)
	p, open := <-ch
	require.True(t, open)
	assert.Equal(t, Completed, p.State)
	_, open = <-ch
	assert.False(t, open)

	_, _, ok = r.Subscribe("missing")
	assert.False(t, ok)
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	r := NewRegistry(time.Minute)
	r.Create("run-1", "w-1")
	ch, cancel, ok := r.Subscribe("run-1")
	require.True(t, ok)
	<-ch
	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}
