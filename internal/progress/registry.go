package progress

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultRetention = 10 * time.Minute
	retainedRuns     = 1024
)

// Registry holds live trackers and keeps finished runs readable for a
// bounded retention period.
type Registry struct {
	mu       sync.RWMutex
	live     map[string]*Tracker
	finished *expirable.LRU[string, Progress]
	now      func() time.Time
}

// NewRegistry creates a registry. A non-positive retention uses DefaultRetention.
func NewRegistry(retention time.Duration) *Registry {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Registry{
		live:     make(map[string]*Tracker),
		finished: expirable.NewLRU[string, Progress](retainedRuns, nil, retention),
		now:      time.Now,
	}
}

// Create registers a new tracker for runID.
func (r *Registry) Create(runID, websiteID string) *Tracker {
	runID = strings.TrimSpace(runID)
	t := newTracker(runID, websiteID, r.now, func(p Progress) { r.finish(runID, p) })
	r.mu.Lock()
	r.live[runID] = t
	r.mu.Unlock()
	return t
}

func (r *Registry) finish(runID string, p Progress) {
	r.mu.Lock()
	delete(r.live, runID)
	r.finished.Add(runID, p)
	r.mu.Unlock()
}

// Get returns the latest progress of a live or recently finished run.
func (r *Registry) Get(runID string) (Progress, bool) {
	runID = strings.TrimSpace(runID)
	r.mu.RLock()
	t, ok := r.live[runID]
	r.mu.RUnlock()
	if ok {
		return t.Snapshot(), true
	}
	p, ok := r.finished.Get(runID)
	if !ok {
		return Progress{}, false
	}
	return p.clone(), true
}

// Subscribe streams updates for runID. The channel is closed once the run
// reaches a terminal state or cancel is called. A finished run yields its
// final value and a closed channel.
func (r *Registry) Subscribe(runID string) (<-chan Progress, func(), bool) {
	runID = strings.TrimSpace(runID)
	r.mu.RLock()
	t, ok := r.live[runID]
	r.mu.RUnlock()
	if ok {
		ch, cancel := t.subscribe()
		return ch, cancel, true
	}
	p, ok := r.finished.Get(runID)
	if !ok {
		return nil, func() {}, false
	}
	ch := make(chan Progress, 1)
	ch <- p.clone()
	close(ch)
	return ch, func() {}, true
}
