package progress

import (
	"sync"
	"time"
)

// State is the orchestrator state a run is in.
type State string

const (
	NotStarted       State = "not_started"
	GeneratingHeader State = "generating_header"
	GeneratingFooter State = "generating_footer"
	GeneratingPage   State = "generating_page"
	Saving           State = "saving"
	Completed        State = "completed"
	Failed           State = "failed"
	Cancelled        State = "cancelled"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// Progress is a snapshot of a run.
type Progress struct {
	RunID     string    `json:"run_id"`
	WebsiteID string    `json:"website_id"`
	State     State     `json:"state"`
	Page      string    `json:"page,omitempty"`
	Percent   float64   `json:"percent"`
	Message   string    `json:"message"`
	Fallbacks []string  `json:"fallbacks,omitempty"`
	Err       string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p Progress) clone() Progress {
	if p.Fallbacks != nil {
		p.Fallbacks = append([]string(nil), p.Fallbacks...)
	}
	return p
}

const subscriberBuffer = 16

// Tracker owns the progress of one run. Percent never decreases and
// nothing changes once a terminal state is reached.
type Tracker struct {
	mu     sync.Mutex
	cur    Progress
	subs   map[int]chan Progress
	nextID int
	now    func() time.Time
	onDone func(Progress)
}

func newTracker(runID, websiteID string, now func() time.Time, onDone func(Progress)) *Tracker {
	return &Tracker{
		cur: Progress{
			RunID:     runID,
			WebsiteID: websiteID,
			State:     NotStarted,
			UpdatedAt: now(),
		},
		subs:   make(map[int]chan Progress),
		now:    now,
		onDone: onDone,
	}
}

// Update moves the run to state at percent. A lower percent is clamped to
// the current value.
func (t *Tracker) Update(state State, page string, percent float64, message string) {
	t.apply(func(p *Progress) {
		p.State = state
		p.Page = page
		p.Percent = clampPercent(p.Percent, percent)
		p.Message = message
	})
}

// Fallback records that a stage degraded to synthesized content.
func (t *Tracker) Fallback(label string) {
	t.apply(func(p *Progress) {
		p.Fallbacks = append(p.Fallbacks, label)
	})
}

// Complete marks the run as finished.
func (t *Tracker) Complete(message string) {
	t.apply(func(p *Progress) {
		p.State = Completed
		p.Percent = 100
		p.Message = message
	})
}

// Fail marks the run as failed with err.
func (t *Tracker) Fail(err error, message string) {
	t.apply(func(p *Progress) {
		p.State = Failed
		p.Message = message
		if err != nil {
			p.Err = err.Error()
		}
	})
}

// Cancel marks the run as cancelled.
func (t *Tracker) Cancel(message string) {
	t.apply(func(p *Progress) {
		p.State = Cancelled
		p.Message = message
	})
}

// Snapshot returns a copy of the current progress.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur.clone()
}

func (t *Tracker) apply(fn func(*Progress)) {
	t.mu.Lock()
	if t.cur.State.Terminal() {
		t.mu.Unlock()
		return
	}
	fn(&t.cur)
	t.cur.UpdatedAt = t.now()
	snap := t.cur.clone()
	for _, ch := range t.subs {
		offer(ch, snap.clone())
	}
	var done func(Progress)
	if snap.State.Terminal() {
		for id, ch := range t.subs {
			close(ch)
			delete(t.subs, id)
		}
		done = t.onDone
	}
	t.mu.Unlock()
	if done != nil {
		done(snap)
	}
}

// subscribe returns a channel receiving the current value and every later
// update. Slow readers only lose intermediate values, never the latest.
func (t *Tracker) subscribe() (<-chan Progress, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan Progress, subscriberBuffer)
	ch <- t.cur.clone()
	if t.cur.State.Terminal() {
		close(ch)
		return ch, func() {}
	}
	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if c, ok := t.subs[id]; ok {
			close(c)
			delete(t.subs, id)
		}
	}
}

func offer(ch chan Progress, p Progress) {
	for {
		select {
		case ch <- p:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func clampPercent(cur, next float64) float64 {
	if next > 100 {
		next = 100
	}
	if next < cur {
		return cur
	}
	return next
}
