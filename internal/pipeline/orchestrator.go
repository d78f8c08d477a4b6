// Package pipeline runs website generation: header, footer and every page
// go through the provider façade with retries, and degrade to synthesized
// content instead of failing the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"

	"sitegen/internal/llmclient"
	"sitegen/internal/progress"
	"sitegen/internal/retry"
	"sitegen/internal/site"
)

// Generator is the provider façade as seen by the orchestrator.
type Generator interface {
	Generate(ctx context.Context, prompt string, ct llmclient.ContentType, p llmclient.Params) (llmclient.RawOutput, error)
}

// Persister stores finished artifacts.
type Persister interface {
	SaveHeader(ctx context.Context, websiteID string, a site.Artifact) error
	SaveFooter(ctx context.Context, websiteID string, a site.Artifact) error
	SavePage(ctx context.Context, websiteID, name string, sections []site.Section) error
}

// RunHandle identifies a run. AlreadyActive is set when Start found a run
// for the same website in flight and returned it instead.
type RunHandle struct {
	RunID         string `json:"run_id"`
	WebsiteID     string `json:"website_id"`
	AlreadyActive bool   `json:"already_active"`
}

// Result holds every artifact a run produced.
type Result struct {
	WebsiteID string          `json:"website_id"`
	Header    site.Artifact   `json:"header"`
	Footer    site.Artifact   `json:"footer"`
	Pages     []site.Artifact `json:"pages"`
}

type run struct {
	id        string
	websiteID string
	tracker   *progress.Tracker
	cancelled atomic.Bool
	done      chan struct{}

	result Result
	err    error
}

func (r *run) stopped() bool { return r.cancelled.Load() }

type Orchestrator struct {
	gen      Generator
	store    Persister
	progress *progress.Registry
	log      *slog.Logger

	policy          retry.Policy
	params          map[site.Stage]llmclient.Params
	pageConcurrency int
	sleeper         retry.Sleeper
	newID           func() string

	mu       sync.Mutex
	active   map[string]*run
	live     map[string]*run
	finished *expirable.LRU[string, *run]
}

type Option func(*Orchestrator)

func WithRetryPolicy(p retry.Policy) Option {
	return func(o *Orchestrator) { o.policy = p.Normalize() }
}

// WithStageParams sets the call parameters for one stage, merged over the
// façade defaults.
func WithStageParams(stage site.Stage, p llmclient.Params) Option {
	return func(o *Orchestrator) { o.params[stage] = p }
}

// WithPageConcurrency generates up to n pages at once. Pages are still
// persisted in spec order.
func WithPageConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.pageConcurrency = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func WithProgress(r *progress.Registry) Option {
	return func(o *Orchestrator) { o.progress = r }
}

// WithSleeper replaces the backoff sleep between attempts.
func WithSleeper(s retry.Sleeper) Option {
	return func(o *Orchestrator) { o.sleeper = s }
}

func New(gen Generator, store Persister, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:   gen,
		store: store,
		log:   slog.Default(),
		params: map[site.Stage]llmclient.Params{
			site.StageHeader: {Timeout: 60 * time.Second},
			site.StageFooter: {Timeout: 60 * time.Second},
			site.StagePage:   {Timeout: 180 * time.Second},
		},
		policy:          retry.DefaultPolicy(),
		pageConcurrency: 1,
		newID:           uuid.NewString,
		active:          make(map[string]*run),
		live:            make(map[string]*run),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.progress == nil {
		o.progress = progress.NewRegistry(progress.DefaultRetention)
	}
	o.finished = expirable.NewLRU[string, *run](1024, nil, progress.DefaultRetention)
	return o
}

// Start launches a run for spec. A second start for a website whose run is
// still in flight returns the existing handle with AlreadyActive set.
func (o *Orchestrator) Start(spec site.WebsiteSpec) (RunHandle, error) {
	if err := spec.Validate(); err != nil {
		return RunHandle{}, fmt.Errorf("invalid website spec: %w", err)
	}
	websiteID := strings.TrimSpace(spec.ID)

	o.mu.Lock()
	if r, ok := o.active[websiteID]; ok {
		o.mu.Unlock()
		return RunHandle{RunID: r.id, WebsiteID: websiteID, AlreadyActive: true}, nil
	}
	r := &run{id: o.newID(), websiteID: websiteID, done: make(chan struct{})}
	r.tracker = o.progress.Create(r.id, websiteID)
	o.active[websiteID] = r
	o.live[r.id] = r
	o.mu.Unlock()

	o.log.Info("generation started", "run_id", r.id, "website_id", websiteID, "pages", len(spec.PagesToGenerate()))
	go o.execute(r, spec)
	return RunHandle{RunID: r.id, WebsiteID: websiteID}, nil
}

// Progress returns the latest progress of a run.
func (o *Orchestrator) Progress(runID string) (progress.Progress, bool) {
	return o.progress.Get(runID)
}

// Subscribe streams progress updates of a run until it ends.
func (o *Orchestrator) Subscribe(runID string) (<-chan progress.Progress, func(), bool) {
	return o.progress.Subscribe(runID)
}

// Cancel asks a live run to stop at its next stage boundary. In-flight
// provider calls are not interrupted.
func (o *Orchestrator) Cancel(runID string) bool {
	o.mu.Lock()
	r, ok := o.live[strings.TrimSpace(runID)]
	o.mu.Unlock()
	if !ok {
		return false
	}
	r.cancelled.Store(true)
	return true
}

// Wait blocks until the run ends or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context, runID string) (Result, error) {
	r, ok := o.lookup(runID)
	if !ok {
		return Result{}, fmt.Errorf("run %s not found", runID)
	}
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-r.done:
		return r.result, r.err
	}
}

// Active reports whether a run for websiteID is in flight.
func (o *Orchestrator) Active(websiteID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.active[strings.TrimSpace(websiteID)]
	return ok
}

func (o *Orchestrator) lookup(runID string) (*run, bool) {
	runID = strings.TrimSpace(runID)
	o.mu.Lock()
	r, ok := o.live[runID]
	o.mu.Unlock()
	if ok {
		return r, true
	}
	return o.finished.Get(runID)
}

func (o *Orchestrator) execute(r *run, spec site.WebsiteSpec) {
	res, err := o.generateSite(context.Background(), r, spec)
	r.result, r.err = res, err
	switch {
	case errors.Is(err, ErrCancelled):
		o.log.Info("generation cancelled", "run_id", r.id, "website_id", r.websiteID)
	case err != nil:
		o.log.Error("generation failed", "run_id", r.id, "website_id", r.websiteID, "error", err)
	default:
		o.log.Info("generation completed", "run_id", r.id, "website_id", r.websiteID, "fallbacks", len(r.tracker.Snapshot().Fallbacks))
	}

	o.mu.Lock()
	delete(o.active, r.websiteID)
	delete(o.live, r.id)
	o.finished.Add(r.id, r)
	o.mu.Unlock()
	close(r.done)
}

func (o *Orchestrator) generateSite(ctx context.Context, r *run, spec site.WebsiteSpec) (Result, error) {
	t := r.tracker
	res := Result{WebsiteID: r.websiteID}

	if r.stopped() {
		return res, o.cancel(r)
	}
	t.Update(progress.GeneratingHeader, "", headerStart, "Generating header")
	res.Header = o.runStage(ctx, r, site.Request{Stage: site.StageHeader, Spec: spec})
	o.report(r, "header", "", res.Header.Fallback, headerDone)

	if r.stopped() {
		return res, o.cancel(r)
	}
	t.Update(progress.GeneratingFooter, "", footerStart, "Generating footer")
	res.Footer = o.runStage(ctx, r, site.Request{Stage: site.StageFooter, Spec: spec})
	o.report(r, "footer", "", res.Footer.Fallback, footerDone)

	pages, err := o.generatePages(ctx, r, spec)
	if err != nil {
		return res, o.cancel(r)
	}
	res.Pages = pages

	if r.stopped() {
		return res, o.cancel(r)
	}
	t.Update(progress.Saving, "", savingStart, "Saving website")
	if err := o.persist(ctx, res); err != nil {
		t.Fail(err, "Saving website failed")
		return res, err
	}
	t.Complete(completionMessage(res))
	return res, nil
}

// generatePages runs the page stages, up to pageConcurrency at a time.
// Results keep spec order.
func (o *Orchestrator) generatePages(ctx context.Context, r *run, spec site.WebsiteSpec) ([]site.Artifact, error) {
	names := spec.PagesToGenerate()
	pages := make([]site.Artifact, len(names))
	var finished atomic.Int32

	var g errgroup.Group
	g.SetLimit(o.pageConcurrency)
	for i, name := range names {
		g.Go(func() error {
			if r.stopped() {
				return ErrCancelled
			}
			start, _ := pageSpan(i, len(names))
			r.tracker.Update(progress.GeneratingPage, name, start, "Generating page "+name)
			pages[i] = o.runStage(ctx, r, site.Request{Stage: site.StagePage, Spec: spec, Page: name})
			n := int(finished.Add(1))
			_, done := pageSpan(n-1, len(names))
			o.report(r, "page "+name, name, pages[i].Fallback, done)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

func (o *Orchestrator) report(r *run, label, page string, fallback bool, percent float64) {
	if fallback {
		r.tracker.Fallback(label)
	}
	r.tracker.Update(stageState(label), page, percent, stageMessage(label, fallback))
}

func (o *Orchestrator) persist(ctx context.Context, res Result) error {
	if err := o.store.SaveHeader(ctx, res.WebsiteID, res.Header); err != nil {
		return &PersistenceError{Stage: "header", Err: err}
	}
	if err := o.store.SaveFooter(ctx, res.WebsiteID, res.Footer); err != nil {
		return &PersistenceError{Stage: "footer", Err: err}
	}
	for _, p := range res.Pages {
		if err := o.store.SavePage(ctx, res.WebsiteID, p.Page, p.Sections); err != nil {
			return &PersistenceError{Stage: "page " + p.Page, Err: err}
		}
	}
	return nil
}

func (o *Orchestrator) cancel(r *run) error {
	r.tracker.Cancel("Generation cancelled")
	return ErrCancelled
}

func completionMessage(res Result) string {
	n := 0
	if res.Header.Fallback {
		n++
	}
	if res.Footer.Fallback {
		n++
	}
	for _, p := range res.Pages {
		if p.Fallback {
			n++
		}
	}
	if n == 0 {
		return "Website generated"
	}
	return fmt.Sprintf("Website generated, %d of %d parts use fallback content", n, len(res.Pages)+2)
}
