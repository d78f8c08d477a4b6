package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegen/internal/fallback"
	"sitegen/internal/llm"
	"sitegen/internal/llmclient"
	"sitegen/internal/progress"
	"sitegen/internal/retry"
	"sitegen/internal/site"
	"sitegen/internal/store"
)

func scenarioSpec() site.WebsiteSpec {
	return site.WebsiteSpec{
		ID:           "w-1",
		BusinessName: "Acme Bakery",
		Industry:     "bakery",
		Pages:        []string{"Home", "Contact"},
		Contact:      site.Contact{Email: "hi@acme.test"},
	}
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

type harness struct {
	fake   *llmclient.FakeClient
	blobs  *store.MemoryStore
	orch   *Orchestrator
	sleeps *sleepRecorder
}

func newHarness(t *testing.T, respond llmclient.Responder, opts ...Option) *harness {
	t.Helper()
	fake := llmclient.NewFakeClient(respond)
	facade, err := llm.NewFacade([]llmclient.Provider{fake}, "fake",
		llm.WithDefaults(llmclient.Params{MaxTokens: 1000}))
	require.NoError(t, err)
	blobs := store.NewMemoryStore()
	sleeps := &sleepRecorder{}
	policy := retry.Policy{Attempts: 3, InitialDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}
	base := []Option{WithRetryPolicy(policy), WithSleeper(sleeps.sleep)}
	orch := New(facade, store.NewWriter(blobs), append(base, opts...)...)
	return &harness{fake: fake, blobs: blobs, orch: orch, sleeps: sleeps}
}

func (h *harness) wait(t *testing.T, runID string) (Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.orch.Wait(ctx, runID)
}

func TestWellFormedProviderCompletes(t *testing.T) {
	h := newHarness(t, nil)
	handle, err := h.orch.Start(scenarioSpec())
	require.NoError(t, err)
	assert.False(t, handle.AlreadyActive)

	res, err := h.wait(t, handle.RunID)
	require.NoError(t, err)

	p, ok := h.orch.Progress(handle.RunID)
	require.True(t, ok)
	assert.Equal(t, progress.Completed, p.State)
	assert.Equal(t, 100.0, p.Percent)
	assert.Empty(t, p.Fallbacks)
	assert.Equal(t, "Website generated", p.Message)

	paths, err := h.blobs.List(context.Background(), "w-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"footer.json", "header.json", "pages/contact.json", "pages/home.json"}, paths)

	assert.False(t, res.Header.Fallback)
	require.Len(t, res.Pages, 2)
	assert.Equal(t, "Home", res.Pages[0].Page)
	assert.Equal(t, "Contact", res.Pages[1].Page)
	home := res.Pages[0]
	require.Len(t, home.Sections, len(site.SectionTypesFor(scenarioSpec(), "Home")))
	assert.Equal(t, site.SectionHero, home.Sections[0].Reference)
	assert.Contains(t, home.Sections[0].Markup, `class="section-hero"`)
	assert.True(t, home.Sections[0].ImageCandidate)
	assert.Equal(t, "bakery Acme Bakery", home.Sections[0].ImageQuery)

	for _, c := range h.fake.Calls() {
		assert.False(t, c.Info.Completion)
		assert.Equal(t, systemPrompt, c.Params.System)
	}
	assert.Len(t, h.fake.Calls(), 4)
	assert.Empty(t, h.sleeps.delays)
	assert.False(t, h.orch.Active("w-1"))
}

func TestNonLatinPageNamesPersistSeparately(t *testing.T) {
	h := newHarness(t, nil)
	spec := scenarioSpec()
	spec.Pages = []string{"Главная", "Контакты"}
	handle, err := h.orch.Start(spec)
	require.NoError(t, err)

	res, err := h.wait(t, handle.RunID)
	require.NoError(t, err)
	require.Len(t, res.Pages, 2)

	paths, err := h.blobs.List(context.Background(), "w-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"footer.json", "header.json", "pages/главная.json", "pages/контакты.json"}, paths)

	spec.Pages = []string{"About Us", "about-us"}
	_, err = h.orch.Start(spec)
	assert.Error(t, err)
}

func TestProgressIsMonotonic(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, func(ctx context.Context, prompt string, p llmclient.Params) (string, error) {
		if llmclient.CallInfoFrom(ctx).Stage == "header" {
			<-release
		}
		return llmclient.DefaultFakeResponse(ctx, prompt, p)
	})
	handle, err := h.orch.Start(scenarioSpec())
	require.NoError(t, err)
	ch, stop, ok := h.orch.Subscribe(handle.RunID)
	require.True(t, ok)
	defer stop()
	close(release)

	var seen []progress.Progress
	for p := range ch {
		seen = append(seen, p)
	}
	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i].Percent, seen[i-1].Percent)
	}
	last := seen[len(seen)-1]
	assert.Equal(t, progress.Completed, last.State)
	assert.Equal(t, 100.0, last.Percent)
}

func truncatedResponder(ctx context.Context, _ string, _ llmclient.Params) (string, error) {
	if llmclient.CallInfoFrom(ctx).Completion {
		return `<p>More`, nil
	}
	return `{"html": "<div class=\"hero\"><h2>Welcome`, nil
}

func TestTruncatedProviderFallsBack(t *testing.T) {
	h := newHarness(t, truncatedResponder)
	spec := scenarioSpec()
	handle, err := h.orch.Start(spec)
	require.NoError(t, err)
	res, err := h.wait(t, handle.RunID)
	require.NoError(t, err)

	assert.Equal(t, fallback.Header(spec), res.Header)
	assert.Equal(t, fallback.Footer(spec), res.Footer)
	require.Len(t, res.Pages, 2)
	assert.Equal(t, fallback.Page(spec, "Home"), res.Pages[0])
	assert.Equal(t, fallback.Page(spec, "Contact"), res.Pages[1])

	calls := h.fake.Calls()
	completions := 0
	for _, c := range calls {
		if c.Info.Completion {
			completions++
			assert.Equal(t, 300, c.Params.MaxTokens)
		}
	}
	assert.Len(t, calls, 4*3*2)
	assert.Equal(t, 4*3, completions)

	want := []time.Duration{time.Second, 2 * time.Second}
	require.Len(t, h.sleeps.delays, 4*2)
	for i := 0; i < len(h.sleeps.delays); i += 2 {
		assert.Equal(t, want, h.sleeps.delays[i:i+2])
	}

	p, _ := h.orch.Progress(handle.RunID)
	assert.Equal(t, progress.Completed, p.State)
	assert.Equal(t, []string{"header", "footer", "page Home", "page Contact"}, p.Fallbacks)

	doc, err := store.NewWriter(h.blobs).LoadBlock(context.Background(), "w-1", store.HeaderPath)
	require.NoError(t, err)
	assert.True(t, doc.Fallback)
}

func TestFallbackMessages(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, prompt string, p llmclient.Params) (string, error) {
		if llmclient.CallInfoFrom(ctx).Stage == "footer" {
			return truncatedResponder(ctx, prompt, p)
		}
		return llmclient.DefaultFakeResponse(ctx, prompt, p)
	})
	handle, err := h.orch.Start(scenarioSpec())
	require.NoError(t, err)
	ch, stop, ok := h.orch.Subscribe(handle.RunID)
	require.True(t, ok)
	defer stop()
	for range ch {
	}

	p, _ := h.orch.Progress(handle.RunID)
	assert.Equal(t, []string{"footer"}, p.Fallbacks)
	assert.Equal(t, "Website generated, 1 of 4 parts use fallback content", p.Message)
	assert.Equal(t, "Generated header", stageMessage("header", false))
	assert.Equal(t, "Using fallback content for footer", stageMessage("footer", true))
}

func TestQuotaErrorFallsBackWithoutRetry(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, prompt string, p llmclient.Params) (string, error) {
		if llmclient.CallInfoFrom(ctx).Stage == "header" {
			return "", &llmclient.ProviderError{Kind: llmclient.KindQuotaExceeded, Provider: "fake", Status: 429}
		}
		return llmclient.DefaultFakeResponse(ctx, prompt, p)
	})
	handle, err := h.orch.Start(scenarioSpec())
	require.NoError(t, err)
	res, err := h.wait(t, handle.RunID)
	require.NoError(t, err)
	assert.True(t, res.Header.Fallback)
	assert.False(t, res.Footer.Fallback)

	headerCalls := 0
	for _, c := range h.fake.Calls() {
		if c.Info.Stage == "header" {
			headerCalls++
		}
	}
	assert.Equal(t, 1, headerCalls)
	assert.Empty(t, h.sleeps.delays)
}

func TestSecondStartIsRejectedWhileActive(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, func(ctx context.Context, prompt string, p llmclient.Params) (string, error) {
		<-release
		return llmclient.DefaultFakeResponse(ctx, prompt, p)
	})
	spec := scenarioSpec()
	first, err := h.orch.Start(spec)
	require.NoError(t, err)
	second, err := h.orch.Start(spec)
	require.NoError(t, err)

	assert.True(t, second.AlreadyActive)
	assert.Equal(t, first.RunID, second.RunID)
	assert.True(t, h.orch.Active("w-1"))

	close(release)
	_, err = h.wait(t, first.RunID)
	require.NoError(t, err)

	headers := 0
	for _, c := range h.fake.Calls() {
		if c.Info.Stage == "header" {
			headers++
		}
	}
	assert.Equal(t, 1, headers)

	third, err := h.orch.Start(spec)
	require.NoError(t, err)
	assert.False(t, third.AlreadyActive)
	assert.NotEqual(t, first.RunID, third.RunID)
	_, err = h.wait(t, third.RunID)
	require.NoError(t, err)
}

func TestConcurrentStartsForOneWebsite(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, func(ctx context.Context, prompt string, p llmclient.Params) (string, error) {
		<-release
		return llmclient.DefaultFakeResponse(ctx, prompt, p)
	})
	var wg sync.WaitGroup
	handles := make([]RunHandle, 8)
	for i := range handles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handles[i], _ = h.orch.Start(scenarioSpec())
		}()
	}
	wg.Wait()
	close(release)

	fresh := 0
	for _, hd := range handles {
		assert.Equal(t, handles[0].RunID, hd.RunID)
		if !hd.AlreadyActive {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	_, err := h.wait(t, handles[0].RunID)
	require.NoError(t, err)
}

func TestDifferentWebsitesRunConcurrently(t *testing.T) {
	h := newHarness(t, nil)
	a := scenarioSpec()
	b := scenarioSpec()
	b.ID = "w-2"
	ha, err := h.orch.Start(a)
	require.NoError(t, err)
	hb, err := h.orch.Start(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha.RunID, hb.RunID)
	assert.False(t, hb.AlreadyActive)
	_, err = h.wait(t, ha.RunID)
	require.NoError(t, err)
	_, err = h.wait(t, hb.RunID)
	require.NoError(t, err)
}

func TestCancelStopsAtNextStage(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, func(ctx context.Context, prompt string, p llmclient.Params) (string, error) {
		if llmclient.CallInfoFrom(ctx).Stage == "header" {
			<-release
		}
		return llmclient.DefaultFakeResponse(ctx, prompt, p)
	})
	handle, err := h.orch.Start(scenarioSpec())
	require.NoError(t, err)
	require.True(t, h.orch.Cancel(handle.RunID))
	close(release)

	_, err = h.wait(t, handle.RunID)
	assert.ErrorIs(t, err, ErrCancelled)

	p, _ := h.orch.Progress(handle.RunID)
	assert.Equal(t, progress.Cancelled, p.State)
	paths, _ := h.blobs.List(context.Background(), "w-1")
	assert.Empty(t, paths)
	for _, c := range h.fake.Calls() {
		assert.Equal(t, "header", c.Info.Stage)
	}
	assert.False(t, h.orch.Cancel(handle.RunID))
	assert.False(t, h.orch.Active("w-1"))
}

type failingPersister struct {
	*store.Writer
}

func (failingPersister) SavePage(context.Context, string, string, []site.Section) error {
	return errors.New("disk full")
}

func TestPersistenceFailureFailsRun(t *testing.T) {
	fake := llmclient.NewFakeClient(nil)
	facade, err := llm.NewFacade([]llmclient.Provider{fake}, "")
	require.NoError(t, err)
	orch := New(facade, failingPersister{store.NewWriter(store.NewMemoryStore())})

	handle, err := orch.Start(scenarioSpec())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = orch.Wait(ctx, handle.RunID)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "page Home", perr.Stage)

	p, _ := orch.Progress(handle.RunID)
	assert.Equal(t, progress.Failed, p.State)
	assert.Equal(t, "persist page Home: disk full", p.Err)
	assert.Less(t, p.Percent, 100.0)
}

func TestPageConcurrencyKeepsOrder(t *testing.T) {
	h := newHarness(t, nil, WithPageConcurrency(3))
	spec := scenarioSpec()
	spec.Pages = []string{"Home", "About", "Services", "Contact", "FAQ"}
	handle, err := h.orch.Start(spec)
	require.NoError(t, err)
	res, err := h.wait(t, handle.RunID)
	require.NoError(t, err)

	var names []string
	for _, p := range res.Pages {
		names = append(names, p.Page)
	}
	assert.Equal(t, spec.Pages, names)
	paths, _ := h.blobs.List(context.Background(), "w-1")
	assert.Len(t, paths, 7)
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.orch.Start(site.WebsiteSpec{ID: "w-1"})
	assert.Error(t, err)
	_, err = h.orch.Wait(context.Background(), "missing")
	assert.Error(t, err)
}
