package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sitegen/internal/fallback"
	"sitegen/internal/fixer"
	"sitegen/internal/llmclient"
	"sitegen/internal/repair"
	"sitegen/internal/retry"
	"sitegen/internal/site"
)

var (
	errUnusable   = errors.New("no usable content in response")
	errIncomplete = errors.New("response markup is incomplete")
)

// runStage generates one artifact. It always returns an artifact; when the
// retry budget is spent the fallback synthesizer provides it.
func (o *Orchestrator) runStage(ctx context.Context, r *run, req site.Request) site.Artifact {
	log := o.log.With("run_id", r.id, "stage", string(req.Stage))
	if req.Page != "" {
		log = log.With("page", req.Page)
	}
	prompt, sections, err := buildPrompt(req)
	if err != nil {
		log.Error("build prompt", "error", err)
		return fallback.For(req)
	}
	params := o.params[req.Stage]
	if params.System == "" {
		params.System = systemPrompt
	}

	attempt := func(ctx context.Context, n int) (site.Artifact, error) {
		cctx := llmclient.WithCallInfo(ctx, llmclient.CallInfo{
			RunID:    r.id,
			Stage:    string(req.Stage),
			Page:     req.Page,
			Sections: sections,
			Attempt:  n,
		})
		out, err := o.gen.Generate(cctx, prompt, llmclient.ContentJSON, params)
		if err != nil {
			return site.Artifact{}, err
		}
		return assemble(req, out.Text)
	}
	opts := []retry.Option{
		retry.OnRetry(func(n int, err error, wait time.Duration) {
			log.Warn("stage attempt failed", "attempt", n, "error", err, "wait", wait)
		}),
	}
	if o.sleeper != nil {
		opts = append(opts, retry.WithSleeper(o.sleeper))
	}
	a, outcome := retry.Do(ctx, o.policy, attempt, func() site.Artifact { return fallback.For(req) }, opts...)
	if outcome.Fallback {
		log.Warn("using fallback content", "attempts", outcome.Attempts, "error", outcome.LastErr)
	} else {
		log.Info("stage generated", "attempts", outcome.Attempts)
	}
	return a
}

// assemble turns provider text into a scoped, structurally fixed artifact.
func assemble(req site.Request, text string) (site.Artifact, error) {
	if req.Stage == site.StagePage {
		return assemblePage(req, text)
	}
	res := repair.ParseBlock(text)
	if res.Placeholder {
		return site.Artifact{}, fmt.Errorf("%s: %w", req.Label(), errUnusable)
	}
	if repair.IsIncomplete(res.Markup, llmclient.ContentMarkup) {
		return site.Artifact{}, fmt.Errorf("%s: %w", req.Label(), errIncomplete)
	}
	scope := fallback.HeaderScope
	if req.Stage == site.StageFooter {
		scope = fallback.FooterScope
	}
	return site.Artifact{
		Stage:      req.Stage,
		Markup:     fixer.EnsureScope(fixer.FixMarkup(res.Markup), scope),
		Stylesheet: fixer.ScopeCSS(res.Stylesheet, scope),
	}, nil
}

func assemblePage(req site.Request, text string) (site.Artifact, error) {
	res := repair.ParsePage(text)
	if res.Placeholder || len(res.Sections) == 0 {
		return site.Artifact{}, fmt.Errorf("%s: %w", req.Label(), errUnusable)
	}
	expected := site.SectionTypesFor(req.Spec, req.Page)
	seen := make(map[string]int, len(res.Sections))
	sections := make([]site.Section, 0, len(res.Sections))
	for i, s := range res.Sections {
		if repair.IsIncomplete(s.Markup, llmclient.ContentMarkup) {
			return site.Artifact{}, fmt.Errorf("%s section %d: %w", req.Label(), i+1, errIncomplete)
		}
		ref := sectionReference(s.Reference, i, expected)
		seen[ref]++
		if n := seen[ref]; n > 1 {
			ref = fmt.Sprintf("%s-%d", ref, n)
		}
		scope := fixer.SectionScope(ref)
		sections = append(sections, site.Section{
			Reference:  ref,
			Markup:     fixer.EnsureScope(fixer.FixMarkup(s.Markup), scope),
			Stylesheet: fixer.ScopeCSS(s.Stylesheet, scope),
		})
	}
	return site.Artifact{
		Stage:    site.StagePage,
		Page:     req.Page,
		Sections: tagImagery(req.Spec, sections),
	}, nil
}

func sectionReference(ref string, i int, expected []string) string {
	if strings.TrimSpace(ref) == "" {
		if i < len(expected) {
			return expected[i]
		}
		return fmt.Sprintf("section-%d", i+1)
	}
	return site.Slug(ref)
}
