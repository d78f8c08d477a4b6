package llm

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegen/internal/llmclient"
	"sitegen/internal/retry"
)

func TestWrapOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next llmclient.Provider) llmclient.Provider {
			order = append(order, name)
			return next
		}
	}
	Wrap(newSpy(), mark("A"), mark("B"))
	// Inner-most middleware is applied first.
	assert.Equal(t, []string{"B", "A"}, order)
}

func TestRetryMiddlewareRetriesTransientOnly(t *testing.T) {
	policy := retry.Policy{Attempts: 3, InitialDelay: time.Millisecond, Multiplier: 1}

	spy := newSpy(`{"ok":true}`)
	spy.errs = []error{
		&llmclient.ProviderError{Kind: llmclient.KindNetwork},
		&llmclient.ProviderError{Kind: llmclient.KindTimeout},
	}
	out, err := Retry(policy)(spy).Generate(context.Background(), "p", llmclient.Params{})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out.Text)
	assert.Equal(t, 3, spy.calls())

	spy = newSpy()
	spy.errs = []error{&llmclient.ProviderError{Kind: llmclient.KindQuotaExceeded}}
	_, err = Retry(policy)(spy).Generate(context.Background(), "p", llmclient.Params{})
	assert.ErrorIs(t, err, llmclient.ErrQuotaExceeded)
	assert.Equal(t, 1, spy.calls())

	spy = newSpy()
	spy.errs = []error{errors.New("plain")}
	_, err = Retry(policy)(spy).Generate(context.Background(), "p", llmclient.Params{})
	assert.Error(t, err)
	assert.Equal(t, 1, spy.calls())
}

func TestRetryMiddlewareDisabledForSingleAttempt(t *testing.T) {
	spy := newSpy()
	assert.Same(t, llmclient.Provider(spy), Retry(retry.Policy{Attempts: 1})(spy))
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	spy := newSpy()
	spy.errs = []error{nil, &llmclient.ProviderError{Kind: llmclient.KindNetwork, Provider: "fake"}}
	cli := WithLogging(logger)(spy)

	ctx := llmclient.WithCallInfo(context.Background(), llmclient.CallInfo{RunID: "r1", Stage: "header"})
	_, err := cli.Generate(ctx, "prompt", llmclient.Params{})
	require.NoError(t, err)
	_, err = cli.Generate(ctx, "prompt", llmclient.Params{})
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "llm call")
	assert.Contains(t, out, "stage=header")
	assert.Contains(t, out, "run_id=r1")
	assert.Contains(t, out, "llm call failed")
}
