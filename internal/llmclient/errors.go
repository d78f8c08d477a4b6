package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"time"
)

// Kind classifies provider failures.
type Kind int

const (
	KindUnexpected Kind = iota
	KindNetwork
	KindTimeout
	KindQuotaExceeded
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindQuotaExceeded:
		return "quota_exceeded"
	default:
		return "unexpected"
	}
}

// Sentinels for errors.Is against a *ProviderError.
var (
	ErrNetwork       = errors.New("provider unreachable")
	ErrTimeout       = errors.New("provider timeout")
	ErrQuotaExceeded = errors.New("provider quota exceeded")
	ErrUnexpected    = errors.New("unexpected provider response")
)

// ProviderError is the only error type returned by Provider.Generate.
type ProviderError struct {
	Kind       Kind
	Provider   string
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Permanent makes quota errors stop the retry controller immediately.
func (e *ProviderError) Permanent() bool { return e.Kind == KindQuotaExceeded }

// Transient reports whether a transport-level retry could help.
func (e *ProviderError) Transient() bool {
	return e.Kind == KindNetwork || e.Kind == KindTimeout
}

func (k Kind) sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindTimeout:
		return ErrTimeout
	case KindQuotaExceeded:
		return ErrQuotaExceeded
	default:
		return ErrUnexpected
	}
}

func newError(provider string, kind Kind, err error) *ProviderError {
	return &ProviderError{Kind: kind, Provider: provider, Err: err}
}

func unexpected(provider string, format string, args ...any) *ProviderError {
	return newError(provider, KindUnexpected, fmt.Errorf(format, args...))
}

// classify maps transport errors onto a Kind. Errors that are already
// *ProviderError are returned unchanged.
func classify(provider string, err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return pErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(provider, KindTimeout, err)
	}
	var nErr net.Error
	if errors.As(err, &nErr) && nErr.Timeout() {
		return newError(provider, KindTimeout, err)
	}
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return newError(provider, KindNetwork, err)
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	var urlErr *url.Error
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.As(err, &urlErr) {
		return newError(provider, KindNetwork, err)
	}
	return newError(provider, KindUnexpected, err)
}

// classifyStatus maps a non-2xx HTTP status onto a Kind.
func classifyStatus(status int) Kind {
	switch {
	case status == 429:
		return KindQuotaExceeded
	case status == 408 || status == 504:
		return KindTimeout
	case status == 502 || status == 503:
		return KindNetwork
	default:
		return KindUnexpected
	}
}
