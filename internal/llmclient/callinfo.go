package llmclient

import "context"

type callInfoKey struct{}

// CallInfo identifies the pipeline stage a generation call belongs to.
type CallInfo struct {
	RunID    string
	Stage    string
	Page     string
	Sections []string
	Attempt  int

	// Completion marks the follow-up call that continues truncated output.
	Completion bool
}

// WithCallInfo attaches stage information for logging and scripted providers.
func WithCallInfo(ctx context.Context, info CallInfo) context.Context {
	return context.WithValue(ctx, callInfoKey{}, info)
}

// CallInfoFrom returns the stage information attached to ctx, if any.
func CallInfoFrom(ctx context.Context) CallInfo {
	info, _ := ctx.Value(callInfoKey{}).(CallInfo)
	return info
}
