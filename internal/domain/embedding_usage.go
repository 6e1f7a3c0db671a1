package domain

import (
	"context"
	"sync/atomic"
)

type embeddingUsageKey struct{}

// EmbeddingUsage collects embedding token usage for a single request.
// The handler puts it into the context before calling the service and reads it
// for response headers. Background work that keeps the request values (write-back)
// may still add to it, so counters are atomic.
type EmbeddingUsage struct {
	tokens atomic.Int64
	calls  atomic.Int64
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records one embedding call. A cache hit counts as a call with 0 tokens.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u != nil {
		u.tokens.Add(int64(n))
		u.calls.Add(1)
	}
}

// TotalTokens returns the tokens consumed so far.
func (u *EmbeddingUsage) TotalTokens() int {
	if u == nil {
		return 0
	}
	return int(u.tokens.Load())
}

// Used reports whether any embedding was requested.
func (u *EmbeddingUsage) Used() bool {
	return u != nil && u.calls.Load() > 0
}
