package domain

import "context"

type tokenUsageKey struct{}

// TokenUsage collects model token usage for a single request.
// The handler puts a pointer into the context, services add to it,
// the handler reports it in response headers.
type TokenUsage struct {
	EmbeddingTokens  int
	GenerationTokens int
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *TokenUsage) {
	u := &TokenUsage{}
	return context.WithValue(ctx, tokenUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *TokenUsage {
	u, _ := ctx.Value(tokenUsageKey{}).(*TokenUsage)
	return u
}

// AddEmbedding records embedding tokens. Safe on nil.
func (u *TokenUsage) AddEmbedding(n int) {
	if u != nil {
		u.EmbeddingTokens += n
	}
}

// AddGeneration records generation tokens. Safe on nil.
func (u *TokenUsage) AddGeneration(n int) {
	if u != nil {
		u.GenerationTokens += n
	}
}
