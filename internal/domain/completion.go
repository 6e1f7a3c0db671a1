package domain

import "context"

// CompletionRequest is the input of an LLM fallback call.
type CompletionRequest struct {
	Query     string
	QueryType string
	// Passages are best-available retrieved texts in rank order. May be empty.
	Passages []string
}

// Completion is the generated answer and the tokens it consumed.
type Completion struct {
	Text       string
	UsedTokens int
}

// Completer generates an answer when retrieval is insufficient.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}
