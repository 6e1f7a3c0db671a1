package escalation

import (
	"context"

	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/match"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
)

// Searcher runs a similarity search inside one scope.
type Searcher interface {
	Search(ctx context.Context, s scope.Scope, embedding []float32, topK int, minScore float64) ([]match.ScoredMatch, error)
}

// Completer is the LLM fallback.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}
