package escalation

import (
	"context"
	"sync"

	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/chunk"
	"github.com/kailas-cloud/medrag/internal/domain/match"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
)

type mockSearcher struct {
	mu       sync.Mutex
	calls    []string
	searchFn func(ctx context.Context, s scope.Scope, topK int, minScore float64) ([]match.ScoredMatch, error)
}

func (m *mockSearcher) Search(
	ctx context.Context, s scope.Scope, _ []float32, topK int, minScore float64,
) ([]match.ScoredMatch, error) {
	m.mu.Lock()
	m.calls = append(m.calls, s.Key())
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(ctx, s, topK, minScore)
	}
	return nil, nil
}

type mockCompleter struct {
	calls      int
	last       domain.CompletionRequest
	completeFn func(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}

func (m *mockCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	m.calls++
	m.last = req
	if m.completeFn != nil {
		return m.completeFn(ctx, req)
	}
	return domain.Completion{Text: "llm answer", UsedTokens: 42}, nil
}

// byScope answers each scope key from a fixed table.
func byScope(table map[string][]match.ScoredMatch) func(context.Context, scope.Scope, int, float64) ([]match.ScoredMatch, error) {
	return func(_ context.Context, s scope.Scope, _ int, _ float64) ([]match.ScoredMatch, error) {
		return table[s.Key()], nil
	}
}

func hit(s scope.Scope, id string, score float64) match.ScoredMatch {
	return match.New(id, s, score, "text "+id, chunk.Metadata{SourceDocumentID: "doc-" + id})
}

func derivedHit(s scope.Scope, id string, score float64) match.ScoredMatch {
	return match.New(id, s, score, "qa "+id, chunk.Metadata{Source: chunk.SourceDerivedQA})
}

func patientChain() (scope.Chain, scope.Scope, scope.Scope) {
	c, _ := scope.NewChain("f1", "p1")
	p, _ := scope.Patient("f1", "p1")
	f, _ := scope.FacilityShared("f1")
	return c, p, f
}
