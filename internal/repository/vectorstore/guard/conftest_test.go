package guard

import (
	"context"

	"github.com/kailas-cloud/medrag/internal/domain/chunk"
	"github.com/kailas-cloud/medrag/internal/domain/match"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
)

// mockStore implements vectorstore.Store for tests.
type mockStore struct {
	searchFn func(ctx context.Context, s scope.Scope, emb []float32, topK int, minScore float64) ([]match.ScoredMatch, error)
	upserts  int
	deletes  int
}

func (m *mockStore) Search(
	ctx context.Context, s scope.Scope, emb []float32, topK int, minScore float64,
) ([]match.ScoredMatch, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, s, emb, topK, minScore)
	}
	return nil, nil
}

func (m *mockStore) Upsert(context.Context, scope.Scope, *chunk.Chunk) error {
	m.upserts++
	return nil
}

func (m *mockStore) Delete(context.Context, scope.Scope, string) error {
	m.deletes++
	return nil
}

func (m *mockStore) Ping(context.Context) error         { return nil }
func (m *mockStore) EnsureSchema(context.Context) error { return nil }
