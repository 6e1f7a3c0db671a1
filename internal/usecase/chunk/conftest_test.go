package chunk

import (
	"context"

	"github.com/kailas-cloud/medrag/internal/domain"
	domchunk "github.com/kailas-cloud/medrag/internal/domain/chunk"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
)

type mockStore struct {
	upserted []string
	deleted  []string
	upsertFn func(ctx context.Context, target scope.Scope, c *domchunk.Chunk) error
}

func (m *mockStore) Upsert(ctx context.Context, target scope.Scope, c *domchunk.Chunk) error {
	if m.upsertFn != nil {
		if err := m.upsertFn(ctx, target, c); err != nil {
			return err
		}
	}
	m.upserted = append(m.upserted, target.Key()+"/"+c.ID())
	return nil
}

func (m *mockStore) Delete(_ context.Context, s scope.Scope, chunkID string) error {
	m.deleted = append(m.deleted, s.Key()+"/"+chunkID)
	return nil
}

type mockInvalidator struct {
	calls []string
}

func (m *mockInvalidator) InvalidateFrom(s scope.Scope, origin string) int {
	m.calls = append(m.calls, origin+":"+s.Key())
	return 0
}

type mockBus struct {
	published []string
	err       error
}

func (m *mockBus) Publish(_ context.Context, s scope.Scope) error {
	m.published = append(m.published, s.Key())
	return m.err
}

type mockEmbedder struct {
	err error
}

func (m *mockEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0}}, nil
}
