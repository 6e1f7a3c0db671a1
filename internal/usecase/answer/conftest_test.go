package answer

import (
	"context"
	"sync"

	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/chunk"
	"github.com/kailas-cloud/medrag/internal/domain/match"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
)

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

type mockWriter struct {
	mu     sync.Mutex
	chunks []chunk.Chunk
	putFn  func(ctx context.Context, c chunk.Chunk) error
}

func (m *mockWriter) Put(ctx context.Context, c chunk.Chunk) error {
	if m.putFn != nil {
		if err := m.putFn(ctx, c); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.chunks = append(m.chunks, c)
	m.mu.Unlock()
	return nil
}

func (m *mockWriter) stored() []chunk.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]chunk.Chunk, len(m.chunks))
	copy(out, m.chunks)
	return out
}

func doc(s scope.Scope, id, source string, score float64) match.ScoredMatch {
	return match.New(id, s, score, "passage "+id, chunk.Metadata{SourceDocumentID: source, DocumentType: "lab_report"})
}

func derived(s scope.Scope, id string, score float64) match.ScoredMatch {
	return match.New(id, s, score, "qa "+id, chunk.Metadata{SourceDocumentID: id, Source: chunk.SourceDerivedQA})
}
