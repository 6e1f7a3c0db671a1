package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/chunk"
	"github.com/kailas-cloud/medrag/internal/domain/match"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
	"github.com/kailas-cloud/medrag/internal/repository/vectorstore"
)

var errNoEmbedder = errors.New("memory store only accepts precomputed embeddings")

// Repo is an in-process vector store on chromem-go: one collection per scope
// plus a scope where-filter on every query.
type Repo struct {
	db         *chromem.DB
	dimensions int

	mu sync.Mutex // serializes collection creation
}

var _ vectorstore.Store = (*Repo)(nil)

// New creates an empty in-memory store.
func New(dimensions int) *Repo {
	return &Repo{db: chromem.NewDB(), dimensions: dimensions}
}

// EnsureSchema is a no-op: collections are created on first upsert.
func (r *Repo) EnsureSchema(context.Context) error { return nil }

// Ping always succeeds.
func (r *Repo) Ping(context.Context) error { return nil }

// Search queries the scope's collection. nResults is capped at the collection size.
func (r *Repo) Search(
	ctx context.Context, s scope.Scope, embedding []float32, topK int, minScore float64,
) ([]match.ScoredMatch, error) {
	if s.IsZero() || len(embedding) == 0 {
		return nil, nil
	}
	col := r.db.GetCollection(s.Key(), noEmbed)
	if col == nil {
		return nil, nil
	}
	n := col.Count()
	if n == 0 {
		return nil, nil
	}
	k := min(vectorstore.ClampTopK(topK, 0), n)

	q := make([]float32, len(embedding))
	copy(q, embedding)
	res, err := col.QueryEmbedding(ctx, q, k, map[string]string{vectorstore.FieldScope: s.Key()}, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("query %s: %w", s.Key(), ctx.Err())
		}
		return nil, vectorstore.Unavailable("query", err)
	}

	out := make([]match.ScoredMatch, 0, len(res))
	for _, hit := range res {
		score := float64(hit.Similarity)
		if score < minScore {
			continue
		}
		m, err := vectorstore.MatchFrom(hit.ID, score, hit.Metadata)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	match.SortByScore(out)
	return out, nil
}

// Upsert adds or replaces the chunk in the target scope's collection.
func (r *Repo) Upsert(ctx context.Context, target scope.Scope, c *chunk.Chunk) error {
	if len(c.Embedding()) != r.dimensions {
		return fmt.Errorf("%w: embedding has %d dimensions, store expects %d",
			domain.ErrInvalidChunk, len(c.Embedding()), r.dimensions)
	}
	col, err := r.collection(target)
	if err != nil {
		return err
	}

	emb := make([]float32, len(c.Embedding()))
	copy(emb, c.Embedding())
	err = col.AddDocument(ctx, chromem.Document{
		ID:        c.ID(),
		Metadata:  vectorstore.Payload(c),
		Embedding: emb,
		Content:   c.Text(),
	})
	if err != nil {
		return vectorstore.Unavailable("add", err)
	}
	return nil
}

// Delete removes a chunk. Unknown scopes and ids are ignored.
func (r *Repo) Delete(ctx context.Context, s scope.Scope, chunkID string) error {
	col := r.db.GetCollection(s.Key(), noEmbed)
	if col == nil {
		return nil
	}
	if err := col.Delete(ctx, nil, nil, chunkID); err != nil {
		return vectorstore.Unavailable("delete", err)
	}
	return nil
}

func (r *Repo) collection(s scope.Scope) (*chromem.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	col, err := r.db.GetOrCreateCollection(s.Key(), nil, noEmbed)
	if err != nil {
		return nil, vectorstore.Unavailable("collection", err)
	}
	return col, nil
}

func noEmbed(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedder
}
