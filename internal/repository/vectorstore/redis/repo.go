package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/medrag/internal/db"
	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/chunk"
	"github.com/kailas-cloud/medrag/internal/domain/filter"
	"github.com/kailas-cloud/medrag/internal/domain/match"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
	"github.com/kailas-cloud/medrag/internal/repository/vectorstore"
)

const (
	// IndexName is the FT index over every chunk hash.
	IndexName = domain.KeyPrefix + "chunks:idx"
	keyPrefix = domain.KeyPrefix + "chunk:"

	maxTopK = 100
)

// store is the consumer interface for the chunk index (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	Ping(ctx context.Context) error
}

// Repo is the valkey/redis vector store. Chunks live in hashes keyed
// medrag:chunk:<scope>:<id>; searches pre-filter on the scope TAG.
type Repo struct {
	store      store
	dimensions int
	hnsw       db.HNSW
}

var _ vectorstore.Store = (*Repo)(nil)

// New creates a valkey/redis vector store. hnsw.EFRuntime, when set, is also
// sent with every query.
func New(s store, dimensions int, hnsw db.HNSW) *Repo {
	return &Repo{store: s, dimensions: dimensions, hnsw: hnsw}
}

// EnsureSchema creates the chunk index if it does not exist.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	def, err := db.NewIndex(IndexName).
		Prefix(keyPrefix).
		Tag(vectorstore.FieldScope).
		Numeric(vectorstore.FieldCreatedAt).
		Vector(db.VectorField, r.dimensions, r.hnsw).
		Build()
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return vectorstore.Unavailable("create index", err)
	}
	return nil
}

// Search runs a scope-filtered KNN query.
func (r *Repo) Search(
	ctx context.Context, s scope.Scope, embedding []float32, topK int, minScore float64,
) ([]match.ScoredMatch, error) {
	if s.IsZero() || len(embedding) == 0 {
		return nil, nil
	}
	expr, err := filter.ForScope(s.Key())
	if err != nil {
		return nil, fmt.Errorf("scope filter: %w", err)
	}

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    IndexName,
		Filters:      expr,
		Vector:       embedding,
		K:            vectorstore.ClampTopK(topK, maxTopK),
		EFRuntime:    r.hnsw.EFRuntime,
		ReturnFields: vectorstore.ReturnFields,
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, nil
		}
		return nil, vectorstore.Unavailable("search", err)
	}

	out := make([]match.ScoredMatch, 0, len(res.Entries))
	for _, e := range res.Entries {
		if e.Score < minScore {
			continue
		}
		m, err := vectorstore.MatchFrom(chunkIDFromKey(e.Key), e.Score, e.Fields)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	match.SortByScore(out)
	return out, nil
}

// Upsert writes the chunk hash under the target scope.
func (r *Repo) Upsert(ctx context.Context, target scope.Scope, c *chunk.Chunk) error {
	if len(c.Embedding()) != r.dimensions {
		return fmt.Errorf("%w: embedding has %d dimensions, index expects %d",
			domain.ErrInvalidChunk, len(c.Embedding()), r.dimensions)
	}
	fields := vectorstore.Payload(c)
	fields[db.VectorField] = vectorToBytes(c.Embedding())

	if err := r.store.HSet(ctx, chunkKey(target, c.ID()), fields); err != nil {
		return vectorstore.Unavailable("upsert", err)
	}
	return nil
}

// Delete removes a chunk. Deleting a missing chunk is not an error.
func (r *Repo) Delete(ctx context.Context, s scope.Scope, chunkID string) error {
	if err := r.store.Del(ctx, chunkKey(s, chunkID)); err != nil {
		return vectorstore.Unavailable("delete", err)
	}
	return nil
}

// Ping checks backend connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return vectorstore.Unavailable("ping", err)
	}
	return nil
}

func chunkKey(s scope.Scope, id string) string {
	return keyPrefix + s.Key() + ":" + id
}

// chunkIDFromKey extracts the trailing id; chunk ids never contain ':'.
func chunkIDFromKey(key string) string {
	if i := strings.LastIndexByte(key, ':'); i >= 0 {
		return key[i+1:]
	}
	return key
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
