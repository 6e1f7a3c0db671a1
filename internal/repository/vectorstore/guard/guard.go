// Package guard wraps a vector store with scope enforcement: every returned
// match is re-checked against the searched scope and mismatched upserts are refused.
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/chunk"
	"github.com/kailas-cloud/medrag/internal/domain/match"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
	"github.com/kailas-cloud/medrag/internal/metrics"
	"github.com/kailas-cloud/medrag/internal/repository/vectorstore"
)

// Store enforces scope isolation around any vectorstore.Store.
type Store struct {
	inner   vectorstore.Store
	backend string
	logger  *zap.Logger
	tracer  trace.Tracer
}

var _ vectorstore.Store = (*Store)(nil)

// New wraps inner. backend labels metrics and spans ("redis", "qdrant", "memory").
func New(inner vectorstore.Store, backend string, logger *zap.Logger) *Store {
	return &Store{
		inner:   inner,
		backend: backend,
		logger:  logger,
		tracer:  otel.Tracer("medrag/vectorstore"),
	}
}

// Search delegates and drops any match outside s, score below minScore or past topK.
func (g *Store) Search(
	ctx context.Context, s scope.Scope, embedding []float32, topK int, minScore float64,
) ([]match.ScoredMatch, error) {
	if s.IsZero() {
		return nil, nil
	}
	ctx, span := g.tracer.Start(ctx, "vectorstore.Search", trace.WithAttributes(
		attribute.String("vectorstore.backend", g.backend),
		attribute.String("scope.kind", string(s.Kind())),
		attribute.Int("top_k", topK),
		attribute.Float64("min_score", minScore),
	))
	defer span.End()

	start := time.Now()
	res, err := g.inner.Search(ctx, s, embedding, topK, minScore)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.VectorSearchDuration.WithLabelValues(g.backend, string(s.Kind()), status).
		Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !errors.Is(err, domain.ErrVectorStoreUnavailable) && ctx.Err() == nil {
			err = vectorstore.Unavailable("search", err)
		}
		return nil, err
	}

	out := make([]match.ScoredMatch, 0, len(res))
	for _, m := range res {
		if !m.Scope().Equal(s) {
			metrics.IsolationViolationsTotal.WithLabelValues(g.backend, string(s.Kind())).Inc()
			g.logger.Error("Dropped match from foreign scope",
				zap.String("backend", g.backend),
				zap.String("searched_scope", s.Redacted()),
				zap.String("match_scope", m.Scope().Redacted()),
				zap.String("chunk_id", m.ChunkID()),
			)
			continue
		}
		if m.Score() < minScore {
			continue
		}
		out = append(out, m)
	}
	match.SortByScore(out)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}

	span.SetAttributes(attribute.Int("matches", len(out)))
	return out, nil
}

// Upsert refuses chunks whose own scope differs from the target scope.
func (g *Store) Upsert(ctx context.Context, target scope.Scope, c *chunk.Chunk) error {
	if target.IsZero() {
		return fmt.Errorf("%w: target scope is required", domain.ErrInvalidScope)
	}
	if !c.Scope().Equal(target) {
		return fmt.Errorf("%w: chunk %s belongs to %s, not %s",
			domain.ErrScopeMismatch, c.ID(), c.Scope().Key(), target.Key())
	}
	return g.inner.Upsert(ctx, target, c)
}

// Delete requires a concrete scope.
func (g *Store) Delete(ctx context.Context, s scope.Scope, chunkID string) error {
	if s.IsZero() {
		return fmt.Errorf("%w: scope is required", domain.ErrInvalidScope)
	}
	if chunkID == "" {
		return fmt.Errorf("%w: chunk ID is required", domain.ErrInvalidChunk)
	}
	return g.inner.Delete(ctx, s, chunkID)
}

// Ping delegates.
func (g *Store) Ping(ctx context.Context) error { return g.inner.Ping(ctx) }

// EnsureSchema delegates.
func (g *Store) EnsureSchema(ctx context.Context) error { return g.inner.EnsureSchema(ctx) }
