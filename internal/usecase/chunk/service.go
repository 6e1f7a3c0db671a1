package chunk

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/domain"
	domchunk "github.com/kailas-cloud/medrag/internal/domain/chunk"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
)

// IngestInput is a chunk to embed and store.
type IngestInput struct {
	ID       string
	Scope    scope.Scope
	Text     string
	Metadata domchunk.Metadata
}

// Service is the ingestion path. Every write invalidates the cached results of its scope.
type Service struct {
	store  Store
	embed  domain.Embedder
	cache  Invalidator
	bus    Broadcaster
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Service. bus may be nil for single-replica deployments.
func New(store Store, embed domain.Embedder, cache Invalidator, bus Broadcaster, logger *zap.Logger) *Service {
	return &Service{store: store, embed: embed, cache: cache, bus: bus, logger: logger, now: time.Now}
}

// Ingest embeds the text and stores the chunk.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (domchunk.Chunk, error) {
	if in.Scope.IsZero() {
		return domchunk.Chunk{}, fmt.Errorf("%w: scope is required", domain.ErrInvalidChunk)
	}
	if in.Text == "" {
		return domchunk.Chunk{}, fmt.Errorf("%w: text is required", domain.ErrInvalidChunk)
	}
	if in.Metadata.IsDerived() {
		return domchunk.Chunk{}, fmt.Errorf("%w: source %q is reserved for answer write-back",
			domain.ErrInvalidChunk, domchunk.SourceDerivedQA)
	}

	emb, err := s.embed.Embed(ctx, in.Text)
	if err != nil {
		return domchunk.Chunk{}, fmt.Errorf("embed chunk: %w", err)
	}

	c, err := domchunk.New(in.ID, in.Scope, in.Text, emb.Embedding, in.Metadata, s.now())
	if err != nil {
		return domchunk.Chunk{}, err
	}
	if err := s.Put(ctx, c); err != nil {
		return domchunk.Chunk{}, err
	}
	return c, nil
}

// Put stores an already embedded chunk in its own scope.
func (s *Service) Put(ctx context.Context, c domchunk.Chunk) error {
	if err := s.store.Upsert(ctx, c.Scope(), &c); err != nil {
		return fmt.Errorf("upsert chunk: %w", err)
	}
	s.invalidate(ctx, c.Scope())
	return nil
}

// Delete removes a chunk. Deleting a missing chunk is not an error.
func (s *Service) Delete(ctx context.Context, sc scope.Scope, chunkID string) error {
	if err := s.store.Delete(ctx, sc, chunkID); err != nil {
		return fmt.Errorf("delete chunk: %w", err)
	}
	s.invalidate(ctx, sc)
	return nil
}

// RemoteInvalidate applies an invalidation received from another replica.
func (s *Service) RemoteInvalidate(_ context.Context, sc scope.Scope) {
	n := s.cache.InvalidateFrom(sc, "remote")
	s.logger.Debug("Remote scope change", zap.String("scope", sc.Redacted()), zap.Int("dropped", n))
}

func (s *Service) invalidate(ctx context.Context, sc scope.Scope) {
	n := s.cache.InvalidateFrom(sc, "local")
	s.logger.Debug("Scope changed", zap.String("scope", sc.Redacted()), zap.Int("dropped", n))
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, sc); err != nil {
		s.logger.Warn("Invalidation broadcast failed", zap.String("scope", sc.Redacted()), zap.Error(err))
	}
}
