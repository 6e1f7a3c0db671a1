package chunk

import (
	"context"

	"github.com/kailas-cloud/medrag/internal/domain/chunk"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
)

// Store writes chunks into scope partitions.
type Store interface {
	Upsert(ctx context.Context, target scope.Scope, c *chunk.Chunk) error
	Delete(ctx context.Context, s scope.Scope, chunkID string) error
}

// Invalidator drops cached results that depend on a scope.
// origin is "local" or "remote".
type Invalidator interface {
	InvalidateFrom(s scope.Scope, origin string) int
}

// Broadcaster tells other replicas about a changed scope.
type Broadcaster interface {
	Publish(ctx context.Context, s scope.Scope) error
}
