// Package db is the Valkey/Redis facade: the chunk index (hashes plus FT.*)
// and the TTL byte cache behind the embedding cache.
package db

import (
	"context"
	"time"
)

// Store is everything medrag needs from one Valkey/Redis deployment.
type Store interface {
	ChunkIndex
	ByteCache
	Ping(ctx context.Context) error
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}

// ChunkIndex stores chunk hashes and runs vector queries over them.
type ChunkIndex interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}

// ByteCache is a TTL cache for opaque values.
type ByteCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
