// Package vectorstore holds the scope-partitioned similarity index contract
// shared by the valkey/redis, qdrant and in-memory backends.
package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/chunk"
	"github.com/kailas-cloud/medrag/internal/domain/filter"
	"github.com/kailas-cloud/medrag/internal/domain/match"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
)

// Store is a similarity index with one logical partition per scope.
//
// Search returns matches of the given scope only, score >= minScore, best first.
// An empty or unknown scope yields an empty result.
type Store interface {
	Search(ctx context.Context, s scope.Scope, embedding []float32, topK int, minScore float64) ([]match.ScoredMatch, error)
	Upsert(ctx context.Context, target scope.Scope, c *chunk.Chunk) error
	Delete(ctx context.Context, s scope.Scope, chunkID string) error
	Ping(ctx context.Context) error
	EnsureSchema(ctx context.Context) error
}

// Payload field names shared by every backend.
const (
	FieldChunkID     = "chunk_id"
	FieldScope       = filter.ScopeField
	FieldText        = "text"
	FieldDocType     = "doc_type"
	FieldSensitivity = "sensitivity"
	FieldSourceDoc   = "source_doc"
	FieldSource      = "source"
	FieldConfidence  = "confidence"
	FieldCreatedAt   = "created_at"
)

// ReturnFields lists the payload fields a search must fetch to rebuild a match.
var ReturnFields = []string{
	FieldChunkID, FieldScope, FieldText, FieldDocType,
	FieldSensitivity, FieldSourceDoc, FieldSource, FieldConfidence,
}

// Payload flattens a chunk into string fields. The embedding is not included.
func Payload(c *chunk.Chunk) map[string]string {
	md := c.Metadata()
	p := map[string]string{
		FieldChunkID:     c.ID(),
		FieldScope:       c.Scope().Key(),
		FieldText:        c.Text(),
		FieldSensitivity: md.Sensitivity,
		FieldSourceDoc:   md.SourceDocumentID,
		FieldCreatedAt:   strconv.FormatInt(c.CreatedAt().Unix(), 10),
	}
	if md.DocumentType != "" {
		p[FieldDocType] = md.DocumentType
	}
	if md.Source != "" {
		p[FieldSource] = md.Source
	}
	if md.Confidence != "" {
		p[FieldConfidence] = md.Confidence
	}
	return p
}

// MetadataFrom rebuilds chunk metadata from payload fields.
func MetadataFrom(p map[string]string) chunk.Metadata {
	return chunk.Metadata{
		DocumentType:     p[FieldDocType],
		Sensitivity:      p[FieldSensitivity],
		SourceDocumentID: p[FieldSourceDoc],
		Source:           p[FieldSource],
		Confidence:       p[FieldConfidence],
	}
}

// CreatedAtFrom parses the created_at payload field (unix seconds).
func CreatedAtFrom(p map[string]string) time.Time {
	sec, err := strconv.ParseInt(p[FieldCreatedAt], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// MatchFrom builds a scored match from a payload. The scope is taken from the
// payload, never from the query, so the guard can detect leaks.
func MatchFrom(chunkID string, score float64, p map[string]string) (match.ScoredMatch, error) {
	s, err := scope.Parse(p[FieldScope])
	if err != nil {
		return match.ScoredMatch{}, fmt.Errorf("chunk %s: %w", chunkID, err)
	}
	if id := p[FieldChunkID]; id != "" {
		chunkID = id
	}
	return match.New(chunkID, s, score, p[FieldText], MetadataFrom(p)), nil
}

// Unavailable wraps a backend failure into ErrVectorStoreUnavailable.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrVectorStoreUnavailable, op, err)
}

// ClampTopK bounds topK to [1, max].
func ClampTopK(topK, limit int) int {
	if topK < 1 {
		return 1
	}
	if limit > 0 && topK > limit {
		return limit
	}
	return topK
}
