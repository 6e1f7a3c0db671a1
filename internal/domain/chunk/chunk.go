package chunk

import (
	"fmt"
	"regexp"
	"time"

	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// MaxTextSize is the maximum chunk text size in bytes.
const MaxTextSize = 32768

// SourceDerivedQA marks chunks written back from answered queries.
const SourceDerivedQA = "derived_qa"

// Sensitivity levels of a chunk.
const (
	SensitivityPublic     = "public"
	SensitivityInternal   = "internal"
	SensitivityRestricted = "restricted"
)

// Metadata describes where a chunk came from.
type Metadata struct {
	DocumentType     string
	Sensitivity      string
	SourceDocumentID string
	Source           string
	// Confidence is set on derived chunks only (low, medium, high).
	Confidence string
}

// IsDerived reports whether the chunk is a written-back Q/A pair.
func (m Metadata) IsDerived() bool { return m.Source == SourceDerivedQA }

// Chunk is a document chunk owned by one scope (immutable value object).
type Chunk struct {
	id        string
	scope     scope.Scope
	text      string
	embedding []float32
	metadata  Metadata
	createdAt time.Time
}

// New validates and creates a Chunk.
// ID: ^[a-zA-Z0-9_.-]+$, 1-256 chars. Text: non-empty, max 32KB. Embedding: non-empty.
func New(id string, s scope.Scope, text string, embedding []float32, md Metadata, createdAt time.Time) (Chunk, error) {
	if id == "" {
		return Chunk{}, fmt.Errorf("%w: chunk ID is required", domain.ErrInvalidChunk)
	}
	if len(id) > 256 {
		return Chunk{}, fmt.Errorf("%w: chunk ID too long (max 256)", domain.ErrInvalidChunk)
	}
	if !idRegex.MatchString(id) {
		return Chunk{}, fmt.Errorf("%w: chunk ID must be alphanumeric with '_', '-' or '.'", domain.ErrInvalidChunk)
	}
	if s.IsZero() {
		return Chunk{}, fmt.Errorf("%w: scope is required", domain.ErrInvalidChunk)
	}
	if text == "" {
		return Chunk{}, fmt.Errorf("%w: text is required", domain.ErrInvalidChunk)
	}
	if len(text) > MaxTextSize {
		return Chunk{}, fmt.Errorf("%w: text too large (max %d bytes)", domain.ErrInvalidChunk, MaxTextSize)
	}
	if len(embedding) == 0 {
		return Chunk{}, fmt.Errorf("%w: embedding is required", domain.ErrInvalidChunk)
	}
	switch md.Sensitivity {
	case "":
		md.Sensitivity = SensitivityInternal
	case SensitivityPublic, SensitivityInternal, SensitivityRestricted:
	default:
		return Chunk{}, fmt.Errorf("%w: unknown sensitivity level %q", domain.ErrInvalidChunk, md.Sensitivity)
	}
	if md.SourceDocumentID == "" {
		md.SourceDocumentID = id
	}

	return Chunk{
		id:        id,
		scope:     s,
		text:      text,
		embedding: cloneVector(embedding),
		metadata:  md,
		createdAt: createdAt.UTC(),
	}, nil
}

// Reconstruct creates a Chunk without validation (storage hydration).
func Reconstruct(id string, s scope.Scope, text string, embedding []float32, md Metadata, createdAt time.Time) Chunk {
	return Chunk{id: id, scope: s, text: text, embedding: embedding, metadata: md, createdAt: createdAt}
}

// ID returns the chunk identifier (unique within its scope).
func (c *Chunk) ID() string { return c.id }

// Scope returns the owning scope.
func (c *Chunk) Scope() scope.Scope { return c.scope }

// Text returns the chunk text.
func (c *Chunk) Text() string { return c.text }

// Embedding returns the embedding vector.
func (c *Chunk) Embedding() []float32 { return c.embedding }

// Metadata returns chunk metadata.
func (c *Chunk) Metadata() Metadata { return c.metadata }

// CreatedAt returns the creation time (UTC).
func (c *Chunk) CreatedAt() time.Time { return c.createdAt }

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
