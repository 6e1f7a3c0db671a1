package match

import (
	"sort"

	"github.com/kailas-cloud/medrag/internal/domain/chunk"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
)

// ScoredMatch is a single search hit within one scope.
type ScoredMatch struct {
	chunkID  string
	scope    scope.Scope
	score    float64
	text     string
	metadata chunk.Metadata
}

// New creates a scored match.
func New(chunkID string, s scope.Scope, score float64, text string, md chunk.Metadata) ScoredMatch {
	return ScoredMatch{chunkID: chunkID, scope: s, score: score, text: text, metadata: md}
}

// ChunkID returns the matched chunk identifier.
func (m ScoredMatch) ChunkID() string { return m.chunkID }

// Scope returns the scope the match was found in.
func (m ScoredMatch) Scope() scope.Scope { return m.scope }

// Score returns cosine similarity in [-1, 1].
func (m ScoredMatch) Score() float64 { return m.score }

// Text returns the chunk text.
func (m ScoredMatch) Text() string { return m.text }

// Metadata returns the chunk metadata.
func (m ScoredMatch) Metadata() chunk.Metadata { return m.metadata }

// SourceDocumentID returns the source document, falling back to the chunk id.
func (m ScoredMatch) SourceDocumentID() string {
	if m.metadata.SourceDocumentID != "" {
		return m.metadata.SourceDocumentID
	}
	return m.chunkID
}

// SortByScore orders matches by descending score, ties broken by chunk id.
func SortByScore(ms []ScoredMatch) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].score != ms[j].score {
			return ms[i].score > ms[j].score
		}
		return ms[i].chunkID < ms[j].chunkID
	})
}

// Best returns the highest-scoring match.
func Best(ms []ScoredMatch) (ScoredMatch, bool) {
	if len(ms) == 0 {
		return ScoredMatch{}, false
	}
	best := ms[0]
	for _, m := range ms[1:] {
		if m.score > best.score {
			best = m
		}
	}
	return best, true
}
