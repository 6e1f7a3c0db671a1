package db

import "github.com/kailas-cloud/medrag/internal/domain/filter"

// VectorField is the hash field holding the little-endian float32 embedding blob.
const VectorField = "vector"

// KNNQuery is a filtered nearest-neighbour query.
type KNNQuery struct {
	IndexName    string
	Filters      filter.Expression
	Vector       []float32
	K            int
	EFRuntime    int // 0 keeps the index default
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is one hit. Score is cosine similarity in [-1, 1].
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
