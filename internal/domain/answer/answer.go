package answer

import "github.com/kailas-cloud/medrag/internal/domain/escalation"

// Confidence is the coarse trust level of an answer.
type Confidence string

const (
	// ConfidenceHigh is a retrieval-satisfied answer over ingested documents.
	ConfidenceHigh Confidence = "high"
	// ConfidenceMedium is a grounded LLM answer or one built only on derived Q/A.
	ConfidenceMedium Confidence = "medium"
	// ConfidenceLow is an ungrounded LLM answer.
	ConfidenceLow Confidence = "low"
)

// Citation points to one source used by the answer.
type Citation struct {
	ChunkID          string
	Scope            string
	SourceDocumentID string
	DocumentType     string
	Score            float64
	Preview          string
	Derived          bool
}

// Answer is the final assembled response to a query.
type Answer struct {
	Text            string
	Citations       []Citation
	Confidence      Confidence
	ConfidenceScore float64
	SatisfiedAt     escalation.Tier
	UsedLLMFallback bool
}
