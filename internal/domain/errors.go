package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFacility signals a facility id that does not resolve.
	ErrUnknownFacility = errors.New("unknown facility")
	// ErrScopeMismatch signals a patient that does not belong to the facility.
	ErrScopeMismatch = errors.New("scope mismatch")
	// ErrEmbeddingUnavailable signals an embedding provider failure.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrLLMUnavailable signals an LLM completion failure.
	ErrLLMUnavailable = errors.New("llm unavailable")
	// ErrDeadlineExceeded signals that the caller deadline expired mid-query.
	ErrDeadlineExceeded = errors.New("deadline exceeded")
	// ErrVectorStoreUnavailable signals a vector store backend failure.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")
	// ErrMetadataUnavailable signals a metadata store failure.
	ErrMetadataUnavailable = errors.New("metadata store unavailable")

	// ErrInvalidScope signals a malformed scope.
	ErrInvalidScope = errors.New("invalid scope")
	// ErrInvalidChunk signals a malformed document chunk.
	ErrInvalidChunk = errors.New("invalid chunk")
	// ErrInvalidQuery signals a malformed query request.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)

// EscalationError reports a query that ended in the Exhausted state.
// It unwraps to the reason sentinel (ErrLLMUnavailable or ErrDeadlineExceeded).
type EscalationError struct {
	State  string
	Reason error
	Cause  error
}

func (e *EscalationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("escalation %s: %s: %v", e.State, e.Reason.Error(), e.Cause)
	}
	return fmt.Sprintf("escalation %s: %s", e.State, e.Reason.Error())
}

func (e *EscalationError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Reason, e.Cause}
	}
	return []error{e.Reason}
}
