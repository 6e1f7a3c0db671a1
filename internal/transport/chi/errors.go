package chi

import (
	"errors"
	"net/http"

	"github.com/kailas-cloud/medrag/internal/domain"
)

type errorCode string

const (
	codeBadRequest        errorCode = "bad_request"
	codeValidationFailed  errorCode = "validation_failed"
	codeNotFound          errorCode = "not_found"
	codeUnauthorized      errorCode = "unauthorized"
	codeUnknownFacility   errorCode = "unknown_facility"
	codeScopeMismatch     errorCode = "scope_mismatch"
	codeDeadlineExceeded  errorCode = "deadline_exceeded"
	codeLLMUnavailable    errorCode = "llm_unavailable"
	codeEmbeddingFailed   errorCode = "embedding_unavailable"
	codeRateLimited       errorCode = "rate_limited"
	codeVectorStoreDown   errorCode = "vector_store_unavailable"
	codeMetadataStoreDown errorCode = "metadata_unavailable"
	codeInternal          errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// Order matters: an exhausted query unwraps to both its reason and its cause.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrUnknownFacility, http.StatusNotFound, codeUnknownFacility),
		sentinelHandler(domain.ErrScopeMismatch, http.StatusForbidden, codeScopeMismatch),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidScope, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidChunk, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrDeadlineExceeded, http.StatusGatewayTimeout, codeDeadlineExceeded),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrLLMUnavailable, http.StatusBadGateway, codeLLMUnavailable),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, codeEmbeddingFailed),
		sentinelHandler(domain.ErrVectorStoreUnavailable, http.StatusServiceUnavailable, codeVectorStoreDown),
		sentinelHandler(domain.ErrMetadataUnavailable, http.StatusServiceUnavailable, codeMetadataStoreDown),
	}
}

// clientSentinels carry messages safe to show verbatim; validation errors add their detail.
var clientSentinels = []error{
	domain.ErrUnknownFacility,
	domain.ErrScopeMismatch,
	domain.ErrDeadlineExceeded,
	domain.ErrLLMUnavailable,
	domain.ErrEmbeddingUnavailable,
	domain.ErrRateLimited,
	domain.ErrVectorStoreUnavailable,
	domain.ErrMetadataUnavailable,
}

// safeDomainMessage returns a client message without exposing internals.
func safeDomainMessage(err error) string {
	for _, v := range []error{domain.ErrInvalidQuery, domain.ErrInvalidScope, domain.ErrInvalidChunk} {
		if errors.Is(err, v) {
			return err.Error()
		}
	}
	for _, s := range clientSentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}
