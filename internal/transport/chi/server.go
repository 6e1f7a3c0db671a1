package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/domain"
	domchunk "github.com/kailas-cloud/medrag/internal/domain/chunk"
	domquery "github.com/kailas-cloud/medrag/internal/domain/query"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
	chunkuc "github.com/kailas-cloud/medrag/internal/usecase/chunk"
	healthuc "github.com/kailas-cloud/medrag/internal/usecase/health"
	queryuc "github.com/kailas-cloud/medrag/internal/usecase/query"
	"github.com/kailas-cloud/medrag/internal/version"
)

// DefaultQueryTimeout bounds one query request when none is configured.
const DefaultQueryTimeout = 30 * time.Second

// maxBodyBytes bounds request bodies (a chunk text is at most domchunk.MaxTextSize).
const maxBodyBytes = 1 << 20

// querier is the consumer interface for the query service (ISP).
type querier interface {
	Ask(ctx context.Context, req domquery.Request) (queryuc.Response, error)
}

// ingester is the consumer interface for the chunk service (ISP).
type ingester interface {
	Ingest(ctx context.Context, in chunkuc.IngestInput) (domchunk.Chunk, error)
	Delete(ctx context.Context, s scope.Scope, chunkID string) error
}

// healthReporter is the consumer interface for the health service (ISP).
type healthReporter interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the medrag HTTP API.
type Server struct {
	queries       querier
	chunks        ingester
	health        healthReporter
	queryTimeout  time.Duration
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. queryTimeout <= 0 uses DefaultQueryTimeout.
func NewServer(
	queries querier, chunks ingester, health healthReporter,
	queryTimeout time.Duration, logger *zap.Logger,
) *Server {
	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}
	return &Server{
		queries:       queries,
		chunks:        chunks,
		health:        health,
		queryTimeout:  queryTimeout,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/query", s.Query)
		r.Put("/chunks", s.PutChunk)
		r.Delete("/chunks/{scope}/{id}", s.DeleteChunk)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})
}

// Query handles POST /api/v1/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var body queryRequest
	if !decodeBody(w, r, &body) {
		return
	}

	req, err := domquery.NewRequest(
		body.Query, body.FacilityID, body.PatientCode,
		domquery.Type(body.QueryType), body.MaxResults,
	)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	resp, err := s.queries.Ask(ctx, req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	setEmbeddingHeaders(w, usage)

	includeSources := body.IncludeSources == nil || *body.IncludeSources
	writeJSON(w, http.StatusOK, queryResponseFrom(resp, includeSources))
}

// PutChunk handles PUT /api/v1/chunks.
func (s *Server) PutChunk(w http.ResponseWriter, r *http.Request) {
	var body chunkRequest
	if !decodeBody(w, r, &body) {
		return
	}

	sc, err := scope.Parse(body.Scope)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	id := body.ID
	if id == "" {
		id = "doc-" + uuid.NewString()
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	c, err := s.chunks.Ingest(ctx, chunkuc.IngestInput{
		ID:    id,
		Scope: sc,
		Text:  body.Text,
		Metadata: domchunk.Metadata{
			DocumentType:     body.DocumentType,
			Sensitivity:      body.Sensitivity,
			SourceDocumentID: body.SourceDocumentID,
			Source:           body.Source,
		},
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	w.Header().Set("Location", fmt.Sprintf("/api/v1/chunks/%s/%s", c.Scope().Key(), c.ID()))
	writeJSON(w, http.StatusOK, chunkResponseFrom(&c))
}

// DeleteChunk handles DELETE /api/v1/chunks/{scope}/{id}.
func (s *Server) DeleteChunk(w http.ResponseWriter, r *http.Request) {
	sc, err := scope.Parse(chi.URLParam(r, "scope"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if err := s.chunks.Delete(r.Context(), sc, chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health. Only a vector store outage makes the service unready.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{Status: string(report.Status), Version: version.Version, Checks: checks})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			s.logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	if errors.Is(err, context.Canceled) {
		// Client went away. Nobody reads the response.
		s.logger.Debug("request canceled", zap.Error(err))
		return
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}
