package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/domain"
	domans "github.com/kailas-cloud/medrag/internal/domain/answer"
	"github.com/kailas-cloud/medrag/internal/domain/escalation"
	domquery "github.com/kailas-cloud/medrag/internal/domain/query"
	"github.com/kailas-cloud/medrag/internal/logger"
	usesc "github.com/kailas-cloud/medrag/internal/usecase/escalation"
)

// Response is the outcome of one query.
type Response struct {
	Answer         domans.Answer
	Result         *escalation.Result
	ProcessingTime time.Duration
}

// Service answers queries: identify, embed, cache lookup, escalate, assemble.
type Service struct {
	identify  Identifier
	embed     domain.Embedder
	cache     ResultCache
	router    Router
	assembler Assembler
	writeBack WriteBack
	logger    *zap.Logger
}

// New creates a query Service. writeBack may be nil.
func New(
	identify Identifier, embed domain.Embedder, cache ResultCache,
	router Router, assembler Assembler, writeBack WriteBack, logger *zap.Logger,
) *Service {
	return &Service{
		identify:  identify,
		embed:     embed,
		cache:     cache,
		router:    router,
		assembler: assembler,
		writeBack: writeBack,
		logger:    logger,
	}
}

// Ask answers one request. Scope errors are returned before any search runs.
func (s *Service) Ask(ctx context.Context, req domquery.Request) (Response, error) {
	start := time.Now()

	chain, err := s.identify.Identify(ctx, req.FacilityID(), req.PatientID())
	if err != nil {
		return Response{}, fmt.Errorf("identify scope: %w", err)
	}
	logger.AddFields(ctx,
		zap.String("facility_id", req.FacilityID()),
		zap.String("scope", chain.MostSpecific().Redacted()),
		zap.String("query_type", string(req.Type())),
	)

	emb, err := s.embed.Embed(ctx, req.Text())
	if err != nil {
		return Response{}, embedErr(ctx, err)
	}

	fp := domquery.NewFingerprint(chain, req.Type(), req.Text(), emb.Embedding)
	q := usesc.Query{Text: req.Text(), Type: string(req.Type())}

	res, err := s.cache.GetOrCompute(ctx, fp, func(ctx context.Context) (*escalation.Result, error) {
		res, err := s.router.Route(ctx, chain, q, emb.Embedding)
		if err != nil {
			return nil, err
		}
		// Only the computing caller writes back; cache hits and shared waiters do not.
		if s.writeBack != nil {
			s.writeBack.Schedule(ctx, req, chain, s.assembler.Assemble(req, res), res)
		}
		return res, nil
	})
	if err != nil {
		return Response{}, err
	}

	ans := s.assembler.Assemble(req, res)
	elapsed := time.Since(start)

	logger.AddFields(ctx,
		zap.String("satisfied_at", string(ans.SatisfiedAt)),
		zap.String("confidence", string(ans.Confidence)),
		zap.Bool("used_llm_fallback", ans.UsedLLMFallback),
		zap.Int("citations", len(ans.Citations)),
	)
	logger.FromContext(ctx).Debug("Query answered", zap.Duration("processing_time", elapsed))

	return Response{Answer: ans, Result: res, ProcessingTime: elapsed}, nil
}

func embedErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &domain.EscalationError{
			State:  string(escalation.Exhausted),
			Reason: domain.ErrDeadlineExceeded,
			Cause:  fmt.Errorf("embed query: %w", ctxErr),
		}
	}
	if errors.Is(err, domain.ErrEmbeddingUnavailable) {
		return fmt.Errorf("embed query: %w", err)
	}
	return fmt.Errorf("embed query: %w: %w", domain.ErrEmbeddingUnavailable, err)
}
