// Package escalation walks a scope chain from the most specific tier to the
// general corpus and falls back to the LLM when no tier is good enough.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/domain"
	domesc "github.com/kailas-cloud/medrag/internal/domain/escalation"
	"github.com/kailas-cloud/medrag/internal/domain/match"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
	"github.com/kailas-cloud/medrag/internal/metrics"
)

// Query is what the router needs from the request besides its embedding.
type Query struct {
	Text string
	Type string
}

// Router runs the escalation state machine.
type Router struct {
	store  Searcher
	llm    Completer
	cfg    Config
	logger *zap.Logger
	tracer trace.Tracer
}

// New creates a Router. cfg must be valid.
func New(store Searcher, llm Completer, cfg Config, logger *zap.Logger) *Router {
	return &Router{
		store:  store,
		llm:    llm,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("medrag/escalation"),
	}
}

// Route searches the chain tier by tier, strictly in order.
// A tier that times out or whose store is unavailable counts as empty.
// The caller's deadline ends the query with ErrDeadlineExceeded; a failed
// LLM fallback ends it with ErrLLMUnavailable. Both come as *domain.EscalationError.
func (r *Router) Route(ctx context.Context, chain scope.Chain, q Query, embedding []float32) (*domesc.Result, error) {
	ctx, span := r.tracer.Start(ctx, "escalation.Route", trace.WithAttributes(
		attribute.Int("escalation.tiers", chain.Len()),
		attribute.String("query.type", q.Type),
	))
	defer span.End()

	start := time.Now()
	res := &domesc.Result{State: domesc.Pending}
	var acc []match.ScoredMatch

	for _, s := range chain.Scopes() {
		res.State = domesc.SearchState(s.Kind())
		if err := ctx.Err(); err != nil {
			return nil, r.exhausted(span, res.State, domain.ErrDeadlineExceeded, err)
		}

		ms, report, err := r.searchTier(ctx, s, embedding)
		res.Tiers = append(res.Tiers, report)
		metrics.TierOutcomesTotal.WithLabelValues(string(report.Tier), string(report.Outcome)).Inc()
		if err != nil {
			return nil, r.exhausted(span, res.State, domain.ErrDeadlineExceeded, err)
		}

		acc = append(acc, ms...)
		if report.Outcome == domesc.OutcomeSatisfied || (len(ms) > 0 && len(acc) >= r.cfg.TargetMatches) {
			res.Tiers[len(res.Tiers)-1].Outcome = domesc.OutcomeSatisfied
			res.State = domesc.Satisfied
			res.SatisfiedAt = report.Tier
			res.Matches = acc
			res.Total = time.Since(start)
			r.finish(span, res)
			return res, nil
		}
	}

	res.State = domesc.FallbackLLM
	if err := ctx.Err(); err != nil {
		return nil, r.exhausted(span, res.State, domain.ErrDeadlineExceeded, err)
	}

	grounding := bestAvailable(acc, r.cfg.TopK)
	passages := make([]string, len(grounding))
	for i, m := range grounding {
		passages[i] = m.Text()
	}

	llmStart := time.Now()
	comp, err := r.llm.Complete(ctx, domain.CompletionRequest{Query: q.Text, QueryType: q.Type, Passages: passages})
	res.LLMLatency = time.Since(llmStart)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, r.exhausted(span, res.State, domain.ErrDeadlineExceeded, ctxErr)
		}
		return nil, r.exhausted(span, res.State, domain.ErrLLMUnavailable, err)
	}

	res.State = domesc.Satisfied
	res.SatisfiedAt = domesc.TierLLM
	res.UsedLLMFallback = true
	res.LLMText = comp.Text
	res.LLMTokens = comp.UsedTokens
	res.Matches = grounding
	res.Total = time.Since(start)
	r.finish(span, res)
	return res, nil
}

// searchTier runs one tier under its own timeout. The returned error is
// non-nil only when the caller's context is done.
func (r *Router) searchTier(
	ctx context.Context, s scope.Scope, embedding []float32,
) ([]match.ScoredMatch, domesc.TierReport, error) {
	policy := r.cfg.policy(s.Kind())
	report := domesc.TierReport{Tier: domesc.TierOf(s.Kind()), Scope: s.Key()}

	tctx, cancel := context.WithTimeout(ctx, r.cfg.TierTimeout)
	defer cancel()
	tctx, span := r.tracer.Start(tctx, "escalation.tier", trace.WithAttributes(
		attribute.String("tier", string(report.Tier)),
	))
	defer span.End()

	t0 := time.Now()
	ms, err := r.store.Search(tctx, s, embedding, r.cfg.TopK, policy.MinScore)
	report.Latency = time.Since(t0)

	switch {
	case err != nil && ctx.Err() != nil:
		span.SetStatus(codes.Error, "caller deadline")
		return nil, report, ctx.Err()
	case err != nil && (tctx.Err() != nil || errors.Is(err, context.DeadlineExceeded)):
		report.Outcome = domesc.OutcomeTimeout
		r.logger.Warn("Tier search timed out",
			zap.String("tier", string(report.Tier)),
			zap.Duration("timeout", r.cfg.TierTimeout),
		)
		ms = nil
	case err != nil:
		report.Outcome = domesc.OutcomeUnavailable
		if !errors.Is(err, domain.ErrVectorStoreUnavailable) {
			r.logger.Error("Unexpected tier search error", zap.String("tier", string(report.Tier)), zap.Error(err))
		} else {
			r.logger.Warn("Tier search unavailable", zap.String("tier", string(report.Tier)), zap.Error(err))
		}
		ms = nil
	case len(ms) == 0:
		report.Outcome = domesc.OutcomeEmpty
	case r.satisfies(ms, policy):
		report.Outcome = domesc.OutcomeSatisfied
	default:
		report.Outcome = domesc.OutcomeInsufficient
	}

	report.Matches = len(ms)
	span.SetAttributes(
		attribute.String("outcome", string(report.Outcome)),
		attribute.Int("matches", report.Matches),
	)
	return ms, report, nil
}

// satisfies reports whether any match clears the tier threshold. Derived Q/A
// matches need the extra margin.
func (r *Router) satisfies(ms []match.ScoredMatch, p TierPolicy) bool {
	for _, m := range ms {
		need := p.Threshold
		if m.Metadata().IsDerived() {
			need += r.cfg.DerivedMargin
		}
		if m.Score() >= need {
			return true
		}
	}
	return false
}

func (r *Router) finish(span trace.Span, res *domesc.Result) {
	metrics.EscalationsTotal.WithLabelValues(string(res.State), string(res.SatisfiedAt)).Inc()
	span.SetAttributes(
		attribute.String("escalation.satisfied_at", string(res.SatisfiedAt)),
		attribute.Bool("escalation.llm_fallback", res.UsedLLMFallback),
	)
	r.logger.Debug("Escalation finished",
		zap.String("satisfied_at", string(res.SatisfiedAt)),
		zap.Bool("llm_fallback", res.UsedLLMFallback),
		zap.Int("matches", len(res.Matches)),
		zap.Duration("total", res.Total),
	)
}

func (r *Router) exhausted(span trace.Span, at domesc.State, reason, cause error) error {
	metrics.EscalationsTotal.WithLabelValues(string(domesc.Exhausted), "").Inc()
	span.RecordError(cause)
	span.SetStatus(codes.Error, reason.Error())
	r.logger.Warn("Escalation exhausted",
		zap.String("state", string(at)),
		zap.NamedError("reason", reason),
		zap.Error(cause),
	)
	return &domain.EscalationError{
		State:  string(domesc.Exhausted),
		Reason: reason,
		Cause:  fmt.Errorf("during %s: %w", at, cause),
	}
}

// bestAvailable returns up to k matches across tiers by descending score.
func bestAvailable(acc []match.ScoredMatch, k int) []match.ScoredMatch {
	out := make([]match.ScoredMatch, len(acc))
	copy(out, acc)
	match.SortByScore(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}
