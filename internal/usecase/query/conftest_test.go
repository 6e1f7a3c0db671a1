package query

import (
	"context"
	"sync"

	"github.com/kailas-cloud/medrag/internal/domain"
	domans "github.com/kailas-cloud/medrag/internal/domain/answer"
	"github.com/kailas-cloud/medrag/internal/domain/escalation"
	domquery "github.com/kailas-cloud/medrag/internal/domain/query"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
	usesc "github.com/kailas-cloud/medrag/internal/usecase/escalation"
)

type mockIdentifier struct {
	err error
}

func (m *mockIdentifier) Identify(_ context.Context, facilityID, patientID string) (scope.Chain, error) {
	if m.err != nil {
		return scope.Chain{}, m.err
	}
	return scope.NewChain(facilityID, patientID)
}

type mockEmbedder struct {
	calls int
	err   error
}

func (m *mockEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.5, 0.5}}, nil
}

// mapCache is a minimal memoizing cache without TTL.
type mapCache struct {
	mu      sync.Mutex
	entries map[string]*escalation.Result
}

func (c *mapCache) GetOrCompute(
	ctx context.Context, fp domquery.Fingerprint,
	compute func(ctx context.Context) (*escalation.Result, error),
) (*escalation.Result, error) {
	c.mu.Lock()
	if r, ok := c.entries[fp.Key()]; ok {
		c.mu.Unlock()
		return r, nil
	}
	c.mu.Unlock()
	r, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.entries == nil {
		c.entries = map[string]*escalation.Result{}
	}
	c.entries[fp.Key()] = r
	c.mu.Unlock()
	return r, nil
}

type mockRouter struct {
	calls   int
	routeFn func(ctx context.Context, chain scope.Chain, q usesc.Query) (*escalation.Result, error)
}

func (m *mockRouter) Route(ctx context.Context, chain scope.Chain, q usesc.Query, _ []float32) (*escalation.Result, error) {
	m.calls++
	if m.routeFn != nil {
		return m.routeFn(ctx, chain, q)
	}
	return &escalation.Result{
		State: escalation.Satisfied, SatisfiedAt: escalation.TierLLM,
		UsedLLMFallback: true, LLMText: "answer",
	}, nil
}

type stubAssembler struct{}

func (stubAssembler) Assemble(_ domquery.Request, res *escalation.Result) domans.Answer {
	return domans.Answer{Text: res.LLMText, SatisfiedAt: res.SatisfiedAt, UsedLLMFallback: res.UsedLLMFallback}
}

type mockWriteBack struct {
	scheduled int
}

func (m *mockWriteBack) Schedule(
	context.Context, domquery.Request, scope.Chain, domans.Answer, *escalation.Result,
) bool {
	m.scheduled++
	return true
}
