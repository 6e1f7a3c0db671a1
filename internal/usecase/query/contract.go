package query

import (
	"context"

	domans "github.com/kailas-cloud/medrag/internal/domain/answer"
	"github.com/kailas-cloud/medrag/internal/domain/escalation"
	domquery "github.com/kailas-cloud/medrag/internal/domain/query"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
	usesc "github.com/kailas-cloud/medrag/internal/usecase/escalation"
)

// Identifier resolves the scope chain of a request.
type Identifier interface {
	Identify(ctx context.Context, facilityID, patientID string) (scope.Chain, error)
}

// ResultCache memoizes escalation results by fingerprint.
type ResultCache interface {
	GetOrCompute(
		ctx context.Context, fp domquery.Fingerprint,
		compute func(ctx context.Context) (*escalation.Result, error),
	) (*escalation.Result, error)
}

// Router runs the escalation.
type Router interface {
	Route(ctx context.Context, chain scope.Chain, q usesc.Query, embedding []float32) (*escalation.Result, error)
}

// Assembler builds the final answer.
type Assembler interface {
	Assemble(req domquery.Request, res *escalation.Result) domans.Answer
}

// WriteBack stores derived answers asynchronously.
type WriteBack interface {
	Schedule(ctx context.Context, req domquery.Request, chain scope.Chain, ans domans.Answer, res *escalation.Result) bool
}
