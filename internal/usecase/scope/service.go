package scope

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/medrag/internal/domain"
	domscope "github.com/kailas-cloud/medrag/internal/domain/scope"
)

// Identifier turns a (facility, patient) pair into the scope chain a query may search.
type Identifier struct {
	registry Registry
}

// New creates an Identifier.
func New(registry Registry) *Identifier {
	return &Identifier{registry: registry}
}

// Identify resolves the chain. It performs reads only.
func (i *Identifier) Identify(ctx context.Context, facilityID, patientID string) (domscope.Chain, error) {
	if facilityID == "" {
		return domscope.Chain{}, domain.ErrUnknownFacility
	}

	if _, err := i.registry.ResolveFacility(ctx, facilityID); err != nil {
		return domscope.Chain{}, classify(err, "resolve facility")
	}

	if patientID != "" {
		ok, err := i.registry.PatientBelongsTo(ctx, facilityID, patientID)
		if err != nil {
			return domscope.Chain{}, classify(err, "patient membership")
		}
		if !ok {
			return domscope.Chain{}, fmt.Errorf("%w: patient is not registered at facility %q",
				domain.ErrScopeMismatch, facilityID)
		}
	}

	chain, err := domscope.NewChain(facilityID, patientID)
	if err != nil {
		// Registry accepted ids the scope grammar rejects.
		if patientID == "" {
			return domscope.Chain{}, fmt.Errorf("%w: %w", domain.ErrUnknownFacility, err)
		}
		return domscope.Chain{}, fmt.Errorf("%w: %w", domain.ErrScopeMismatch, err)
	}
	return chain, nil
}

func classify(err error, op string) error {
	switch {
	case errors.Is(err, domain.ErrUnknownFacility), errors.Is(err, domain.ErrMetadataUnavailable):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrDeadlineExceeded, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrMetadataUnavailable, err)
	}
}
