package scope

import (
	"context"

	"github.com/kailas-cloud/medrag/internal/domain"
)

// Registry resolves tenants and patient membership.
type Registry interface {
	ResolveFacility(ctx context.Context, id string) (domain.Facility, error)
	PatientBelongsTo(ctx context.Context, facilityID, patientCode string) (bool, error)
}
