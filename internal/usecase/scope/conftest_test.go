package scope

import (
	"context"

	"github.com/kailas-cloud/medrag/internal/domain"
)

type mockRegistry struct {
	resolveFn func(ctx context.Context, id string) (domain.Facility, error)
	belongsFn func(ctx context.Context, facilityID, patientCode string) (bool, error)
	calls     int
}

func (m *mockRegistry) ResolveFacility(ctx context.Context, id string) (domain.Facility, error) {
	m.calls++
	if m.resolveFn != nil {
		return m.resolveFn(ctx, id)
	}
	return domain.Facility{ID: id}, nil
}

func (m *mockRegistry) PatientBelongsTo(ctx context.Context, facilityID, patientCode string) (bool, error) {
	m.calls++
	if m.belongsFn != nil {
		return m.belongsFn(ctx, facilityID, patientCode)
	}
	return true, nil
}
