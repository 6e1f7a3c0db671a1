// Package static serves the facility registry from configuration.
package static

import (
	"context"

	"github.com/kailas-cloud/medrag/internal/domain"
)

// Facility is one configured tenant with its registered patient codes.
type Facility struct {
	ID       string
	Name     string
	Address  string
	Patients []string
}

// Registry is an immutable in-memory registry.
type Registry struct {
	facilities map[string]domain.Facility
	patients   map[string]map[string]struct{}
}

// New indexes the configured facilities. Later duplicates override earlier ones.
func New(facilities []Facility) *Registry {
	r := &Registry{
		facilities: make(map[string]domain.Facility, len(facilities)),
		patients:   make(map[string]map[string]struct{}, len(facilities)),
	}
	for _, f := range facilities {
		r.facilities[f.ID] = domain.Facility{ID: f.ID, Name: f.Name, Address: f.Address}
		set := make(map[string]struct{}, len(f.Patients))
		for _, p := range f.Patients {
			set[p] = struct{}{}
		}
		r.patients[f.ID] = set
	}
	return r
}

// ResolveFacility returns the facility or ErrUnknownFacility.
func (r *Registry) ResolveFacility(_ context.Context, id string) (domain.Facility, error) {
	f, ok := r.facilities[id]
	if !ok {
		return domain.Facility{}, domain.ErrUnknownFacility
	}
	return f, nil
}

// PatientBelongsTo reports whether the patient code is listed under the facility.
func (r *Registry) PatientBelongsTo(_ context.Context, facilityID, patientCode string) (bool, error) {
	_, ok := r.patients[facilityID][patientCode]
	return ok, nil
}

// HealthCheck always succeeds.
func (r *Registry) HealthCheck(context.Context) error { return nil }
