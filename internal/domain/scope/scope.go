package scope

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/kailas-cloud/medrag/internal/domain"
)

// Kind is the isolation level of a scope.
type Kind string

const (
	// KindPatient is a single patient's records within a facility.
	KindPatient Kind = "patient"
	// KindFacilityShared is documents shared across a facility.
	KindFacilityShared Kind = "facility"
	// KindGeneral is the general medical-knowledge corpus.
	KindGeneral Kind = "general"
)

const generalKey = "general"

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// Scope identifies a vector-store partition (immutable value object).
type Scope struct {
	kind       Kind
	facilityID string
	patientID  string
}

// Patient creates a patient scope inside a facility.
func Patient(facilityID, patientID string) (Scope, error) {
	if err := validateID("facility", facilityID); err != nil {
		return Scope{}, err
	}
	if err := validateID("patient", patientID); err != nil {
		return Scope{}, err
	}
	return Scope{kind: KindPatient, facilityID: facilityID, patientID: patientID}, nil
}

// FacilityShared creates the shared scope of a facility.
func FacilityShared(facilityID string) (Scope, error) {
	if err := validateID("facility", facilityID); err != nil {
		return Scope{}, err
	}
	return Scope{kind: KindFacilityShared, facilityID: facilityID}, nil
}

// General returns the general-knowledge scope. It has no facility or patient.
func General() Scope {
	return Scope{kind: KindGeneral}
}

// Parse restores a scope from its canonical key.
func Parse(key string) (Scope, error) {
	if key == generalKey {
		return General(), nil
	}
	parts := strings.Split(key, ":")
	switch {
	case len(parts) == 2 && parts[0] == string(KindFacilityShared):
		return FacilityShared(parts[1])
	case len(parts) == 3 && parts[0] == string(KindPatient):
		return Patient(parts[1], parts[2])
	}
	return Scope{}, fmt.Errorf("%w: unrecognized scope key", domain.ErrInvalidScope)
}

// Kind returns the scope kind.
func (s Scope) Kind() Kind { return s.kind }

// FacilityID returns the owning facility (empty for general).
func (s Scope) FacilityID() string { return s.facilityID }

// PatientID returns the patient (empty unless kind is patient).
func (s Scope) PatientID() string { return s.patientID }

// IsZero reports whether the scope was never constructed.
func (s Scope) IsZero() bool { return s.kind == "" }

// Key returns the canonical string form used for tagging and cache indexing.
func (s Scope) Key() string {
	switch s.kind {
	case KindPatient:
		return string(KindPatient) + ":" + s.facilityID + ":" + s.patientID
	case KindFacilityShared:
		return string(KindFacilityShared) + ":" + s.facilityID
	case KindGeneral:
		return generalKey
	default:
		return ""
	}
}

// Redacted is Key with the patient code replaced by a short hash, for logs.
func (s Scope) Redacted() string {
	if s.kind != KindPatient {
		return s.Key()
	}
	h := sha256.Sum256([]byte(s.patientID))
	return string(KindPatient) + ":" + s.facilityID + ":" + hex.EncodeToString(h[:6])
}

// String implements fmt.Stringer. It is redacted; use Key for storage.
func (s Scope) String() string { return s.Redacted() }

// Equal reports whether two scopes address the same partition.
func (s Scope) Equal(o Scope) bool {
	return s.kind == o.kind && s.facilityID == o.facilityID && s.patientID == o.patientID
}

func validateID(what, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s id is required", domain.ErrInvalidScope, what)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("%w: %s id must be 1-128 chars of [a-zA-Z0-9_-]", domain.ErrInvalidScope, what)
	}
	return nil
}
