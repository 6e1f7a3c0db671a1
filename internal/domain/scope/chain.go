package scope

import (
	"fmt"

	"github.com/kailas-cloud/medrag/internal/domain"
)

// Chain is the ordered list of scopes searched for one query:
// [patient?, facility_shared, general]. Most specific first.
type Chain struct {
	scopes []Scope
}

// NewChain builds the chain for a facility and optional patient.
// patientID == "" omits the patient tier.
func NewChain(facilityID, patientID string) (Chain, error) {
	facility, err := FacilityShared(facilityID)
	if err != nil {
		return Chain{}, err
	}
	scopes := make([]Scope, 0, 3)
	if patientID != "" {
		p, err := Patient(facilityID, patientID)
		if err != nil {
			return Chain{}, err
		}
		scopes = append(scopes, p)
	}
	scopes = append(scopes, facility, General())
	return Chain{scopes: scopes}, nil
}

// ChainOf validates an explicit scope order. Used when restoring chains.
func ChainOf(scopes ...Scope) (Chain, error) {
	if len(scopes) == 0 {
		return Chain{}, fmt.Errorf("%w: empty scope chain", domain.ErrInvalidScope)
	}
	rank := map[Kind]int{KindPatient: 0, KindFacilityShared: 1, KindGeneral: 2}
	prev := -1
	for _, s := range scopes {
		r, ok := rank[s.Kind()]
		if !ok || r <= prev {
			return Chain{}, fmt.Errorf("%w: scope chain out of order at %q", domain.ErrInvalidScope, s.Redacted())
		}
		prev = r
	}
	out := make([]Scope, len(scopes))
	copy(out, scopes)
	return Chain{scopes: out}, nil
}

// Scopes returns a copy of the scopes in escalation order.
func (c Chain) Scopes() []Scope {
	out := make([]Scope, len(c.scopes))
	copy(out, c.scopes)
	return out
}

// Len returns the number of tiers.
func (c Chain) Len() int { return len(c.scopes) }

// MostSpecific returns the first scope in the chain.
func (c Chain) MostSpecific() Scope {
	if len(c.scopes) == 0 {
		return Scope{}
	}
	return c.scopes[0]
}

// Facility returns the facility id the chain belongs to.
func (c Chain) Facility() string {
	for _, s := range c.scopes {
		if s.FacilityID() != "" {
			return s.FacilityID()
		}
	}
	return ""
}

// Contains reports whether the chain includes the scope.
func (c Chain) Contains(s Scope) bool {
	for _, cs := range c.scopes {
		if cs.Equal(s) {
			return true
		}
	}
	return false
}

// Keys returns the canonical keys in order.
func (c Chain) Keys() []string {
	keys := make([]string, len(c.scopes))
	for i, s := range c.scopes {
		keys[i] = s.Key()
	}
	return keys
}
