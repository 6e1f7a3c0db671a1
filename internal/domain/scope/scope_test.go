package scope

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/medrag/internal/domain"
)

func TestKeys(t *testing.T) {
	p, err := Patient("f1", "p1")
	if err != nil {
		t.Fatalf("Patient: %v", err)
	}
	f, err := FacilityShared("f1")
	if err != nil {
		t.Fatalf("FacilityShared: %v", err)
	}

	tests := []struct {
		s    Scope
		want string
	}{
		{p, "patient:f1:p1"},
		{f, "facility:f1"},
		{General(), "general"},
	}
	for _, tc := range tests {
		if got := tc.s.Key(); got != tc.want {
			t.Errorf("Key() = %q, want %q", got, tc.want)
		}
		parsed, err := Parse(tc.want)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.want, err)
		}
		if !parsed.Equal(tc.s) {
			t.Errorf("Parse(%q) = %v, want %v", tc.want, parsed, tc.s)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, key := range []string{"", "patient:f1", "facility:", "facility:a:b", "other:x", "facility:a b"} {
		if _, err := Parse(key); !errors.Is(err, domain.ErrInvalidScope) {
			t.Errorf("Parse(%q): expected ErrInvalidScope, got %v", key, err)
		}
	}
}

func TestPatient_RequiresIDs(t *testing.T) {
	if _, err := Patient("", "p1"); !errors.Is(err, domain.ErrInvalidScope) {
		t.Errorf("expected ErrInvalidScope for empty facility, got %v", err)
	}
	if _, err := Patient("f1", ""); !errors.Is(err, domain.ErrInvalidScope) {
		t.Errorf("expected ErrInvalidScope for empty patient, got %v", err)
	}
}

func TestGeneral_HasNoTenant(t *testing.T) {
	g := General()
	if g.FacilityID() != "" || g.PatientID() != "" {
		t.Errorf("general scope carries tenant data: %+v", g)
	}
	if g.IsZero() {
		t.Error("general scope must not be zero")
	}
}

func TestNewChain_WithPatient(t *testing.T) {
	c, err := NewChain("f1", "p1")
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	want := []string{"patient:f1:p1", "facility:f1", "general"}
	got := c.Keys()
	if len(got) != len(want) {
		t.Fatalf("expected %d scopes, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("scope[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if c.MostSpecific().Kind() != KindPatient {
		t.Errorf("expected patient as most specific, got %s", c.MostSpecific().Kind())
	}
	if c.Facility() != "f1" {
		t.Errorf("expected facility f1, got %q", c.Facility())
	}
}

func TestNewChain_WithoutPatient(t *testing.T) {
	c, err := NewChain("f1", "")
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 scopes, got %d", c.Len())
	}
	if c.MostSpecific().Kind() != KindFacilityShared {
		t.Errorf("expected facility as most specific, got %s", c.MostSpecific().Kind())
	}
}

func TestChain_Contains(t *testing.T) {
	c, _ := NewChain("f1", "p1")
	other, _ := FacilityShared("f2")
	own, _ := FacilityShared("f1")

	if !c.Contains(own) {
		t.Error("expected chain to contain own facility")
	}
	if !c.Contains(General()) {
		t.Error("expected chain to contain general")
	}
	if c.Contains(other) {
		t.Error("chain must not contain another facility")
	}
}

func TestChainOf_RejectsBadOrder(t *testing.T) {
	f, _ := FacilityShared("f1")
	p, _ := Patient("f1", "p1")

	if _, err := ChainOf(General(), f); err == nil {
		t.Error("expected error for general before facility")
	}
	if _, err := ChainOf(f, p); err == nil {
		t.Error("expected error for facility before patient")
	}
	if _, err := ChainOf(); err == nil {
		t.Error("expected error for empty chain")
	}
	if _, err := ChainOf(p, f, General()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRedacted(t *testing.T) {
	p, _ := Patient("f1", "MRN-00042")
	r := p.Redacted()
	if strings.Contains(r, "MRN-00042") {
		t.Fatalf("patient code leaked: %s", r)
	}
	if !strings.HasPrefix(r, "patient:f1:") || len(r) != len("patient:f1:")+12 {
		t.Errorf("redacted = %q", r)
	}
	if p.String() != r {
		t.Errorf("String() = %q, want redacted form", p.String())
	}
	other, _ := Patient("f1", "MRN-00043")
	if other.Redacted() == r {
		t.Error("distinct patients must redact differently")
	}

	f, _ := FacilityShared("f1")
	if f.Redacted() != f.Key() || General().Redacted() != "general" {
		t.Error("non-patient scopes are not redacted")
	}
}
