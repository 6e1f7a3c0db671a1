package answer

import (
	"strings"
	"testing"

	domans "github.com/kailas-cloud/medrag/internal/domain/answer"
	"github.com/kailas-cloud/medrag/internal/domain/escalation"
	"github.com/kailas-cloud/medrag/internal/domain/match"
	"github.com/kailas-cloud/medrag/internal/domain/query"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
)

func request(t *testing.T, maxResults int) query.Request {
	t.Helper()
	r, err := query.NewRequest("what was the last HbA1c?", "f1", "p1", query.TypeLabResults, maxResults)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return r
}

func TestAssemble_RetrievalSatisfied(t *testing.T) {
	p, _ := scope.Patient("f1", "p1")
	f, _ := scope.FacilityShared("f1")
	res := &escalation.Result{
		Matches: []match.ScoredMatch{
			doc(p, "c1", "d1", 0.91),
			doc(p, "c2", "d1", 0.85),
			doc(f, "c3", "d2", 0.70),
		},
		State:       escalation.Satisfied,
		SatisfiedAt: escalation.TierPatient,
	}

	ans := NewAssembler(AssemblerConfig{}).Assemble(request(t, 0), res)

	if ans.Confidence != domans.ConfidenceHigh {
		t.Errorf("confidence = %s, want high", ans.Confidence)
	}
	if ans.ConfidenceScore != 0.91 {
		t.Errorf("confidence score = %v", ans.ConfidenceScore)
	}
	if len(ans.Citations) != 2 {
		t.Fatalf("citations = %d, want 2 after dedupe", len(ans.Citations))
	}
	if ans.Citations[0].ChunkID != "c1" || ans.Citations[1].ChunkID != "c3" {
		t.Errorf("citation order = %s, %s", ans.Citations[0].ChunkID, ans.Citations[1].ChunkID)
	}
	if ans.Text != "passage c1\n\npassage c3" {
		t.Errorf("text = %q", ans.Text)
	}
	if ans.UsedLLMFallback || ans.SatisfiedAt != escalation.TierPatient {
		t.Errorf("answer = %+v", ans)
	}
}

func TestAssemble_FallbackLowWithoutMatches(t *testing.T) {
	res := &escalation.Result{
		State:           escalation.Satisfied,
		SatisfiedAt:     escalation.TierLLM,
		UsedLLMFallback: true,
		LLMText:         "Consult your physician.",
	}
	ans := NewAssembler(AssemblerConfig{}).Assemble(request(t, 0), res)

	if ans.Confidence != domans.ConfidenceLow {
		t.Errorf("confidence = %s, want low", ans.Confidence)
	}
	if ans.ConfidenceScore != 0 {
		t.Errorf("confidence score = %v, want 0", ans.ConfidenceScore)
	}
	if ans.Text != "Consult your physician." || len(ans.Citations) != 0 {
		t.Errorf("answer = %+v", ans)
	}
}

func TestAssemble_FallbackGroundedIsMedium(t *testing.T) {
	g := scope.General()
	tests := []struct {
		score float64
		want  domans.Confidence
	}{
		{0.55, domans.ConfidenceMedium},
		{0.50, domans.ConfidenceMedium},
		{0.45, domans.ConfidenceLow},
	}
	for _, tc := range tests {
		res := &escalation.Result{
			Matches:         []match.ScoredMatch{doc(g, "g1", "gd1", tc.score)},
			UsedLLMFallback: true,
			LLMText:         "answer",
			SatisfiedAt:     escalation.TierLLM,
		}
		if got := NewAssembler(AssemblerConfig{}).Assemble(request(t, 0), res).Confidence; got != tc.want {
			t.Errorf("score %.2f: confidence = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestAssemble_DerivedOnlyIsMedium(t *testing.T) {
	p, _ := scope.Patient("f1", "p1")
	res := &escalation.Result{
		Matches:     []match.ScoredMatch{derived(p, "qa-1", 0.95)},
		SatisfiedAt: escalation.TierPatient,
	}
	ans := NewAssembler(AssemblerConfig{}).Assemble(request(t, 0), res)
	if ans.Confidence != domans.ConfidenceMedium {
		t.Errorf("confidence = %s, want medium", ans.Confidence)
	}
	if !ans.Citations[0].Derived {
		t.Error("citation must be flagged derived")
	}
}

func TestAssemble_MaxResultsAndPreview(t *testing.T) {
	f, _ := scope.FacilityShared("f1")
	long := match.New("long", f, 0.9, strings.Repeat("é", 600), doc(f, "x", "d0", 0).Metadata())
	res := &escalation.Result{
		Matches: []match.ScoredMatch{
			long, doc(f, "c2", "d2", 0.8), doc(f, "c3", "d3", 0.79),
		},
		SatisfiedAt: escalation.TierFacility,
	}
	ans := NewAssembler(AssemblerConfig{PreviewChars: 500}).Assemble(request(t, 2), res)

	if len(ans.Citations) != 2 {
		t.Fatalf("citations = %d, want 2", len(ans.Citations))
	}
	prev := ans.Citations[0].Preview
	if !strings.HasSuffix(prev, "...") || len([]rune(prev)) != 503 {
		t.Errorf("preview has %d runes", len([]rune(prev)))
	}
	if strings.Contains(ans.Text, "passage c3") {
		t.Error("text must only contain cited passages")
	}
}

func TestAssemble_DoesNotMutateResult(t *testing.T) {
	f, _ := scope.FacilityShared("f1")
	res := &escalation.Result{
		Matches:     []match.ScoredMatch{doc(f, "a", "d", 0.9), doc(f, "b", "d", 0.8)},
		SatisfiedAt: escalation.TierFacility,
	}
	_ = NewAssembler(AssemblerConfig{}).Assemble(request(t, 1), res)
	if len(res.Matches) != 2 || res.Matches[1].ChunkID() != "b" {
		t.Error("assembler mutated the shared result")
	}
}
