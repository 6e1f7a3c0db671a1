package answer

import (
	"strings"
	"unicode/utf8"

	domans "github.com/kailas-cloud/medrag/internal/domain/answer"
	"github.com/kailas-cloud/medrag/internal/domain/escalation"
	"github.com/kailas-cloud/medrag/internal/domain/match"
	"github.com/kailas-cloud/medrag/internal/domain/query"
)

const (
	// DefaultGroundingFloor lifts a fallback answer to medium confidence.
	DefaultGroundingFloor = 0.5
	// DefaultPreviewChars caps citation previews.
	DefaultPreviewChars = 500
)

// AssemblerConfig tunes answer assembly.
type AssemblerConfig struct {
	GroundingFloor float64
	PreviewChars   int
}

// Assembler turns an escalation result into an attributed answer.
type Assembler struct {
	cfg AssemblerConfig
}

// NewAssembler creates an Assembler. Zero fields take defaults.
func NewAssembler(cfg AssemblerConfig) *Assembler {
	if cfg.GroundingFloor == 0 {
		cfg.GroundingFloor = DefaultGroundingFloor
	}
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = DefaultPreviewChars
	}
	return &Assembler{cfg: cfg}
}

// Assemble builds the answer. It does not mutate res.
func (a *Assembler) Assemble(req query.Request, res *escalation.Result) domans.Answer {
	kept := dedupeBySource(res.Matches)
	if n := req.MaxResults(); n > 0 && len(kept) > n {
		kept = kept[:n]
	}

	citations := make([]domans.Citation, len(kept))
	passages := make([]string, len(kept))
	for i, m := range kept {
		md := m.Metadata()
		citations[i] = domans.Citation{
			ChunkID:          m.ChunkID(),
			Scope:            m.Scope().Key(),
			SourceDocumentID: m.SourceDocumentID(),
			DocumentType:     md.DocumentType,
			Score:            m.Score(),
			Preview:          preview(m.Text(), a.cfg.PreviewChars),
			Derived:          md.IsDerived(),
		}
		passages[i] = m.Text()
	}

	ans := domans.Answer{
		Citations:       citations,
		ConfidenceScore: res.BestScore(),
		SatisfiedAt:     res.SatisfiedAt,
		UsedLLMFallback: res.UsedLLMFallback,
	}
	if res.UsedLLMFallback {
		ans.Text = res.LLMText
		ans.Confidence = domans.ConfidenceLow
		if ans.ConfidenceScore >= a.cfg.GroundingFloor && len(res.Matches) > 0 {
			ans.Confidence = domans.ConfidenceMedium
		}
		return ans
	}

	ans.Text = strings.Join(passages, "\n\n")
	ans.Confidence = domans.ConfidenceHigh
	if allDerived(citations) {
		ans.Confidence = domans.ConfidenceMedium
	}
	return ans
}

// dedupeBySource keeps the first match of every source document.
func dedupeBySource(ms []match.ScoredMatch) []match.ScoredMatch {
	seen := make(map[string]struct{}, len(ms))
	out := make([]match.ScoredMatch, 0, len(ms))
	for _, m := range ms {
		key := m.Scope().Key() + "\x00" + m.SourceDocumentID()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	return out
}

func allDerived(cs []domans.Citation) bool {
	if len(cs) == 0 {
		return false
	}
	for _, c := range cs {
		if !c.Derived {
			return false
		}
	}
	return true
}

func preview(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "..."
}
