package chi

import (
	"time"

	domans "github.com/kailas-cloud/medrag/internal/domain/answer"
	domchunk "github.com/kailas-cloud/medrag/internal/domain/chunk"
	queryuc "github.com/kailas-cloud/medrag/internal/usecase/query"
)

type queryRequest struct {
	Query          string `json:"query"`
	FacilityID     string `json:"facility_id"`
	PatientCode    string `json:"patient_code,omitempty"`
	QueryType      string `json:"query_type,omitempty"`
	IncludeSources *bool  `json:"include_sources,omitempty"`
	MaxResults     int    `json:"max_results,omitempty"`
}

type sourceItem struct {
	ChunkID          string  `json:"chunk_id"`
	Scope            string  `json:"scope"`
	SourceDocumentID string  `json:"source_document_id,omitempty"`
	DocumentType     string  `json:"document_type,omitempty"`
	Score            float64 `json:"score"`
	Preview          string  `json:"preview"`
	Derived          bool    `json:"derived"`
}

type tierItem struct {
	Tier      string `json:"tier"`
	Scope     string `json:"scope"`
	Outcome   string `json:"outcome"`
	Matches   int    `json:"matches"`
	LatencyMs int64  `json:"latency_ms"`
}

type queryResponse struct {
	Answer           string       `json:"answer"`
	Confidence       string       `json:"confidence"`
	ConfidenceScore  float64      `json:"confidence_score"`
	SatisfiedAt      string       `json:"satisfied_at"`
	UsedLLMFallback  bool         `json:"used_llm_fallback"`
	Sources          []sourceItem `json:"sources,omitempty"`
	Tiers            []tierItem   `json:"tiers,omitempty"`
	ProcessingTimeMs int64        `json:"processing_time_ms"`
}

type chunkRequest struct {
	ID               string `json:"id,omitempty"`
	Scope            string `json:"scope"`
	Text             string `json:"text"`
	DocumentType     string `json:"document_type,omitempty"`
	Sensitivity      string `json:"sensitivity,omitempty"`
	SourceDocumentID string `json:"source_document_id,omitempty"`
	Source           string `json:"source,omitempty"`
}

type chunkResponse struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope"`
	CreatedAt time.Time `json:"created_at"`
}

type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

func queryResponseFrom(resp queryuc.Response, includeSources bool) queryResponse {
	ans := resp.Answer
	out := queryResponse{
		Answer:           ans.Text,
		Confidence:       string(ans.Confidence),
		ConfidenceScore:  ans.ConfidenceScore,
		SatisfiedAt:      string(ans.SatisfiedAt),
		UsedLLMFallback:  ans.UsedLLMFallback,
		ProcessingTimeMs: resp.ProcessingTime.Milliseconds(),
	}
	if includeSources {
		out.Sources = sourcesFrom(ans.Citations)
	}
	if resp.Result != nil {
		for _, t := range resp.Result.Tiers {
			out.Tiers = append(out.Tiers, tierItem{
				Tier:      string(t.Tier),
				Scope:     t.Scope,
				Outcome:   string(t.Outcome),
				Matches:   t.Matches,
				LatencyMs: t.Latency.Milliseconds(),
			})
		}
	}
	return out
}

func sourcesFrom(cc []domans.Citation) []sourceItem {
	items := make([]sourceItem, len(cc))
	for i, c := range cc {
		items[i] = sourceItem{
			ChunkID:          c.ChunkID,
			Scope:            c.Scope,
			SourceDocumentID: c.SourceDocumentID,
			DocumentType:     c.DocumentType,
			Score:            c.Score,
			Preview:          c.Preview,
			Derived:          c.Derived,
		}
	}
	return items
}

func chunkResponseFrom(c *domchunk.Chunk) chunkResponse {
	return chunkResponse{ID: c.ID(), Scope: c.Scope().Key(), CreatedAt: c.CreatedAt()}
}
