package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	domquery "github.com/kailas-cloud/medrag/internal/domain/query"
)

type askCommander struct {
	facility   string
	patient    string
	queryType  string
	maxResults int
	timeout    time.Duration
}

type askOutput struct {
	Answer           string        `json:"answer"`
	Confidence       string        `json:"confidence"`
	ConfidenceScore  float64       `json:"confidence_score"`
	SatisfiedAt      string        `json:"satisfied_at"`
	UsedLLMFallback  bool          `json:"used_llm_fallback"`
	Sources          []askCitation `json:"sources"`
	ProcessingTimeMs int64         `json:"processing_time_ms"`
}

type askCitation struct {
	ChunkID string  `json:"chunk_id"`
	Scope   string  `json:"scope"`
	Score   float64 `json:"score"`
	Preview string  `json:"preview"`
}

func newAskCmd(env *string) *cobra.Command {
	c := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question and print the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(*env)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			req, err := domquery.NewRequest(strings.Join(args, " "), c.facility, c.patient,
				domquery.Type(c.queryType), c.maxResults)
			if err != nil {
				return err
			}

			a, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("build app: %w", err)
			}
			// Close waits for the write-back of this answer, if any.
			defer a.Close(context.Background())

			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()

			resp, err := a.queries.Ask(ctx, req)
			if err != nil {
				return err
			}

			out := askOutput{
				Answer:           resp.Answer.Text,
				Confidence:       string(resp.Answer.Confidence),
				ConfidenceScore:  resp.Answer.ConfidenceScore,
				SatisfiedAt:      string(resp.Answer.SatisfiedAt),
				UsedLLMFallback:  resp.Answer.UsedLLMFallback,
				Sources:          []askCitation{},
				ProcessingTimeMs: resp.ProcessingTime.Milliseconds(),
			}
			for _, cit := range resp.Answer.Citations {
				out.Sources = append(out.Sources, askCitation{
					ChunkID: cit.ChunkID, Scope: cit.Scope, Score: cit.Score, Preview: cit.Preview,
				})
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVarP(&c.facility, "facility", "f", "", "Facility id (required)")
	cmd.Flags().StringVarP(&c.patient, "patient", "p", "", "Patient code")
	cmd.Flags().StringVarP(&c.queryType, "type", "t", string(domquery.TypeGeneral), "Query type")
	cmd.Flags().IntVarP(&c.maxResults, "max-results", "n", 0, "Cap on cited sources (0 = no cap)")
	cmd.Flags().DurationVar(&c.timeout, "timeout", 30*time.Second, "Query deadline")
	_ = cmd.MarkFlagRequired("facility")
	return cmd
}
