package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/metrics"
)

const (
	// DefaultCompletionModel is used when no model is configured.
	DefaultCompletionModel = "gpt-4o-mini"
	// DefaultSystemPrompt frames the fallback answer.
	DefaultSystemPrompt = "You are an AI medical expert. You will be given a question about a medical document. " +
		"Respond with the necessary information from the document, and if possible, provide a summary."
	// DefaultMaxTokens caps the generated answer.
	DefaultMaxTokens = 1024
)

// CompleterConfig holds the LLM completion settings.
type CompleterConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
	// Timeout bounds a single completion call (0 = caller deadline only).
	Timeout time.Duration
	// Rate is the sustained requests per second (<= 0 disables limiting).
	Rate   float64
	Burst  int
	Logger *zap.Logger
}

// Completer answers queries through the OpenAI-compatible chat completions API.
type Completer struct {
	client       *openai.Client
	model        string
	systemPrompt string
	maxTokens    int
	temperature  float32
	timeout      time.Duration
	limiter      *rate.Limiter
	logger       *zap.Logger
	tracer       trace.Tracer
}

var _ domain.Completer = (*Completer)(nil)

// NewCompleter creates an LLM completion client.
func NewCompleter(cfg *CompleterConfig) *Completer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	c := &Completer{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		timeout:      cfg.Timeout,
		limiter:      rate.NewLimiter(rate.Inf, 0),
		logger:       cfg.Logger,
		tracer:       otel.Tracer("medrag/llm"),
	}
	if c.model == "" {
		c.model = DefaultCompletionModel
	}
	if c.systemPrompt == "" {
		c.systemPrompt = DefaultSystemPrompt
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	return c
}

// Complete generates an answer grounded on the given passages.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	ctx, span := c.tracer.Start(ctx, "llm.Complete", trace.WithAttributes(
		attribute.String("llm.model", c.model),
		attribute.String("query.type", req.QueryType),
		attribute.Int("llm.passages", len(req.Passages)),
	))
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(c.model, "rate_limited").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limited")
		if ctx.Err() == nil {
			// the limiter refuses to wait past the deadline
			err = fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
		}
		return domain.Completion{}, fmt.Errorf("llm rate limit wait: %w: %w", domain.ErrLLMUnavailable, err)
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	duration := time.Since(start)
	metrics.LLMRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())

	if err == nil && (len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "") {
		err = errors.New("empty completion")
	}
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(c.model, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("LLM completion failed",
			zap.String("model", c.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.Completion{}, parseAPIError("completion", err, domain.ErrLLMUnavailable)
	}

	metrics.LLMRequestsTotal.WithLabelValues(c.model, "success").Inc()
	metrics.LLMTokensTotal.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))
	span.SetAttributes(attribute.Int("llm.total_tokens", resp.Usage.TotalTokens))

	c.logger.Debug("LLM completion finished",
		zap.String("model", c.model),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return domain.Completion{
		Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
		UsedTokens: resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels.
func (c *Completer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// BuildPrompt renders the user message: query type, question and numbered passages.
func BuildPrompt(req domain.CompletionRequest) string {
	var b strings.Builder
	if req.QueryType != "" {
		fmt.Fprintf(&b, "Query type: %s\n\n", req.QueryType)
	}
	fmt.Fprintf(&b, "Question: %s\n\n", req.Query)
	if len(req.Passages) == 0 {
		b.WriteString("No supporting documents were found. Answer from general medical knowledge and say so.")
		return b.String()
	}
	b.WriteString("Documents:\n")
	for i, p := range req.Passages {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, p)
	}
	return b.String()
}
