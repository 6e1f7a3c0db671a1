package answer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/domain"
	domans "github.com/kailas-cloud/medrag/internal/domain/answer"
	"github.com/kailas-cloud/medrag/internal/domain/chunk"
	"github.com/kailas-cloud/medrag/internal/domain/escalation"
	"github.com/kailas-cloud/medrag/internal/domain/query"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
	"github.com/kailas-cloud/medrag/internal/metrics"
)

// Policy selects which answers are written back.
type Policy string

const (
	// PolicyFallbackOnly writes back LLM fallback answers only.
	PolicyFallbackOnly Policy = "fallback_only"
	// PolicyAlways writes back every answer.
	PolicyAlways Policy = "always"
)

// DefaultWriteBackTimeout bounds one write-back.
const DefaultWriteBackTimeout = 10 * time.Second

// ChunkWriter stores a chunk and invalidates its scope.
type ChunkWriter interface {
	Put(ctx context.Context, c chunk.Chunk) error
}

// WriteBackConfig configures WriteBack.
type WriteBackConfig struct {
	Enabled bool
	Policy  Policy
	Timeout time.Duration
}

// WriteBack stores answered Q/A pairs as derived chunks in the background.
type WriteBack struct {
	embed  domain.Embedder
	writer ChunkWriter
	cfg    WriteBackConfig
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewWriteBack creates a WriteBack.
func NewWriteBack(embed domain.Embedder, writer ChunkWriter, cfg WriteBackConfig, logger *zap.Logger) *WriteBack {
	if cfg.Policy == "" {
		cfg.Policy = PolicyFallbackOnly
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultWriteBackTimeout
	}
	return &WriteBack{embed: embed, writer: writer, cfg: cfg, logger: logger, now: time.Now}
}

// Schedule queues a write-back of the answer into the most specific scope of chain.
// It returns immediately; the work outlives ctx cancellation but keeps its values.
// Reports whether a write-back was started.
func (w *WriteBack) Schedule(
	ctx context.Context, req query.Request, chain scope.Chain, ans domans.Answer, res *escalation.Result,
) bool {
	if !w.eligible(ans, res) {
		return false
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		metrics.WriteBacksTotal.WithLabelValues("dropped").Inc()
		return false
	}
	w.wg.Add(1)
	w.mu.Unlock()

	target := chain.MostSpecific()
	go func() {
		defer w.wg.Done()
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.Timeout)
		defer cancel()

		if err := w.write(wctx, req, target, ans); err != nil {
			metrics.WriteBacksTotal.WithLabelValues("error").Inc()
			w.logger.Warn("Write-back failed",
				zap.String("scope", target.Redacted()),
				zap.Error(err),
			)
			return
		}
		metrics.WriteBacksTotal.WithLabelValues("ok").Inc()
	}()
	return true
}

// Close stops accepting write-backs and waits for pending ones or ctx.
func (w *WriteBack) Close(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for write-backs: %w", ctx.Err())
	}
}

func (w *WriteBack) eligible(ans domans.Answer, res *escalation.Result) bool {
	if !w.cfg.Enabled || res == nil || ans.Text == "" {
		return false
	}
	if w.cfg.Policy == PolicyFallbackOnly && !res.UsedLLMFallback {
		return false
	}
	return true
}

func (w *WriteBack) write(ctx context.Context, req query.Request, target scope.Scope, ans domans.Answer) error {
	text := "Question: " + req.Text() + "\nAnswer: " + ans.Text
	if len(text) > chunk.MaxTextSize {
		text = strings.ToValidUTF8(text[:chunk.MaxTextSize], "")
	}

	emb, err := w.embed.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed derived answer: %w", err)
	}

	sensitivity := chunk.SensitivityInternal
	if target.Kind() == scope.KindPatient {
		sensitivity = chunk.SensitivityRestricted
	}
	id := "qa-" + uuid.NewString()
	c, err := chunk.New(id, target, text, emb.Embedding, chunk.Metadata{
		DocumentType:     string(req.Type()),
		Sensitivity:      sensitivity,
		SourceDocumentID: id,
		Source:           chunk.SourceDerivedQA,
		Confidence:       string(ans.Confidence),
	}, w.now())
	if err != nil {
		return fmt.Errorf("build derived chunk: %w", err)
	}

	if err := w.writer.Put(ctx, c); err != nil {
		return fmt.Errorf("store derived chunk: %w", err)
	}
	w.logger.Debug("Derived answer written back", zap.String("scope", target.Redacted()), zap.String("chunk_id", id))
	return nil
}
