package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	domchunk "github.com/kailas-cloud/medrag/internal/domain/chunk"
	domquery "github.com/kailas-cloud/medrag/internal/domain/query"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
	chunkuc "github.com/kailas-cloud/medrag/internal/usecase/chunk"
	healthuc "github.com/kailas-cloud/medrag/internal/usecase/health"
	queryuc "github.com/kailas-cloud/medrag/internal/usecase/query"
)

type mockQuerier struct {
	askFn func(ctx context.Context, req domquery.Request) (queryuc.Response, error)
}

func (m *mockQuerier) Ask(ctx context.Context, req domquery.Request) (queryuc.Response, error) {
	return m.askFn(ctx, req)
}

type mockIngester struct {
	ingestFn func(ctx context.Context, in chunkuc.IngestInput) (domchunk.Chunk, error)
	deleteFn func(ctx context.Context, s scope.Scope, id string) error
}

func (m *mockIngester) Ingest(ctx context.Context, in chunkuc.IngestInput) (domchunk.Chunk, error) {
	if m.ingestFn != nil {
		return m.ingestFn(ctx, in)
	}
	return domchunk.New(in.ID, in.Scope, in.Text, []float32{1}, in.Metadata, time.Unix(0, 0))
}

func (m *mockIngester) Delete(ctx context.Context, s scope.Scope, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, s, id)
	}
	return nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

type fixture struct {
	queries *mockQuerier
	chunks  *mockIngester
	health  *mockHealth
	handler http.Handler
}

func newFixture(t *testing.T, apiKeys ...string) *fixture {
	t.Helper()
	f := &fixture{
		queries: &mockQuerier{},
		chunks:  &mockIngester{},
		health: &mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"vector_store": healthuc.CheckOK},
		}},
	}
	srv := NewServer(f.queries, f.chunks, f.health, time.Second, zap.NewNop())
	f.handler = NewRouter(srv, apiKeys, zap.NewNop())
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}
