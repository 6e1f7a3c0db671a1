package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/medrag/internal/db"
	"github.com/kailas-cloud/medrag/internal/domain/filter"
)

func TestPing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.Result(mock.RedisString("PONG"))),
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.ErrorResult(context.DeadlineExceeded)),
	)

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestWaitForReady(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.ErrorResult(errors.New("loading"))),
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.Result(mock.RedisString("PONG"))),
	)
	if err := NewStoreForTest(c).WaitForReady(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForReady_Timeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	c.EXPECT().Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(errors.New("connection refused"))).AnyTimes()

	err := NewStoreForTest(c).WaitForReady(context.Background(), 250*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected timeout carrying the last ping error, got %v", err)
	}
}

func TestIsRedisErr(t *testing.T) {
	if isRedisErr(context.DeadlineExceeded, "deadline") {
		t.Error("non-server errors must not match")
	}
}

// --- hash.go ---

func TestHSet(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "HSET" && cmd[1] == "medrag:chunk:general:c1" && len(cmd) == 4
		})).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	if err := s.HSet(context.Background(), "medrag:chunk:general:c1", map[string]string{"scope": "general"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSet_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "HSET" })).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	err := s.HSet(context.Background(), "k", map[string]string{"f": "v"})
	if !isDBError(err) {
		t.Errorf("expected db.Error, got %T", err)
	}
}

// --- kv.go ---

func TestGet(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "k")).
		Return(mock.Result(mock.RedisBlobString("value")))

	s := NewStoreForTest(c)
	data, err := s.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "value" {
		t.Errorf("data = %q", data)
	}
}

func TestGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "k")).
		Return(mock.Result(mock.RedisNil()))

	s := NewStoreForTest(c)
	if _, err := s.Get(context.Background(), "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestGet_NetworkError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "k")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	_, err := s.Get(context.Background(), "k")
	if errors.Is(err, db.ErrKeyNotFound) {
		t.Error("network errors must not map to ErrKeyNotFound")
	}
	if !isDBError(err) {
		t.Errorf("expected db.Error, got %T", err)
	}
}

func TestDel(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", "medrag:chunk:general:c1")).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	if err := s.Del(context.Background(), "medrag:chunk:general:c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetWithTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "k", "v", "EX", "60")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.SetWithTTL(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- index.go ---

func chunkIndex(t *testing.T) *db.IndexDefinition {
	t.Helper()
	idx, err := db.NewIndex("medrag:chunks:idx").
		Prefix("medrag:chunk:").
		Tag("scope").
		Numeric("created_at").
		Vector(db.VectorField, 4, db.HNSW{M: 16, EFConstruct: 200, EFRuntime: 64}).
		Build()
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	return idx
}

func TestBuildCreateArgs(t *testing.T) {
	args, err := buildCreateArgs(chunkIndex(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := strings.Join(args, " ")
	want := "medrag:chunks:idx ON HASH PREFIX 1 medrag:chunk: SCHEMA " +
		"scope TAG CASESENSITIVE created_at NUMERIC " +
		"vector VECTOR HNSW 12 TYPE FLOAT32 DIM 4 DISTANCE_METRIC COSINE M 16 EF_CONSTRUCTION 200 EF_RUNTIME 64"
	if got != want {
		t.Errorf("args:\n got %q\nwant %q", got, want)
	}
}

func TestBuildCreateArgs_ServerDefaults(t *testing.T) {
	idx, err := db.NewIndex("idx").Vector("v", 8, db.HNSW{}).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	args, _ := buildCreateArgs(idx)
	if got := strings.Join(args, " "); got != "idx ON HASH SCHEMA v VECTOR HNSW 6 TYPE FLOAT32 DIM 8 DISTANCE_METRIC COSINE" {
		t.Errorf("args = %q", got)
	}
}

func TestBuildCreateArgs_Invalid(t *testing.T) {
	if _, err := buildCreateArgs(&db.IndexDefinition{Name: "idx"}); err == nil {
		t.Fatal("expected error for index without fields")
	}
}

func TestCreateIndex(t *testing.T) {
	tests := []struct {
		name    string
		result  rueidis.RedisResult
		wantErr error
	}{
		{"created", mock.Result(mock.RedisString("OK")), nil},
		{"exists", mock.Result(mock.RedisError("Index already exists")), db.ErrIndexExists},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := mock.NewClient(ctrl)
			c.EXPECT().
				Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.CREATE" })).
				Return(tc.result)

			err := NewStoreForTest(c).CreateIndex(context.Background(), chunkIndex(t))
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

// --- search.go ---

func TestSearchKNN_ScopeFilterAndScores(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var captured []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			captured = cmd
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("medrag:chunk:facility:f1:a"),
			mock.RedisArray(
				mock.RedisString("__vector_score"), mock.RedisString("0.1"),
				mock.RedisString("__content"), mock.RedisString("hello"),
			),
			mock.RedisString("medrag:chunk:facility:f1:b"),
			mock.RedisArray(
				mock.RedisString("__vector_score"), mock.RedisString("1.5"),
			),
		)))

	expr, _ := filter.ForScope("facility:f1")
	res, err := NewStoreForTest(c).SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:    "medrag:chunks:idx",
		Filters:      expr,
		Vector:       []float32{0.1, 0.2},
		K:            5,
		ReturnFields: []string{"__content"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured[2] != `(@scope:{facility\:f1})=>[KNN 5 @vector $BLOB]` {
		t.Errorf("query = %q", captured[2])
	}
	if len(res.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(res.Entries))
	}
	if s := res.Entries[0].Score; s < 0.899 || s > 0.901 {
		t.Errorf("score[0] = %f, want 0.9", s)
	}
	// Opposed vectors keep their negative similarity.
	if s := res.Entries[1].Score; s > -0.499 || s < -0.501 {
		t.Errorf("score[1] = %f, want -0.5", s)
	}
	if _, ok := res.Entries[0].Fields["__vector_score"]; ok {
		t.Error("score field must be stripped from fields")
	}
	if res.Entries[0].Fields["__content"] != "hello" {
		t.Errorf("fields = %v", res.Entries[0].Fields)
	}
}

func TestSearchKNN_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	res, err := NewStoreForTest(c).SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "idx", Vector: []float32{0.1}, K: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 0 {
		t.Errorf("entries = %d, want 0", len(res.Entries))
	}
}

func TestSearchKNN_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	_, err := NewStoreForTest(c).SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "idx", Vector: []float32{0.1}, K: 3,
	})
	if !isDBError(err) {
		t.Errorf("expected db.Error, got %v", err)
	}
}

func TestSearchKNN_EFRuntime(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var query string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			query = cmd[2]
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	expr, _ := filter.ForScope("general")
	_, err := NewStoreForTest(c).SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "idx", Filters: expr, Vector: []float32{1}, K: 3, EFRuntime: 128,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query != "(@scope:{general})=>[KNN 3 @vector $BLOB EF_RUNTIME 128]" {
		t.Errorf("query = %q", query)
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := &Store{}
	tests := []*db.KNNQuery{
		{Vector: []float32{1}, K: 1},
		{IndexName: "idx", K: 1},
		{IndexName: "idx", Vector: []float32{1}},
	}
	for i, q := range tests {
		if _, err := s.SearchKNN(context.Background(), q); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestBuildFilter(t *testing.T) {
	if got := buildFilter(filter.Expression{}); got != "" {
		t.Errorf("empty filter = %q", got)
	}
	expr, _ := filter.ForScope("patient:f-1:p_2")
	if got := buildFilter(expr); got != `@scope:{patient\:f\-1\:p_2}` {
		t.Errorf("filter = %q", got)
	}
}

func TestVectorToBytes(t *testing.T) {
	b := vectorToBytes([]float32{1.0, 2.0})
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
	// 1.0f little-endian
	if b[:4] != "\x00\x00\x80\x3f" {
		t.Errorf("unexpected encoding %x", b[:4])
	}
}

func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}

func TestSearchKNN_MissingIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.Result(mock.RedisError("idx: no such index")))

	_, err := NewStoreForTest(c).SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "idx", Vector: []float32{0.1}, K: 3,
	})
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}
