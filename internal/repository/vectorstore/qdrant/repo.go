package qdrant

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/chunk"
	"github.com/kailas-cloud/medrag/internal/domain/match"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
	"github.com/kailas-cloud/medrag/internal/repository/vectorstore"
)

const maxTopK = 100

// pointsClient is the consumer interface for point operations (ISP).
type pointsClient interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	CreateFieldIndex(
		ctx context.Context, in *pb.CreateFieldIndexCollection, opts ...grpc.CallOption,
	) (*pb.PointsOperationResponse, error)
}

// collectionsClient is the consumer interface for collection lifecycle (ISP).
type collectionsClient interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// healthClient is the consumer interface for the server health probe (ISP).
type healthClient interface {
	HealthCheck(ctx context.Context, in *pb.HealthCheckRequest, opts ...grpc.CallOption) (*pb.HealthCheckReply, error)
}

// Config holds Qdrant connection parameters (gRPC port, not REST).
type Config struct {
	Host       string
	Port       int
	UseTLS     bool
	APIKey     string
	Collection string
	Dimensions int
}

// Repo is the Qdrant vector store: one collection, scope kept in a keyword
// payload index and enforced with a Must filter on every search.
type Repo struct {
	conn        *grpc.ClientConn
	points      pointsClient
	collections collectionsClient
	health      healthClient
	collection  string
	dimensions  int
}

var _ vectorstore.Store = (*Repo)(nil)

// Dial connects to Qdrant over gRPC.
func Dial(cfg Config) (*Repo, error) {
	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.UseTLS {
		opts[0] = grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12}))
	}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial qdrant %s: %w", addr, err)
	}

	r := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), pb.NewQdrantClient(conn),
		cfg.Collection, cfg.Dimensions)
	r.conn = conn
	return r, nil
}

// NewWithClients builds a Repo over pre-built clients (tests, shared connections).
func NewWithClients(p pointsClient, c collectionsClient, h healthClient, collection string, dimensions int) *Repo {
	return &Repo{points: p, collections: c, health: h, collection: collection, dimensions: dimensions}
}

// Close closes the gRPC connection if the repo owns one.
func (r *Repo) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// EnsureSchema creates the collection and the scope payload index if missing.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	list, err := r.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return vectorstore.Unavailable("list collections", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == r.collection {
			return nil
		}
	}

	_, err = r.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{Size: uint64(r.dimensions), Distance: pb.Distance_Cosine},
			},
		},
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return vectorstore.Unavailable("create collection", err)
	}

	wait := true
	_, err = r.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: r.collection,
		Wait:           &wait,
		FieldName:      vectorstore.FieldScope,
		FieldType:      pb.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return vectorstore.Unavailable("create scope index", err)
	}
	return nil
}

// Search runs a scope-filtered similarity search with the score floor pushed to the server.
func (r *Repo) Search(
	ctx context.Context, s scope.Scope, embedding []float32, topK int, minScore float64,
) ([]match.ScoredMatch, error) {
	if s.IsZero() || len(embedding) == 0 {
		return nil, nil
	}

	threshold := float32(minScore)
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         embedding,
		Limit:          uint64(vectorstore.ClampTopK(topK, maxTopK)),
		ScoreThreshold: &threshold,
		Filter:         &pb.Filter{Must: []*pb.Condition{fieldMatch(vectorstore.FieldScope, s.Key())}},
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, vectorstore.Unavailable("search", err)
	}

	out := make([]match.ScoredMatch, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		score := float64(p.GetScore())
		// float32 rounding on the server side can let a hair-below score through
		if score < minScore {
			continue
		}
		m, err := vectorstore.MatchFrom(p.GetId().GetUuid(), score, stringPayload(p.GetPayload()))
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	match.SortByScore(out)
	return out, nil
}

// Upsert stores the chunk as a point whose id is derived from (scope, chunk id).
func (r *Repo) Upsert(ctx context.Context, target scope.Scope, c *chunk.Chunk) error {
	if len(c.Embedding()) != r.dimensions {
		return fmt.Errorf("%w: embedding has %d dimensions, collection expects %d",
			domain.ErrInvalidChunk, len(c.Embedding()), r.dimensions)
	}

	fields := vectorstore.Payload(c)
	payload := make(map[string]*pb.Value, len(fields))
	for k, v := range fields {
		payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
	}

	wait := true
	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id: pointID(target, c.ID()),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: c.Embedding()}},
			},
			Payload: payload,
		}},
	})
	if err != nil {
		return vectorstore.Unavailable("upsert", err)
	}
	return nil
}

// Delete removes one point. Deleting a missing point is not an error.
func (r *Repo) Delete(ctx context.Context, s scope.Scope, chunkID string) error {
	wait := true
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{pointID(s, chunkID)}},
			},
		},
	})
	if err != nil {
		return vectorstore.Unavailable("delete", err)
	}
	return nil
}

// Ping probes the server health endpoint.
func (r *Repo) Ping(ctx context.Context) error {
	if _, err := r.health.HealthCheck(ctx, &pb.HealthCheckRequest{}); err != nil {
		return vectorstore.Unavailable("health", err)
	}
	return nil
}

// pointID is a stable UUIDv5 over the scope key and chunk id.
func pointID(s scope.Scope, chunkID string) *pb.PointId {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(s.Key()+"/"+chunkID))
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id.String()}}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func stringPayload(p map[string]*pb.Value) map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v.GetStringValue()
	}
	return out
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context, method string, req, reply any,
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption,
	) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
