package qdrant

import (
	"context"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
)

type mockPoints struct {
	upsertFn      func(in *pb.UpsertPoints) error
	deleteFn      func(in *pb.DeletePoints) error
	searchFn      func(in *pb.SearchPoints) (*pb.SearchResponse, error)
	fieldIndexErr error
	fieldIndexed  string
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	if m.upsertFn != nil {
		return &pb.PointsOperationResponse{}, m.upsertFn(in)
	}
	return &pb.PointsOperationResponse{}, nil
}

func (m *mockPoints) Delete(_ context.Context, in *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	if m.deleteFn != nil {
		return &pb.PointsOperationResponse{}, m.deleteFn(in)
	}
	return &pb.PointsOperationResponse{}, nil
}

func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	if m.searchFn != nil {
		return m.searchFn(in)
	}
	return &pb.SearchResponse{}, nil
}

func (m *mockPoints) CreateFieldIndex(
	_ context.Context, in *pb.CreateFieldIndexCollection, _ ...grpc.CallOption,
) (*pb.PointsOperationResponse, error) {
	m.fieldIndexed = in.GetFieldName()
	return &pb.PointsOperationResponse{}, m.fieldIndexErr
}

type mockCollections struct {
	existing []string
	listErr  error
	created  *pb.CreateCollection
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	resp := &pb.ListCollectionsResponse{}
	for _, n := range m.existing {
		resp.Collections = append(resp.Collections, &pb.CollectionDescription{Name: n})
	}
	return resp, nil
}

func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.created = in
	return &pb.CollectionOperationResponse{Result: true}, nil
}

type mockHealth struct{ err error }

func (m *mockHealth) HealthCheck(_ context.Context, _ *pb.HealthCheckRequest, _ ...grpc.CallOption) (*pb.HealthCheckReply, error) {
	return &pb.HealthCheckReply{}, m.err
}

func strVal(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}
