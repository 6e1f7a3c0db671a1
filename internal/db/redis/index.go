package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/medrag/internal/db"
)

// CreateIndex runs FT.CREATE. An existing index yields db.ErrIndexExists.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}
	if err := s.do(ctx, s.b().Arbitrary(db.OpCreateIndex).Args(args...).Build()).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Key: def.Name, Err: err}
	}
	return nil
}

func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	args := []string{idx.Name, "ON", "HASH"}
	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}
	args = append(args, "SCHEMA")
	for _, f := range idx.Fields {
		switch f.Kind {
		case db.FieldTag:
			args = append(args, f.Name, "TAG", "CASESENSITIVE")
		case db.FieldNumeric:
			args = append(args, f.Name, "NUMERIC")
		case db.FieldVector:
			args = append(args, f.Name)
			args = append(args, vectorArgs(f)...)
		default:
			return nil, fmt.Errorf("field %q: unknown kind %d", f.Name, f.Kind)
		}
	}
	return args, nil
}

// vectorArgs renders "VECTOR HNSW <n> <attr...>"; n counts the attribute tokens.
func vectorArgs(f db.IndexField) []string {
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.Dim),
		"DISTANCE_METRIC", "COSINE",
	}
	for _, p := range []struct {
		name string
		v    int
	}{
		{"M", f.HNSW.M},
		{"EF_CONSTRUCTION", f.HNSW.EFConstruct},
		{"EF_RUNTIME", f.HNSW.EFRuntime},
	} {
		if p.v > 0 {
			attrs = append(attrs, p.name, strconv.Itoa(p.v))
		}
	}
	return append([]string{"VECTOR", "HNSW", strconv.Itoa(len(attrs))}, attrs...)
}
