package db

import (
	"errors"
	"fmt"
)

// FieldKind is the FT schema type of an indexed hash field.
type FieldKind int

const (
	// FieldTag is matched exactly and case-sensitively (scope keys).
	FieldTag FieldKind = iota
	// FieldNumeric supports range filters (timestamps).
	FieldNumeric
	// FieldVector is a FLOAT32 HNSW vector with cosine distance.
	FieldVector
)

// HNSW holds HNSW graph parameters. Zero values leave the server defaults.
type HNSW struct {
	M           int
	EFConstruct int
	EFRuntime   int
}

// IndexField is one field of the hash index schema.
type IndexField struct {
	Name string
	Kind FieldKind
	Dim  int  // vector only
	HNSW HNSW // vector only
}

// IndexDefinition is the input of FT.CREATE ... ON HASH.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// Validate checks names and vector dimensions.
func (idx *IndexDefinition) Validate() error {
	if !validIdentifier(idx.Name) {
		return fmt.Errorf("invalid index name %q", idx.Name)
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}
	seen := make(map[string]bool, len(idx.Fields))
	for _, f := range idx.Fields {
		if !validIdentifier(f.Name) {
			return fmt.Errorf("invalid field name %q", f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true
		if f.Kind == FieldVector && f.Dim <= 0 {
			return fmt.Errorf("vector field %q requires a positive dimension", f.Name)
		}
	}
	return nil
}

// IndexBuilder assembles an IndexDefinition.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts an index definition.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

// Prefix restricts the index to keys with the given prefixes.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// Tag adds a TAG field.
func (b *IndexBuilder) Tag(name string) *IndexBuilder {
	return b.field(IndexField{Name: name, Kind: FieldTag})
}

// Numeric adds a NUMERIC field.
func (b *IndexBuilder) Numeric(name string) *IndexBuilder {
	return b.field(IndexField{Name: name, Kind: FieldNumeric})
}

// Vector adds an HNSW vector field.
func (b *IndexBuilder) Vector(name string, dim int, hnsw HNSW) *IndexBuilder {
	return b.field(IndexField{Name: name, Kind: FieldVector, Dim: dim, HNSW: hnsw})
}

func (b *IndexBuilder) field(f IndexField) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, f)
	return b
}

// Build validates and returns the definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	return &b.def, nil
}

// validIdentifier accepts [a-zA-Z0-9_:-]+, the characters used by medrag key names.
func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == ':' || r == '-':
		default:
			return false
		}
	}
	return true
}
