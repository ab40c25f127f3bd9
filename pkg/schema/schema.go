// Package schema loads and validates the raw/downsample schema pairs
// and aggregator descriptors a batch run needs, grounded on the
// teacher's config-time-validated-registry idiom: load once at process
// start, fail loudly there, never surface a config mismatch mid-batch.
package schema

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/HimaVarsha94/FiloDB/pkg/columnar"
	"github.com/HimaVarsha94/FiloDB/pkg/downsample"
)

// KeyField describes one field of a raw schema's partition key, after
// the 4-byte schema id prefix every partition key carries.
type KeyField struct {
	Name string
	// Bytes is the fixed width of this key field, in bytes.
	Bytes int
}

// DownsampleSchema is the schema under which aggregate rows are
// ingested: its Columns (in order, column 0 always ColumnTimestamp)
// must align 1:1 with the owning RawSchema's Aggregators.
type DownsampleSchema struct {
	Name    string
	Columns []columnar.ColumnType
}

// RawSchema is one raw dataset's schema: its partition key layout, its
// data columns, and — if this schema is downsampled — the downsample
// schema and the aggregator descriptors that produce it.
type RawSchema struct {
	ID         int32
	Name       string
	KeyFields  []KeyField
	Columns    []columnar.ColumnType
	Downsample *DownsampleSchema
	Aggregators []downsample.Aggregator
}

// KeyLen returns the total partition key width, including the 4-byte
// schema id prefix.
func (s RawSchema) KeyLen() int {
	n := 4
	for _, f := range s.KeyFields {
		n += f.Bytes
	}
	return n
}

// Registry is a read-only-after-load map from schema id to RawSchema
// (spec.md §5: "the schema registry is read-only after load").
type Registry struct {
	byID map[int32]RawSchema
}

// NewRegistry validates and indexes schemas. Per spec.md §4.8, every
// raw schema carrying a downsample schema must declare exactly one
// aggregator per downsample column; a mismatch is a construction-time
// error, never a batch-time one.
func NewRegistry(schemas []RawSchema) (*Registry, error) {
	byID := make(map[int32]RawSchema, len(schemas))
	for _, s := range schemas {
		if s.Downsample != nil && len(s.Aggregators) != len(s.Downsample.Columns) {
			return nil, errors.Errorf(
				"schema %q (id %d): %d aggregators declared for %d downsample columns",
				s.Name, s.ID, len(s.Aggregators), len(s.Downsample.Columns),
			)
		}
		if _, dup := byID[s.ID]; dup {
			return nil, errors.Errorf("duplicate schema id %d (%q)", s.ID, s.Name)
		}
		byID[s.ID] = s
	}
	return &Registry{byID: byID}, nil
}

// Lookup returns the raw schema for id, or an error if unknown — a
// per-partition condition (spec.md §7: "schema missing... warn, skip
// partition"), not a construction-time one, so the caller decides how
// to react.
func (r *Registry) Lookup(id int32) (RawSchema, error) {
	s, ok := r.byID[id]
	if !ok {
		return RawSchema{}, fmt.Errorf("unknown schema id %d", id)
	}
	return s, nil
}

// All returns every registered schema, for arena layout construction.
func (r *Registry) All() []RawSchema {
	out := make([]RawSchema, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	return out
}
