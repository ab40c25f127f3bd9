// Package columnar defines the fixed-width columnar vector types that
// back both raw and downsample partitions, and the minimal wire codec
// used to flush them to a ChunkSet.
package columnar

import (
	"github.com/prometheus/prometheus/model/histogram"
)

// ColumnType identifies the on-disk type of a schema column.
type ColumnType int

const (
	// ColumnTimestamp is an i64 column holding the chunk's logical time.
	// Exactly one such column exists per schema, always at index 0.
	ColumnTimestamp ColumnType = iota
	ColumnDouble
	ColumnHistogram
)

func (t ColumnType) String() string {
	switch t {
	case ColumnTimestamp:
		return "timestamp"
	case ColumnDouble:
		return "double"
	case ColumnHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// ColumnVector is an immutable, type-specific columnar buffer. Once
// built it is never mutated; a DownsamplePartition write buffer builds
// one incrementally and then freezes it by handing ownership to the
// arena's block allocator (see pkg/arena).
type ColumnVector interface {
	// Len returns the number of rows in the vector.
	Len() int
	// Type returns the concrete column type backing this vector.
	Type() ColumnType
}

// LongVector is a column vector of int64 values. The timestamp column
// of every chunk is a LongVector whose values are strictly increasing
// and equal to the chunk's logical time at each row.
type LongVector struct {
	Values []int64
}

func (v *LongVector) Len() int          { return len(v.Values) }
func (v *LongVector) Type() ColumnType  { return ColumnTimestamp }
func NewLongVector(values []int64) *LongVector {
	return &LongVector{Values: values}
}

// DoubleVector is a column vector of float64 values, may contain NaN.
type DoubleVector struct {
	Values []float64
}

func (v *DoubleVector) Len() int         { return len(v.Values) }
func (v *DoubleVector) Type() ColumnType { return ColumnDouble }
func NewDoubleVector(values []float64) *DoubleVector {
	return &DoubleVector{Values: values}
}

// HistogramVector is a column vector of sparse float histograms, one
// per row. A nil entry means "no histogram recorded for this row".
type HistogramVector struct {
	Values []*histogram.FloatHistogram
}

func (v *HistogramVector) Len() int         { return len(v.Values) }
func (v *HistogramVector) Type() ColumnType { return ColumnHistogram }
func NewHistogramVector(values []*histogram.FloatHistogram) *HistogramVector {
	return &HistogramVector{Values: values}
}

// ChunkInfo carries one immutable run of rows for one partition, in the
// shape spec.md §3 requires: startTime <= endTime, the timestamp
// column strictly increasing, numRows >= 1.
type ChunkInfo struct {
	StartTime     int64
	EndTime       int64
	NumRows       int
	ColumnVectors []ColumnVector
}

// TimestampVector returns column 0, which is always the timestamp
// column by schema convention (spec.md §3).
func (c *ChunkInfo) TimestampVector() *LongVector {
	return c.ColumnVectors[0].(*LongVector)
}
