package columnar

import "github.com/prometheus/prometheus/model/histogram"

// Builder accumulates rows for a single column of a schema and, once
// full, freezes into an immutable ColumnVector. It is the write-side
// counterpart to the typed readers in reader.go.
type Builder interface {
	// Append adds one value. The caller must pass the type matching
	// the builder's column type (int64, float64 or *histogram.FloatHistogram).
	Append(v interface{})
	Len() int
	Cap() int
	// Build freezes the accumulated values into a ColumnVector. The
	// builder must not be reused after Build without a Reset.
	Build() ColumnVector
	Reset()
}

// NewBuilder constructs a Builder for the given column type with the
// given initial capacity (matching the arena buffer pool's sizing from
// schema metadata, spec.md §4.1).
func NewBuilder(ct ColumnType, capacity int) Builder {
	switch ct {
	case ColumnTimestamp:
		return &longBuilder{values: make([]int64, 0, capacity)}
	case ColumnDouble:
		return &doubleBuilder{values: make([]float64, 0, capacity)}
	case ColumnHistogram:
		return &histogramBuilder{values: make([]*histogram.FloatHistogram, 0, capacity)}
	default:
		panic("columnar: unknown column type")
	}
}

type longBuilder struct{ values []int64 }

func (b *longBuilder) Append(v interface{}) { b.values = append(b.values, v.(int64)) }
func (b *longBuilder) Len() int             { return len(b.values) }
func (b *longBuilder) Cap() int             { return cap(b.values) }
func (b *longBuilder) Build() ColumnVector  { return NewLongVector(append([]int64(nil), b.values...)) }
func (b *longBuilder) Reset()               { b.values = b.values[:0] }

type doubleBuilder struct{ values []float64 }

func (b *doubleBuilder) Append(v interface{}) { b.values = append(b.values, v.(float64)) }
func (b *doubleBuilder) Len() int             { return len(b.values) }
func (b *doubleBuilder) Cap() int             { return cap(b.values) }
func (b *doubleBuilder) Build() ColumnVector {
	return NewDoubleVector(append([]float64(nil), b.values...))
}
func (b *doubleBuilder) Reset() { b.values = b.values[:0] }

type histogramBuilder struct{ values []*histogram.FloatHistogram }

func (b *histogramBuilder) Append(v interface{}) {
	b.values = append(b.values, v.(*histogram.FloatHistogram))
}
func (b *histogramBuilder) Len() int { return len(b.values) }
func (b *histogramBuilder) Cap() int { return cap(b.values) }
func (b *histogramBuilder) Build() ColumnVector {
	return NewHistogramVector(append([]*histogram.FloatHistogram(nil), b.values...))
}
func (b *histogramBuilder) Reset() { b.values = b.values[:0] }
