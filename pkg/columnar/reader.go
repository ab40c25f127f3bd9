package columnar

import (
	"sort"

	"github.com/prometheus/prometheus/model/histogram"
)

// LongReader is a typed, positional reader over a LongVector. It
// supports the two row-boundary lookups the window downsampler needs:
// binarySearch (first row with ts >= target) and ceilingIndex (last
// row with ts <= target). Both run in O(log numRows).
type LongReader struct {
	vec *LongVector
}

func NewLongReader(vec *LongVector) *LongReader {
	return &LongReader{vec: vec}
}

func (r *LongReader) Len() int { return len(r.vec.Values) }

func (r *LongReader) At(row int) int64 { return r.vec.Values[row] }

// binarySearch returns the index of the first row with ts >= target.
// If no such row exists it returns Len(), which callers must mask with
// & 0x7FFFFFFF per spec.md §4.2 to obtain a valid insertion index; this
// implementation already returns a non-negative insertion index, so the
// mask is a no-op here and kept only because callers apply it uniformly
// to match the source algorithm's shape.
func (r *LongReader) BinarySearch(target int64) int {
	n := len(r.vec.Values)
	idx := sort.Search(n, func(i int) bool {
		return r.vec.Values[i] >= target
	})
	return idx & 0x7FFFFFFF
}

// CeilingIndex returns the index of the last row with ts <= target. If
// every row's ts is greater than target, it returns -1.
func (r *LongReader) CeilingIndex(target int64) int {
	n := len(r.vec.Values)
	idx := sort.Search(n, func(i int) bool {
		return r.vec.Values[i] > target
	})
	return idx - 1
}

// DoubleReader is a typed, positional reader over a DoubleVector.
type DoubleReader struct {
	vec *DoubleVector
}

func NewDoubleReader(vec *DoubleVector) *DoubleReader {
	return &DoubleReader{vec: vec}
}

func (r *DoubleReader) Len() int            { return len(r.vec.Values) }
func (r *DoubleReader) At(row int) float64  { return r.vec.Values[row] }

// HistogramReader is a typed, positional reader over a HistogramVector.
type HistogramReader struct {
	vec *HistogramVector
}

func NewHistogramReader(vec *HistogramVector) *HistogramReader {
	return &HistogramReader{vec: vec}
}

func (r *HistogramReader) Len() int { return len(r.vec.Values) }

func (r *HistogramReader) At(row int) *histogram.FloatHistogram { return r.vec.Values[row] }
