// Package downsample implements the core of the batch downsampler: the
// typed aggregators (this file) and the per-resolution window
// iteration algorithm (window.go) that drives them, per spec.md §4.3–4.4.
package downsample

import (
	"math"

	"github.com/prometheus/prometheus/model/histogram"

	"github.com/HimaVarsha94/FiloDB/pkg/columnar"
)

// Kind discriminates an Aggregator's output packing, avoiding virtual
// dispatch in the inner loop (spec.md §9): WindowDownsampler branches
// on this tag once per column per window rather than calling through
// an interface per row.
type Kind int

const (
	KindTime Kind = iota
	KindDoubleMin
	KindDoubleMax
	KindDoubleSum
	KindDoubleCount
	KindDoubleAvg
	KindDoubleLast
	KindHistogramSum
	KindHistogramLast
)

// Aggregator is the tagged-variant reducer described in spec.md §9:
// Time | Double(kind, col) | Histogram(kind, col), fixed per (raw
// schema, downsample schema) pair and shared across all partitions of
// that schema (spec.md §3).
type Aggregator struct {
	Kind   Kind
	Column int // index of the source column in the raw schema
}

func Time(column int) Aggregator             { return Aggregator{Kind: KindTime, Column: column} }
func DoubleMin(column int) Aggregator        { return Aggregator{Kind: KindDoubleMin, Column: column} }
func DoubleMax(column int) Aggregator        { return Aggregator{Kind: KindDoubleMax, Column: column} }
func DoubleSum(column int) Aggregator        { return Aggregator{Kind: KindDoubleSum, Column: column} }
func DoubleCount(column int) Aggregator      { return Aggregator{Kind: KindDoubleCount, Column: column} }
func DoubleAvg(column int) Aggregator        { return Aggregator{Kind: KindDoubleAvg, Column: column} }
func DoubleLast(column int) Aggregator       { return Aggregator{Kind: KindDoubleLast, Column: column} }
func HistogramSum(column int) Aggregator     { return Aggregator{Kind: KindHistogramSum, Column: column} }
func HistogramLast(column int) Aggregator    { return Aggregator{Kind: KindHistogramLast, Column: column} }

// OutputType reports the downsample column type this aggregator
// produces, used when sizing a DownsamplePartition's write buffers.
func (a Aggregator) OutputType() columnar.ColumnType {
	switch a.Kind {
	case KindTime:
		return columnar.ColumnTimestamp
	case KindHistogramSum, KindHistogramLast:
		return columnar.ColumnHistogram
	default:
		return columnar.ColumnDouble
	}
}

// Reduce evaluates the aggregator over the inclusive row range
// [sRow, eRow] of chunk, using the raw partition's typed readers.
// pEnd is the caller-supplied period end timestamp the Time variant
// emits directly (spec.md §4.3: "supplied by caller, not from data").
//
// The caller must not invoke Reduce on an empty range (sRow > eRow);
// spec.md §9's open question on empty-window emission is resolved by
// WindowDownsampler skipping such windows before ever calling Reduce.
func (a Aggregator) Reduce(part RawPartitionReader, chunk *columnar.ChunkInfo, sRow, eRow int, pEnd int64) interface{} {
	switch a.Kind {
	case KindTime:
		return pEnd
	case KindDoubleMin:
		return reduceDouble(part.DoubleReaderFor(chunk, a.Column), sRow, eRow, doubleMin)
	case KindDoubleMax:
		return reduceDouble(part.DoubleReaderFor(chunk, a.Column), sRow, eRow, doubleMax)
	case KindDoubleSum:
		sum, count := sumAndCount(part.DoubleReaderFor(chunk, a.Column), sRow, eRow)
		if count == 0 {
			return math.NaN()
		}
		return sum
	case KindDoubleCount:
		_, count := sumAndCount(part.DoubleReaderFor(chunk, a.Column), sRow, eRow)
		return float64(count)
	case KindDoubleAvg:
		sum, count := sumAndCount(part.DoubleReaderFor(chunk, a.Column), sRow, eRow)
		if count == 0 {
			return math.NaN()
		}
		return sum / float64(count)
	case KindDoubleLast:
		return part.DoubleReaderFor(chunk, a.Column).At(eRow)
	case KindHistogramSum:
		return reduceHistogramSum(part.HistogramReaderFor(chunk, a.Column), sRow, eRow)
	case KindHistogramLast:
		h := part.HistogramReaderFor(chunk, a.Column).At(eRow)
		if h == nil {
			return h
		}
		return h.Copy()
	default:
		panic("downsample: unknown aggregator kind")
	}
}

// RawPartitionReader is the minimal partition surface an Aggregator
// needs: typed column readers scoped to one chunk. PagedRawPartition
// satisfies it.
type RawPartitionReader interface {
	DoubleReaderFor(chunk *columnar.ChunkInfo, col int) *columnar.DoubleReader
	HistogramReaderFor(chunk *columnar.ChunkInfo, col int) *columnar.HistogramReader
}

// doubleReducer folds one non-NaN value into the running accumulator.
type doubleReducer func(acc float64, v float64, seenAny bool) (next float64, nextSeenAny bool)

func doubleMin(acc, v float64, seenAny bool) (float64, bool) {
	if !seenAny || v < acc {
		return v, true
	}
	return acc, seenAny
}

func doubleMax(acc, v float64, seenAny bool) (float64, bool) {
	if !seenAny || v > acc {
		return v, true
	}
	return acc, seenAny
}

// reduceDouble applies fn over [sRow, eRow], skipping NaN values unless
// every value in the range is NaN, in which case NaN propagates
// (spec.md §4.3: "NaN propagates only if all values are NaN").
func reduceDouble(r *columnar.DoubleReader, sRow, eRow int, fn doubleReducer) float64 {
	var (
		acc     float64
		seenAny bool
	)
	for row := sRow; row <= eRow; row++ {
		v := r.At(row)
		if math.IsNaN(v) {
			continue
		}
		acc, seenAny = fn(acc, v, seenAny)
	}
	if !seenAny {
		// Every value in the range was NaN (or the range was empty).
		return math.NaN()
	}
	return acc
}

// sumAndCount sums and counts the non-NaN values in [sRow, eRow].
func sumAndCount(r *columnar.DoubleReader, sRow, eRow int) (sum float64, count int) {
	for row := sRow; row <= eRow; row++ {
		v := r.At(row)
		if math.IsNaN(v) {
			continue
		}
		sum += v
		count++
	}
	return sum, count
}

// reduceHistogramSum element-wise sums the histograms in [sRow, eRow]
// using the real histogram.FloatHistogram arithmetic, then the caller
// serializes the result at flush time (EncodeChunk).
func reduceHistogramSum(r *columnar.HistogramReader, sRow, eRow int) *histogram.FloatHistogram {
	var acc *histogram.FloatHistogram
	for row := sRow; row <= eRow; row++ {
		h := r.At(row)
		if h == nil {
			continue
		}
		if acc == nil {
			acc = h.Copy()
			continue
		}
		acc, _ = acc.Add(h)
	}
	return acc
}
