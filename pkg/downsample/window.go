package downsample

import (
	"github.com/HimaVarsha94/FiloDB/pkg/columnar"
)

// Partition is the minimal raw-partition surface WindowDownsampler
// needs: the chunk sequence plus the readers Aggregator.Reduce uses.
// PagedRawPartition satisfies it (via its own reader methods).
//
// LongReaderFor rounds out the typed-reader surface alongside
// DoubleReaderFor/HistogramReaderFor so any Partition implementation
// exposes its timestamp column the same way it exposes its value
// columns; Run itself doesn't call it, since it type-asserts
// chunk.ColumnVectors[0] directly on its hot path instead.
type Partition interface {
	RawPartitionReader
	ChunkInfos() []columnar.ChunkInfo
	LongReaderFor(chunk *columnar.ChunkInfo, col int) *columnar.LongReader
}

// Sink is the destination for one resolution's aggregate rows: a
// DownsamplePartition, in production. Run passes userTimeStart as
// ingestionTime for every row; the row's own timestamp (column 0, the
// period end) increases from one row to the next.
type Sink interface {
	Ingest(ingestionTime int64, row []interface{})
}

// Resolution pairs a period length in milliseconds with the Sink rows
// at that resolution are ingested into.
type Resolution struct {
	Millis int64
	Sink   Sink
}

// Run executes the window-aggregation algorithm of spec.md §4.4 over
// one raw partition: for every chunk, for every configured resolution,
// iterate aligned periods and emit one aggregate row per period whose
// end falls within [userTimeStart, userTimeEnd].
//
// aggs must align 1:1 with the downsample schema's column list (one
// Aggregator per output column, spec.md §3); the same aggs slice (and
// a single reusable row buffer) is used across every chunk and period
// of this partition, matching the "single reusable row buffer... to
// avoid per-window allocation" requirement in spec.md §4.4.
func Run(part Partition, aggs []Aggregator, resolutions []Resolution, userTimeStart, userTimeEnd int64) {
	row := make([]interface{}, len(aggs))

	for ci := range part.ChunkInfos() {
		chunk := &part.ChunkInfos()[ci]
		tsVec := chunk.ColumnVectors[0]
		tsReader := columnar.NewLongReader(tsVec.(*columnar.LongVector))

		for _, res := range resolutions {
			runChunkResolution(part, chunk, tsReader, aggs, res, row, userTimeStart, userTimeEnd)
		}
	}
}

func runChunkResolution(
	part Partition,
	chunk *columnar.ChunkInfo,
	tsReader *columnar.LongReader,
	aggs []Aggregator,
	res Resolution,
	row []interface{},
	userTimeStart, userTimeEnd int64,
) {
	rMs := res.Millis

	// pStart/pEnd enforce the left-open, right-closed period convention
	// of spec.md §3: period k is (k*R, (k+1)*R], so the first period
	// intersecting this chunk starts at the largest multiple-of-R
	// boundary strictly before chunk.StartTime, plus 1 — the first
	// timestamp that can legally fall in the period. pEnd is pStart+R-1:
	// the period's closing boundary, always itself a multiple of R
	// (ts%R==0, per the emitted-timestamp invariant), which pStart+R
	// alone is not.
	pStart := ((chunk.StartTime-1)/rMs)*rMs + 1
	pEnd := pStart + rMs - 1

	for pStart <= chunk.EndTime {
		if pEnd >= userTimeStart && pEnd <= userTimeEnd {
			sRow := tsReader.BinarySearch(pStart) & 0x7FFFFFFF
			eRow := tsReader.CeilingIndex(pEnd)
			if eRow > chunk.NumRows-1 {
				eRow = chunk.NumRows - 1
			}

			// Empty windows are skipped explicitly (spec.md §9 open
			// question): an aggregator must never be asked to reduce
			// an empty row range.
			if sRow <= eRow {
				for i, agg := range aggs {
					row[i] = agg.Reduce(part, chunk, sRow, eRow, pEnd)
				}
				res.Sink.Ingest(userTimeStart, row)
			}
		}
		pStart += rMs
		pEnd += rMs
	}
}
