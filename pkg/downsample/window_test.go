package downsample

import (
	"math"
	"testing"

	"github.com/HimaVarsha94/FiloDB/pkg/columnar"
)

// fakePartition adapts a single in-memory chunk to the Partition
// interface Run needs, without routing through storegateway/arena.
type fakePartition struct {
	chunks []columnar.ChunkInfo
}

func (f *fakePartition) ChunkInfos() []columnar.ChunkInfo { return f.chunks }

func (f *fakePartition) LongReaderFor(chunk *columnar.ChunkInfo, col int) *columnar.LongReader {
	return columnar.NewLongReader(chunk.ColumnVectors[col].(*columnar.LongVector))
}

func (f *fakePartition) DoubleReaderFor(chunk *columnar.ChunkInfo, col int) *columnar.DoubleReader {
	return columnar.NewDoubleReader(chunk.ColumnVectors[col].(*columnar.DoubleVector))
}

func (f *fakePartition) HistogramReaderFor(chunk *columnar.ChunkInfo, col int) *columnar.HistogramReader {
	return columnar.NewHistogramReader(chunk.ColumnVectors[col].(*columnar.HistogramVector))
}

// fakeSink records every row handed to it, in order.
type fakeSink struct {
	rows [][]interface{}
}

func (s *fakeSink) Ingest(ingestionTime int64, row []interface{}) {
	cp := make([]interface{}, len(row))
	copy(cp, row)
	s.rows = append(s.rows, cp)
}

const minute = 60 * 1000
const fiveMin = 5 * minute
const hour = 60 * minute

func ms(h, m, s, millis int) int64 {
	return int64(h)*hour + int64(m)*minute + int64(s)*1000 + int64(millis)
}

func newChunk(ts []int64, vals []float64) columnar.ChunkInfo {
	return columnar.ChunkInfo{
		StartTime: ts[0],
		EndTime:   ts[len(ts)-1],
		NumRows:   len(ts),
		ColumnVectors: []columnar.ColumnVector{
			columnar.NewLongVector(ts),
			columnar.NewDoubleVector(vals),
		},
	}
}

// Scenario 1: single chunk, single 5-min bucket, sum+max of doubles.
func TestRun_SingleBucketSumMax(t *testing.T) {
	ts := []int64{ms(16, 55, 1, 0), ms(16, 56, 30, 0), ms(16, 59, 59, 0), ms(17, 0, 0, 0)}
	vals := []float64{1.0, 2.0, 3.0, 4.0}
	part := &fakePartition{chunks: []columnar.ChunkInfo{newChunk(ts, vals)}}
	aggs := []Aggregator{Time(0), DoubleSum(1), DoubleMax(1)}
	sink := &fakeSink{}

	Run(part, aggs, []Resolution{{Millis: fiveMin, Sink: sink}}, ms(16, 0, 0, 0), ms(18, 0, 0, 0))

	if len(sink.rows) != 1 {
		t.Fatalf("expected 1 row, got %d: %v", len(sink.rows), sink.rows)
	}
	row := sink.rows[0]
	if row[0].(int64) != ms(17, 0, 0, 0) {
		t.Errorf("expected bucket 17:00:00, got %d", row[0])
	}
	if row[1].(float64) != 10.0 {
		t.Errorf("expected sum 10.0, got %v", row[1])
	}
	if row[2].(float64) != 4.0 {
		t.Errorf("expected max 4.0, got %v", row[2])
	}
}

// Scenario 2: sample exactly on the boundary belongs to the bucket it closes.
func TestRun_ExactBoundarySample(t *testing.T) {
	ts := []int64{ms(17, 0, 0, 0)}
	vals := []float64{7.0}
	part := &fakePartition{chunks: []columnar.ChunkInfo{newChunk(ts, vals)}}
	aggs := []Aggregator{Time(0), DoubleSum(1)}
	sink := &fakeSink{}

	Run(part, aggs, []Resolution{{Millis: fiveMin, Sink: sink}}, ms(16, 0, 0, 0), ms(18, 0, 0, 0))

	if len(sink.rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(sink.rows))
	}
	if sink.rows[0][0].(int64) != ms(17, 0, 0, 0) {
		t.Errorf("expected bucket 17:00:00, got %d", sink.rows[0][0])
	}
	if sink.rows[0][1].(float64) != 7.0 {
		t.Errorf("expected sum 7.0, got %v", sink.rows[0][1])
	}
}

// Scenario 3: sample one ms after the boundary rolls into the next bucket.
func TestRun_OneMillisecondAfterBoundary(t *testing.T) {
	ts := []int64{ms(17, 0, 0, 1)}
	vals := []float64{7.0}
	part := &fakePartition{chunks: []columnar.ChunkInfo{newChunk(ts, vals)}}
	aggs := []Aggregator{Time(0), DoubleSum(1)}
	sink := &fakeSink{}

	Run(part, aggs, []Resolution{{Millis: fiveMin, Sink: sink}}, ms(16, 0, 0, 0), ms(18, 0, 0, 0))

	if len(sink.rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(sink.rows))
	}
	if sink.rows[0][0].(int64) != ms(17, 5, 0, 0) {
		t.Errorf("expected bucket 17:05:00, got %d", sink.rows[0][0])
	}
}

// Scenario 4: window filter excludes a period whose pEnd precedes userTimeStart.
func TestRun_WindowFilterExcludesPeriod(t *testing.T) {
	ts := []int64{ms(16, 55, 1, 0), ms(16, 56, 30, 0), ms(16, 59, 59, 0), ms(17, 0, 0, 0)}
	vals := []float64{1.0, 2.0, 3.0, 4.0}
	part := &fakePartition{chunks: []columnar.ChunkInfo{newChunk(ts, vals)}}
	aggs := []Aggregator{Time(0), DoubleSum(1)}
	sink := &fakeSink{}

	Run(part, aggs, []Resolution{{Millis: fiveMin, Sink: sink}}, ms(17, 0, 0, 1), ms(18, 0, 0, 0))

	if len(sink.rows) != 0 {
		t.Fatalf("expected 0 rows, got %d: %v", len(sink.rows), sink.rows)
	}
}

// Scenario 5: multi-resolution aggregation over a run of one-minute samples.
func TestRun_MultiResolution(t *testing.T) {
	ts := make([]int64, 12)
	vals := make([]float64, 12)
	for i := 0; i < 12; i++ {
		ts[i] = ms(17, i, 0, 0)
		vals[i] = float64(i + 1)
	}
	chunk := newChunk(ts, vals)

	// The window end is pinned to 17:10:00 so the 5-min case covers
	// exactly three complete buckets (matching the scenario's stated
	// expectation); the partial fourth bucket ending 17:15 would
	// otherwise also qualify since it has one sample (ts=17:11).
	part := &fakePartition{chunks: []columnar.ChunkInfo{chunk}}
	aggs := []Aggregator{Time(0), DoubleSum(1)}
	fiveMinSink := &fakeSink{}
	Run(part, aggs, []Resolution{{Millis: fiveMin, Sink: fiveMinSink}}, ms(17, 0, 0, 0), ms(17, 10, 0, 0))

	wantBuckets := []int64{ms(17, 0, 0, 0), ms(17, 5, 0, 0), ms(17, 10, 0, 0)}
	wantSums := []float64{1, 2 + 3 + 4 + 5 + 6, 7 + 8 + 9 + 10 + 11}
	if len(fiveMinSink.rows) != 3 {
		t.Fatalf("expected 3 five-minute rows, got %d: %v", len(fiveMinSink.rows), fiveMinSink.rows)
	}
	for i, row := range fiveMinSink.rows {
		if row[0].(int64) != wantBuckets[i] {
			t.Errorf("row %d: expected bucket %d, got %d", i, wantBuckets[i], row[0])
		}
		if row[1].(float64) != wantSums[i] {
			t.Errorf("row %d: expected sum %v, got %v", i, wantSums[i], row[1])
		}
	}

	// As in the 5-min case, the 17:00:00 sample closes the period ending
	// at 17:00 (here the hour 16:00–17:00), so the window [17:00, 18:00]
	// holds two one-hour rows: 17:00 with sum 1, and 18:00 with the
	// samples 2..12 (sum 77).
	hourSink := &fakeSink{}
	part2 := &fakePartition{chunks: []columnar.ChunkInfo{chunk}}
	Run(part2, aggs, []Resolution{{Millis: hour, Sink: hourSink}}, ms(17, 0, 0, 0), ms(18, 0, 0, 0))
	wantHourBuckets := []int64{ms(17, 0, 0, 0), ms(18, 0, 0, 0)}
	wantHourSums := []float64{1, 77}
	if len(hourSink.rows) != 2 {
		t.Fatalf("expected 2 one-hour rows, got %d: %v", len(hourSink.rows), hourSink.rows)
	}
	for i, row := range hourSink.rows {
		if row[0].(int64) != wantHourBuckets[i] {
			t.Errorf("hour row %d: expected bucket %d, got %d", i, wantHourBuckets[i], row[0])
		}
		if row[1].(float64) != wantHourSums[i] {
			t.Errorf("hour row %d: expected sum %v, got %v", i, wantHourSums[i], row[1])
		}
	}
}

// Scenario 6: NaN values are skipped unless every value in the window is NaN.
func TestRun_NaNHandling(t *testing.T) {
	ts := []int64{ms(16, 56, 0, 0), ms(16, 57, 0, 0), ms(16, 58, 0, 0), ms(16, 59, 0, 0)}
	vals := []float64{math.NaN(), 2.0, math.NaN(), 4.0}
	part := &fakePartition{chunks: []columnar.ChunkInfo{newChunk(ts, vals)}}
	aggs := []Aggregator{Time(0), DoubleSum(1), DoubleCount(1), DoubleAvg(1), DoubleMax(1)}
	sink := &fakeSink{}

	Run(part, aggs, []Resolution{{Millis: fiveMin, Sink: sink}}, ms(16, 0, 0, 0), ms(18, 0, 0, 0))

	if len(sink.rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(sink.rows))
	}
	row := sink.rows[0]
	if row[1].(float64) != 6.0 {
		t.Errorf("expected sum 6.0, got %v", row[1])
	}
	if row[2].(float64) != 2.0 {
		t.Errorf("expected count 2.0, got %v", row[2])
	}
	if row[3].(float64) != 3.0 {
		t.Errorf("expected avg 3.0, got %v", row[3])
	}
	if row[4].(float64) != 4.0 {
		t.Errorf("expected max 4.0, got %v", row[4])
	}
}

// No-fabrication invariant: a period with zero raw samples never emits.
func TestRun_EmptyWindowSkipped(t *testing.T) {
	// CeilingIndex for a target before every row is -1, which makes
	// eRow < sRow; a window that excludes a single-sample chunk's only
	// period emits nothing.
	ts := []int64{ms(17, 0, 0, 0)}
	vals := []float64{1.0}
	reader := columnar.NewLongReader(columnar.NewLongVector(ts))
	if idx := reader.CeilingIndex(ms(16, 0, 0, 0)); idx != -1 {
		t.Fatalf("expected ceilingIndex before all rows to be -1, got %d", idx)
	}

	part := &fakePartition{chunks: []columnar.ChunkInfo{newChunk(ts, vals)}}
	aggs := []Aggregator{Time(0)}
	sink := &fakeSink{}
	Run(part, aggs, []Resolution{{Millis: fiveMin, Sink: sink}}, ms(10, 0, 0, 0), ms(10, 5, 0, 0))
	if len(sink.rows) != 0 {
		t.Fatalf("expected 0 rows for a window excluding the chunk's only period, got %d", len(sink.rows))
	}

	// Samples at 17:00 and 17:20 leave the 5-min periods ending 17:05,
	// 17:10 and 17:15 empty (sRow > eRow): only the two periods holding
	// a sample emit.
	gapTs := []int64{ms(17, 0, 0, 0), ms(17, 20, 0, 0)}
	gapPart := &fakePartition{chunks: []columnar.ChunkInfo{newChunk(gapTs, []float64{1.0, 2.0})}}
	gapSink := &fakeSink{}
	Run(gapPart, aggs, []Resolution{{Millis: fiveMin, Sink: gapSink}}, ms(16, 0, 0, 0), ms(18, 0, 0, 0))
	if len(gapSink.rows) != 2 {
		t.Fatalf("expected 2 rows with the empty periods skipped, got %d: %v", len(gapSink.rows), gapSink.rows)
	}
	if gapSink.rows[0][0].(int64) != ms(17, 0, 0, 0) || gapSink.rows[1][0].(int64) != ms(17, 20, 0, 0) {
		t.Errorf("expected rows at 17:00 and 17:20, got %v", gapSink.rows)
	}
}
