package batch

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/log"

	"github.com/HimaVarsha94/FiloDB/pkg/arena"
	"github.com/HimaVarsha94/FiloDB/pkg/columnar"
	"github.com/HimaVarsha94/FiloDB/pkg/downsample"
	"github.com/HimaVarsha94/FiloDB/pkg/schema"
	"github.com/HimaVarsha94/FiloDB/pkg/storegateway"
)

// fakeSink records every write the driver issues, keyed by dataset ref.
type fakeSink struct {
	mu     sync.Mutex
	writes map[string]int // datasetRef -> number of chunks written
}

func newFakeSink() *fakeSink { return &fakeSink{writes: make(map[string]int)} }

func (s *fakeSink) Write(ctx context.Context, datasetRef string, chunks *downsample.ChunkSetIterator, ttlSeconds int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for chunks.Next() {
		chunks.At().Release()
		s.writes[datasetRef]++
	}
	return chunks.Err()
}

func buildTestRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry([]schema.RawSchema{
		{
			ID:        1,
			Name:      "cpu",
			KeyFields: []schema.KeyField{{Name: "series_id", Bytes: 8}},
			Columns:   []columnar.ColumnType{columnar.ColumnTimestamp, columnar.ColumnDouble},
			Downsample: &schema.DownsampleSchema{
				Name:    "cpu_ds",
				Columns: []columnar.ColumnType{columnar.ColumnTimestamp, columnar.ColumnDouble},
			},
			Aggregators: []downsample.Aggregator{downsample.Time(0), downsample.DoubleSum(1)},
		},
	})
	if err != nil {
		t.Fatalf("failed to build test registry: %v", err)
	}
	return reg
}

func buildTestMem(t *testing.T, reg *schema.Registry) *arena.Memory {
	t.Helper()
	var layouts []arena.SchemaLayout
	for _, s := range reg.All() {
		layouts = append(layouts, arena.SchemaLayout{RawSchemaID: s.ID, DownsampleColumns: s.Downsample.Columns})
	}
	return arena.New(layouts, 4096, 0, 8, nil)
}

func encodeTestRawPart(t *testing.T, schemaID int32, ts []int64, vals []float64) RawPart {
	t.Helper()
	key := make([]byte, 12)
	binary.BigEndian.PutUint32(key[:4], uint32(schemaID))
	columns := []columnar.ColumnType{columnar.ColumnTimestamp, columnar.ColumnDouble}
	chunk := columnar.ChunkInfo{
		StartTime: ts[0],
		EndTime:   ts[len(ts)-1],
		NumRows:   len(ts),
		ColumnVectors: []columnar.ColumnVector{
			columnar.NewLongVector(ts),
			columnar.NewDoubleVector(vals),
		},
	}
	raw, err := storegateway.EncodeRawPartData(key, []columnar.ChunkInfo{chunk}, columns)
	if err != nil {
		t.Fatalf("failed to encode test raw part: %v", err)
	}
	return RawPart{Bytes: raw.Bytes}
}

func testDriverConfig() Config {
	return Config{
		RawDatasetName:        "cpu",
		DownsampleResolutions: []time.Duration{5 * time.Minute},
		TTLByResolution:       map[time.Duration]time.Duration{5 * time.Minute: 24 * time.Hour},
		CassWriteTimeout:      5 * time.Second,
	}
}

func TestDownsampleBatch_HappyPath(t *testing.T) {
	reg := buildTestRegistry(t)
	mem := buildTestMem(t, reg)
	sink := newFakeSink()
	driver := NewDriver(testDriverConfig(), reg, sink, log.NewNopLogger(), nil)

	rawParts := []RawPart{
		encodeTestRawPart(t, 1, []int64{100, 200, 300}, []float64{1.0, 2.0, 3.0}),
	}

	// The 5-minute period covering ts in [100,300] closes at pEnd=300000,
	// so the window must extend at least that far for a row to emit.
	stats, err := driver.DownsampleBatch(context.Background(), mem, rawParts, 0, 300000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.PartitionsProcessed != 1 {
		t.Errorf("expected 1 partition processed, got %d", stats.PartitionsProcessed)
	}
	if stats.PartitionsSkipped != 0 {
		t.Errorf("expected 0 partitions skipped, got %d", stats.PartitionsSkipped)
	}
	if stats.RowsEmitted[5*time.Minute] == 0 {
		t.Errorf("expected at least one emitted row for the 5m resolution")
	}
	if mem.Allocator.Outstanding() != 0 {
		t.Errorf("expected 0 outstanding arena allocations after the batch, got %d", mem.Allocator.Outstanding())
	}
	if sink.writes["cpu_ds_5"] == 0 {
		t.Errorf("expected the fake sink to have received at least one chunk for cpu_ds_5")
	}
}

func TestDownsampleBatch_SkipsUnknownSchema(t *testing.T) {
	reg := buildTestRegistry(t)
	mem := buildTestMem(t, reg)
	sink := newFakeSink()
	driver := NewDriver(testDriverConfig(), reg, sink, log.NewNopLogger(), nil)

	rawParts := []RawPart{
		encodeTestRawPart(t, 99, []int64{100}, []float64{1.0}), // unregistered schema id
	}

	stats, err := driver.DownsampleBatch(context.Background(), mem, rawParts, 0, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.PartitionsSkipped != 1 {
		t.Errorf("expected 1 skipped partition, got %d", stats.PartitionsSkipped)
	}
	if stats.PartitionsProcessed != 0 {
		t.Errorf("expected 0 processed partitions, got %d", stats.PartitionsProcessed)
	}
}

func TestDownsampleBatch_SkipsMalformedPartition(t *testing.T) {
	reg := buildTestRegistry(t)
	mem := buildTestMem(t, reg)
	sink := newFakeSink()
	driver := NewDriver(testDriverConfig(), reg, sink, log.NewNopLogger(), nil)

	rawParts := []RawPart{{Bytes: []byte{1, 2}}} // too short for even a schema id

	stats, err := driver.DownsampleBatch(context.Background(), mem, rawParts, 0, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.PartitionsSkipped != 1 {
		t.Errorf("expected 1 skipped partition, got %d", stats.PartitionsSkipped)
	}
}

func TestDownsampleBatch_CleanupRunsEvenOnPersistError(t *testing.T) {
	reg := buildTestRegistry(t)
	mem := buildTestMem(t, reg)
	cfg := testDriverConfig()
	// No TTL configured for this resolution: persist must fail.
	cfg.TTLByResolution = map[time.Duration]time.Duration{}
	driver := NewDriver(cfg, reg, newFakeSink(), log.NewNopLogger(), nil)

	rawParts := []RawPart{
		encodeTestRawPart(t, 1, []int64{100, 200}, []float64{1.0, 2.0}),
	}

	_, err := driver.DownsampleBatch(context.Background(), mem, rawParts, 0, 1000)
	if err == nil {
		t.Fatal("expected an error when no TTL is configured for the resolution")
	}
	if mem.Allocator.Outstanding() != 0 {
		t.Errorf("expected cleanup to still run on persist failure, got %d outstanding allocations", mem.Allocator.Outstanding())
	}
}
