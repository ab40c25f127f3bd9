package storegateway

import (
	"encoding/binary"
	"testing"

	"github.com/HimaVarsha94/FiloDB/pkg/arena"
	"github.com/HimaVarsha94/FiloDB/pkg/columnar"
)

func testRawPartData(t *testing.T, schemaID int32) (RawPartData, []byte, []columnar.ChunkInfo, []columnar.ColumnType) {
	t.Helper()
	key := make([]byte, 12)
	binary.BigEndian.PutUint32(key[:4], uint32(schemaID))
	columns := []columnar.ColumnType{columnar.ColumnTimestamp, columnar.ColumnDouble}
	chunks := []columnar.ChunkInfo{{
		StartTime: 10,
		EndTime:   30,
		NumRows:   3,
		ColumnVectors: []columnar.ColumnVector{
			columnar.NewLongVector([]int64{10, 20, 30}),
			columnar.NewDoubleVector([]float64{1.0, 2.0, 3.0}),
		},
	}}
	raw, err := EncodeRawPartData(key, chunks, columns)
	if err != nil {
		t.Fatalf("encode fixture failed: %v", err)
	}
	return raw, key, chunks, columns
}

func TestPagedRawPartition_DecodesAndReads(t *testing.T) {
	raw, key, _, columns := testRawPartData(t, 5)
	allocator := arena.NewNativeAllocator(nil)

	p, err := NewPagedRawPartition(raw, len(key), columns, allocator)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.SchemaID() != 5 {
		t.Errorf("expected schema id 5, got %d", p.SchemaID())
	}
	if string(p.PartitionKey()) != string(key) {
		t.Errorf("partition key mismatch")
	}
	infos := p.ChunkInfos()
	if len(infos) != 1 || infos[0].NumRows != 3 {
		t.Fatalf("unexpected chunk infos: %+v", infos)
	}

	reader := p.LongReaderFor(&infos[0], 0)
	if reader.At(1) != 20 {
		t.Errorf("expected row 1 timestamp 20, got %d", reader.At(1))
	}
	dreader := p.DoubleReaderFor(&infos[0], 1)
	if dreader.At(2) != 3.0 {
		t.Errorf("expected row 2 value 3.0, got %v", dreader.At(2))
	}

	p.Free()
	if allocator.Outstanding() != 0 {
		t.Errorf("expected 0 outstanding allocations after Free, got %d", allocator.Outstanding())
	}
}

func TestPagedRawPartition_FreeIsIdempotent(t *testing.T) {
	raw, key, _, columns := testRawPartData(t, 1)
	allocator := arena.NewNativeAllocator(nil)

	p, err := NewPagedRawPartition(raw, len(key), columns, allocator)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Free()
	p.Free() // must not double-decrement Outstanding
	if allocator.Outstanding() != 0 {
		t.Errorf("expected 0 outstanding allocations after double Free, got %d", allocator.Outstanding())
	}
}

func TestNewPagedRawPartition_MalformedData(t *testing.T) {
	allocator := arena.NewNativeAllocator(nil)
	// A readable 4-byte schema id followed by a key shorter than keyLen:
	// the bytes are paged in, then decoding fails.
	_, err := NewPagedRawPartition(RawPartData{Bytes: []byte{0, 0, 0, 1, 2}}, 12, nil, allocator)
	if err == nil {
		t.Fatal("expected an error decoding malformed raw partition data")
	}
	if allocator.Outstanding() != 0 {
		t.Errorf("expected the native buffer to be freed on decode failure, got %d outstanding", allocator.Outstanding())
	}
}
