package storegateway

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/HimaVarsha94/FiloDB/pkg/arena"
	"github.com/HimaVarsha94/FiloDB/pkg/columnar"
)

// PagedRawPartition adapts a RawPartData's bytes into a readable
// columnar partition with typed per-column readers, grounded on the
// teacher's bucketChunkReader: a native buffer is paged in once (here,
// copied into an arena-owned slab rather than range-read from object
// storage), decoded into chunk infos up front, and released back to
// the arena allocator exactly once via free().
type PagedRawPartition struct {
	key      []byte
	schemaID int32
	chunks   []columnar.ChunkInfo

	allocator *arena.NativeAllocator
	nativeBuf arena.Pointer

	mu    sync.Mutex
	freed bool
}

// NewPagedRawPartition pages raw's bytes into arena-owned memory and
// decodes its chunk infos using the raw schema's column layout.
func NewPagedRawPartition(raw RawPartData, keyLen int, columns []columnar.ColumnType, allocator *arena.NativeAllocator) (*PagedRawPartition, error) {
	schemaID, err := raw.SchemaID()
	if err != nil {
		return nil, errors.Wrap(err, "paged raw partition")
	}

	ptr := allocator.Alloc(len(raw.Bytes))
	copy(ptr.Bytes(), raw.Bytes)

	key, chunks, err := DecodeRawPartData(RawPartData{Bytes: ptr.Bytes()}, keyLen, columns)
	if err != nil {
		allocator.Free(ptr)
		return nil, errors.Wrap(err, "paged raw partition: decode")
	}

	return &PagedRawPartition{
		key:       key,
		schemaID:  schemaID,
		chunks:    chunks,
		allocator: allocator,
		nativeBuf: ptr,
	}, nil
}

// PartitionKey returns the raw partition key bytes.
func (p *PagedRawPartition) PartitionKey() []byte { return p.key }

// SchemaID returns the schema id embedded in the partition key.
func (p *PagedRawPartition) SchemaID() int32 { return p.schemaID }

// ChunkInfos returns the partition's chunks, in startTime order (the
// order RawPartData is required to already carry them in, per
// spec.md §3).
func (p *PagedRawPartition) ChunkInfos() []columnar.ChunkInfo { return p.chunks }

// LongReaderFor returns a typed reader over a chunk's column at index
// col, which must be the timestamp column (index 0) or another
// LongVector-typed column.
func (p *PagedRawPartition) LongReaderFor(chunk *columnar.ChunkInfo, col int) *columnar.LongReader {
	return columnar.NewLongReader(chunk.ColumnVectors[col].(*columnar.LongVector))
}

// DoubleReaderFor returns a typed reader over a chunk's double column.
func (p *PagedRawPartition) DoubleReaderFor(chunk *columnar.ChunkInfo, col int) *columnar.DoubleReader {
	return columnar.NewDoubleReader(chunk.ColumnVectors[col].(*columnar.DoubleVector))
}

// HistogramReaderFor returns a typed reader over a chunk's histogram column.
func (p *PagedRawPartition) HistogramReaderFor(chunk *columnar.ChunkInfo, col int) *columnar.HistogramReader {
	return columnar.NewHistogramReader(chunk.ColumnVectors[col].(*columnar.HistogramVector))
}

// Free returns the underlying native buffer to the arena's allocator.
// Idempotent: a second call is a no-op, matching spec.md §4.2.
func (p *PagedRawPartition) Free() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.freed {
		return
	}
	p.freed = true
	p.allocator.Free(p.nativeBuf)
}
