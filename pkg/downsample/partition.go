package downsample

import (
	"sync"

	"github.com/HimaVarsha94/FiloDB/pkg/arena"
	"github.com/HimaVarsha94/FiloDB/pkg/columnar"
)

// ChunkSet is one flushed, wire-ready downsample chunk: the decoded
// ChunkInfo (for stats/inspection) paired with its already-encoded
// bytes, ready to hand to a store.Sink. Release is a no-op today
// — the arena.Block backing Encoded is reclaimed in bulk at batch end
// (arena.BlockFactory.MarkUsedBlocksReclaimable), not per chunk — but
// callers should still call it, the way mimir's seriesChunksSet.release
// is always called even when it sometimes no-ops.
type ChunkSet struct {
	PartitionKey []byte
	Chunk        columnar.ChunkInfo
	Encoded      []byte

	block *arena.Block
}

// Release is a placeholder for per-chunk memory accounting; current
// block reclamation is batch-wide, so this is intentionally empty.
func (c ChunkSet) Release() {}

// ChunkSetIterator walks the chunks a DownsamplePartition flushed,
// grounded on the generic Next/At/Err iterator shape used throughout
// the teacher's storegateway package.
type ChunkSetIterator struct {
	sets []ChunkSet
	pos  int
}

func newChunkSetIterator(sets []ChunkSet) *ChunkSetIterator {
	return &ChunkSetIterator{sets: sets, pos: -1}
}

func (it *ChunkSetIterator) Next() bool {
	it.pos++
	return it.pos < len(it.sets)
}

func (it *ChunkSetIterator) At() ChunkSet { return it.sets[it.pos] }
func (it *ChunkSetIterator) Err() error   { return nil }

// DownsamplePartition accumulates aggregate rows for one partition key
// at one resolution, buffering them into arena-pooled write buffers and
// flushing full (or forced) buffers into wire-ready ChunkSets, per
// spec.md §4.5.
type DownsamplePartition struct {
	datasetID        string
	resolutionMillis int64
	partitionKey     []byte
	columns          []columnar.ColumnType

	pool         *arena.BufferPool
	blockFactory *arena.BlockFactory

	mu               sync.Mutex
	cur              *arena.WriteBuffer
	curStart, curEnd int64
	pending          []ChunkSet
}

// NewDownsamplePartition constructs a partition that draws its write
// buffers from pool and its backing blocks from blockFactory.
func NewDownsamplePartition(
	datasetID string,
	resolutionMillis int64,
	partitionKey []byte,
	columns []columnar.ColumnType,
	pool *arena.BufferPool,
	blockFactory *arena.BlockFactory,
) *DownsamplePartition {
	return &DownsamplePartition{
		datasetID:        datasetID,
		resolutionMillis: resolutionMillis,
		partitionKey:     partitionKey,
		columns:          columns,
		pool:             pool,
		blockFactory:     blockFactory,
	}
}

// Ingest appends one aggregate row. ingestionTime is the batch's
// ingestion time, the same for every row of a batch; the chunk's
// StartTime/EndTime come from the row's own timestamp (column 0, the
// period end), which must be non-decreasing per resolution (spec.md
// §4.5). A full buffer is flushed automatically.
func (d *DownsamplePartition) Ingest(ingestionTime int64, row []interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ts := row[0].(int64)
	if d.cur == nil {
		d.cur = d.pool.Get()
		d.curStart = ts
	}
	d.cur.Append(row)
	d.curEnd = ts

	if d.cur.Full() {
		d.switchBuffersLocked()
	}
}

// switchBuffersLocked flushes the current write buffer, if non-empty,
// into a ChunkSet and returns the buffer to its pool. Callers must hold
// d.mu.
func (d *DownsamplePartition) switchBuffersLocked() {
	if d.cur == nil || d.cur.Len() == 0 {
		return
	}

	vectors := d.cur.Build()
	chunk := columnar.ChunkInfo{
		StartTime:     d.curStart,
		EndTime:       d.curEnd,
		NumRows:       d.cur.Len(),
		ColumnVectors: vectors,
	}

	encoded, err := columnar.EncodeChunk(vectors)
	if err != nil {
		// A schema/aggregator mismatch producing unencodable vectors is
		// a programming error, not a runtime condition batches should
		// limp through: the row was already type-checked by Aggregator
		// against the downsample schema before ever reaching Ingest.
		panic(err)
	}

	var block *arena.Block
	if d.blockFactory != nil && len(encoded) <= d.blockFactory.BlockSize() {
		block = d.blockFactory.Get()
		copy(block.Data, encoded)
		encoded = block.Data[:len(encoded)]
	}

	d.pending = append(d.pending, ChunkSet{
		PartitionKey: d.partitionKey,
		Chunk:        chunk,
		Encoded:      encoded,
		block:        block,
	})

	d.pool.Put(d.cur)
	d.cur = nil
}

// FlushChunks force-flushes any partial buffer and returns an iterator
// over every chunk accumulated since the last FlushChunks call.
func (d *DownsamplePartition) FlushChunks() *ChunkSetIterator {
	d.mu.Lock()
	d.switchBuffersLocked()
	sets := d.pending
	d.pending = nil
	d.mu.Unlock()

	return newChunkSetIterator(sets)
}

// Shutdown releases the partition's outstanding write buffer back to
// its pool. Must run after every raw paged partition this batch
// touched has already been freed (spec.md §4.2's teardown ordering).
func (d *DownsamplePartition) Shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cur != nil {
		d.pool.Put(d.cur)
		d.cur = nil
	}
}
