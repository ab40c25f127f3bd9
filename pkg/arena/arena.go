package arena

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/HimaVarsha94/FiloDB/pkg/columnar"
)

// Memory is a per-worker handle to the three owned resources spec.md
// §3/§4.1 describe: a native allocator for paged raw partitions, a
// block factory for downsample overflow chunks, and one BufferPool per
// raw schema id. An arena's lifetime is the worker's lifetime; its
// internal blocks are recycled between batches by MarkUsedBlocksReclaimable.
//
// Thread-affine: one Memory per worker, never shared, no internal
// locking beyond what NativeAllocator/BlockFactory/BufferPool need for
// their own free-list bookkeeping.
type Memory struct {
	Allocator    *NativeAllocator
	BlockFactory *BlockFactory
	bufferPools  map[int32]*BufferPool
}

// SchemaLayout is the minimal schema metadata the arena needs to size a
// raw schema's write-buffer pool: the schema id and its downsample
// schema's column types (spec.md §4.1: "sized from schema metadata").
type SchemaLayout struct {
	RawSchemaID       int32
	DownsampleColumns []columnar.ColumnType
}

// blockMetaSize estimates the largest metadata record a flushed chunk
// of this schema could carry: one length-prefix-sized slot per column
// plus a fixed per-chunk header allowance.
func blockMetaSize(layout SchemaLayout) int {
	const perChunkHeader = 64
	const perColumnOverhead = 16
	return perChunkHeader + perColumnOverhead*len(layout.DownsampleColumns)
}

// New constructs a worker arena. blockSize, if zero, is derived from
// the schema layouts per spec.md §4.1: twice the largest blockMetaSize
// across all downsample schemas (the "safety factor of 2... observed
// undercount in meta sizing").
func New(layouts []SchemaLayout, blockSize, bufferCapacity, bufferMaxIdle int, reg prometheus.Registerer) *Memory {
	if blockSize <= 0 {
		max := 0
		for _, l := range layouts {
			if m := blockMetaSize(l); m > max {
				max = m
			}
		}
		blockSize = 2 * max
		if blockSize <= 0 {
			blockSize = 4096
		}
	}

	pools := make(map[int32]*BufferPool, len(layouts))
	for _, l := range layouts {
		pools[l.RawSchemaID] = NewBufferPool(l.DownsampleColumns, bufferCapacity, bufferMaxIdle)
	}

	return &Memory{
		Allocator:    NewNativeAllocator(reg),
		BlockFactory: NewBlockFactory(blockSize, reg),
		bufferPools:  pools,
	}
}

// BufferPoolFor returns the write-buffer pool for a raw schema id, or
// nil if no layout was registered for it.
func (m *Memory) BufferPoolFor(rawSchemaID int32) *BufferPool {
	return m.bufferPools[rawSchemaID]
}
