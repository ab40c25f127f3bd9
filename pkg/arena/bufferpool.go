package arena

import (
	"sync"

	"github.com/HimaVarsha94/FiloDB/pkg/columnar"
)

// defaultBufferCapacity is the row capacity of a freshly built write
// buffer, grounded on the fixed-chain-link capacity idiom used for
// pooled time-series write buffers in the pack (an append-only buffer
// that cuts over to a new one rather than reallocating/copying).
const defaultBufferCapacity = 512

// WriteBuffer is a per-partition, per-schema set of column Builders
// that DownsamplePartition.ingest appends rows into. Once full it is
// handed to a BufferPool is released and a fresh one is drawn.
type WriteBuffer struct {
	schemaID int32
	builders []columnar.Builder
	cap      int
}

func newWriteBuffer(columns []columnar.ColumnType, capacity int) *WriteBuffer {
	builders := make([]columnar.Builder, len(columns))
	for i, ct := range columns {
		builders[i] = columnar.NewBuilder(ct, capacity)
	}
	return &WriteBuffer{builders: builders, cap: capacity}
}

// Len returns the number of rows currently buffered.
func (w *WriteBuffer) Len() int {
	if len(w.builders) == 0 {
		return 0
	}
	return w.builders[0].Len()
}

// Full reports whether the buffer has reached its row capacity.
func (w *WriteBuffer) Full() bool {
	return w.Len() >= w.cap
}

// Append adds one row (one value per column, in schema order).
func (w *WriteBuffer) Append(row []interface{}) {
	for i, v := range row {
		w.builders[i].Append(v)
	}
}

// Build freezes the buffer's accumulated rows into column vectors,
// ready for EncodeChunk.
func (w *WriteBuffer) Build() []columnar.ColumnVector {
	vectors := make([]columnar.ColumnVector, len(w.builders))
	for i, b := range w.builders {
		vectors[i] = b.Build()
	}
	return vectors
}

func (w *WriteBuffer) reset() {
	for _, b := range w.builders {
		b.Reset()
	}
}

// BufferPool hands out WriteBuffers for one raw schema id, sized from
// that schema's downsample column layout. Grounded on the sync.Pool
// chain-of-fixed-capacity-buffers pattern used for pooled time-series
// write buffers in the pack, with the same idle-cap-and-evict shape:
// buffers beyond maxIdle are dropped rather than retained forever.
type BufferPool struct {
	columns  []columnar.ColumnType
	capacity int
	maxIdle  int

	mu   sync.Mutex
	idle []*WriteBuffer
}

// NewBufferPool constructs a pool of write buffers laid out for
// columns, each with row capacity bufferCapacity (defaultBufferCapacity
// if zero), retaining at most maxIdle buffers between batches.
func NewBufferPool(columns []columnar.ColumnType, bufferCapacity, maxIdle int) *BufferPool {
	if bufferCapacity <= 0 {
		bufferCapacity = defaultBufferCapacity
	}
	if maxIdle <= 0 {
		maxIdle = 64
	}
	return &BufferPool{
		columns:  columns,
		capacity: bufferCapacity,
		maxIdle:  maxIdle,
	}
}

// Get returns a write buffer, reused from the idle list when possible.
func (p *BufferPool) Get() *WriteBuffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.idle); n > 0 {
		wb := p.idle[n-1]
		p.idle = p.idle[:n-1]
		return wb
	}
	return newWriteBuffer(p.columns, p.capacity)
}

// Put resets and returns wb to the idle list, unless the pool is
// already at maxIdle, in which case it is dropped for the GC.
func (p *BufferPool) Put(wb *WriteBuffer) {
	wb.reset()

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.idle) >= p.maxIdle {
		return
	}
	p.idle = append(p.idle, wb)
}

// IdleCount reports the number of buffers currently sitting idle.
func (p *BufferPool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}
