// Package store defines the write sink the batch driver persists
// downsample chunk sets to, and a concrete Cassandra-backed
// implementation grounded on metrictank's chunk store.
package store

import (
	"context"

	"github.com/HimaVarsha94/FiloDB/pkg/downsample"
)

// Sink is the external write collaborator spec.md §4.7 describes: one
// method, atomic at chunk-set granularity, honoring TTL per row.
// Transient retry is the sink's own concern, never the driver's.
type Sink interface {
	// Write persists every chunk in chunks to datasetRef, each row
	// living for ttlSeconds. The returned error, if non-nil, is treated
	// by the driver as terminal for the whole batch (spec.md §7).
	Write(ctx context.Context, datasetRef string, chunks *downsample.ChunkSetIterator, ttlSeconds int64) error
}
