package store

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"

	"github.com/HimaVarsha94/FiloDB/pkg/downsample"
)

// insertChunkCQL mirrors the single-row-per-chunk insert metrictank's
// Cassandra chunk store uses, with the TTL as a bind parameter rather
// than baked into the query string (the per-resolution table already
// encodes which TTL class a dataset belongs to; the per-row TTL here
// is belt-and-suspenders against clock skew between batch runs).
const insertChunkCQL = `INSERT INTO %s (partition_key, start_time, end_time, num_rows, data) VALUES (?, ?, ?, ?, ?) USING TTL ?`

// CassandraSink writes downsample chunk sets to Cassandra, one table
// per dataset (spec.md §4.6's datasetRefFor naming already encodes the
// resolution, so each dataset gets its own table rather than its own
// keyspace).
type CassandraSink struct {
	session *gocql.Session
}

// NewCassandraSink wraps an already-connected gocql session. Session
// construction (cluster config, auth via sessionProvider, consistency)
// is the caller's concern — CassandraSink only issues statements.
func NewCassandraSink(session *gocql.Session) *CassandraSink {
	return &CassandraSink{session: session}
}

// Write inserts every chunk in chunks into the table named by
// datasetRef, batching the (up to) whole chunk set into a single
// gocql.Batch so the write is atomic at chunk-set granularity (spec.md
// §4.7).
func (c *CassandraSink) Write(ctx context.Context, datasetRef string, chunks *downsample.ChunkSetIterator, ttlSeconds int64) error {
	query := fmt.Sprintf(insertChunkCQL, datasetRef)

	batch := c.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	n := 0
	for chunks.Next() {
		cs := chunks.At()
		batch.Query(query,
			cs.PartitionKey,
			cs.Chunk.StartTime,
			cs.Chunk.EndTime,
			cs.Chunk.NumRows,
			cs.Encoded,
			ttlSeconds,
		)
		n++
		cs.Release()

		// gocql caps batch size; flush and start a fresh one rather than
		// silently dropping chunks past the limit.
		if n == gocql.BatchSizeMaximum {
			if err := c.session.ExecuteBatch(batch); err != nil {
				return errors.Wrapf(err, "write batch to %s", datasetRef)
			}
			batch = c.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
			n = 0
		}
	}
	if err := chunks.Err(); err != nil {
		return errors.Wrapf(err, "iterate chunks for %s", datasetRef)
	}
	if n == 0 {
		return nil
	}
	if err := c.session.ExecuteBatch(batch); err != nil {
		return errors.Wrapf(err, "write batch to %s", datasetRef)
	}
	return nil
}
