package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/HimaVarsha94/FiloDB/pkg/arena"
	"github.com/HimaVarsha94/FiloDB/pkg/downsample"
	"github.com/HimaVarsha94/FiloDB/pkg/schema"
	"github.com/HimaVarsha94/FiloDB/pkg/storegateway"
	"github.com/HimaVarsha94/FiloDB/pkg/store"
)

// RawPart is one raw partition's input to a batch: its wire bytes plus
// the raw schema it belongs to is recovered from the embedded schema id.
type RawPart struct {
	Bytes []byte
}

// Stats summarizes one DownsampleBatch call, reported by the admin API.
// ChunkBytesWritten is never filled in by the driver and stays zero.
// The sink receives a ChunkSetIterator over chunks that
// DownsamplePartition.FlushChunks has already encoded; the iterator
// does not encode anything itself.
type Stats struct {
	PartitionsProcessed int
	PartitionsSkipped   int
	RowsEmitted         map[time.Duration]int
	ChunkBytesWritten   int64
	Duration            time.Duration
}

// Driver orchestrates a batch run: allocates nothing itself (the arena
// and schema registry are constructed once per worker and handed in),
// loops raw partitions, and persists per-resolution chunk sets, per
// spec.md §4.6.
type Driver struct {
	cfg      Config
	registry *schema.Registry
	sink     store.Sink
	logger   log.Logger

	batchesTotal   prometheus.Counter
	batchErrors    prometheus.Counter
	batchDuration  prometheus.Histogram
	rowsEmitted    *prometheus.CounterVec
	partitionsSkip prometheus.Counter
}

// NewDriver constructs a batch driver. registry must already be
// validated (schema.NewRegistry); sink is the store write collaborator.
func NewDriver(cfg Config, registry *schema.Registry, sink store.Sink, logger log.Logger, reg prometheus.Registerer) *Driver {
	d := &Driver{
		cfg:      cfg,
		registry: registry,
		sink:     sink,
		logger:   logger,
		batchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "downsampler_batches_total",
			Help: "Total number of downsample batches run.",
		}),
		batchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "downsampler_batch_errors_total",
			Help: "Total number of downsample batches that returned a terminal error.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "downsampler_batch_duration_seconds",
			Help:    "Duration of a downsample batch run.",
			Buckets: prometheus.DefBuckets,
		}),
		rowsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "downsampler_rows_emitted_total",
			Help: "Aggregate rows emitted per resolution.",
		}, []string{"resolution"}),
		partitionsSkip: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "downsampler_partitions_skipped_total",
			Help: "Partitions skipped due to missing schema or no downsample schema.",
		}),
	}
	if reg != nil {
		reg.MustRegister(d.batchesTotal, d.batchErrors, d.batchDuration, d.rowsEmitted, d.partitionsSkip)
	}
	return d
}

// countingSink wraps a downsample.Sink to report rows emitted per
// resolution into Stats, without WindowDownsampler needing to know
// about Driver at all.
type countingSink struct {
	inner downsample.Sink
	count *int
}

func (c countingSink) Ingest(ts int64, row []interface{}) {
	*c.count++
	c.inner.Ingest(ts, row)
}

// DownsampleBatch runs the algorithm of spec.md §4.6 over rawParts:
// for each raw partition, page it into the arena, run WindowDownsampler
// across every configured resolution, accumulate the resulting chunk
// sets, then persist them. Cleanup (block reclaim, raw partition free,
// downsample partition shutdown) always runs, in that order, matching
// spec.md §4.2's teardown ordering and §9's "scoped resource release".
func (d *Driver) DownsampleBatch(ctx context.Context, mem *arena.Memory, rawParts []RawPart, userTimeStart, userTimeEnd int64) (Stats, error) {
	start := time.Now()
	d.batchesTotal.Inc()

	perResolutionChunks := make(map[time.Duration][]*downsample.DownsamplePartition)
	rowsEmittedByResolution := make(map[time.Duration]int)

	var rawFrees []*storegateway.PagedRawPartition
	var dsFrees []*downsample.DownsamplePartition
	skipped := 0

	batchErr := func() error {
		for _, rp := range rawParts {
			sid, err := storegateway.RawPartData{Bytes: rp.Bytes}.SchemaID()
			if err != nil {
				level.Warn(d.logger).Log("msg", "malformed raw partition, skipping", "err", err)
				d.partitionsSkip.Inc()
				skipped++
				continue
			}
			rawSchema, err := d.registry.Lookup(sid)
			if err != nil {
				level.Warn(d.logger).Log("msg", "unknown schema id, skipping partition", "schema_id", sid, "err", err)
				d.partitionsSkip.Inc()
				skipped++
				continue
			}
			if rawSchema.Downsample == nil {
				level.Warn(d.logger).Log("msg", "no downsample schema for raw schema, skipping partition", "schema", rawSchema.Name)
				d.partitionsSkip.Inc()
				skipped++
				continue
			}

			paged, err := storegateway.NewPagedRawPartition(storegateway.RawPartData{Bytes: rp.Bytes}, rawSchema.KeyLen(), rawSchema.Columns, mem.Allocator)
			if err != nil {
				level.Warn(d.logger).Log("msg", "failed to page raw partition, skipping", "err", err)
				d.partitionsSkip.Inc()
				skipped++
				continue
			}
			rawFrees = append(rawFrees, paged)

			pool := mem.BufferPoolFor(sid)
			outs := make(map[time.Duration]*downsample.DownsamplePartition, len(d.cfg.DownsampleResolutions))
			counts := make(map[time.Duration]*int, len(d.cfg.DownsampleResolutions))
			resolutions := make([]downsample.Resolution, 0, len(d.cfg.DownsampleResolutions))
			for _, r := range d.cfg.DownsampleResolutions {
				dsPart := downsample.NewDownsamplePartition(
					datasetRefFor(d.cfg.RawDatasetName, r),
					r.Milliseconds(),
					paged.PartitionKey(),
					rawSchema.Downsample.Columns,
					pool,
					mem.BlockFactory,
				)
				outs[r] = dsPart
				dsFrees = append(dsFrees, dsPart)

				count := new(int)
				counts[r] = count
				resolutions = append(resolutions, downsample.Resolution{
					Millis: r.Milliseconds(),
					Sink:   countingSink{inner: dsPart, count: count},
				})
			}

			downsample.Run(paged, rawSchema.Aggregators, resolutions, userTimeStart, userTimeEnd)

			for r, dsPart := range outs {
				perResolutionChunks[r] = append(perResolutionChunks[r], dsPart)
				rowsEmittedByResolution[r] += *counts[r]
				d.rowsEmitted.WithLabelValues(r.String()).Add(float64(*counts[r]))
			}
		}

		return d.persist(ctx, perResolutionChunks)
	}()

	// Cleanup runs regardless of batchErr, in the required order
	// (spec.md §9): blocks reclaimable first, then raw partitions freed,
	// then downsample partitions shut down.
	mem.BlockFactory.MarkUsedBlocksReclaimable()
	for _, p := range rawFrees {
		p.Free()
	}
	for _, dp := range dsFrees {
		dp.Shutdown()
	}

	stats := Stats{
		PartitionsProcessed: len(rawFrees),
		PartitionsSkipped:   skipped,
		RowsEmitted:         rowsEmittedByResolution,
		Duration:            time.Since(start),
	}

	if batchErr != nil {
		d.batchErrors.Inc()
	}
	d.batchDuration.Observe(stats.Duration.Seconds())
	return stats, batchErr
}

// persist runs one errgroup goroutine per resolution, concurrently;
// each goroutine issues one Sink.Write per downsample partition of
// that resolution, one after another, so a resolution's chunks reach
// the sink over several Write calls rather than one. The first non-nil
// error cancels the remaining writes and is returned as the batch's
// terminal error.
func (d *Driver) persist(ctx context.Context, perResolutionChunks map[time.Duration][]*downsample.DownsamplePartition) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.CassWriteTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for r, parts := range perResolutionChunks {
		r, parts := r, parts
		g.Go(func() error {
			ttlSeconds, ok := d.cfg.TTLSecondsFor(r)
			if !ok {
				return errors.Errorf("no TTL configured for resolution %s", r)
			}
			datasetRef := datasetRefFor(d.cfg.RawDatasetName, r)
			for _, dsPart := range parts {
				it := dsPart.FlushChunks()
				if err := d.sink.Write(ctx, datasetRef, it, ttlSeconds); err != nil {
					return errors.Wrapf(err, "persist resolution %s", r)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// datasetRefFor is spec.md §4.6's routing rule: "${rawDataset}_ds_${R.toMinutes}".
func datasetRefFor(rawDataset string, r time.Duration) string {
	return fmt.Sprintf("%s_ds_%d", rawDataset, int64(r/time.Minute))
}
