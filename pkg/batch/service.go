package batch

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"

	"github.com/HimaVarsha94/FiloDB/pkg/arena"
)

// PartitionSource supplies one cycle's worth of work to Service.running:
// the raw partitions due for downsampling and the [userTimeStart,
// userTimeEnd] window to aggregate them over. A real deployment backs
// this by a raw-partition catalog query; cmd/downsampler wires a no-op
// source that never reports work.
type PartitionSource interface {
	Pending(ctx context.Context) (rawParts []RawPart, userTimeStart, userTimeEnd int64, err error)
}

// Service runs the batch downsampler as a long-lived dskit service: a
// starting/running/stopping lifecycle around repeated DownsampleBatch
// cycles, the same shape the teacher's ingest-consumer components use
// for their own poll loops (grafana/dskit/services.NewBasicService).
// The admin HTTP handler (pkg/batch/httpapi) remains the on-demand
// entry point; Service is the unattended one, for deployments that want
// the downsampler to run continuously rather than be triggered.
type Service struct {
	services.Service

	driver       *Driver
	source       PartitionSource
	mem          *arena.Memory
	cycleSpacing time.Duration
	logger       log.Logger
}

// NewService builds a Service. cycleSpacing is the wait after every
// cycle, whether it had no work, succeeded or failed; mem is
// the arena handed to every DownsampleBatch cycle this Service runs.
// running's cycles are strictly sequential, so mem never sees two
// concurrent DownsampleBatch calls from Service itself, but mem is
// still exclusively Service's: the caller must give it a Memory of its
// own, never one also passed to httpapi.NewHandler or another Service
// (pkg/arena/arena.go: "Thread-affine: one Memory per worker, never
// shared").
func NewService(driver *Driver, source PartitionSource, mem *arena.Memory, cycleSpacing time.Duration, logger log.Logger) *Service {
	s := &Service{
		driver:       driver,
		source:       source,
		mem:          mem,
		cycleSpacing: cycleSpacing,
		logger:       logger,
	}
	s.Service = services.NewBasicService(nil, s.running, nil)
	return s
}

// running loops DownsampleBatch cycles until ctx is cancelled, sleeping
// cycleSpacing between cycles. A cycle error is logged and does not
// stop the loop: the next cycle's Pending call determines whether
// there is still outstanding work.
func (s *Service) running(ctx context.Context) error {
	for {
		if err := s.runOnce(ctx); err != nil {
			level.Error(s.logger).Log("msg", "downsample cycle failed", "err", err)
		}

		select {
		case <-time.After(s.cycleSpacing):
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Service) runOnce(ctx context.Context) error {
	rawParts, userTimeStart, userTimeEnd, err := s.source.Pending(ctx)
	if err != nil {
		return err
	}
	if len(rawParts) == 0 {
		return nil
	}

	stats, err := s.driver.DownsampleBatch(ctx, s.mem, rawParts, userTimeStart, userTimeEnd)
	level.Info(s.logger).Log(
		"msg", "downsample cycle complete",
		"partitions_processed", stats.PartitionsProcessed,
		"partitions_skipped", stats.PartitionsSkipped,
		"duration", stats.Duration,
	)
	return err
}
