// Command downsampler runs the batch downsampler as a standalone
// process: it loads configuration and the schema registry, constructs
// a per-worker arena and Cassandra-backed store sink, and serves the
// admin HTTP API that triggers batch runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gocql/gocql"
	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HimaVarsha94/FiloDB/pkg/arena"
	"github.com/HimaVarsha94/FiloDB/pkg/batch"
	"github.com/HimaVarsha94/FiloDB/pkg/batch/httpapi"
	"github.com/HimaVarsha94/FiloDB/pkg/columnar"
	"github.com/HimaVarsha94/FiloDB/pkg/downsample"
	"github.com/HimaVarsha94/FiloDB/pkg/schema"
	"github.com/HimaVarsha94/FiloDB/pkg/store"
)

func main() {
	cfg := batch.Config{}
	httpCfg := httpapi.Config{}
	var (
		httpListenAddr string
		cassandraAddr  string
	)

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	cfg.RegisterFlags(fs)
	fs.StringVar(&httpListenAddr, "downsampler.http-listen-address", ":8080", "Address to serve the admin HTTP API and /metrics on.")
	fs.StringVar(&cassandraAddr, "downsampler.cassandra-addr", "127.0.0.1", "Comma-separated Cassandra contact points.")
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	httpCfg.LogSlowBatchesLongerThan = cfg.LogSlowBatchesLongerThan

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	registry, err := schema.NewRegistry(defaultSchemas(cfg.RawSchemaNames))
	if err != nil {
		level.Error(logger).Log("msg", "failed to build schema registry", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()

	cluster := gocql.NewCluster(cassandraAddr)
	cluster.Timeout = cfg.CassWriteTimeout
	cluster.Consistency = gocql.Quorum
	session, err := cluster.CreateSession()
	if err != nil {
		level.Error(logger).Log("msg", "failed to connect to cassandra", "err", err)
		os.Exit(1)
	}
	defer session.Close()

	sink := store.NewCassandraSink(session)

	driver := batch.NewDriver(cfg, registry, sink, logger, reg)

	var layouts []arena.SchemaLayout
	for _, s := range registry.All() {
		if s.Downsample == nil {
			continue
		}
		layouts = append(layouts, arena.SchemaLayout{
			RawSchemaID:       s.ID,
			DownsampleColumns: s.Downsample.Columns,
		})
	}
	// Every logical caller of Driver.DownsampleBatch gets its own
	// arena.Memory: arenas are thread-affine and never shared
	// (pkg/arena/arena.go), and the HTTP handler and the poll-catalog
	// Service below are two independent, concurrently-running callers.
	// Each Memory's counters are registered under its own "consumer"
	// label so the two don't collide on metric name.
	httpReg := prometheus.WrapRegistererWith(prometheus.Labels{"consumer": "http"}, reg)
	httpMem := arena.New(layouts, int(cfg.ArenaBlockSize), 0, cfg.BufferPoolMaxIdle, httpReg)
	handler := httpapi.NewHandler(httpCfg, driver, httpMem, logger, reg)

	mux := http.NewServeMux()
	mux.Handle("/downsample", handler)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	if cfg.PollCatalog {
		svcReg := prometheus.WrapRegistererWith(prometheus.Labels{"consumer": "poll-catalog"}, reg)
		svcMem := arena.New(layouts, int(cfg.ArenaBlockSize), 0, cfg.BufferPoolMaxIdle, svcReg)
		svcLogger := log.With(logger, "component", "downsample-service")
		svc := batch.NewService(driver, noopPartitionSource{}, svcMem, cfg.CyclePollInterval, svcLogger)
		if err := services.StartAndAwaitRunning(context.Background(), svc); err != nil {
			level.Error(logger).Log("msg", "downsample service failed to start", "err", err)
			os.Exit(1)
		}
		defer func() { _ = services.StopAndAwaitTerminated(context.Background(), svc) }()
	}

	level.Info(logger).Log("msg", "downsampler listening", "addr", httpListenAddr)
	if err := http.ListenAndServe(httpListenAddr, mux); err != nil {
		level.Error(logger).Log("msg", "server exited", "err", err)
		os.Exit(1)
	}
}

// noopPartitionSource is the default PartitionSource: no raw-partition
// catalog is wired up yet, so the unattended cycle loop (-downsampler.poll-catalog)
// always finds nothing to do. A real deployment supplies its own
// PartitionSource backed by the raw dataset's partition catalog; until
// then the admin HTTP API (POST /downsample) is the supported way to
// trigger a batch.
type noopPartitionSource struct{}

func (noopPartitionSource) Pending(ctx context.Context) ([]batch.RawPart, int64, int64, error) {
	return nil, 0, 0, nil
}

// defaultSchemas is a placeholder schema set for the named raw
// datasets: a real deployment loads schema definitions (key layout,
// column list, aggregator descriptors) from a config file rather than
// hardcoding them, but that loader is outside this spec's scope
// (spec.md §1 treats configuration loading as an external collaborator).
func defaultSchemas(names []string) []schema.RawSchema {
	schemas := make([]schema.RawSchema, 0, len(names))
	for i, name := range names {
		schemas = append(schemas, schema.RawSchema{
			ID:        int32(i + 1),
			Name:      name,
			KeyFields: []schema.KeyField{{Name: "series_id", Bytes: 8}},
			Columns:   []columnar.ColumnType{columnar.ColumnTimestamp, columnar.ColumnDouble},
			Downsample: &schema.DownsampleSchema{
				Name:    name + "_ds",
				Columns: []columnar.ColumnType{columnar.ColumnTimestamp, columnar.ColumnDouble, columnar.ColumnDouble, columnar.ColumnDouble},
			},
			Aggregators: []downsample.Aggregator{
				downsample.Time(0),
				downsample.DoubleSum(1),
				downsample.DoubleMax(1),
				downsample.DoubleAvg(1),
			},
		})
	}
	return schemas
}
