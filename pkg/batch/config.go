// Package batch orchestrates a downsample batch run: it owns the
// per-worker arena, the raw-partition loop, and the per-resolution
// persist step, grounded on the teacher's config+handler conventions.
package batch

import (
	"flag"
	"time"
)

// Config is the batch driver's configuration surface (spec.md §6),
// registered the way the teacher's HandlerConfig is.
type Config struct {
	RawDatasetName           string            `yaml:"raw_dataset_name"`
	RawSchemaNames           []string          `yaml:"raw_schema_names"`
	DownsampleResolutions    []time.Duration   `yaml:"downsample_resolutions"`
	TTLByResolution          map[time.Duration]time.Duration `yaml:"ttl_by_resolution"`
	CassWriteTimeout         time.Duration     `yaml:"cass_write_timeout"`
	SessionProvider          string            `yaml:"session_provider" category:"advanced"`
	ArenaBlockSize           uint64            `yaml:"arena_block_size" category:"advanced"`
	BufferPoolMaxIdle        int               `yaml:"buffer_pool_max_idle" category:"advanced"`
	LogSlowBatchesLongerThan time.Duration     `yaml:"log_slow_batches_longer_than"`
	PollCatalog              bool              `yaml:"poll_catalog" category:"advanced"`
	CyclePollInterval        time.Duration     `yaml:"cycle_poll_interval" category:"advanced"`
}

// RegisterFlags wires Config's scalar fields to a flag.FlagSet, in the
// teacher's RegisterFlags style. RawSchemaNames/DownsampleResolutions/
// TTLByResolution have no natural flag.Value mapping for a list/map in
// this codebase (the teacher itself loads those from YAML, never
// flags) and are left to the config file loader.
func (c *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&c.RawDatasetName, "downsampler.raw-dataset-name", "", "Name of the raw dataset this batch downsamples.")
	f.DurationVar(&c.CassWriteTimeout, "downsampler.cass-write-timeout", 30*time.Second, "Timeout for a single per-resolution Cassandra write during persist.")
	f.StringVar(&c.SessionProvider, "downsampler.session-provider", "", "Optional strategy name for the Cassandra session's auth. cmd/downsampler does not read it; its session is built without auth.")
	f.Uint64Var(&c.ArenaBlockSize, "downsampler.arena-block-size", 0, "Override for the arena's off-heap block size, in bytes. 0 derives it from schema metadata.")
	f.IntVar(&c.BufferPoolMaxIdle, "downsampler.buffer-pool-max-idle", 64, "Maximum number of idle write buffers retained per raw schema.")
	f.DurationVar(&c.LogSlowBatchesLongerThan, "downsampler.log-slow-batches-longer-than", 10*time.Second, "Log a warning for batch runs slower than this. Set to 0 to disable.")
	f.BoolVar(&c.PollCatalog, "downsampler.poll-catalog", false, "Run an unattended batch cycle loop in addition to the admin HTTP API.")
	f.DurationVar(&c.CyclePollInterval, "downsampler.cycle-poll-interval", time.Minute, "Wait between unattended batch cycles when poll-catalog is enabled.")
}

// TTLSecondsFor returns the configured TTL, in seconds, for resolution
// r, or ok=false if none is configured.
func (c *Config) TTLSecondsFor(r time.Duration) (int64, bool) {
	ttl, ok := c.TTLByResolution[r]
	if !ok {
		return 0, false
	}
	return int64(ttl / time.Second), true
}
