// Package config decodes the node's TOML configuration file into the
// nested structs the storage, central and sync packages are constructed
// from, following the teacher's own config pattern: a single struct
// hierarchy decoded with pelletier/go-toml/v2, disk sizes expressed as
// human-readable strings (c2h5oh/datasize) and overridable by cobra
// flags in cmd/papyrus-node.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/pelletier/go-toml/v2"

	"github.com/starkware-libs/papyrus-sub004/pkg/commitment"
	"github.com/starkware-libs/papyrus-sub004/pkg/starknet"
)

// DBConfig configures the KV environment and blob files (spec §6).
type DBConfig struct {
	Path       string            `toml:"path"`
	ChainID    uint64            `toml:"chain_id"`
	MinSize    datasize.ByteSize `toml:"min_size"`
	MaxSize    datasize.ByteSize `toml:"max_size"`
	GrowthStep datasize.ByteSize `toml:"growth_step"`
	MaxReaders uint64            `toml:"max_readers"`
}

// RetryConfig holds the retry settings read from the config file. The
// node does not pass them to the central client, which uses its own
// exponential backoff defaults bounded only by a total retry time.
type RetryConfig struct {
	BaseMs     int `toml:"base_ms"`
	MaxDelayMs int `toml:"max_delay_ms"`
	MaxRetries int `toml:"max_retries"`
}

// CentralConfig configures the feeder-gateway HTTP client (spec §6).
type CentralConfig struct {
	URL                string      `toml:"url"`
	Retry              RetryConfig `toml:"retry"`
	ConcurrentRequests int         `toml:"concurrent_requests"`
}

// SyncConfig configures the sync pipeline's pacing and batching (spec §6).
type SyncConfig struct {
	BlockPropagationSleepDuration time.Duration `toml:"block_propagation_sleep_duration"`
	MaxActiveTasks                int           `toml:"max_active_tasks"`
	MaxRangePerTask                int           `toml:"max_range_per_task"`
	RecoverableErrorSleepDuration time.Duration `toml:"recoverable_error_sleep_duration"`
	StopSyncAtBlock               *uint64       `toml:"stop_sync_at_block,omitempty"`
	OmmerRetentionDepth           uint64        `toml:"ommer_retention_depth"`
}

// BlockHashVersionConfig carries the per-chain activation heights for the
// commitment package's BlockHashVersionTable (spec §4.3, §9 Open
// Questions: "the exact historic block ranges ... is a per-chain constant
// table").
type BlockHashVersionConfig struct {
	V1ActivatesAt uint64 `toml:"v1_activates_at"`
	V2ActivatesAt uint64 `toml:"v2_activates_at"`
	V3ActivatesAt uint64 `toml:"v3_activates_at"`
}

// Table converts the TOML-facing activation heights into the
// commitment package's runtime table.
func (c BlockHashVersionConfig) Table() commitment.BlockHashVersionTable {
	return commitment.BlockHashVersionTable{
		V1ActivatesAt: starknet.BlockNumber(c.V1ActivatesAt),
		V2ActivatesAt: starknet.BlockNumber(c.V2ActivatesAt),
		V3ActivatesAt: starknet.BlockNumber(c.V3ActivatesAt),
	}
}

// Config is the node's full configuration (spec §6).
type Config struct {
	DB               DBConfig               `toml:"db"`
	Central          CentralConfig          `toml:"central"`
	Sync             SyncConfig             `toml:"sync"`
	BlockHashVersion BlockHashVersionConfig `toml:"block_hash_version"`
	BlobDir          string                 `toml:"blob_dir"`
	LogLevel         string                 `toml:"log_level"`
}

// Default returns a Config populated with the same conservative defaults
// the teacher's own node ships (short retry budgets, a small number of
// concurrent in-flight download tasks), overridable from a config file or
// CLI flags.
func Default() Config {
	return Config{
		DB: DBConfig{
			Path:       "papyrus-db",
			MinSize:    1 * datasize.GB,
			MaxSize:    1 * datasize.TB,
			GrowthStep: 2 * datasize.GB,
			MaxReaders: 4000,
		},
		Central: CentralConfig{
			URL: "https://alpha-mainnet.starknet.io",
			Retry: RetryConfig{
				BaseMs:     30,
				MaxDelayMs: 30_000,
				MaxRetries: 10,
			},
			ConcurrentRequests: 10,
		},
		Sync: SyncConfig{
			BlockPropagationSleepDuration: 2 * time.Second,
			MaxActiveTasks:                8,
			MaxRangePerTask:               10,
			RecoverableErrorSleepDuration: 3 * time.Second,
			OmmerRetentionDepth:           1000,
		},
		BlockHashVersion: BlockHashVersionConfig{
			V1ActivatesAt: 833,
			V2ActivatesAt: 1_470,
			V3ActivatesAt: 833_000,
		},
		BlobDir:  "papyrus-db/blobs",
		LogLevel: "info",
	}
}

// Load reads and decodes the TOML file at path on top of Default(), the
// way the teacher's node merges a partial config file over baked-in
// defaults rather than requiring every field to be spelled out.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the invariants the rest of the node assumes hold (spec
// §6's minimal config contract).
func (c Config) Validate() error {
	if c.DB.Path == "" {
		return fmt.Errorf("config: db.path is required")
	}
	if c.DB.ChainID == 0 {
		return fmt.Errorf("config: db.chain_id is required")
	}
	if c.Central.URL == "" {
		return fmt.Errorf("config: central.url is required")
	}
	if c.DB.MaxSize < c.DB.MinSize {
		return fmt.Errorf("config: db.max_size (%s) must be >= db.min_size (%s)", c.DB.MaxSize, c.DB.MinSize)
	}
	if c.Sync.MaxActiveTasks <= 0 {
		return fmt.Errorf("config: sync.max_active_tasks must be positive")
	}
	if c.Sync.MaxRangePerTask <= 0 {
		return fmt.Errorf("config: sync.max_range_per_task must be positive")
	}
	return nil
}
