// Command papyrus-node runs the storage engine and sync pipeline
// described by the specification as a standalone process: open the KV
// environment and blob files, build the central-source client, and drive
// the sync loop until interrupted. It deliberately does not serve the
// JSON-RPC API, run the VM, or join the p2p network (spec §1 "out of
// scope"); those are external collaborators in other binaries.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/starkware-libs/papyrus-sub004/pkg/central"
	"github.com/starkware-libs/papyrus-sub004/pkg/config"
	"github.com/starkware-libs/papyrus-sub004/pkg/kv"
	"github.com/starkware-libs/papyrus-sub004/pkg/kv/mdbxkv"
	"github.com/starkware-libs/papyrus-sub004/pkg/storage"
	syncpkg "github.com/starkware-libs/papyrus-sub004/pkg/sync"
)

var (
	cfgPath    string
	chainIDOvr uint64
	centralURL string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "papyrus-node",
	Short: "Follower node: storage engine and sequencer sync pipeline",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sync the chain from the centralized sequencer into local storage",
	RunE:  runNode,
}

func init() {
	runCmd.Flags().StringVar(&cfgPath, "config", "", "path to a TOML config file")
	runCmd.Flags().Uint64Var(&chainIDOvr, "chain-id", 0, "override db.chain_id")
	runCmd.Flags().StringVar(&centralURL, "central-url", "", "override central.url")
	rootCmd.AddCommand(runCmd)
}

func runNode(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if chainIDOvr != 0 {
		cfg.DB.ChainID = chainIDOvr
	}
	if centralURL != "" {
		cfg.Central.URL = centralURL
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logrus.StandardLogger()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	if err := os.MkdirAll(cfg.DB.Path, 0o755); err != nil {
		return fmt.Errorf("papyrus-node: creating db dir: %w", err)
	}
	if err := os.MkdirAll(cfg.BlobDir, 0o755); err != nil {
		return fmt.Errorf("papyrus-node: creating blob dir: %w", err)
	}

	env, err := mdbxkv.Open(kv.EnvOptions{
		Path:       cfg.DB.Path,
		ChainID:    cfg.DB.ChainID,
		MinSize:    uint64(cfg.DB.MinSize),
		MaxSize:    uint64(cfg.DB.MaxSize),
		GrowthStep: uint64(cfg.DB.GrowthStep),
		MaxReaders: cfg.DB.MaxReaders,
		NoSubDir:   true,
		Tables:     kv.Schema,
	})
	if err != nil {
		return fmt.Errorf("papyrus-node: opening kv environment: %w", err)
	}
	defer env.Close()

	store, err := storage.Open(env, storage.Options{
		BlobDir:        cfg.BlobDir,
		BlobGrowthStep: uint64(cfg.DB.GrowthStep),
		BlobMaxSize:    uint64(cfg.DB.MaxSize),
	})
	if err != nil {
		return fmt.Errorf("papyrus-node: opening storage: %w", err)
	}
	defer store.Close()

	client, err := central.New(central.Config{
		BaseURL: cfg.Central.URL,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("papyrus-node: building central client: %w", err)
	}

	loop := syncpkg.New(store, client, syncpkg.Config{
		ChunkSize:           cfg.Sync.MaxRangePerTask,
		Concurrency:         cfg.Central.ConcurrentRequests,
		LoopMinTime:         cfg.Sync.BlockPropagationSleepDuration,
		BlockHashVersions:   cfg.BlockHashVersion.Table(),
		OmmerRetentionDepth: cfg.Sync.OmmerRetentionDepth,
		Logger:              logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.WithFields(logrus.Fields{
		"db":      cfg.DB.Path,
		"central": cfg.Central.URL,
		"chainID": cfg.DB.ChainID,
	}).Info("papyrus-node: starting sync loop")

	return loop.Run(ctx)
}
