package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lumenetwork/corestate/pkg/atomo"
	"github.com/lumenetwork/corestate/pkg/atomo/backend"
	"github.com/lumenetwork/corestate/pkg/checkpoint"
	"github.com/lumenetwork/corestate/pkg/config"
	"github.com/lumenetwork/corestate/pkg/executor"
	"github.com/lumenetwork/corestate/pkg/merklize"
	"github.com/lumenetwork/corestate/pkg/merklize/hash"
	"github.com/lumenetwork/corestate/pkg/merklize/jmt"
	"github.com/lumenetwork/corestate/pkg/merklize/mpt"
	"github.com/lumenetwork/corestate/pkg/metrics"
	"github.com/lumenetwork/corestate/pkg/txtypes"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Checkpoint load and verification",
}

var checkpointLoadCmd = &cobra.Command{
	Use:   "load FILE",
	Short: "Load a committee-signed checkpoint into this node's (fresh) database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		initLogging(cfg.LogLevel, cfg.LogJSON)

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read checkpoint file: %w", err)
		}
		c, err := checkpoint.Decode(data)
		if err != nil {
			return fmt.Errorf("decode checkpoint: %w", err)
		}
		if err := c.VerifySignature(); err != nil {
			return fmt.Errorf("checkpoint signature: %w", err)
		}

		db, tree, err := openDatabase(cfg)
		if err != nil {
			return err
		}

		timer := metrics.NewTimer()
		err = checkpoint.LoadFromCheckpoint(db, tree, c)
		timer.ObserveDuration(metrics.CheckpointLoadDuration)
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}

		fmt.Printf("checkpoint loaded\n  epoch: %d\n  root:  %x\n", c.Epoch, c.Root)
		return nil
	},
}

var checkpointVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Rebuild this node's state tree from scratch and compare it to the committed root",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		initLogging(cfg.LogLevel, cfg.LogJSON)

		db, tree, err := openDatabase(cfg)
		if err != nil {
			return err
		}

		ok, err := checkpoint.VerifyStateTreeUnsafe(db, tree)
		if err != nil {
			return fmt.Errorf("verify state tree: %w", err)
		}
		if !ok {
			fmt.Println("state tree: MISMATCH")
			os.Exit(1)
		}
		fmt.Println("state tree: OK")
		return nil
	},
}

var checkpointExportCmd = &cobra.Command{
	Use:   "export EPOCH FILE",
	Short: "Dump this node's current committed state to an unsigned checkpoint file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		epoch, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("epoch must be a non-negative integer: %w", err)
		}

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		initLogging(cfg.LogLevel, cfg.LogJSON)

		db, tree, err := openDatabase(cfg)
		if err != nil {
			return err
		}

		c, err := checkpoint.BuildCheckpoint(db, tree, txtypes.Epoch(epoch))
		if err != nil {
			return fmt.Errorf("build checkpoint: %w", err)
		}
		if err := os.WriteFile(args[1], c.Encode(), 0o644); err != nil {
			return fmt.Errorf("write checkpoint file: %w", err)
		}

		fmt.Printf("checkpoint exported (unsigned)\n  epoch: %d\n  root:  %x\n  tables: %d\n", c.Epoch, c.Root, len(c.Tables))
		fmt.Println("committee consensus-key holders must sign and attach Signers/Signature before this file can be loaded by another node")
		return nil
	},
}

// openDatabase builds a *atomo.DB and merklize.Provider from cfg without
// standing up the executor, oracle, or rpc server — what every
// checkpoint subcommand needs and nothing more.
func openDatabase(cfg *config.Config) (*atomo.DB, merklize.Provider, error) {
	var be backend.Backend
	var err error
	switch cfg.Storage {
	case config.StorageMemory:
		be = backend.NewMemory()
	case config.StorageBolt:
		be, err = backend.OpenBolt(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open bolt backend: %w", err)
		}
	default:
		return nil, nil, fmt.Errorf("unknown storage kind %q", cfg.Storage)
	}

	hasher, ok := hash.ByName(cfg.Hasher)
	if !ok {
		return nil, nil, fmt.Errorf("unknown hasher %q", cfg.Hasher)
	}
	var tree merklize.Provider
	switch cfg.Tree {
	case config.TreeJMT:
		tree = jmt.New(hasher)
	case config.TreeMPT:
		tree = mpt.New(hasher)
	default:
		return nil, nil, fmt.Errorf("unknown tree kind %q", cfg.Tree)
	}

	builder := atomo.NewBuilder(be)
	executor.RegisterTables(builder)
	tree.RegisterTables(builder)
	db, err := builder.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build database: %w", err)
	}
	return db, tree, nil
}
