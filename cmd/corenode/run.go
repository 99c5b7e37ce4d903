package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumenetwork/corestate/internal/corelog"
	"github.com/lumenetwork/corestate/internal/wire"
	"github.com/lumenetwork/corestate/pkg/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start this corenode, serving submissions and queries until stopped",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		initLogging(cfg.LogLevel, cfg.LogJSON)

		log := corelog.WithComponent("main")
		log.Info().
			Str("rpc_addr", cfg.RPCAddr).
			Str("metrics_addr", cfg.MetricsAddr).
			Str("raft_node_id", cfg.Raft.NodeID).
			Msg("starting corenode")

		n, err := wire.Open(cfg)
		if err != nil {
			return fmt.Errorf("open node: %w", err)
		}

		ctx := withCancelOnSignal()
		if err := n.Run(ctx); err != nil {
			return fmt.Errorf("run node: %w", err)
		}
		log.Info().Msg("shutdown complete")
		return nil
	},
}
