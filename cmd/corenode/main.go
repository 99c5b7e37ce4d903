package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lumenetwork/corestate/internal/corelog"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var cfgPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "corenode",
	Short: "corenode - Application State Engine node for a decentralized edge-compute network",
	Long: `corenode runs one replica of the network's merklized state
database: a deterministic transaction-execution core sitting behind a
total-order oracle, serving submissions and state queries over a single
gRPC socket.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"corenode version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "./corenode.yaml", "Path to the node's YAML config file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(genesisCmd)
	rootCmd.AddCommand(checkpointCmd)
	rootCmd.AddCommand(queryCmd)

	genesisCmd.AddCommand(genesisApplyCmd)
	checkpointCmd.AddCommand(checkpointLoadCmd)
	checkpointCmd.AddCommand(checkpointVerifyCmd)
	checkpointCmd.AddCommand(checkpointExportCmd)

	queryCmd.AddCommand(queryEpochCmd)
	queryCmd.AddCommand(queryAccountCmd)
	queryCmd.AddCommand(queryStateRootCmd)

	queryCmd.PersistentFlags().String("rpc-addr", "127.0.0.1:8787", "corenode submission socket to query")
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}

func withCancelOnSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		waitForSignal()
		cancel()
	}()
	return ctx
}

func initLogging(logLevel string, logJSON bool) {
	corelog.Init(corelog.Config{
		Level:      corelog.Level(logLevel),
		JSONOutput: logJSON,
	})
}
