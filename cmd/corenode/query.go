package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumenetwork/corestate/pkg/rpc"
	"github.com/lumenetwork/corestate/pkg/txtypes"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Read-only queries against a running corenode",
}

func dialQuery(cmd *cobra.Command) (*rpc.Client, error) {
	addr, _ := cmd.Flags().GetString("rpc-addr")
	return rpc.Dial(addr)
}

var queryEpochCmd = &cobra.Command{
	Use:   "epoch",
	Short: "Show the current epoch and committee-selection phase",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialQuery(cmd)
		if err != nil {
			return fmt.Errorf("dial: %w", err)
		}
		defer c.Close()

		resp, err := c.Query(context.Background(), rpc.QueryRequest{Kind: rpc.QueryEpochInfo})
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		if resp.Error != "" {
			return fmt.Errorf("corenode: %s", resp.Error)
		}
		info := resp.EpochInfo
		fmt.Printf("epoch:  %d\n", info.Epoch)
		fmt.Printf("phase:  %s\n", info.Phase)
		fmt.Printf("active set: %v\n", info.ActiveNodeSet)
		return nil
	},
}

var queryAccountCmd = &cobra.Command{
	Use:   "account ADDRESS",
	Short: "Show an account's balance and nonce (ADDRESS is 20 bytes, hex-encoded)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := hex.DecodeString(args[0])
		if err != nil || len(raw) != 20 {
			return fmt.Errorf("address must be 20 hex-encoded bytes")
		}
		var addr txtypes.Address
		copy(addr[:], raw)

		c, err := dialQuery(cmd)
		if err != nil {
			return fmt.Errorf("dial: %w", err)
		}
		defer c.Close()

		resp, err := c.Query(context.Background(), rpc.QueryRequest{Kind: rpc.QueryAccount, Address: addr})
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		if resp.Error != "" {
			return fmt.Errorf("corenode: %s", resp.Error)
		}
		if resp.Account == nil {
			fmt.Println("account not found")
			return nil
		}
		fmt.Printf("flk balance:       %s\n", resp.Account.FLKBalance.String())
		fmt.Printf("stables balance:   %s\n", resp.Account.StablesBalance.String())
		fmt.Printf("bandwidth balance: %s\n", resp.Account.BandwidthBalance.String())
		fmt.Printf("nonce:             %d\n", resp.Account.Nonce)
		return nil
	},
}

var queryStateRootCmd = &cobra.Command{
	Use:   "state-root",
	Short: "Show the current committed state root",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialQuery(cmd)
		if err != nil {
			return fmt.Errorf("dial: %w", err)
		}
		defer c.Close()

		resp, err := c.Query(context.Background(), rpc.QueryRequest{Kind: rpc.QueryStateRoot})
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		if resp.Error != "" {
			return fmt.Errorf("corenode: %s", resp.Error)
		}
		fmt.Printf("%x\n", resp.StateRoot)
		return nil
	},
}
