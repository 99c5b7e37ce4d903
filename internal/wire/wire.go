// Package wire is the composition root: it turns a pkg/config.Config
// into a fully wired node — storage backend, merklize provider, atomo
// database, executor, query runner, total-order oracle, epoch timer,
// rpc server, and the single writer loop gluing them together — the
// way the teacher's own cmd/warren main wires its manager, storage,
// and API server before calling Run.
package wire

import (
	"context"
	"errors"
	"fmt"
	"os"

	"net/http"

	"github.com/lumenetwork/corestate/internal/corelog"
	"github.com/lumenetwork/corestate/internal/order"
	"github.com/lumenetwork/corestate/pkg/atomo"
	"github.com/lumenetwork/corestate/pkg/atomo/backend"
	"github.com/lumenetwork/corestate/pkg/config"
	"github.com/lumenetwork/corestate/pkg/executor"
	"github.com/lumenetwork/corestate/pkg/genesis"
	"github.com/lumenetwork/corestate/pkg/merklize"
	"github.com/lumenetwork/corestate/pkg/merklize/hash"
	"github.com/lumenetwork/corestate/pkg/merklize/jmt"
	"github.com/lumenetwork/corestate/pkg/merklize/mpt"
	"github.com/lumenetwork/corestate/pkg/metrics"
	"github.com/lumenetwork/corestate/pkg/query"
	"github.com/lumenetwork/corestate/pkg/rpc"
)

// Node is a fully wired corenode instance: every component
// SPEC_FULL.md names, built from one Config.
type Node struct {
	cfg      *config.Config
	DB       *atomo.DB
	Tree     merklize.Provider
	Executor *executor.Executor
	runner   *query.Runner
	Oracle   *order.Oracle
	RPC      *rpc.Server
}

// Open builds every component but does not yet start the writer loop,
// the epoch timer, or the rpc listener — call Run for that.
func Open(cfg *config.Config) (*Node, error) {
	be, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}

	hasher, ok := hash.ByName(cfg.Hasher)
	if !ok {
		return nil, fmt.Errorf("wire: unknown hasher %q", cfg.Hasher)
	}
	var tree merklize.Provider
	switch cfg.Tree {
	case config.TreeJMT:
		tree = jmt.New(hasher)
	case config.TreeMPT:
		tree = mpt.New(hasher)
	default:
		return nil, fmt.Errorf("wire: unknown tree kind %q", cfg.Tree)
	}

	builder := atomo.NewBuilder(be)
	executor.RegisterTables(builder)
	tree.RegisterTables(builder)
	db, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("wire: build database: %w", err)
	}

	g, err := loadGenesis(cfg)
	if err != nil {
		return nil, err
	}

	ex := executor.New(db, tree, g.ChainID)
	if cfg.Dev.AutoApplyGenesis {
		if err := ex.ApplyGenesis(g); err != nil {
			return nil, fmt.Errorf("wire: apply genesis: %w", err)
		}
	}

	oracle, err := order.New(order.Config{
		NodeID:    cfg.Raft.NodeID,
		BindAddr:  cfg.Raft.BindAddr,
		DataDir:   cfg.Raft.DataDir,
		Bootstrap: cfg.Raft.Bootstrap,
	})
	if err != nil {
		return nil, fmt.Errorf("wire: start total-order oracle: %w", err)
	}

	runner := query.New(db, tree, ex)

	n := &Node{cfg: cfg, DB: db, Tree: tree, Executor: ex, runner: runner, Oracle: oracle}
	n.RPC = rpc.NewServer(n)
	return n, nil
}

func openBackend(cfg *config.Config) (backend.Backend, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return backend.NewMemory(), nil
	case config.StorageBolt:
		be, err := backend.OpenBolt(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("wire: open bolt backend at %s: %w", cfg.DBPath, err)
		}
		return be, nil
	default:
		return nil, fmt.Errorf("wire: unknown storage kind %q", cfg.Storage)
	}
}

func loadGenesis(cfg *config.Config) (*genesis.Genesis, error) {
	if cfg.Network != "" {
		g, err := genesis.LoadNetwork(cfg.Network)
		if err != nil {
			return nil, fmt.Errorf("wire: load network %q: %w", cfg.Network, err)
		}
		return g, nil
	}
	data, err := os.ReadFile(cfg.GenesisPath)
	if err != nil {
		return nil, fmt.Errorf("wire: read genesis file %s: %w", cfg.GenesisPath, err)
	}
	g, err := genesis.Load(data)
	if err != nil {
		return nil, fmt.Errorf("wire: parse genesis file %s: %w", cfg.GenesisPath, err)
	}
	return g, nil
}

// Run starts the writer loop, epoch timer, and rpc listener, blocking
// until ctx is cancelled. Cancellation is only honored between
// transactions, the way the writer loop body itself never suspends.
func (n *Node) Run(ctx context.Context) error {
	log := corelog.WithComponent("wire")

	go n.writerLoop(ctx)

	if timer := n.epochNudger(); timer != nil {
		go timer.Run(ctx)
	}

	metricsSrv := &http.Server{Addr: n.cfg.MetricsAddr, Handler: metrics.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- n.RPC.Serve(n.cfg.RPCAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		n.RPC.GracefulStop()
		metricsSrv.Close()
		if err := n.Oracle.Shutdown(); err != nil {
			log.Warn().Err(err).Msg("total-order oracle shutdown")
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// writerLoop is the single goroutine consuming the total-order
// oracle's committed entries and driving the executor, the same
// single-writer-goroutine shape spec section 5 requires; ctx
// cancellation is checked only between transactions, never inside one.
func (n *Node) writerLoop(ctx context.Context) {
	log := corelog.WithComponent("wire")
	for {
		select {
		case <-ctx.Done():
			return
		case commit, ok := <-n.Oracle.Commits():
			if !ok {
				return
			}
			timer := metrics.NewTimer()
			receipt, err := n.Executor.Execute(commit.Request, commit.Decision.BlockHash, commit.Decision.BlockNumber, commit.Decision.TxIndex)
			timer.ObserveDuration(metrics.WriterCommitDuration)
			if err != nil {
				var fatal *atomo.FatalError
				if errors.As(err, &fatal) {
					log.Fatal().Err(err).Msg("fatal storage or codec error, writer cannot continue")
				}
				log.Warn().Err(err).Msg("transaction hard-rejected")
				continue
			}
			outcome := "revert"
			if receipt.Response.Success {
				outcome = "success"
			}
			metrics.ExecutorMethodTotal.WithLabelValues(commit.Request.Payload.Method.MethodName(), outcome).Inc()
			metrics.StateRootGauge.Set(float64(commit.Decision.BlockNumber))

			n.runner.Refresh()
			if info, infoErr := n.runner.GetEpochInfo(); infoErr == nil {
				metrics.EpochPhaseGauge.Set(float64(info.Phase))
			}
			if payloadHash, hashErr := commit.Request.Payload.Hash(); hashErr == nil {
				n.Oracle.Resolve(payloadHash, receipt)
			}
		}
	}
}

// Submit implements rpc.Engine: it forwards to the total-order oracle,
// which blocks until the writer loop has actually executed the
// transaction and produced a receipt.
func (n *Node) Submit(ctx context.Context, req rpc.SubmitRequest) (rpc.SubmitResponse, error) {
	receipt, err := n.Oracle.Submit(ctx, req.Tx)
	if err != nil {
		return rpc.SubmitResponse{Error: err.Error()}, nil
	}
	return rpc.SubmitResponse{Receipt: receipt}, nil
}

// Query implements rpc.Engine, dispatching on req.Kind against the
// pinned query.Runner.
func (n *Node) Query(ctx context.Context, req rpc.QueryRequest) (rpc.QueryResponse, error) {
	switch req.Kind {
	case rpc.QueryEpochInfo:
		info, err := n.runner.GetEpochInfo()
		return respond(rpc.QueryResponse{EpochInfo: info}, err)
	case rpc.QueryNodeRegistry:
		page, err := n.runner.GetNodeRegistry(req.After, req.Limit)
		return respond(rpc.QueryResponse{NodeRegistry: page}, err)
	case rpc.QueryCommitteeMembers:
		members, err := n.runner.GetCommitteeMembers(req.Epoch)
		return respond(rpc.QueryResponse{CommitteeMembers: members}, err)
	case rpc.QueryAccount:
		acct, err := n.runner.GetAccount(req.Address)
		return respond(rpc.QueryResponse{Account: acct}, err)
	case rpc.QueryStateRoot:
		root, err := n.runner.GetStateRoot()
		return respond(rpc.QueryResponse{StateRoot: root}, err)
	case rpc.QueryStateProof:
		proof, err := n.runner.GetStateProof(req.Table, req.Key)
		return respond(rpc.QueryResponse{StateProof: proof}, err)
	case rpc.QuerySimulateTxn:
		result, err := n.runner.SimulateTxn(req.Tx)
		return respond(rpc.QueryResponse{Simulate: result}, err)
	default:
		return rpc.QueryResponse{Error: fmt.Sprintf("wire: unknown query kind %q", req.Kind)}, nil
	}
}

// QueryRunner exposes the node's pinned query.Runner directly, for
// callers (cmd/corenode's genesis apply subcommand) that run
// in-process rather than over the rpc.Engine seam.
func (n *Node) QueryRunner() *query.Runner { return n.runner }

func respond(resp rpc.QueryResponse, err error) (rpc.QueryResponse, error) {
	if err != nil {
		resp.Error = err.Error()
	}
	return resp, nil
}
