package executor

import (
	"fmt"
	"math/big"

	"github.com/lumenetwork/corestate/pkg/atomo"
	"github.com/lumenetwork/corestate/pkg/genesis"
	"github.com/lumenetwork/corestate/pkg/txtypes"
)

// ApplyGenesis seeds db from g: chain metadata, the founding node set (as
// already-staked, committee-eligible nodes), initial services, commodity
// prices, and protocol params. It is idempotent — a second call against
// an already-seeded database is a no-op — guarded by
// MetadataGenesisApplied, so a node restarting against existing state
// never re-applies genesis on top of it.
func (e *Executor) ApplyGenesis(g *genesis.Genesis) error {
	return e.db.Run(func(ts *atomo.TableSelector) error {
		meta := metadataTable(ts)
		if v, ok := meta.Get(txtypes.MetadataGenesisApplied); ok && v.Applied {
			return nil
		}

		governance, err := genesis.ParseAddress(g.GovernanceAddress)
		if err != nil {
			return fmt.Errorf("executor: genesis governance address: %w", err)
		}
		protocolFund, err := genesis.ParseAddress(g.ProtocolFundAddress)
		if err != nil {
			return fmt.Errorf("executor: genesis protocol fund address: %w", err)
		}

		meta.Insert(txtypes.MetadataChainID, &txtypes.MetadataValue{Kind: txtypes.MetadataChainID, ChainID: g.ChainID})
		meta.Insert(txtypes.MetadataEpoch, &txtypes.MetadataValue{Kind: txtypes.MetadataEpoch, Epoch: 0})
		meta.Insert(txtypes.MetadataGovernanceAddress, &txtypes.MetadataValue{Kind: txtypes.MetadataGovernanceAddress, Address: governance})
		meta.Insert(txtypes.MetadataProtocolFundAddress, &txtypes.MetadataValue{Kind: txtypes.MetadataProtocolFundAddress, Address: protocolFund})

		params := parameterTable(ts)
		for name, value := range g.ProtocolParams {
			param, err := genesis.ParseProtocolParam(name)
			if err != nil {
				return fmt.Errorf("executor: genesis protocol param: %w", err)
			}
			v, ok := new(big.Int).SetString(value, 10)
			if !ok {
				return fmt.Errorf("executor: genesis protocol param %q: malformed value %q", name, value)
			}
			params.Insert(param, v)
		}

		prices := commodityPricesTable(ts)
		for name, value := range g.CommodityPrices {
			commodity, err := genesis.ParseCommodity(name)
			if err != nil {
				return fmt.Errorf("executor: genesis commodity price: %w", err)
			}
			v, ok := new(big.Int).SetString(value, 10)
			if !ok {
				return fmt.Errorf("executor: genesis commodity price %q: malformed value %q", name, value)
			}
			prices.Insert(commodity, v)
		}

		services := serviceTable(ts)
		for _, svc := range g.Service {
			commodity, err := genesis.ParseCommodity(svc.Commodity)
			if err != nil {
				return fmt.Errorf("executor: genesis service %q: %w", svc.Name, err)
			}
			services.Insert(svc.ID, &txtypes.Service{ID: svc.ID, Name: svc.Name, Commodity: commodity})
		}

		nodes := nodeTable(ts)
		pubIdx := pubKeyToIndexTable(ts)
		consIdx := consensusKeyToIndexTable(ts)
		var genesisCommittee []txtypes.NodeIndex
		for i, ni := range g.NodeInfo {
			idx := txtypes.NodeIndex(i)
			owner, err := genesis.ParseAddress(ni.Owner)
			if err != nil {
				return fmt.Errorf("executor: genesis node %d owner: %w", i, err)
			}
			nodePub, err := genesis.ParseNodePublicKey(ni.NodePublicKey)
			if err != nil {
				return fmt.Errorf("executor: genesis node %d public key: %w", i, err)
			}
			consPub, err := genesis.ParseConsensusPublicKey(ni.ConsensusPublicKey)
			if err != nil {
				return fmt.Errorf("executor: genesis node %d consensus key: %w", i, err)
			}
			stake, ok := new(big.Int).SetString(ni.Stake, 10)
			if !ok {
				return fmt.Errorf("executor: genesis node %d: malformed stake %q", i, ni.Stake)
			}
			node := &txtypes.Node{
				Owner:              owner,
				NodePublicKey:      nodePub,
				ConsensusPublicKey: consPub,
				Domain:             ni.Domain,
				WorkerDomain:       ni.WorkerDomain,
				Ports: txtypes.NodePorts{
					Primary:    ni.Ports.Primary,
					Worker:     ni.Ports.Worker,
					MemPool:    ni.Ports.MemPool,
					RPC:        ni.Ports.RPC,
					Pool:       ni.Ports.Pool,
					PingerPort: ni.Ports.Pinger,
					Handshake: txtypes.HandshakePorts{
						HTTP:         ni.Ports.Handshake.HTTP,
						WebRTC:       ni.Ports.Handshake.WebRTC,
						WebTransport: ni.Ports.Handshake.WebTransport,
					},
				},
				Stake:             txtypes.Stake{Staked: stake, Locked: big.NewInt(0)},
				ParticipationNext: true,
			}
			nodes.Insert(idx, node)
			pubIdx.Insert(nodePub, idx)
			consIdx.Insert(consPub, idx)
			if ni.GenesisCommittee {
				genesisCommittee = append(genesisCommittee, idx)
			}
		}

		committeeTable(ts).Insert(0, &txtypes.Committee{
			Members:           genesisCommittee,
			ActiveNodeSet:     genesisCommittee,
			Beacons:           map[txtypes.NodeIndex]*txtypes.Beacon{},
			ChangeEpochVotes:  map[txtypes.NodeIndex]bool{},
			EpochEndTimestamp: g.EpochStart + g.EpochTime,
			Phase:             txtypes.BeaconPhaseNone,
		})
		meta.Insert(txtypes.MetadataGenesisCommittee, &txtypes.MetadataValue{Kind: txtypes.MetadataGenesisCommittee, GenesisCommittee: genesisCommittee})
		meta.Insert(txtypes.MetadataGenesisApplied, &txtypes.MetadataValue{Kind: txtypes.MetadataGenesisApplied, Applied: true})

		if err := e.flushStateTree(ts); err != nil {
			return fmt.Errorf("executor: genesis state tree: %w", err)
		}
		return nil
	})
}
