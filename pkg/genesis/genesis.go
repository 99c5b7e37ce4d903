// Package genesis loads the TOML genesis file that seeds a fresh
// database: chain parameters, the founding node set, initial services,
// commodity prices and protocol params. Two networks ship embedded in
// the binary; anything else is read from disk via pkg/config's
// genesis_path.
package genesis

import (
	_ "embed"
	"fmt"
	"math/big"

	"github.com/pelletier/go-toml/v2"

	"github.com/lumenetwork/corestate/pkg/txtypes"
)

//go:embed networks/localnet-example.toml
var localnetExampleTOML []byte

//go:embed networks/testnet-stable.toml
var testnetStableTOML []byte

// NodeInfo is one founding node entry.
type NodeInfo struct {
	Owner              string `toml:"owner"`
	NodePublicKey      string `toml:"node_public_key"`
	ConsensusPublicKey string `toml:"consensus_public_key"`
	Domain             string `toml:"domain"`
	WorkerDomain       string `toml:"worker_domain"`
	Ports              struct {
		Primary   uint16 `toml:"primary"`
		Worker    uint16 `toml:"worker"`
		MemPool   uint16 `toml:"mempool"`
		RPC       uint16 `toml:"rpc"`
		Pool      uint16 `toml:"pool"`
		Pinger    uint16 `toml:"pinger"`
		Handshake struct {
			HTTP         uint16 `toml:"http"`
			WebRTC       uint16 `toml:"webrtc"`
			WebTransport uint16 `toml:"webtransport"`
		} `toml:"handshake"`
	} `toml:"ports"`
	Stake             string `toml:"stake"`
	GenesisCommittee  bool   `toml:"genesis_committee"`
}

// Service is a genesis-seeded service registry entry.
type Service struct {
	ID        uint32 `toml:"id"`
	Name      string `toml:"name"`
	Commodity string `toml:"commodity"`
}

// Genesis is the parsed contents of a genesis TOML file.
type Genesis struct {
	ChainID             uint32            `toml:"chain_id"`
	EpochStart           int64             `toml:"epoch_start"` // ms since Unix epoch
	EpochTime            int64             `toml:"epoch_time"`  // ms
	MinStake             string            `toml:"min_stake"`
	ProtocolFundAddress  string            `toml:"protocol_fund_address"`
	GovernanceAddress    string            `toml:"governance_address"`
	NodeInfo             []NodeInfo        `toml:"node_info"`
	Service              []Service         `toml:"service"`
	CommodityPrices      map[string]string `toml:"commodity_prices"`
	ProtocolParams       map[string]string `toml:"protocol_params"`
}

// Load parses raw TOML bytes into a Genesis.
func Load(data []byte) (*Genesis, error) {
	var g Genesis
	if err := toml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("genesis: parse: %w", err)
	}
	return &g, nil
}

// LoadNetwork returns one of the two embedded built-in networks.
func LoadNetwork(name string) (*Genesis, error) {
	switch name {
	case "LocalnetExample", "localnet-example":
		return Load(localnetExampleTOML)
	case "TestnetStable", "testnet-stable":
		return Load(testnetStableTOML)
	default:
		return nil, fmt.Errorf("genesis: unknown built-in network %q", name)
	}
}

// MinStakeBig parses MinStake as a big.Int, panicking on malformed
// genesis data — a genesis file is a deployment-time artifact validated
// long before it reaches production, not user input to be handled
// gracefully at runtime.
func (g *Genesis) MinStakeBig() *big.Int {
	v, ok := new(big.Int).SetString(g.MinStake, 10)
	if !ok {
		panic(fmt.Sprintf("genesis: malformed min_stake %q", g.MinStake))
	}
	return v
}

// ParseAddress decodes a genesis-file address string (0x-prefixed hex)
// into a txtypes.Address.
func ParseAddress(s string) (txtypes.Address, error) {
	var addr txtypes.Address
	b, err := decodeHexPrefixed(s, len(addr))
	if err != nil {
		return addr, fmt.Errorf("genesis: address %q: %w", s, err)
	}
	copy(addr[:], b)
	return addr, nil
}

// ParseNodePublicKey decodes a genesis-file node_public_key string.
func ParseNodePublicKey(s string) (txtypes.NodePublicKey, error) {
	var key txtypes.NodePublicKey
	b, err := decodeHexPrefixed(s, len(key))
	if err != nil {
		return key, fmt.Errorf("genesis: node_public_key %q: %w", s, err)
	}
	copy(key[:], b)
	return key, nil
}

// ParseConsensusPublicKey decodes a genesis-file consensus_public_key
// string.
func ParseConsensusPublicKey(s string) (txtypes.ConsensusPublicKey, error) {
	var key txtypes.ConsensusPublicKey
	b, err := decodeHexPrefixed(s, len(key))
	if err != nil {
		return key, fmt.Errorf("genesis: consensus_public_key %q: %w", s, err)
	}
	copy(key[:], b)
	return key, nil
}

// ParseCommodity maps a genesis-file commodity name to its enum value.
func ParseCommodity(s string) (txtypes.Commodity, error) {
	switch s {
	case "Bandwidth":
		return txtypes.CommodityBandwidth, nil
	case "Compute":
		return txtypes.CommodityCompute, nil
	case "Storage":
		return txtypes.CommodityStorage, nil
	case "GPU":
		return txtypes.CommodityGPU, nil
	default:
		return 0, fmt.Errorf("genesis: unknown commodity %q", s)
	}
}

// ParseProtocolParam maps a genesis-file protocol_params key to its enum
// value.
func ParseProtocolParam(s string) (txtypes.ProtocolParam, error) {
	switch s {
	case "EpochTime":
		return txtypes.ParamEpochTime, nil
	case "MinimumNodeStake":
		return txtypes.ParamMinimumNodeStake, nil
	case "LockTime":
		return txtypes.ParamLockTime, nil
	case "MaxStakeLockTime":
		return txtypes.ParamMaxStakeLockTime, nil
	case "CommitPhaseDuration":
		return txtypes.ParamCommitPhaseDuration, nil
	case "RevealPhaseDuration":
		return txtypes.ParamRevealPhaseDuration, nil
	case "MaxStringLengthServiceDomain":
		return txtypes.ParamMaxStringLengthServiceDomain, nil
	default:
		return 0, fmt.Errorf("genesis: unknown protocol param %q", s)
	}
}
