// Package config loads the node's runtime configuration from a YAML
// file, the way the teacher's own manager configures its storage and
// cluster settings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StorageKind selects the atomo backend.
type StorageKind string

const (
	StorageMemory StorageKind = "memory"
	StorageBolt   StorageKind = "bolt"
)

// TreeKind selects the merklize provider.
type TreeKind string

const (
	TreeJMT TreeKind = "jmt"
	TreeMPT TreeKind = "mpt"
)

// Dev carries developer-only overrides, never set in a real deployment
// config, that smooth over genesis/epoch timing during local testing.
type Dev struct {
	UpdateEpochStartToNow bool `yaml:"update_epoch_start_to_now"`
	AutoApplyGenesis      bool `yaml:"auto_apply_genesis"`
}

// Raft configures the internal/order total-order oracle this node
// participates in.
type Raft struct {
	NodeID    string `yaml:"node_id"`
	BindAddr  string `yaml:"bind_addr"`
	DataDir   string `yaml:"data_dir"`
	Bootstrap bool   `yaml:"bootstrap"`
}

// NodeIdentity names which registered node record this process acts as
// when the epoch nudger needs to sign its own IncrementNonce
// transactions; SigningKeyHex is a hex-encoded 64-byte Ed25519 private
// key matching that node's NodePublicKey.
type NodeIdentity struct {
	Index         uint32 `yaml:"index"`
	SigningKeyHex string `yaml:"signing_key_hex"`
}

// Config is the node's full runtime configuration.
type Config struct {
	Network     string      `yaml:"network"`
	GenesisPath string      `yaml:"genesis_path"`
	Storage     StorageKind `yaml:"storage"`
	DBPath      string      `yaml:"db_path"`
	Hasher      string      `yaml:"hasher"`
	Tree        TreeKind    `yaml:"tree"`
	RPCAddr     string      `yaml:"rpc_addr"`
	MetricsAddr string      `yaml:"metrics_addr"`
	LogLevel    string      `yaml:"log_level"`
	LogJSON     bool        `yaml:"log_json"`
	Raft        Raft        `yaml:"raft"`
	Node        NodeIdentity `yaml:"node"`
	Dev         Dev         `yaml:"dev"`
}

// Load reads and validates cfg from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with every field at its documented default,
// overridable by whatever Load later unmarshals on top of it.
func Default() *Config {
	return &Config{
		Storage:     StorageBolt,
		DBPath:      "./data/corestate.db",
		Hasher:      "blake3",
		Tree:        TreeJMT,
		RPCAddr:     "0.0.0.0:8787",
		MetricsAddr: "0.0.0.0:9090",
		LogLevel:    "info",
		Raft: Raft{
			NodeID:    "node1",
			BindAddr:  "127.0.0.1:8001",
			DataDir:   "./data/raft",
			Bootstrap: true,
		},
	}
}

// Validate enforces the mutual-exclusion and enum constraints the loader
// can't express in struct tags alone.
func (c *Config) Validate() error {
	if c.Network != "" && c.GenesisPath != "" {
		return fmt.Errorf("config: network and genesis_path are mutually exclusive, set only one")
	}
	if c.Network == "" && c.GenesisPath == "" {
		return fmt.Errorf("config: one of network or genesis_path is required")
	}
	switch c.Storage {
	case StorageMemory, StorageBolt:
	default:
		return fmt.Errorf("config: unknown storage kind %q", c.Storage)
	}
	switch c.Tree {
	case TreeJMT, TreeMPT:
	default:
		return fmt.Errorf("config: unknown tree kind %q", c.Tree)
	}
	return nil
}
