package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lumenetwork/corestate/pkg/config"
)

func validBase() *config.Config {
	cfg := config.Default()
	cfg.Network = "testnet"
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, validBase().Validate())
}

func TestValidateRejectsNetworkAndGenesisPathTogether(t *testing.T) {
	cfg := validBase()
	cfg.GenesisPath = "./genesis.toml"
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresNetworkOrGenesisPath(t *testing.T) {
	cfg := config.Default()
	assert.Error(t, cfg.Validate())
}

func TestValidateAcceptsGenesisPathAlone(t *testing.T) {
	cfg := config.Default()
	cfg.GenesisPath = "./genesis.toml"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownStorageKind(t *testing.T) {
	cfg := validBase()
	cfg.Storage = "postgres"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownTreeKind(t *testing.T) {
	cfg := validBase()
	cfg.Tree = "avl"
	assert.Error(t, cfg.Validate())
}

func TestValidateAcceptsBothStorageKinds(t *testing.T) {
	for _, kind := range []config.StorageKind{config.StorageMemory, config.StorageBolt} {
		cfg := validBase()
		cfg.Storage = kind
		assert.NoError(t, cfg.Validate())
	}
}

func TestValidateAcceptsBothTreeKinds(t *testing.T) {
	for _, kind := range []config.TreeKind{config.TreeJMT, config.TreeMPT} {
		cfg := validBase()
		cfg.Tree = kind
		assert.NoError(t, cfg.Validate())
	}
}
