package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultNetworksValidate(t *testing.T) {
	for _, cfg := range []NetworkConfig{DevnetNetwork(), TestnetNetwork(), LocalNetwork()} {
		require.NoError(t, cfg.Validate(), "network %s", cfg.NetworkID)
		assert.Equal(t, 3, cfg.MaxRetries)
		assert.Equal(t, uint64(10), cfg.EpochWindow)
	}
}

func TestValidateRejectsIncomplete(t *testing.T) {
	cfg := DevnetNetwork()
	cfg.RPC = ""
	assert.Error(t, cfg.Validate())

	cfg = DevnetNetwork()
	cfg.Prover = ""
	assert.Error(t, cfg.Validate())

	cfg = DevnetNetwork()
	cfg.EpochWindow = 0
	assert.Error(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SUI_RPC_URL", "http://rpc.internal:9000")
	t.Setenv("PROVER_URL", "http://prover.internal:8081")

	cfg := FromEnv()
	assert.Equal(t, "http://rpc.internal:9000", cfg.RPC)
	assert.Equal(t, "http://prover.internal:8081", cfg.Prover)
}

func TestFromEnvSelectsNetwork(t *testing.T) {
	t.Setenv("SUI_NETWORK", "testnet")
	t.Setenv("SUI_RPC_URL", "")
	t.Setenv("PROVER_URL", "")

	cfg := FromEnv()
	assert.Equal(t, "testnet", cfg.NetworkID)
	assert.Equal(t, TestnetNetwork().RPC, cfg.RPC)
}
