// Package config provides network configuration and connection settings for
// the zkLogin gateway clients.
package config

import (
	"errors"
	"os"
	"time"
)

// NetworkConfig defines the configuration for one target network: the
// blockchain RPC endpoint, the external prover, and the retry policy the
// prover client applies on transient failures.
type NetworkConfig struct {
	// Network identification
	Name      string `json:"name"`
	NetworkID string `json:"network_id"`

	// Endpoints
	RPC    string `json:"rpc_endpoint"`
	Prover string `json:"prover_endpoint"`

	// Connection settings
	RequestTimeout time.Duration `json:"request_timeout"`
	ProverTimeout  time.Duration `json:"prover_timeout"`

	// Retry policy for the prover client. MaxRetries counts additional
	// attempts after the first; RetryDelay is the initial backoff, doubled
	// per retry.
	MaxRetries int           `json:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay"`

	// EpochWindow is the number of epochs an ephemeral session stays valid
	// past the epoch observed at creation.
	EpochWindow uint64 `json:"epoch_window"`

	// ProofCacheTTL bounds how long a cached proof may be served.
	ProofCacheTTL time.Duration `json:"proof_cache_ttl"`
}

// DevnetNetwork returns the network configuration for the public devnet.
func DevnetNetwork() NetworkConfig {
	return NetworkConfig{
		Name:      "Sui Devnet",
		NetworkID: "devnet",

		RPC:    "https://fullnode.devnet.sui.io:443",
		Prover: "https://prover-dev.mystenlabs.com/v1",

		RequestTimeout: 30 * time.Second,
		ProverTimeout:  30 * time.Second,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		EpochWindow:    10,
		ProofCacheTTL:  24 * time.Hour,
	}
}

// TestnetNetwork returns the network configuration for the public testnet.
func TestnetNetwork() NetworkConfig {
	cfg := DevnetNetwork()
	cfg.Name = "Sui Testnet"
	cfg.NetworkID = "testnet"
	cfg.RPC = "https://fullnode.testnet.sui.io:443"
	cfg.Prover = "https://prover.mystenlabs.com/v1"
	return cfg
}

// LocalNetwork returns a configuration for local development against a
// localnet node and a locally running prover.
func LocalNetwork() NetworkConfig {
	cfg := DevnetNetwork()
	cfg.Name = "Local"
	cfg.NetworkID = "localnet"
	cfg.RPC = "http://127.0.0.1:9000"
	cfg.Prover = "http://127.0.0.1:8081/v1"
	return cfg
}

// FromEnv builds a network configuration from the environment. SUI_NETWORK
// selects the base network (devnet when unset); SUI_RPC_URL and PROVER_URL
// override the endpoints.
func FromEnv() NetworkConfig {
	var cfg NetworkConfig
	switch os.Getenv("SUI_NETWORK") {
	case "testnet":
		cfg = TestnetNetwork()
	case "localnet":
		cfg = LocalNetwork()
	default:
		cfg = DevnetNetwork()
	}
	if rpc := os.Getenv("SUI_RPC_URL"); rpc != "" {
		cfg.RPC = rpc
	}
	if prover := os.Getenv("PROVER_URL"); prover != "" {
		cfg.Prover = prover
	}
	return cfg
}

// Validate checks that the configuration is usable.
func (c NetworkConfig) Validate() error {
	if c.RPC == "" {
		return errors.New("missing RPC endpoint")
	}
	if c.Prover == "" {
		return errors.New("missing prover endpoint")
	}
	if c.MaxRetries < 0 {
		return errors.New("max retries must be non-negative")
	}
	if c.EpochWindow == 0 {
		return errors.New("epoch window must be positive")
	}
	return nil
}
