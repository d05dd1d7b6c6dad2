// Package main provides the zkLogin gateway service: OAuth identities in,
// blockchain addresses and signed transactions out.
//
// The service issues ephemeral sessions, completes logins against the
// external zero-knowledge prover, caches proofs for reuse, and repairs
// degraded identity writes through an asynchronous task queue.
package main

import (
	"github.com/suilotto/zkgateway/bridge"
)

func main() {
	// Create and configure the gateway service
	service := bridge.NewGatewayService()
	defer service.Shutdown()

	// Start the service and block until shutdown
	service.Start()
}
