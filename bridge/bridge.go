// Package bridge provides the HTTP gateway service for zkLogin
// authentication: session issuance, login completion, and transaction
// submission, with asynchronous repair of degraded identity writes.
package bridge

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/suilotto/zkgateway/auth"
	"github.com/suilotto/zkgateway/bridge/server"
	"github.com/suilotto/zkgateway/bridge/tasks"
	"github.com/suilotto/zkgateway/client/prover"
	"github.com/suilotto/zkgateway/client/sui"
	"github.com/suilotto/zkgateway/store"
)

// GatewayService encapsulates the entire gateway setup and lifecycle.
type GatewayService struct {
	config       *Config
	client       *asynq.Client
	httpServer   *server.Server
	queueManager *QueueManager
	identity     store.IdentityStore

	// Internal channels for coordination
	ctx    context.Context
	cancel context.CancelFunc
	sigCh  chan os.Signal
}

// NewGatewayService creates a new gateway service with all components
// initialized.
func NewGatewayService() *GatewayService {
	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	config := NewConfig()

	// Redis-based task queue client for identity repairs
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: config.RedisAddr})
	log.Printf("Asynq client connected to Redis at %s", config.RedisAddr)

	identity := initializeIdentityStore(ctx, config)
	repairs := tasks.NewAsynqRepairQueue(client)

	// Network clients
	suiClient := sui.NewClient(config.Network)
	proofCache := prover.NewCache(config.Network.ProofCacheTTL, prover.DefaultCacheCapacity)
	proofClient := prover.NewClient(config.Network, proofCache)

	// Authentication flow
	flow := auth.NewFlow(
		auth.NewSessionManager(suiClient, auth.NewMemorySessionStore(), config.Network.EpochWindow),
		auth.NewTokenSource(),
		store.NewSaltStore(identity, repairs),
		proofClient,
		identity,
		repairs,
	)

	serverConfig := &server.Config{
		HTTPAddr:  fmt.Sprintf(":%d", config.HTTPPort),
		JWTSecret: config.JWTSecret,
	}
	httpServer := server.NewServer(serverConfig, flow, suiClient)

	queueManager := NewQueueManager(config, identity)

	return &GatewayService{
		config:       config,
		client:       client,
		httpServer:   httpServer,
		queueManager: queueManager,
		identity:     identity,
		ctx:          ctx,
		cancel:       cancel,
		sigCh:        sigCh,
	}
}

// initializeIdentityStore connects the durable identity store, falling back
// to the in-memory store when MongoDB is not configured.
func initializeIdentityStore(ctx context.Context, config *Config) store.IdentityStore {
	if config.MongoURL == "" {
		log.Println("MONGO_URL not set, using in-memory identity store")
		return store.NewMemoryStore()
	}
	mongoStore, err := store.NewMongoStore(ctx, config.MongoURL)
	if err != nil {
		log.Printf("Warning: MongoDB connection failed: %v", err)
		log.Println("Falling back to in-memory identity store")
		return store.NewMemoryStore()
	}
	log.Println("Connected to MongoDB identity store")
	return mongoStore
}

// Start begins the gateway service with HTTP server and queue processing.
func (gs *GatewayService) Start() error {
	log.Println("Starting zkLogin Gateway Service")

	// Create and start HTTP server in a goroutine
	go func() {
		log.Printf("Starting HTTP server on port %d", gs.config.HTTPPort)
		if err := gs.httpServer.Start(gs.client); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Start queue server with graceful shutdown support
	go func() {
		if err := gs.queueManager.Run(); err != nil {
			log.Printf("Asynq server error: %v", err)
			gs.cancel()
		}
	}()

	// Wait for shutdown signal
	select {
	case <-gs.sigCh:
		log.Println("Received shutdown signal, initiating graceful shutdown...")
	case <-gs.ctx.Done():
		log.Println("Context cancelled, shutting down...")
	}

	return nil
}

// Shutdown gracefully stops all service components.
func (gs *GatewayService) Shutdown() {
	log.Println("Shutting down gateway service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gs.config.ShutdownTimeout)
	defer cancel()

	if err := gs.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if gs.client != nil {
		gs.client.Close()
	}

	if gs.queueManager != nil {
		gs.queueManager.Shutdown()
	}

	if mongoStore, ok := gs.identity.(*store.MongoStore); ok {
		if err := mongoStore.Disconnect(shutdownCtx); err != nil {
			log.Printf("MongoDB disconnect error: %v", err)
		}
	}

	gs.cancel()

	log.Println("Gateway service stopped")
}
