package bridge

import (
	"log"

	"github.com/hibiken/asynq"

	"github.com/suilotto/zkgateway/bridge/tasks"
	"github.com/suilotto/zkgateway/store"
)

// QueueManager handles Asynq server setup and task registration.
type QueueManager struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	config *Config
}

// NewQueueManager creates a new queue manager writing repairs to the given
// identity store.
func NewQueueManager(config *Config, backend store.IdentityStore) *QueueManager {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: config.RedisAddr},
		config.AsynqConfig,
	)

	mux := asynq.NewServeMux()
	registerTaskHandlers(mux, backend)

	return &QueueManager{
		server: srv,
		mux:    mux,
		config: config,
	}
}

// registerTaskHandlers registers the identity repair task handlers.
func registerTaskHandlers(mux *asynq.ServeMux, backend store.IdentityStore) {
	processor := tasks.NewIdentityProcessor(backend)
	mux.Handle(tasks.TypeSaltPersist, processor)
	mux.Handle(tasks.TypeAddressAssociate, processor)

	log.Printf("Identity repair task handlers registered")
}

// Run starts the Asynq server with the registered task handlers.
func (qm *QueueManager) Run() error {
	log.Printf("Starting Asynq task server with Redis at %s", qm.config.RedisAddr)
	return qm.server.Run(qm.mux)
}

// Shutdown gracefully shuts down the Asynq server.
func (qm *QueueManager) Shutdown() {
	qm.server.Shutdown()
}
