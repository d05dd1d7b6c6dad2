package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/suilotto/zkgateway/store"
)

// ╭─────────────────────────────────────────────────────────╮
// │                      Processor                          │
// ╰─────────────────────────────────────────────────────────╯

// IdentityProcessor implements asynq.Handler for identity persistence
// repairs. Both task types are idempotent against the backing store, so
// asynq's default retry policy is safe.
type IdentityProcessor struct {
	backend store.IdentityStore
}

// NewIdentityProcessor creates a processor writing to the given store.
func NewIdentityProcessor(backend store.IdentityStore) *IdentityProcessor {
	return &IdentityProcessor{backend: backend}
}

// ╭─────────────────────────────────────────────────────────╮
// │                      Payloads                           │
// ╰─────────────────────────────────────────────────────────╯

// SaltPersistPayload carries a salt record whose original write failed.
type SaltPersistPayload struct {
	Record store.SaltRecord `json:"record"`
}

// AddressAssociatePayload carries an address association whose original
// write failed.
type AddressAssociatePayload struct {
	Record store.AddressRecord `json:"record"`
}

// NewSaltPersistTask creates a salt repair task.
func NewSaltPersistTask(record store.SaltRecord) (*asynq.Task, error) {
	payload, err := json.Marshal(SaltPersistPayload{Record: record})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSaltPersist, payload), nil
}

// NewAddressAssociateTask creates an address repair task.
func NewAddressAssociateTask(record store.AddressRecord) (*asynq.Task, error) {
	payload, err := json.Marshal(AddressAssociatePayload{Record: record})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAddressAssociate, payload), nil
}

// ╭─────────────────────────────────────────────────────────╮
// │                      Handler                            │
// ╰─────────────────────────────────────────────────────────╯

// ProcessTask processes identity repair tasks.
func (processor *IdentityProcessor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	ctx, cancel := context.WithTimeout(ctx, KTaskTimeout)
	defer cancel()

	switch t.Type() {
	case TypeSaltPersist:
		var p SaltPersistPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
		}
		if _, _, err := processor.backend.GetOrCreateSalt(ctx, p.Record); err != nil {
			return err
		}
		log.Printf("Repaired salt record for issuer %s", p.Record.Issuer)
		return nil

	case TypeAddressAssociate:
		var p AddressAssociatePayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
		}
		if err := processor.backend.AssociateAddress(ctx, p.Record); err != nil {
			return err
		}
		log.Printf("Repaired address association for user %s", p.Record.UserID)
		return nil

	default:
		return fmt.Errorf("unexpected task type %s: %w", t.Type(), asynq.SkipRetry)
	}
}

// ╭─────────────────────────────────────────────────────────╮
// │                      Repair queue                       │
// ╰─────────────────────────────────────────────────────────╯

// AsynqRepairQueue adapts an asynq client to the store.RepairQueue interface.
// Enqueue failures are logged and dropped; a repair that cannot even be
// queued will be regenerated by the next login for the same identity.
type AsynqRepairQueue struct {
	client *asynq.Client
}

// NewAsynqRepairQueue creates a repair queue backed by the given client.
func NewAsynqRepairQueue(client *asynq.Client) *AsynqRepairQueue {
	return &AsynqRepairQueue{client: client}
}

// EnqueueSaltRepair implements store.RepairQueue.
func (q *AsynqRepairQueue) EnqueueSaltRepair(record store.SaltRecord) {
	task, err := NewSaltPersistTask(record)
	if err != nil {
		log.Printf("Failed to build salt repair task: %v", err)
		return
	}
	if _, err := q.client.Enqueue(task, asynq.Queue("critical")); err != nil {
		log.Printf("Failed to enqueue salt repair: %v", err)
	}
}

// EnqueueAddressRepair implements store.RepairQueue.
func (q *AsynqRepairQueue) EnqueueAddressRepair(record store.AddressRecord) {
	task, err := NewAddressAssociateTask(record)
	if err != nil {
		log.Printf("Failed to build address repair task: %v", err)
		return
	}
	if _, err := q.client.Enqueue(task); err != nil {
		log.Printf("Failed to enqueue address repair: %v", err)
	}
}
