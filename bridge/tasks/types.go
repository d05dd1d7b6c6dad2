// Package tasks provides asynchronous identity-persistence tasks for the
// gateway. Salt and address writes that failed during a login are retried
// here until the durable store accepts them.
package tasks

import "time"

const KTaskTimeout = 20 * time.Second

// A list of identity task types.
const (
	TypeSaltPersist      = "identity:salt:persist"      // Retry a degraded salt write
	TypeAddressAssociate = "identity:address:associate" // Retry a degraded address association
)
