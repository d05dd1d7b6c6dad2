// Package store provides the durable identity store behind the zkLogin
// gateway: per-identity salt records keyed by (issuer, subject, audience) and
// the association between platform user accounts and derived addresses. Both
// follow create-if-absent, return-existing semantics; records are never
// updated in place.
package store

import (
	"context"
	"time"
)

// SaltRecord is one per-identity salt. A salt is created lazily on first
// authentication for an identity triple and must never change afterwards:
// address derivation is only stable while the salt is stable.
type SaltRecord struct {
	Issuer    string    `bson:"issuer" json:"issuer"`
	Subject   string    `bson:"subject" json:"subject"`
	Audience  string    `bson:"audience" json:"audience"`
	Salt      string    `bson:"salt" json:"salt"`
	UserID    string    `bson:"user_id,omitempty" json:"user_id,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// AddressRecord associates a platform user account with its derived address.
type AddressRecord struct {
	UserID    string    `bson:"user_id" json:"user_id"`
	Address   string    `bson:"address" json:"address"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// IdentityStore is the persistence boundary the gateway depends on. An
// implementation must make GetOrCreateSalt conditional: when a record for the
// triple already exists, the stored salt wins and the candidate is discarded.
type IdentityStore interface {
	// GetOrCreateSalt inserts the candidate record if no salt exists for its
	// identity triple, and returns the stored salt either way. The boolean
	// reports whether the candidate was inserted.
	GetOrCreateSalt(ctx context.Context, candidate SaltRecord) (string, bool, error)

	// AssociateAddress records the user's derived address. Writing the same
	// association twice is a no-op.
	AssociateAddress(ctx context.Context, record AddressRecord) error

	// AddressForUser returns the stored address association for a platform
	// user, or ErrNotFound.
	AddressForUser(ctx context.Context, userID string) (string, error)
}
