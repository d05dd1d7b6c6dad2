package prover

import (
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/suilotto/zkgateway/crypto/zklogin"
)

// DefaultCacheCapacity bounds the number of cached proofs held at once.
const DefaultCacheCapacity = 1024

// Cache is a TTL-bounded, capacity-bounded proof cache keyed by input
// fingerprint. Entries are immutable once written: there is no update path,
// only creation and expiry-on-read. The cache is an optimization, not a
// source of truth; losing it on restart is acceptable.
type Cache struct {
	inner *ttlcache.Cache[string, *zklogin.Proof]
}

// NewCache creates a proof cache whose entries expire ttl after the original
// write. Reads do not extend entry lifetime.
func NewCache(ttl time.Duration, capacity uint64) *Cache {
	return &Cache{
		inner: ttlcache.New[string, *zklogin.Proof](
			ttlcache.WithTTL[string, *zklogin.Proof](ttl),
			ttlcache.WithCapacity[string, *zklogin.Proof](capacity),
			ttlcache.WithDisableTouchOnHit[string, *zklogin.Proof](),
		),
	}
}

// Get returns a copy of the cached proof for the fingerprint, marked as a
// cache hit. Expired entries read as misses.
func (c *Cache) Get(fingerprint string) (*zklogin.Proof, bool) {
	item := c.inner.Get(fingerprint)
	if item == nil {
		return nil, false
	}
	proof := item.Value().Clone()
	proof.Cached = true
	return proof, true
}

// Set stores a proof under the fingerprint. The stored copy never carries the
// cache-hit marker.
func (c *Cache) Set(fingerprint string, proof *zklogin.Proof) {
	stored := proof.Clone()
	stored.Cached = false
	c.inner.Set(fingerprint, stored, ttlcache.DefaultTTL)
}

// Len reports the number of live cache entries.
func (c *Cache) Len() int {
	return c.inner.Len()
}
