// Package lock provides the lease-based distributed mutual exclusion used to
// arbitrate which instance runs a given firing.
package lock

import (
	"context"
	"time"
)

// Locker is a lease over a shared store. At most one live (holder, unexpired)
// lease exists per key at any instant; expiry is the only liveness mechanism
// when a holder dies without releasing.
type Locker interface {
	// Acquire sets key to this locker's marker with the given TTL, only if the
	// key is absent, in a single atomic operation. Returns whether this call
	// obtained the lease.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Renew extends key's expiry only while the stored value still matches this
	// locker's marker, in a single atomic operation. Returns false if the lease
	// expired or changed hands; a false renewal never touches the new holder's
	// expiry.
	Renew(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release deletes key unconditionally, without checking ownership. A slow
	// former holder can therefore delete a lease acquired by someone else in
	// the meantime; the short TTL bounds that window.
	Release(ctx context.Context, key string) error
}
