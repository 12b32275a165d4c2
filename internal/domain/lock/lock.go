// Package lock defines the distributed-locking primitive shared by the
// Refund Manager and Worker Pipeline (L1 in the component table): every
// mutation of a refund acquires a lease-bound lock on "refund:{refundId}"
// before applying its change.
package lock

import (
	"context"
	"time"

	"github.com/erp/refundengine/internal/domain/shared"
)

// ErrLockTimeout is returned by Acquire when bounded retry with jitter is
// exhausted without obtaining the lock.
var ErrLockTimeout = shared.NewDomainError("LOCK_TIMEOUT", "could not acquire lock before retry ceiling")

// ErrLockLost is returned by a holder's Release/Extend once another
// acquirer has taken over the key after the lease expired.
var ErrLockLost = shared.NewDomainError("LOCK_LOST", "lock lease expired and was taken by another holder")

// Token identifies a held lease; it is opaque to callers.
type Token string

// Locker provides lease-based mutual exclusion across processes.
//
// Lease extension is mandatory once 50% of the lease has elapsed if the
// holder has not finished; a holder that lets the lease expire without
// extending risks ErrLockLost on its next Release or Extend call.
type Locker interface {
	// Acquire blocks (with bounded retry and jitter) until the lock is
	// obtained or ctx/the retry ceiling is exhausted, returning
	// ErrLockTimeout in the latter case.
	Acquire(ctx context.Context, key string, lease time.Duration) (Token, error)

	// Extend renews the lease for an already-held token. Returns
	// ErrLockLost if the lease already passed to another holder.
	Extend(ctx context.Context, key string, token Token, lease time.Duration) error

	// Release gives up the lock. Idempotent: releasing an already-released
	// or superseded token is not an error.
	Release(ctx context.Context, key string, token Token) error
}

// RetryConfig bounds Acquire's contention-resolution behavior.
type RetryConfig struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
}

// DefaultRetryConfig is the same small-base-delay, capped-ceiling, jittered
// backoff shape used elsewhere (queue retry, gateway retry).
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  8,
		BaseDelay:    50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		JitterFactor: 0.2,
	}
}
