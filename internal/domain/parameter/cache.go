package parameter

import (
	"context"
	"time"
)

// DefaultCacheTTL is T from 4.C1: cache entries are valid for 300s.
const DefaultCacheTTL = 300 * time.Second

// Cache is a read-through, write-around cache of resolved
// (name, merchantId) -> Value, hierarchy-aware for invalidation.
type Cache interface {
	// Get returns the cached value and true, or the zero Value and false
	// on a cache miss.
	Get(ctx context.Context, name, merchantID string) (Value, ResolvedSource, bool, error)

	// Set populates the cache after a resolve() miss.
	Set(ctx context.Context, name, merchantID string, value Value, source ResolvedSource, ttl time.Duration) error

	// InvalidateName drops every cached entry for name across all
	// merchants: 4.C1 requires a write at any level to pattern-delete
	// every cache entry sharing that name.
	InvalidateName(ctx context.Context, name string) error

	Close() error
}

// ResolvedSource is the hierarchy level (or DEFAULT) that produced a
// resolved value, returned alongside it per resolve()'s contract.
type ResolvedSource string

const (
	SourceMerchant     ResolvedSource = "MERCHANT"
	SourceOrganization ResolvedSource = "ORGANIZATION"
	SourceBank         ResolvedSource = "BANK"
	SourceProgram      ResolvedSource = "PROGRAM"
	SourceDefault      ResolvedSource = "DEFAULT"
)
