package parameter

import (
	"context"
	"time"

	"github.com/erp/refundengine/internal/domain/shared"
)

// ErrParameterUnknown is returned by Resolve when no Definition exists for
// the requested name and no effective record was found at any level.
var ErrParameterUnknown = shared.NewDomainError("PARAMETER_UNKNOWN", "no parameter definition or effective record found")

// entityIDFor maps a hierarchy level + merchant chain onto the entity
// id repository lookups key on.
func entityIDFor(level EntityType, merchantID, organizationID, bankID string) string {
	switch level {
	case EntityMerchant:
		return merchantID
	case EntityOrganization:
		return organizationID
	case EntityBank:
		return bankID
	default: // EntityProgram
		return "PROGRAM"
	}
}

func sourceFor(level EntityType) ResolvedSource {
	switch level {
	case EntityMerchant:
		return SourceMerchant
	case EntityOrganization:
		return SourceOrganization
	case EntityBank:
		return SourceBank
	default:
		return SourceProgram
	}
}

// ascendingSpecificity walks least specific to most specific, the order
// Resolve needs to detect an ancestor's overridable=false block before it
// would otherwise be shadowed by a more specific record.
var ascendingSpecificity = []EntityType{EntityProgram, EntityBank, EntityOrganization, EntityMerchant}

// Resolver implements resolve(name, merchantId) -> (value, source) from
// 4.C1, backed by a read-through Cache and a Repository of record/Definition
// storage.
type Resolver struct {
	repo     Repository
	cache    Cache
	chain    HierarchyProvider
	cacheTTL time.Duration
}

// NewResolver builds a Resolver. ttl defaults to DefaultCacheTTL when zero.
func NewResolver(repo Repository, cache Cache, chain HierarchyProvider, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Resolver{repo: repo, cache: cache, chain: chain, cacheTTL: ttl}
}

// Resolve returns the effective value and the level it came from.
func (r *Resolver) Resolve(ctx context.Context, name, merchantID string) (Value, ResolvedSource, error) {
	if v, src, ok, err := r.cache.Get(ctx, name, merchantID); err != nil {
		return Value{}, "", err
	} else if ok {
		return v, src, nil
	}

	organizationID, bankID, err := r.chain.Chain(ctx, merchantID)
	if err != nil {
		return Value{}, "", err
	}

	now := time.Now().UTC()
	var winner *Parameter
	var winnerSource ResolvedSource
	blocked := false

	for _, level := range ascendingSpecificity {
		if blocked {
			break
		}
		entityID := entityIDFor(level, merchantID, organizationID, bankID)
		rec, err := r.repo.FindEffective(ctx, name, level, entityID, now)
		if err != nil {
			return Value{}, "", err
		}
		if rec == nil || !rec.IsEffective(now) {
			continue
		}
		winner = rec
		winnerSource = sourceFor(level)
		if !rec.Overridable {
			blocked = true
		}
	}

	var value Value
	var source ResolvedSource
	if winner != nil {
		value = winner.Value
		source = winnerSource
	} else {
		def, err := r.repo.FindDefinition(ctx, name)
		if err != nil {
			return Value{}, "", err
		}
		if def == nil {
			return Value{}, "", ErrParameterUnknown
		}
		value = def.Default
		source = SourceDefault
	}

	if err := r.cache.Set(ctx, name, merchantID, value, source, r.cacheTTL); err != nil {
		return Value{}, "", err
	}
	return value, source, nil
}

// Write validates value against name's Definition rules and persists p,
// then invalidates every cached entry for name across all merchants
// (pattern delete, per 4.C1).
func (r *Resolver) Write(ctx context.Context, p *Parameter) error {
	def, err := r.repo.FindDefinition(ctx, p.Name)
	if err != nil {
		return err
	}
	if def == nil {
		return ErrParameterUnknown
	}
	if err := validateAgainstDefinition(p.Value, *def); err != nil {
		return err
	}
	if err := r.repo.Save(ctx, p); err != nil {
		return err
	}
	return r.cache.InvalidateName(ctx, p.Name)
}
