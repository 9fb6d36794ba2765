// Package rediscache layers a Redis read-through cache over a snapshot
// provider. The engine is read-only over externally owned data, so the cache
// is safe to share across replicas: everyone observes the same serialized
// snapshot until the TTL lapses or the external system invalidates the key
// on write.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scopegate/scopegate/internal/domain/guardrail"
	"github.com/scopegate/scopegate/internal/domain/scope"
)

const (
	scopeKey     = "scopegate:snapshot:scope"
	guardrailKey = "scopegate:snapshot:guardrails"

	defaultTTL = 30 * time.Second
)

// SnapshotCache implements scope.Provider and guardrail.Provider by caching
// the inner providers' snapshots in Redis. Principal lookups pass through
// uncached: they are single-row reads and staleness there would undermine
// revocation.
type SnapshotCache struct {
	client     *redis.Client
	scopes     scope.Provider
	guardrails guardrail.Provider
	ttl        time.Duration
	logger     *slog.Logger
}

// Option configures a SnapshotCache.
type Option func(*SnapshotCache)

// WithTTL overrides the default 30s cache TTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *SnapshotCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger sets the logger for cache degradation events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *SnapshotCache) {
		c.logger = logger
	}
}

// New creates a snapshot cache over the given providers.
func New(client *redis.Client, scopes scope.Provider, guardrails guardrail.Provider, opts ...Option) *SnapshotCache {
	c := &SnapshotCache{
		client:     client,
		scopes:     scopes,
		guardrails: guardrails,
		ttl:        defaultTTL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the cached scope snapshot, falling back to the inner
// provider on miss or on any Redis failure. Redis being down degrades to
// uncached reads, never to denied requests.
func (c *SnapshotCache) Snapshot(ctx context.Context) (*scope.Snapshot, error) {
	data, err := c.client.Get(ctx, scopeKey).Bytes()
	if err == nil {
		var snap scope.Snapshot
		if err := json.Unmarshal(data, &snap); err == nil {
			return &snap, nil
		}
		c.logger.Warn("discarding undecodable cached scope snapshot")
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("scope snapshot cache read failed", "error", err)
	}

	snap, err := c.scopes.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, scopeKey, snap)
	return snap, nil
}

// Principal passes through to the inner provider.
func (c *SnapshotCache) Principal(ctx context.Context, id string) (*scope.Principal, error) {
	return c.scopes.Principal(ctx, id)
}

// Guardrails returns the cached guardrail set with the same fallback
// behavior as Snapshot.
func (c *SnapshotCache) Guardrails(ctx context.Context) (*guardrail.Set, error) {
	data, err := c.client.Get(ctx, guardrailKey).Bytes()
	if err == nil {
		var set guardrail.Set
		if err := json.Unmarshal(data, &set); err == nil {
			return &set, nil
		}
		c.logger.Warn("discarding undecodable cached guardrail set")
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("guardrail set cache read failed", "error", err)
	}

	set, err := c.guardrails.Guardrails(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, guardrailKey, set)
	return set, nil
}

// Invalidate drops both cached snapshots. The external system calls this
// (directly or via its own Redis DEL) after writing scope or guardrail data.
func (c *SnapshotCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, scopeKey, guardrailKey).Err(); err != nil {
		return fmt.Errorf("invalidate snapshot cache: %w", err)
	}
	return nil
}

func (c *SnapshotCache) store(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("snapshot cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("snapshot cache write failed", "key", key, "error", err)
	}
}

// Compile-time interface verification.
var (
	_ scope.Provider     = (*SnapshotCache)(nil)
	_ guardrail.Provider = (*SnapshotCache)(nil)
)
