package seats

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"evently/internal/shared/constants"
	"evently/pkg/cache"
)

// MapCache is a read-through cache of an event's seat map, keyed off the
// Postgres rows that remain the system of record. It exists purely to take
// load off repeated seat-map reads; a cache miss or staleness never causes
// an incorrect booking decision because HoldGroup/BookHeldOrAvailable
// always re-read and re-validate seat rows inside the transaction.
//
// This generalizes the teacher's redis_atomic.go, which used Lua-scripted
// Redis keys as the primary seat-hold ledger; here Redis only ever mirrors
// state that Postgres already committed. The actual cache-aside mechanics
// (JSON marshal/unmarshal, miss detection) are the teacher's own
// pkg/cache.Service, not a redis client held directly.
type MapCache struct {
	svc cache.Service
	ttl time.Duration
}

func NewMapCache(client *redis.Client, ttl time.Duration) *MapCache {
	return &MapCache{svc: cache.NewService(client), ttl: ttl}
}

func mapCacheKey(eventID uuid.UUID) string {
	return constants.BuildSeatMapKey(eventID.String())
}

// Get returns the cached seat-map payload, or ok=false on a miss.
func (c *MapCache) Get(ctx context.Context, eventID uuid.UUID, out interface{}) (bool, error) {
	err := c.svc.Get(ctx, mapCacheKey(eventID), out)
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Set stores the seat-map payload with the cache's TTL.
func (c *MapCache) Set(ctx context.Context, eventID uuid.UUID, payload interface{}) error {
	return c.svc.Set(ctx, mapCacheKey(eventID), payload, c.ttl)
}

// Invalidate drops the cached seat map, called whenever SeatController
// commits a state transition for the event.
func (c *MapCache) Invalidate(ctx context.Context, eventID uuid.UUID) error {
	return c.svc.Delete(ctx, mapCacheKey(eventID))
}
