// Package constants centralizes Redis key-building conventions shared
// across cache-backed components. Trimmed from the teacher's own
// redis_cache.go, which also carried key/TTL tables for tags, venues,
// analytics, auth and cancellation — modules this repo doesn't build (see
// DESIGN.md's dropped-packages ledger); only the events/seats domain this
// repo actually implements is kept.
package constants

// CACHE_PREFIX namespaces every Redis key this service writes.
const CACHE_PREFIX = "evently"

// CACHE_KEY_SEAT_MAP_PREFIX + eventID is the cache key for an event's seat
// map, consumed by internal/seats.MapCache.
const CACHE_KEY_SEAT_MAP_PREFIX = CACHE_PREFIX + ":seats:map:event:"

// BuildSeatMapKey constructs the Redis key for an event's cached seat map.
func BuildSeatMapKey(eventID string) string {
	return CACHE_KEY_SEAT_MAP_PREFIX + eventID
}
