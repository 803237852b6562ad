// Package lock implements the named, time-bounded mutual-exclusion tokens
// used by BookingEngine to reduce retry pressure under contention. It is
// never required for correctness — the Store's version CAS is the sole
// guarantor of invariants — only for avoiding wasted transactional work.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"evently/internal/domain"
)

// releaseScript atomically checks ownership before deleting the key,
// mirroring the retrieved evently_booking_platform DistributedLock's Lua
// compare-and-delete and the teacher's own Lua-script preload pattern for
// seat holds.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`

// Service is the LockService abstraction. Tokens act as fencing
// identifiers: Release is a no-op unless the caller presents the token it
// was granted.
type Service interface {
	// Acquire sets an owner token for key if and only if unset, with
	// expiry ttl. If wait > 0 it polls (100ms interval) until acquisition
	// or wait elapses, returning ErrLockTimeout on deadline.
	Acquire(ctx context.Context, key string, ttl, wait time.Duration) (token string, err error)
	// Release deletes key iff the stored owner equals token.
	Release(ctx context.Context, key, token string) error
}

// scripter is the subset of *redis.Client redisService depends on,
// narrowed so a hand-rolled fake (see lock_test.go) can stand in for
// Redis in tests without a live server or miniredis, the same way
// memstore.MemStore and notifytest.Recorder stand in for the Store and
// Publisher.
type scripter interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

type redisService struct {
	client   scripter
	release  *redis.Script
	pollStep time.Duration
}

// New wraps a redis client as a LockService.
func New(client *redis.Client) Service {
	return newService(client)
}

func newService(client scripter) *redisService {
	return &redisService{
		client:   client,
		release:  redis.NewScript(releaseScript),
		pollStep: 100 * time.Millisecond,
	}
}

func (s *redisService) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", domain.Wrap(domain.ErrInternal, err)
	}

	deadline := time.Now().Add(wait)
	for {
		ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return "", domain.Wrap(domain.ErrServiceUnavailable, err)
		}
		if ok {
			return token, nil
		}
		if wait <= 0 || time.Now().After(deadline) {
			return "", domain.ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return "", domain.Wrap(domain.ErrLockTimeout, ctx.Err())
		case <-time.After(s.pollStep):
		}
	}
}

func (s *redisService) Release(ctx context.Context, key, token string) error {
	res, err := s.release.Run(ctx, s.client, []string{key}, token).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.Wrap(domain.ErrServiceUnavailable, err)
	}
	_ = res // 0 means the caller was not (or no longer) the owner; no-op
	return nil
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// WithLock acquires key best-effort (ignoring ErrLockTimeout, since the
// lock is only an optimization) and always calls fn; the lock is released
// on return regardless of fn's outcome.
func WithLock(ctx context.Context, svc Service, key string, ttl, wait time.Duration, fn func(ctx context.Context) error) error {
	token, err := svc.Acquire(ctx, key, ttl, wait)
	if err != nil {
		if domain.KindOf(err) == domain.KindConcurrency {
			return fn(ctx)
		}
		return err
	}
	defer func() { _ = svc.Release(ctx, key, token) }()
	return fn(ctx)
}

// Keys used by BookingEngine, per the external locking interface.
func BookingKey(eventID, userID string) string { return "booking:" + eventID + ":" + userID }
func BulkBookingKey(eventID string) string     { return "bulk_booking:" + eventID }
func SeatKey(seatID string) string             { return "seat:" + seatID }
