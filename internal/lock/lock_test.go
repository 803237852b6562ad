package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evently/internal/domain"
)

// fakeRedis is a minimal in-memory stand-in for the scripter interface —
// enough to exercise redisService's SET NX and Lua compare-and-delete
// without a live Redis or miniredis, neither of which is wired into this
// module's dependency surface. Same role as memstore.MemStore for
// store.Store and notifytest.Recorder for notify.Publisher.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.data[key]; exists {
		cmd.SetVal(false)
		return cmd
	}
	f.data[key] = value.(string)
	cmd.SetVal(true)
	return cmd
}

// casDelete mirrors releaseScript: deletes key only if its stored value
// equals args[0], returning 1 on delete and 0 otherwise.
func (f *fakeRedis) casDelete(keys []string, args []interface{}) *redis.Cmd {
	cmd := redis.NewCmd(context.Background())
	f.mu.Lock()
	defer f.mu.Unlock()
	token, _ := args[0].(string)
	if f.data[keys[0]] == token {
		delete(f.data, keys[0])
		cmd.SetVal(int64(1))
	} else {
		cmd.SetVal(int64(0))
	}
	return cmd
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return f.casDelete(keys, args)
}
func (f *fakeRedis) EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	return f.casDelete(keys, args)
}
func (f *fakeRedis) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return f.casDelete(keys, args)
}
func (f *fakeRedis) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	return f.casDelete(keys, args)
}
func (f *fakeRedis) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	cmd := redis.NewBoolSliceCmd(ctx)
	cmd.SetVal(make([]bool, len(hashes)))
	return cmd
}
func (f *fakeRedis) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	cmd.SetVal("")
	return cmd
}

func TestAcquireRelease_RoundTrip(t *testing.T) {
	svc := newService(newFakeRedis())
	ctx := context.Background()

	token, err := svc.Acquire(ctx, "seat:abc", time.Minute, 0)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, svc.Release(ctx, "seat:abc", token))

	_, err = svc.Acquire(ctx, "seat:abc", time.Minute, 0)
	assert.NoError(t, err, "released lock should be immediately re-acquirable")
}

func TestAcquire_SecondCallerBlockedWithoutWait(t *testing.T) {
	svc := newService(newFakeRedis())
	ctx := context.Background()

	_, err := svc.Acquire(ctx, "booking:evt:user", time.Minute, 0)
	require.NoError(t, err)

	_, err = svc.Acquire(ctx, "booking:evt:user", time.Minute, 0)
	require.Error(t, err)
	assert.Equal(t, domain.KindConcurrency, domain.KindOf(err))
}

// TestRelease_StaleTokenIsNoOp covers the scenario spec.md's design notes
// single out explicitly: a caller presenting a token that is not (or no
// longer) the current owner must not release the lock.
func TestRelease_StaleTokenIsNoOp(t *testing.T) {
	svc := newService(newFakeRedis())
	ctx := context.Background()

	ownerToken, err := svc.Acquire(ctx, "bulk_booking:evt-1", time.Minute, 0)
	require.NoError(t, err)

	require.NoError(t, svc.Release(ctx, "bulk_booking:evt-1", "forged-or-expired-token"))

	// The real owner's lock must still be held.
	_, err = svc.Acquire(ctx, "bulk_booking:evt-1", time.Minute, 0)
	require.Error(t, err)
	assert.Equal(t, domain.KindConcurrency, domain.KindOf(err))

	// The true owner can still release with its own token.
	require.NoError(t, svc.Release(ctx, "bulk_booking:evt-1", ownerToken))
	_, err = svc.Acquire(ctx, "bulk_booking:evt-1", time.Minute, 0)
	assert.NoError(t, err)
}

func TestWithLock_RunsFnWhenLockUnavailable(t *testing.T) {
	svc := newService(newFakeRedis())
	ctx := context.Background()

	_, err := svc.Acquire(ctx, "k", time.Minute, 0)
	require.NoError(t, err)

	ran := false
	err = WithLock(ctx, svc, "k", time.Minute, 0, func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran, "lock being held must never block the wrapped operation")
}

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "booking:e1:u1", BookingKey("e1", "u1"))
	assert.Equal(t, "bulk_booking:e1", BulkBookingKey("e1"))
	assert.Equal(t, "seat:s1", SeatKey("s1"))
}
