package counter

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	numberOfGoroutines     int = 50
	operationsPerGoroutine int = 1000
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newRedisClient skips the test unless REDIS_ADDR points at a server.
func newRedisClient(t testing.TB) redis.UniversalClient {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR is not set")
	}
	cl := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        []string{addr},
		DialTimeout:  time.Second * 2,
		ReadTimeout:  time.Second * 2,
		WriteTimeout: time.Second * 2,
	})
	t.Cleanup(func() { cl.Close() })
	return cl
}

func eachBackend(t *testing.T, fn func(t *testing.T, c Counter)) {
	t.Run(string(BackendSync), func(t *testing.T) {
		fn(t, &SyncCounter{})
	})
	t.Run(string(BackendUber), func(t *testing.T) {
		fn(t, NewUberCounter())
	})
	t.Run(string(BackendRedis), func(t *testing.T) {
		cl := newRedisClient(t)
		ctx := context.Background()
		c, err := NewRedisCounter(ctx, cl, "counter-test:"+uuid.New().String())
		require.NoError(t, err)
		t.Cleanup(func() { c.Close(context.Background()) })
		fn(t, c)
	})
}

func TestCounter_Sequential(t *testing.T) {
	eachBackend(t, func(t *testing.T, c Counter) {
		ctx := context.Background()

		v, err := c.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), v)

		require.NoError(t, c.Increment(ctx))

		prev, err := c.GetAndIncrement(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), prev)

		prev, err = c.GetAndDecrement(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), prev)

		require.NoError(t, c.Decrement(ctx))
		require.NoError(t, c.Decrement(ctx))

		prev, err = c.GetAndDecrement(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(-1), prev)

		v, err = c.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(-2), v)
	})
}

func TestCounter_Concurrent(t *testing.T) {
	eachBackend(t, func(t *testing.T, c Counter) {
		ctx := context.Background()
		ops := operationsPerGoroutine
		if _, ok := c.(*RedisCounter); ok {
			ops = 100
		}

		var waitGroup sync.WaitGroup
		for i := 0; i < numberOfGoroutines; i++ {
			waitGroup.Add(2)

			go func() {
				defer waitGroup.Done()
				for n := 0; n < ops; n++ {
					assert.NoError(t, c.Increment(ctx))
				}
			}()

			go func() {
				defer waitGroup.Done()
				for n := 0; n < ops/2; n++ {
					_, err := c.GetAndDecrement(ctx)
					assert.NoError(t, err)
				}
			}()
		}

		waitGroup.Wait()

		v, err := c.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(numberOfGoroutines*(ops-ops/2)), v)
	})
}

func TestCounter_GetAndIncrementReturnsDistinctValues(t *testing.T) {
	eachBackend(t, func(t *testing.T, c Counter) {
		ctx := context.Background()
		const total = 2000

		seen := make([]bool, total)
		var mu sync.Mutex
		var waitGroup sync.WaitGroup
		for i := 0; i < 20; i++ {
			waitGroup.Add(1)
			go func() {
				defer waitGroup.Done()
				for n := 0; n < total/20; n++ {
					prev, err := c.GetAndIncrement(ctx)
					if !assert.NoError(t, err) {
						return
					}
					mu.Lock()
					assert.False(t, seen[prev], "value %d handed out twice", prev)
					seen[prev] = true
					mu.Unlock()
				}
			}()
		}
		waitGroup.Wait()

		for i, ok := range seen {
			assert.True(t, ok, "value %d never handed out", i)
		}
	})
}

func TestRedisCounter_StartsFromZeroAndCloseDeletesKey(t *testing.T) {
	cl := newRedisClient(t)
	ctx := context.Background()
	key := "counter-test:" + uuid.New().String()

	require.NoError(t, cl.Set(ctx, key, 42, 0).Err())

	c, err := NewRedisCounter(ctx, cl, key)
	require.NoError(t, err)
	assert.Equal(t, key, c.Key())

	v, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	require.NoError(t, c.Increment(ctx))
	require.NoError(t, c.Close(ctx))

	n, err := cl.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestParseBackend(t *testing.T) {
	for _, b := range Backends {
		got, err := ParseBackend(string(b))
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}

	_, err := ParseBackend("mutex")
	assert.ErrorContains(t, err, `"mutex"`)
}

func TestNewFactory(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates fresh counters per call", func(t *testing.T) {
		for _, b := range []Backend{BackendSync, BackendUber} {
			f, err := NewFactory(b)
			require.NoError(t, err)

			c1, release, err := f(ctx, "a")
			require.NoError(t, err)
			require.NoError(t, c1.Increment(ctx))
			require.NoError(t, release(ctx))

			c2, _, err := f(ctx, "b")
			require.NoError(t, err)
			v, err := c2.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(0), v, "backend %s", b)
		}
	})
	t.Run("Redis needs a client", func(t *testing.T) {
		_, err := NewFactory(BackendRedis)
		assert.ErrorIs(t, err, ErrNoRedisClient)
	})
	t.Run("Redis keys carry the prefix and trial id", func(t *testing.T) {
		cl := newRedisClient(t)
		f, err := NewFactory(BackendRedis, WithRedisClient(cl), WithKeyPrefix("factory-test"))
		require.NoError(t, err)

		id := uuid.New().String()
		c, release, err := f(ctx, id)
		require.NoError(t, err)
		defer release(ctx)

		assert.Equal(t, "factory-test:"+id, c.(*RedisCounter).Key())
	})
	t.Run("Rejects unknown backends", func(t *testing.T) {
		_, err := NewFactory(Backend("mutex"))
		assert.Error(t, err)
	})
}
