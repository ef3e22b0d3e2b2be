package flags

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // separate DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})
	return client
}

// forEachStore runs fn against the memory store and, when reachable, Redis.
func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("redis", func(t *testing.T) {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		store, err := NewRedisStore(setupTestRedis(t), logger)
		require.NoError(t, err)
		fn(t, store)
	})
}

func TestStore_Upsert(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		flag, err := store.Upsert(ctx, AirdropEnabled, true)
		require.NoError(t, err)
		assert.Equal(t, AirdropEnabled, flag.Key)
		assert.True(t, flag.Value)
		assert.NotZero(t, flag.UpdatedAt)

		got, err := store.Get(ctx, AirdropEnabled)
		require.NoError(t, err)
		assert.Equal(t, flag.Value, got.Value)
		assert.True(t, flag.UpdatedAt.Equal(got.UpdatedAt))

		time.Sleep(time.Millisecond)
		flag2, err := store.Upsert(ctx, AirdropEnabled, false)
		require.NoError(t, err)
		assert.True(t, flag2.UpdatedAt.After(flag.UpdatedAt))

		got, err = store.Get(ctx, AirdropEnabled)
		require.NoError(t, err)
		assert.False(t, got.Value)
	})
}

func TestStore_GetMissing(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		flag, err := store.Get(context.Background(), "nonexistent.flag")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, flag)
	})
}

func TestStore_Delete(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		_, err := store.Upsert(ctx, ContestsEnabled, true)
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, ContestsEnabled))
		_, err = store.Get(ctx, ContestsEnabled)
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, store.Delete(ctx, ContestsEnabled), ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, "bad:key"), ErrInvalidKey)
	})
}

func TestStore_UpdateRequiresExisting(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		_, err := store.Update(ctx, AirdropEnabled, false)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.Get(ctx, AirdropEnabled)
		assert.ErrorIs(t, err, ErrNotFound, "update must not create")

		_, err = store.Upsert(ctx, AirdropEnabled, true)
		require.NoError(t, err)
		f, err := store.Update(ctx, AirdropEnabled, false)
		require.NoError(t, err)
		assert.False(t, f.Value)
		assert.False(t, store.Enabled(ctx, AirdropEnabled, true))
	})
}

func TestStore_List(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		flags, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, flags)

		want := map[string]bool{"flag1": true, "flag2": false, "flag3": true}
		for key, value := range want {
			_, err := store.Upsert(ctx, key, value)
			require.NoError(t, err)
		}

		flags, err = store.List(ctx)
		require.NoError(t, err)
		require.Len(t, flags, 3)
		assert.Equal(t, "flag1", flags[0].Key)
		assert.Equal(t, "flag3", flags[2].Key)

		got := make(map[string]bool)
		for _, f := range flags {
			got[f.Key] = f.Value
		}
		assert.Equal(t, want, got)
	})
}

func TestStore_Enabled(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		assert.True(t, store.Enabled(ctx, DailyLoginEnabled, true), "unset flag uses default")
		assert.False(t, store.Enabled(ctx, DailyLoginEnabled, false))

		_, err := store.Upsert(ctx, DailyLoginEnabled, false)
		require.NoError(t, err)
		assert.False(t, store.Enabled(ctx, DailyLoginEnabled, true))

		assert.True(t, store.Enabled(ctx, "bad key", true), "invalid key uses default")
	})
}

func TestStore_Seed(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		_, err := store.Upsert(ctx, AirdropEnabled, false)
		require.NoError(t, err)

		require.NoError(t, store.Seed(ctx, Defaults))

		flags, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, flags, len(Defaults))

		assert.False(t, store.Enabled(ctx, AirdropEnabled, true), "seed keeps existing values")
		assert.True(t, store.Enabled(ctx, ContestsEnabled, false))
		assert.True(t, store.Enabled(ctx, DailyLoginEnabled, false))

		assert.ErrorIs(t, store.Seed(ctx, map[string]bool{"bad key": true}), ErrInvalidKey)
	})
}

func TestStore_ConcurrentOperations(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		const numGoroutines = 10
		const numOps = 50

		var wg sync.WaitGroup
		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOps; j++ {
					key := fmt.Sprintf("flag.%d.%d", id, j)
					value := (id+j)%2 == 0

					_, err := store.Upsert(ctx, key, value)
					assert.NoError(t, err)

					got, err := store.Get(ctx, key)
					if assert.NoError(t, err) {
						assert.Equal(t, value, got.Value)
					}
				}
			}(i)
		}
		wg.Wait()

		flags, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, flags, numGoroutines*numOps)
	})
}

func TestValidateKey(t *testing.T) {
	valid := []string{
		"simple.flag",
		"flag.with.dots",
		"flag123",
		"a",
		"daily_login.enabled",
		"very.long.flag.name.with.many.parts",
	}
	for _, key := range valid {
		assert.NoError(t, ValidateKey(key), "key %q should be valid", key)
	}

	invalid := []string{
		"",
		" ",
		"flag with spaces",
		"flag:with:colons",
		"flag\twith\ttabs",
		"flag\nwith\nnewlines",
	}
	for _, key := range invalid {
		err := ValidateKey(key)
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q should be invalid", key)
	}
}
