package presence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/models"
)

// requires Redis on localhost:6379, skipped otherwise
const testRedisAddr = "localhost:6379"

func setupRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}

	namespace := fmt.Sprintf("presence-test-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, namespace+":*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})
	return NewRedisStore(client, namespace)
}

func TestRedisStoreUpdateAndList(t *testing.T) {
	store := setupRedisStore(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.Get(ctx, 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	prev, next, written, err := store.Update(ctx, 1, func(cur models.PresenceState, found bool) (models.PresenceState, bool) {
		assert.False(t, found)
		return models.PresenceState{Status: models.StatusOnline, LastActivityAt: at}, true
	})
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, models.PresenceStatus(""), prev.Status)
	assert.Equal(t, models.StatusOnline, next.Status)

	states, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, models.PresenceState{UserID: 1, Status: models.StatusOnline, LastActivityAt: at}, states[0])
}

func TestRedisStoreConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	store := setupRedisStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 1; i <= 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, _, err := store.Update(ctx, 7, func(cur models.PresenceState, _ bool) (models.PresenceState, bool) {
				candidate := base.Add(time.Duration(i) * time.Second)
				if candidate.After(cur.LastActivityAt) {
					cur.LastActivityAt = candidate
				}
				cur.Status = models.StatusOnline
				return cur, true
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	st, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, base.Add(5*time.Second), st.LastActivityAt)
}

func TestResetAllClearsRecordsLeftInRedis(t *testing.T) {
	store := setupRedisStore(t)
	ctx := context.Background()

	previous := NewEngine(store, nil, nil, time.Minute)
	require.NoError(t, previous.Connected(ctx, 11))
	require.NoError(t, previous.Connected(ctx, 12))
	_, err := previous.SetStatus(ctx, 12, models.StatusDoNotDisturb)
	require.NoError(t, err)

	restarted := NewEngine(store, nil, nil, time.Minute)
	reset, err := restarted.ResetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, reset)

	for _, id := range []int64{11, 12} {
		st, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusOffline, st.Status)
	}
}
