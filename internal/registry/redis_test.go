package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStoreRegisterAndConsume(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	rec := newRecord("subject-1", time.Hour)
	require.NoError(t, store.Register(ctx, rec))

	got, err := store.Consume(ctx, rec.TokenID)
	require.NoError(t, err)
	assert.Equal(t, rec.TokenID, got.TokenID)
	require.NotNil(t, got.LastUsedAt)

	// Consumption is one-shot.
	_, err = store.Consume(ctx, rec.TokenID)
	assert.ErrorIs(t, err, ErrRevoked)
}

func TestRedisStoreConcurrentConsumeSingleWinner(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	rec := newRecord("subject-1", time.Hour)
	require.NoError(t, store.Register(ctx, rec))

	const attempts = 32
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Consume(ctx, rec.TokenID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	winners := 0
	for err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrRevoked)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestRedisStoreDuplicateID(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	rec := newRecord("subject-1", time.Hour)
	require.NoError(t, store.Register(ctx, rec))
	assert.ErrorIs(t, store.Register(ctx, rec), ErrDuplicateID)
}

func TestRedisStoreConsumeUnknown(t *testing.T) {
	store, _ := newRedisStore(t)

	_, err := store.Consume(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreRevoke(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	rec := newRecord("subject-1", time.Hour)
	require.NoError(t, store.Register(ctx, rec))

	require.NoError(t, store.Revoke(ctx, rec.TokenID))
	require.NoError(t, store.Revoke(ctx, rec.TokenID))

	_, err := store.Consume(ctx, rec.TokenID)
	assert.ErrorIs(t, err, ErrRevoked)
}

func TestRedisStoreRecordExpiresWithTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	rec := newRecord("subject-1", time.Hour)
	require.NoError(t, store.Register(ctx, rec))

	mr.FastForward(2 * time.Hour)

	_, err := store.Consume(ctx, rec.TokenID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreRevokeAllForSubject(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	first := newRecord("subject-1", time.Hour)
	second := newRecord("subject-1", time.Hour)
	other := newRecord("subject-2", time.Hour)
	require.NoError(t, store.Register(ctx, first))
	require.NoError(t, store.Register(ctx, second))
	require.NoError(t, store.Register(ctx, other))

	revoked, err := store.RevokeAllForSubject(ctx, "subject-1")
	require.NoError(t, err)
	assert.Equal(t, 2, revoked)

	_, err = store.Consume(ctx, first.TokenID)
	assert.ErrorIs(t, err, ErrRevoked)
	_, err = store.Consume(ctx, second.TokenID)
	assert.ErrorIs(t, err, ErrRevoked)
	_, err = store.Consume(ctx, other.TokenID)
	assert.NoError(t, err)
}
