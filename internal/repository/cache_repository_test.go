package repository

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altavia-air/altavia-api/internal/models"
	appErrors "github.com/altavia-air/altavia-api/pkg/errors"
)

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCacheRepository(client, nil), mr
}

func TestCacheRoundTrip(t *testing.T) {
	repo, _ := newCacheRepo(t)
	ctx := context.Background()

	in := []models.Booking{{ID: "bk-1", Reference: "ALT4X9", SubjectID: "usr-1"}}
	require.NoError(t, repo.Set(ctx, "bookings:subject:usr-1", in, time.Minute))

	var out []models.Booking
	require.NoError(t, repo.Get(ctx, "bookings:subject:usr-1", &out))
	require.Len(t, out, 1)
	assert.Equal(t, "ALT4X9", out[0].Reference)
}

func TestCacheMiss(t *testing.T) {
	repo, _ := newCacheRepo(t)

	var out []models.Booking
	err := repo.Get(context.Background(), "bookings:subject:nobody", &out)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheExpiry(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "k", "v", time.Minute))
	mr.FastForward(2 * time.Minute)

	var out string
	err := repo.Get(ctx, "k", &out)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheInvalidate(t *testing.T) {
	repo, _ := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "k", "v", time.Minute))
	repo.Invalidate(ctx, "k")

	var out string
	err := repo.Get(ctx, "k", &out)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheNilClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	assert.NoError(t, repo.Set(ctx, "k", "v", time.Minute))

	var out string
	assert.ErrorIs(t, repo.Get(ctx, "k", &out), appErrors.ErrCacheMiss)
	repo.Invalidate(ctx, "k")
}
