package store

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aweris/largefiles/internal/blob"
)

func TestPromote(t *testing.T) {
	ctx := context.Background()

	cache, err := NewUserCache(afero.NewMemMapFs(), WithName("usercache"))
	require.NoError(t, err)
	repo, _ := setupStore(t)

	hash, err := cache.Put(ctx, large)
	require.NoError(t, err)

	data, err := cache.Promote(ctx, hash, repo)
	require.NoError(t, err)
	assert.Equal(t, large, data)

	got, err := repo.Get(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, large, got)
}

func TestPromoteMissing(t *testing.T) {
	ctx := context.Background()

	cache, err := NewUserCache(afero.NewMemMapFs())
	require.NoError(t, err)
	repo, _ := setupStore(t)

	_, err = cache.Promote(ctx, blob.Hash(small), repo)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPromoteCorrupt(t *testing.T) {
	ctx := context.Background()

	fs := afero.NewMemMapFs()
	cache, err := NewUserCache(fs)
	require.NoError(t, err)
	repo, _ := setupStore(t)

	hash, err := cache.Put(ctx, small)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, cache.Path(hash), []byte("bit rot"), 0644))

	_, err = cache.Promote(ctx, hash, repo)
	require.ErrorIs(t, err, ErrCorrupt)

	has, err := repo.Has(ctx, hash)
	require.NoError(t, err)
	assert.False(t, has, "corrupt cache entries must not reach the repository store")
}
