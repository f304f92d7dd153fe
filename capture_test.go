package largefiles

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aweris/largefiles/internal/blob"
)

func TestCapture(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	r := e.repo(t, "/repo", WithMinSize(10), WithPatterns("**/*.bin"), WithUserCache("/cache"))
	e.write(t, "/repo/small.txt", "tiny")
	e.write(t, "/repo/big.txt", "0123456789abcdef")
	e.write(t, "/repo/assets/logo.bin", "png")

	rev, err := r.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"assets/logo.bin", "big.txt"}, rev.Paths())

	for _, p := range rev.Paths() {
		ptr := rev.Standins[p]
		data, err := r.store.Get(ctx, ptr.Hash)
		require.NoError(t, err)
		assert.True(t, ptr.Matches(data))

		has, err := r.cache.Has(ctx, ptr.Hash)
		require.NoError(t, err)
		assert.True(t, has, "captured content also goes to the user cache")
	}

	got, err := r.Standins(ctx)
	require.NoError(t, err)
	assert.Equal(t, rev.Standins, got.Standins)

	ds, err := r.loadDirstate()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"assets/logo.bin": blob.Hash([]byte("png")),
		"big.txt":         blob.Hash([]byte("0123456789abcdef")),
	}, ds.Files)
}

func TestCaptureKeepsTrackedFiles(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	r := e.repo(t, "/repo", WithPatterns("*.bin"))
	e.write(t, "/repo/a.bin", "v1")
	_, err := r.Capture(ctx)
	require.NoError(t, err)

	// dropping the pattern does not untrack the file
	r.classifier = Classifier{}
	e.write(t, "/repo/a.bin", "v2")
	rev, err := r.Capture(ctx, "a.bin")
	require.NoError(t, err)
	assert.Equal(t, blob.Hash([]byte("v2")), rev.Standins["a.bin"].Hash)
}

func TestCaptureRejectsStandins(t *testing.T) {
	e := newEnv()
	r := e.repo(t, "/repo")
	_, err := r.Capture(context.Background(), ".hglf/x")
	require.Error(t, err)
}

func TestStandinsMalformed(t *testing.T) {
	e := newEnv()
	r := e.repo(t, "/repo")
	e.write(t, "/repo/.hglf/f1", "not a pointer\n")

	_, err := r.Standins(context.Background())
	require.ErrorIs(t, err, ErrFormat)
	assert.Contains(t, err.Error(), ".hglf/f1")
}

func TestStandinsEmpty(t *testing.T) {
	e := newEnv()
	r := e.repo(t, "/repo")
	rev, err := r.Standins(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rev.Standins)

	ok, err := afero.DirExists(e.fs, "/repo/.largefiles/objects")
	require.NoError(t, err)
	assert.True(t, ok)
}
