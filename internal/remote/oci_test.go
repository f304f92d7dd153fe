package remote

import (
	"context"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-containerregistry/pkg/registry"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aweris/largefiles/internal/blob"
	"github.com/aweris/largefiles/internal/store"
)

func newRegistry(t *testing.T) string {
	t.Helper()
	hs := httptest.NewServer(registry.New(registry.Logger(log.New(io.Discard, "", 0))))
	t.Cleanup(hs.Close)
	return strings.TrimPrefix(hs.URL, "http://") + "/test/largefiles"
}

func TestOCIStore(t *testing.T) {
	ctx := context.Background()
	repo := newRegistry(t)

	rs, err := Open(ctx, "oci://"+repo)
	require.NoError(t, err)
	defer rs.Close()
	assert.Equal(t, "oci://"+repo, rs.String())

	caps, err := rs.Capabilities(ctx)
	require.NoError(t, err)
	assert.True(t, caps.ServesLargefiles())

	res, err := rs.BatchStat(ctx, []string{c1Hash})
	require.NoError(t, err)
	assert.False(t, res[c1Hash])

	var rej *StoreRejectedError
	require.ErrorAs(t, rs.Put(ctx, c1Hash, c2), &rej)
	require.NoError(t, rs.Put(ctx, c1Hash, c1))

	res, err = rs.BatchStat(ctx, []string{c1Hash, c2Hash, c1Hash})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{c1Hash: true, c2Hash: false}, res)

	data, err := rs.Fetch(ctx, c1Hash)
	require.NoError(t, err)
	assert.Equal(t, c1, data)

	_, err = rs.Fetch(ctx, c2Hash)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestOCIStoreMismatchedTag(t *testing.T) {
	ctx := context.Background()
	repo := newRegistry(t)

	rs, err := NewOCIStore(repo)
	require.NoError(t, err)

	// an image holding c2 pushed under c1's tag
	require.NoError(t, rs.Put(ctx, c2Hash, c2))
	img, err := rs.image(c1Hash, c2)
	require.NoError(t, err)
	require.NoError(t, writeImage(ctx, rs, c1Hash, img))

	_, err = rs.Fetch(ctx, c1Hash)
	var rce *RemoteCorruptionError
	require.ErrorAs(t, err, &rce)
	assert.Equal(t, c2Hash, rce.Actual)
}

func TestOCIStoreInvalidRepository(t *testing.T) {
	_, err := NewOCIStore("UPPER/case")
	require.Error(t, err)
}

func writeImage(ctx context.Context, rs *OCIStore, tag string, img v1.Image) error {
	return remote.Write(rs.repo.Tag(tag), img, rs.remoteOptions(ctx)...)
}

func TestOCIStoreCompressesLargeBlobs(t *testing.T) {
	ctx := context.Background()
	rs, err := NewOCIStore(newRegistry(t))
	require.NoError(t, err)
	defer rs.Close()

	big := []byte(strings.Repeat("compressible largefile content\n", 1000))
	hash := blob.Hash(big)
	require.NoError(t, rs.Put(ctx, hash, big))

	img, err := remote.Image(rs.repo.Tag(hash), rs.remoteOptions(ctx)...)
	require.NoError(t, err)
	layers, err := img.Layers()
	require.NoError(t, err)
	require.Len(t, layers, 1)
	mt, err := layers[0].MediaType()
	require.NoError(t, err)
	assert.Equal(t, types.OCILayerZStd, mt)
	size, err := layers[0].Size()
	require.NoError(t, err)
	assert.Less(t, size, int64(len(big)))

	data, err := rs.Fetch(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, big, data)
}
