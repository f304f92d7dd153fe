package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aweris/largefiles/internal/store"
	"github.com/aweris/largefiles/internal/wire"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHTTPRoundTrip(t *testing.T) {
	ctx := context.Background()
	srv, st, _ := newServer(t)
	require.NoError(t, st.PutHash(ctx, c1Hash, c1))

	hs := httptest.NewServer(srv.Handler())
	defer hs.Close()

	rs, err := Open(ctx, hs.URL, WithHTTPClient(hs.Client()))
	require.NoError(t, err)
	defer rs.Close()

	ws, ok := rs.(*WireStore)
	require.True(t, ok)
	assert.Equal(t, StrategyBatched, ws.Strategy())

	res, err := rs.BatchStat(ctx, []string{c1Hash, c2Hash})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{c1Hash: true, c2Hash: false}, res)

	data, err := rs.Fetch(ctx, c1Hash)
	require.NoError(t, err)
	assert.Equal(t, c1, data)

	_, err = rs.Fetch(ctx, c2Hash)
	require.ErrorIs(t, err, store.ErrNotFound)

	var rej *StoreRejectedError
	require.ErrorAs(t, rs.Put(ctx, c2Hash, c3), &rej)
	require.NoError(t, rs.Put(ctx, c2Hash, c2))

	has, err := st.Has(ctx, c2Hash)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestHTTPNotLargefileStore(t *testing.T) {
	ctx := context.Background()
	hs := httptest.NewServer(newPlainHandler())
	defer hs.Close()

	rs, err := Open(ctx, hs.URL, WithHTTPClient(hs.Client()))
	require.NoError(t, err)
	defer rs.Close()

	caps, err := rs.Capabilities(ctx)
	require.NoError(t, err)
	assert.False(t, caps.ServesLargefiles())

	err = rs.Put(ctx, c1Hash, c1)
	require.ErrorIs(t, err, ErrCapability)
	assert.Contains(t, err.Error(), "does not appear to be a largefile store")
}

func newPlainHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cmd") == wire.CmdCapabilities {
			_, _ = w.Write([]byte("batch"))
			return
		}
		w.Header().Set(wire.HeaderCode, "5")
		w.WriteHeader(http.StatusUnprocessableEntity)
	})
}

func TestHTTPStatus(t *testing.T) {
	for name, tc := range map[string]struct {
		status int
		check  func(t *testing.T, err error)
	}{
		"unauthorized": {http.StatusUnauthorized, func(t *testing.T, err error) {
			var ae *AuthorizationError
			require.ErrorAs(t, err, &ae)
			assert.False(t, IsRetryable(err))
		}},
		"forbidden": {http.StatusForbidden, func(t *testing.T, err error) {
			var ae *AuthorizationError
			require.ErrorAs(t, err, &ae)
		}},
		"server error": {http.StatusBadGateway, func(t *testing.T, err error) {
			var te *TransportError
			require.ErrorAs(t, err, &te)
			assert.True(t, IsRetryable(err))
		}},
	} {
		t.Run(name, func(t *testing.T) {
			hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer hs.Close()

			_, err := Open(context.Background(), hs.URL, WithHTTPClient(hs.Client()))
			tc.check(t, err)
		})
	}
}

func TestHTTPTruncatedBlob(t *testing.T) {
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("cmd") {
		case wire.CmdCapabilities:
			_, _ = w.Write([]byte("largefiles=serve"))
		case wire.CmdGet:
			_, _ = w.Write([]byte("10\nc1\n"))
		}
	}))
	defer hs.Close()

	ctx := context.Background()
	rs, err := Open(ctx, hs.URL, WithHTTPClient(hs.Client()))
	require.NoError(t, err)
	defer rs.Close()

	_, err = rs.Fetch(ctx, c1Hash)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, wire.ErrTruncated)
}
