package largefiles

import (
	"bytes"
	"context"
	"path"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/aweris/largefiles/internal/remote"
	"github.com/aweris/largefiles/internal/server"
	"github.com/aweris/largefiles/internal/store"
	"github.com/aweris/largefiles/internal/wire"
)

type env struct {
	fs  afero.Fs
	out *bytes.Buffer
}

func newEnv() *env {
	return &env{fs: afero.NewMemMapFs(), out: &bytes.Buffer{}}
}

func (e *env) repo(t *testing.T, root string, opts ...Option) *Repo {
	t.Helper()
	require.NoError(t, e.fs.MkdirAll(root, 0o755))
	opts = append([]Option{WithFs(e.fs), WithOutput(e.out), WithConcurrency(2), WithAttempts(1)}, opts...)
	r, err := Open(root, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func (e *env) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(e.fs, name, []byte(content), 0o644))
}

func (e *env) exists(t *testing.T, name string) bool {
	t.Helper()
	ok, err := afero.Exists(e.fs, name)
	require.NoError(t, err)
	return ok
}

// objectPath is where a store rooted at root keeps hash.
func objectPath(root, hash string) string {
	return path.Join(root, "objects", hash[:2], hash[2:])
}

// remoteRepo is a largefile server with its own store, reached in-process.
type remoteRepo struct {
	fs    afero.Fs
	store *store.LocalStore
	srv   *server.Server
}

func newRemoteRepo(t *testing.T) *remoteRepo {
	t.Helper()
	fs := afero.NewMemMapFs()
	st, err := store.NewLocalStore(fs, store.WithName("remote"))
	require.NoError(t, err)
	return &remoteRepo{fs: fs, store: st, srv: server.New(st, server.WithName("remote"))}
}

func (r *remoteRepo) session(t *testing.T) *remote.WireStore {
	t.Helper()
	s := remote.NewWireStore(remote.NewInProcessTransport("remote", r.srv))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func (r *remoteRepo) damage(t *testing.T, hash string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(r.fs, r.store.Path(hash), []byte("damaged"), 0o644))
}

// spyStore counts puts and can flip bytes of the first n uploads.
type spyStore struct {
	RemoteStore

	mu     sync.Mutex
	puts   []string
	tamper int
}

func (s *spyStore) Put(ctx context.Context, hash string, data []byte) error {
	s.mu.Lock()
	s.puts = append(s.puts, hash)
	if s.tamper > 0 {
		s.tamper--
		data = append([]byte("x"), data...)
	}
	s.mu.Unlock()
	return s.RemoteStore.Put(ctx, hash, data)
}

func (s *spyStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts)
}

// plainServer is a repository without largefile support.
func plainServer(t *testing.T) RemoteStore {
	t.Helper()
	s := remote.NewWireStore(remote.NewInProcessTransport("http://plain", server.New(nil)))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var _ remote.Dispatcher = (*server.Server)(nil)

func standinBytes(hash string, size string) []byte {
	return []byte(hash + "\n" + size + "\n")
}

func caps(t *testing.T, rs RemoteStore) wire.Capabilities {
	t.Helper()
	c, err := rs.Capabilities(context.Background())
	require.NoError(t, err)
	return c
}
