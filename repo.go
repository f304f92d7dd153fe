package largefiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/aweris/largefiles/internal/remote"
	"github.com/aweris/largefiles/internal/standin"
	"github.com/aweris/largefiles/internal/store"
)

// Pointer is the hash and size a standin records for one largefile.
type Pointer = standin.Pointer

// RemoteStore is a remote largefile store session.
type RemoteStore = remote.Store

// Revision is the set of largefiles tracked by one revision, keyed by
// slash-separated working copy path.
type Revision struct {
	ID       string
	Standins map[string]Pointer
}

// Paths returns the tracked paths in order.
func (r Revision) Paths() []string {
	paths := make([]string, 0, len(r.Standins))
	for p := range r.Standins {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (r Revision) label(p string) string {
	if r.ID == "" {
		return p
	}
	return r.ID + ":" + p
}

// Repo is a working copy with its largefile store.
type Repo struct {
	root string
	base afero.Fs
	wc   afero.Fs

	store *store.LocalStore
	cache *store.UserCache

	classifier  Classifier
	concurrency int
	attempts    int
	auth        Authenticator

	out io.Writer
	log *zap.Logger
}

// Open opens the working copy at root. The largefile store in
// root/.largefiles is created when missing.
func Open(root string, opts ...Option) (*Repo, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	classifier := Classifier{MinSize: o.MinSize, Patterns: o.Patterns}
	if err := classifier.Validate(); err != nil {
		return nil, err
	}

	root = filepath.Clean(root)
	if fi, err := o.Fs.Stat(root); err != nil {
		return nil, fmt.Errorf("open working copy: %w", err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("open working copy: %s is not a directory", root)
	}

	wc := afero.NewBasePathFs(o.Fs, root)
	storeOpts := []store.Option{
		store.WithName(filepath.Join(root, store.RepoDir)),
		store.WithLogger(o.Logger),
	}
	if o.Compression > 0 {
		storeOpts = append(storeOpts, store.WithCompression(o.Compression))
	}
	if err := wc.MkdirAll(store.RepoDir, 0o755); err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}
	st, err := store.NewLocalStore(afero.NewBasePathFs(wc, store.RepoDir), storeOpts...)
	if err != nil {
		return nil, err
	}

	r := &Repo{
		root:        root,
		base:        o.Fs,
		wc:          wc,
		store:       st,
		classifier:  classifier,
		concurrency: o.Concurrency,
		attempts:    o.Attempts,
		auth:        o.Auth,
		out:         o.Output,
		log:         o.Logger.With(zap.String("repo", root)),
	}

	if o.UserCache != "" {
		fs := o.UserCacheFs
		if fs == nil {
			fs = o.Fs
		}
		if err := fs.MkdirAll(o.UserCache, 0o755); err != nil {
			return nil, fmt.Errorf("create user cache: %w", err)
		}
		cacheOpts := []store.Option{store.WithName(o.UserCache), store.WithLogger(o.Logger)}
		if o.Compression > 0 {
			cacheOpts = append(cacheOpts, store.WithCompression(o.Compression))
		}
		if r.cache, err = store.NewUserCache(afero.NewBasePathFs(fs, o.UserCache), cacheOpts...); err != nil {
			_ = st.Close()
			return nil, err
		}
	}
	return r, nil
}

func (r *Repo) Root() string { return r.root }

// Store is the repository's own largefile store.
func (r *Repo) Store() store.Store { return r.store }

// UserCache is the shared cache, nil when none is configured.
func (r *Repo) UserCache() *store.UserCache { return r.cache }

func (r *Repo) Classifier() Classifier { return r.classifier }

// OpenRemote connects to the largefile store at url (http(s)://, oci:// or a path).
func (r *Repo) OpenRemote(ctx context.Context, url string) (RemoteStore, error) {
	opts := []remote.Option{
		remote.WithLogger(r.log),
		remote.WithFs(r.base),
		remote.WithAuth(r.auth),
	}
	return remote.Open(ctx, url, opts...)
}

func (r *Repo) Close() error {
	var err error
	if r.cache != nil {
		err = r.cache.Close()
	}
	if cerr := r.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// fetch returns verified bytes for hash from the repository store, the user
// cache or rs, in that order. Bytes found further down are copied into the
// repository store and the cache.
//
// Corruption in the repository store is returned as is. A corrupt cache
// entry counts as a miss and is replaced once rs delivers good bytes.
func (r *Repo) fetch(ctx context.Context, hash string, rs RemoteStore) ([]byte, error) {
	data, err := r.store.Get(ctx, hash)
	if err == nil || !errors.Is(err, store.ErrNotFound) {
		return data, err
	}

	cacheCorrupt := false
	if r.cache != nil {
		data, err := r.cache.Promote(ctx, hash, r.store)
		switch {
		case err == nil:
			return data, nil
		case errors.Is(err, store.ErrCorrupt):
			r.log.Warn("corrupt user cache entry", zap.String("hash", hash), zap.Error(err))
			cacheCorrupt = true
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	if rs == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, hash)
	}
	data, err = rs.Fetch(ctx, hash)
	if err != nil {
		return nil, err
	}
	if err := r.store.PutHash(ctx, hash, data); err != nil {
		return nil, err
	}
	if r.cache != nil {
		put := r.cache.PutHash
		if cacheCorrupt {
			put = r.cache.Repair
		}
		if err := put(ctx, hash, data); err != nil {
			r.log.Warn("failed to cache largefile", zap.String("hash", hash), zap.Error(err))
		}
	}
	return data, nil
}

// local returns verified bytes held on this machine.
func (r *Repo) local(ctx context.Context, hash string) ([]byte, error) {
	return r.fetch(ctx, hash, nil)
}

// writeFile replaces a working copy file through a temp file and rename.
func (r *Repo) writeFile(name string, data []byte) error {
	dir := path.Dir(name)
	if err := r.wc.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := afero.TempFile(r.wc, dir, "."+path.Base(name)+"-*")
	if err != nil {
		return err
	}
	tmpName := path.Join(dir, path.Base(tmp.Name()))

	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = r.wc.Rename(tmpName, name)
	}
	if err != nil {
		_ = r.wc.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// readFile returns a working copy file, or nil and false when it is absent.
func (r *Repo) readFile(name string) ([]byte, bool, error) {
	data, err := afero.ReadFile(r.wc, name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (r *Repo) removeFile(name string) error {
	if err := r.wc.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// walk calls fn for every regular working copy file outside the standin
// and store directories.
func (r *Repo) walk(dir string, fn func(name string, size int64) error) error {
	return afero.Walk(r.wc, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		name := strings.TrimPrefix(filepath.ToSlash(p), "./")
		if info.IsDir() {
			switch name {
			case standin.Dir, store.RepoDir, ".hg", ".git":
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return fn(name, info.Size())
	})
}
