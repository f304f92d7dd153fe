package remote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync/atomic"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/aweris/largefiles/internal/blob"
	"github.com/aweris/largefiles/internal/store"
	"github.com/aweris/largefiles/internal/wire"
)

// LocalStore is a remote repository reachable as a path. Blobs move by
// reading and writing its largefile store directly, with the same checks a
// server would apply.
type LocalStore struct {
	path   string
	store  *store.LocalStore // nil when the repository has no largefile store
	log    *zap.Logger
	closed atomic.Bool
}

func NewLocalStore(path string, opts ...Option) (*LocalStore, error) {
	o := newOptions(opts)

	root := filepath.Join(path, store.RepoDir)
	fi, err := o.fs.Stat(root)
	switch {
	case err == nil && fi.IsDir():
	case err == nil || errors.Is(err, fs.ErrNotExist):
		if _, err := o.fs.Stat(path); err != nil {
			return nil, fmt.Errorf("open remote %s: %w", path, err)
		}
		return &LocalStore{path: path, log: o.log}, nil
	default:
		return nil, fmt.Errorf("open remote %s: %w", path, err)
	}

	st, err := store.NewLocalStore(afero.NewBasePathFs(o.fs, root),
		store.WithName(path),
		store.WithLogger(o.log),
	)
	if err != nil {
		return nil, fmt.Errorf("open remote %s: %w", path, err)
	}
	return &LocalStore{path: path, store: st, log: o.log.With(zap.String("remote", path))}, nil
}

func (s *LocalStore) String() string { return s.path }

func (s *LocalStore) Capabilities(ctx context.Context) (wire.Capabilities, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if s.store == nil {
		return wire.Capabilities{}, nil
	}
	return wire.Capabilities{
		wire.CapLargefiles: wire.LargefilesServe,
		wire.CapBatch:      "",
		wire.CapHash:       wire.HashSHA1,
	}, nil
}

func (s *LocalStore) BatchStat(ctx context.Context, hashes []string) (map[string]bool, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	result := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		if err := blob.Check(h); err != nil {
			return nil, err
		}
		if s.store == nil {
			result[h] = false
			continue
		}
		has, err := s.store.Has(ctx, h)
		if err != nil {
			return nil, &TransportError{Remote: s.path, Op: wire.CmdStat, Err: err}
		}
		result[h] = has
	}
	return result, nil
}

func (s *LocalStore) Fetch(ctx context.Context, hash string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := blob.Check(hash); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, notFound(s.path, hash)
	}

	data, err := s.store.Get(ctx, hash)
	if err != nil {
		var ce *store.CorruptionError
		switch {
		case errors.As(err, &ce):
			return nil, &RemoteCorruptionError{Remote: s.path, Hash: hash, Actual: ce.Actual}
		case errors.Is(err, store.ErrNotFound):
			return nil, notFound(s.path, hash)
		default:
			return nil, &TransportError{Remote: s.path, Op: wire.CmdGet, Err: err}
		}
	}
	return data, nil
}

func (s *LocalStore) Put(ctx context.Context, hash string, data []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := blob.Check(hash); err != nil {
		return err
	}
	if s.store == nil {
		return NotLargefileStore(s.path)
	}
	if !blob.Matches(hash, data) {
		return &StoreRejectedError{Remote: s.path, Hash: hash, Reason: "largefile contents do not match hash"}
	}

	if err := s.store.PutHash(ctx, hash, data); err != nil {
		return &TransportError{Remote: s.path, Op: wire.CmdPut, Err: err}
	}
	s.log.Debug("stored largefile", zap.String("hash", hash))
	return nil
}

func (s *LocalStore) Close() error {
	if s.closed.Swap(true) || s.store == nil {
		return nil
	}
	return s.store.Close()
}
