package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/aweris/largefiles/internal/blob"
	"github.com/aweris/largefiles/internal/compression"
)

const (
	objectsDir = "objects"
	stageDir   = ".put-stage"
)

// LocalStore implements Store on an afero filesystem.
//
// Storage layout:
//
//	root/
//	  objects/
//	    ab/cd123...  (content-addressed objects, optionally zstd framed)
//	  .put-stage/
//	    cd123...-*   (in-flight writes, renamed into objects/)
type LocalStore struct {
	fs         afero.Fs
	name       string
	compressor *compression.Compressor
	log        *zap.Logger
}

type options struct {
	name             string
	compression      bool
	compressionLevel int
	log              *zap.Logger
}

// Option configures a LocalStore.
type Option func(*options)

// WithName sets the label used in errors and logs.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithCompression enables zstd compression of new entries at the given level (1-3).
func WithCompression(level int) Option {
	return func(o *options) {
		o.compression = true
		o.compressionLevel = level
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// NewLocalStore opens a store rooted at the top of fsys.
func NewLocalStore(fsys afero.Fs, opts ...Option) (*LocalStore, error) {
	o := &options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	if o.name == "" {
		o.name = describe(fsys)
	}

	for _, dir := range []string{objectsDir, stageDir} {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	compressor, err := compression.NewCompressor(o.compressionLevel, o.compression)
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}

	return &LocalStore{
		fs:         fsys,
		name:       o.name,
		compressor: compressor,
		log:        o.log.With(zap.String("store", o.name)),
	}, nil
}

func (s *LocalStore) String() string { return s.name }

// Get retrieves an object by hash and verifies it.
func (s *LocalStore) Get(ctx context.Context, hash string) ([]byte, error) {
	if err := blob.Check(hash); err != nil {
		return nil, err
	}

	raw, err := afero.ReadFile(s.fs, s.objectPath(hash))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w: %s", s.name, ErrNotFound, hash)
		}
		return nil, fmt.Errorf("failed to read object %s: %w", hash, err)
	}

	data, err := s.decode(hash, raw)
	if err != nil {
		s.log.Warn("corrupt object", zap.String("hash", hash), zap.Error(err))
		return nil, err
	}
	return data, nil
}

// decode undoes compression and checks the hash. An entry stored raw may
// itself begin with a zstd frame, so the raw bytes are tried as well.
func (s *LocalStore) decode(hash string, raw []byte) ([]byte, error) {
	data, err := s.compressor.Decompress(raw)
	if err == nil && blob.Matches(hash, data) {
		return data, nil
	}
	if blob.Matches(hash, raw) {
		return raw, nil
	}

	actual := blob.Hash(raw)
	if err == nil {
		actual = blob.Hash(data)
	}
	return nil, &CorruptionError{Hash: hash, Actual: actual, Store: s.name}
}

// Put stores an object and returns its hash.
func (s *LocalStore) Put(ctx context.Context, data []byte) (string, error) {
	hash := blob.Hash(data)
	if err := s.write(hash, data, false); err != nil {
		return "", err
	}
	return hash, nil
}

func (s *LocalStore) PutHash(ctx context.Context, hash string, data []byte) error {
	if err := s.check(hash, data); err != nil {
		return err
	}
	return s.write(hash, data, false)
}

// Has checks if an object exists.
func (s *LocalStore) Has(ctx context.Context, hash string) (bool, error) {
	if err := blob.Check(hash); err != nil {
		return false, err
	}

	fi, err := s.fs.Stat(s.objectPath(hash))
	if err == nil {
		return !fi.IsDir(), nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Verify reads the object back and reports whether it hashes correctly.
// A missing object yields ErrNotFound.
func (s *LocalStore) Verify(ctx context.Context, hash string) (bool, error) {
	_, err := s.Get(ctx, hash)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrCorrupt):
		return false, nil
	default:
		return false, err
	}
}

func (s *LocalStore) Repair(ctx context.Context, hash string, data []byte) error {
	if err := s.check(hash, data); err != nil {
		return err
	}
	s.log.Info("repairing object", zap.String("hash", hash))
	return s.write(hash, data, true)
}

func (s *LocalStore) Hashes(ctx context.Context) ([]string, error) {
	var res []string
	err := afero.Walk(s.fs, objectsDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel := strings.TrimPrefix(filepath.ToSlash(p), "/")
		rel = strings.TrimPrefix(rel, objectsDir+"/")
		hash := strings.ReplaceAll(rel, "/", "")
		if blob.Valid(hash) {
			res = append(res, hash)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	return res, nil
}

// Path returns the filesystem path for an object hash, relative to the store root.
func (s *LocalStore) Path(hash string) string { return s.objectPath(hash) }

func (s *LocalStore) Close() error { return s.compressor.Close() }

func (s *LocalStore) check(hash string, data []byte) error {
	if err := blob.Check(hash); err != nil {
		return err
	}
	if actual := blob.Hash(data); actual != hash {
		return &CorruptionError{Hash: hash, Actual: actual, Store: s.name}
	}
	return nil
}

func (s *LocalStore) write(hash string, data []byte, replace bool) error {
	final := s.objectPath(hash)
	if !replace {
		if _, err := s.fs.Stat(final); err == nil {
			return nil
		}
	}

	tmp, err := afero.TempFile(s.fs, stageDir, hash+"-*")
	if err != nil {
		return fmt.Errorf("failed to stage object: %w", err)
	}
	// Name is not relative to s.fs when s.fs is a nested BasePathFs.
	tmpName := path.Join(stageDir, path.Base(tmp.Name()))

	_, err = tmp.Write(s.compressor.Compress(data))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to write object: %w", err)
	}

	if err := s.fs.MkdirAll(path.Dir(final), 0755); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := s.fs.Rename(tmpName, final); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to commit object: %w", err)
	}

	s.log.Debug("stored object", zap.String("hash", hash), zap.Int("size", len(data)))
	return nil
}

// objectPath returns the path for an object hash.
// Git-style sharding: objects/ab/cd123...
func (s *LocalStore) objectPath(hash string) string {
	if len(hash) < 2 {
		return path.Join(objectsDir, hash)
	}
	return path.Join(objectsDir, hash[:2], hash[2:])
}

func describe(fsys afero.Fs) string {
	const localfs = "localfs"
	if bp, ok := fsys.(*afero.BasePathFs); ok {
		if p, err := bp.RealPath(""); err == nil {
			return localfs + "@" + p
		}
	}
	return localfs
}
