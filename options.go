package largefiles

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/aweris/largefiles/internal/remote"
)

// DefaultConcurrency is the number of blobs moved in parallel.
const DefaultConcurrency = 4

// Authenticator provides credentials for OCI registry remotes.
type Authenticator = remote.Authenticator

// Options configures a Repo.
type Options struct {
	// Fs holds the working copy and, unless UserCacheFs is set, the user cache.
	Fs          afero.Fs
	UserCache   string
	UserCacheFs afero.Fs

	// MinSize and Patterns decide which files are large.
	MinSize  int64
	Patterns []string

	Concurrency int
	Compression int
	Attempts    int
	Auth        Authenticator

	Logger *zap.Logger
	// Output receives progress and summary lines meant for the user.
	Output io.Writer
}

// Option is a functional option for configuring Open.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Fs:          afero.NewOsFs(),
		Concurrency: DefaultConcurrency,
		Attempts:    remote.DefaultAttempts,
		Logger:      zap.NewNop(),
		Output:      io.Discard,
	}
}

// WithFs sets the filesystem the repository lives on.
func WithFs(fs afero.Fs) Option {
	return func(o *Options) { o.Fs = fs }
}

// WithUserCache enables the machine-wide cache at dir.
func WithUserCache(dir string) Option {
	return func(o *Options) { o.UserCache = dir }
}

// WithUserCacheFs puts the user cache on a different filesystem than the repository.
func WithUserCacheFs(fs afero.Fs) Option {
	return func(o *Options) { o.UserCacheFs = fs }
}

// WithMinSize marks files of at least n bytes as large. n <= 0 disables the size rule.
func WithMinSize(n int64) Option {
	return func(o *Options) { o.MinSize = n }
}

// WithPatterns marks files matching any of the doublestar patterns as large.
func WithPatterns(patterns ...string) Option {
	return func(o *Options) { o.Patterns = append(o.Patterns, patterns...) }
}

// WithConcurrency sets the number of parallel transfers.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

// WithCompression zstd-compresses new store entries at level (1-3); 0 stores them raw.
func WithCompression(level int) Option {
	return func(o *Options) { o.Compression = level }
}

// WithAttempts sets how many times an upload is tried on transport failures.
func WithAttempts(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Attempts = n
		}
	}
}

// WithAuth sets custom registry authentication.
func WithAuth(auth Authenticator) Option {
	return func(o *Options) { o.Auth = auth }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func WithOutput(w io.Writer) Option {
	return func(o *Options) {
		if w != nil {
			o.Output = w
		}
	}
}

// DefaultUserCacheDir returns $XDG_CACHE_HOME/largefiles or ~/.cache/largefiles.
func DefaultUserCacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "largefiles")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "largefiles")
	}
	return ".largefiles-cache"
}
