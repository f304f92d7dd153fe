// Package remote implements the client side of largefile exchange with a
// remote repository.
//
// A remote store answers three questions: which of these hashes do you have
// (BatchStat), give me the bytes for a hash (Fetch), and keep these bytes
// (Put). Three backends are available:
//   - WireStore speaks the largefile wire commands over a Transport (HTTP or
//     in-process), batching stat queries when the peer advertises it.
//   - LocalStore reads and writes another repository's store directly, for
//     path remotes.
//   - OCIStore keeps each largefile as a tagged image in an OCI registry.
//
// Every fetched blob is re-hashed before it is returned.
package remote

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/aweris/largefiles/internal/store"
	"github.com/aweris/largefiles/internal/wire"
)

// Store is a remote largefile store.
type Store interface {
	String() string

	// Capabilities returns the capability set negotiated for this session.
	Capabilities(ctx context.Context) (wire.Capabilities, error)

	// BatchStat reports, for every distinct hash, whether the remote has it.
	BatchStat(ctx context.Context, hashes []string) (map[string]bool, error)

	// Fetch downloads and verifies a blob.
	Fetch(ctx context.Context, hash string) ([]byte, error)

	// Put uploads a blob; the remote verifies it independently.
	Put(ctx context.Context, hash string, data []byte) error

	Close() error
}

const (
	DefaultStatCacheSize = 4096
	// DefaultAttempts is how often callers of Retry try an upload.
	DefaultAttempts = 3
)

type options struct {
	log           *zap.Logger
	httpClient    *http.Client
	auth          Authenticator
	fs            afero.Fs
	statCacheSize int
}

// Option configures remote stores.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		log:           zap.NewNop(),
		httpClient:    http.DefaultClient,
		auth:          NewDefaultAuthenticator(),
		fs:            afero.NewOsFs(),
		statCacheSize: DefaultStatCacheSize,
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithAuth sets registry credentials for OCI remotes.
func WithAuth(a Authenticator) Option {
	return func(o *options) {
		if a != nil {
			o.auth = a
		}
	}
}

// WithFs sets the filesystem path remotes are resolved on.
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		if fs != nil {
			o.fs = fs
		}
	}
}

// WithStatCacheSize bounds the number of positive stat results remembered per session.
func WithStatCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.statCacheSize = n
		}
	}
}

// Open connects to the remote named by url:
// http(s)://... speaks the wire protocol, oci://registry/repo uses a registry,
// file://path or a plain path reads the other repository's store directly.
func Open(ctx context.Context, url string, opts ...Option) (Store, error) {
	o := newOptions(opts)

	switch {
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		t, err := NewHTTPTransport(url, o.httpClient)
		if err != nil {
			return nil, err
		}
		s := NewWireStore(t, opts...)
		if err := s.Connect(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil

	case strings.HasPrefix(url, "oci://"):
		s, err := NewOCIStore(strings.TrimPrefix(url, "oci://"), opts...)
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		s, err := NewLocalStore(filepath.Clean(strings.TrimPrefix(url, "file://")), opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func newOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func notFound(remote, hash string) error {
	return fmt.Errorf("%s: %w: %s", remote, store.ErrNotFound, hash)
}
