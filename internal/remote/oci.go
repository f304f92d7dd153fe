package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/google/go-containerregistry/pkg/v1/static"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"go.uber.org/zap"

	"github.com/aweris/largefiles/internal/blob"
	"github.com/aweris/largefiles/internal/compression"
	"github.com/aweris/largefiles/internal/wire"
)

const labelHash = "dev.largefiles.hash"

// OCIStore keeps largefiles in an OCI registry repository: every largefile
// is an image tagged with its hash, holding a single layer.
//
// Registries only check their own sha256 digests, so the SHA-1 check a
// largefile server would do on put happens here before upload. There is no
// batch command; stat is one HEAD request per hash.
type OCIStore struct {
	repo       name.Repository
	auth       Authenticator
	compressor *compression.Compressor
	log        *zap.Logger
}

// NewOCIStore creates a store from a repository reference (e.g., "ghcr.io/org/largefiles").
func NewOCIStore(repository string, opts ...Option) (*OCIStore, error) {
	o := newOptions(opts)
	repo, err := name.NewRepository(repository)
	if err != nil {
		return nil, fmt.Errorf("invalid repository %q: %w", repository, err)
	}
	c, err := compression.NewCompressor(2, true)
	if err != nil {
		return nil, err
	}
	return &OCIStore{
		repo:       repo,
		auth:       o.auth,
		compressor: c,
		log:        o.log.With(zap.String("remote", repo.String())),
	}, nil
}

func (r *OCIStore) String() string   { return "oci://" + r.repo.String() }
func (r *OCIStore) Registry() string { return r.repo.RegistryStr() }

func (r *OCIStore) Capabilities(ctx context.Context) (wire.Capabilities, error) {
	return wire.Capabilities{
		wire.CapLargefiles: wire.LargefilesServe,
		wire.CapHash:       wire.HashSHA1,
	}, nil
}

func (r *OCIStore) BatchStat(ctx context.Context, hashes []string) (map[string]bool, error) {
	result := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		if err := blob.Check(h); err != nil {
			return nil, err
		}
		if _, ok := result[h]; ok {
			continue
		}
		_, err := remote.Head(r.repo.Tag(h), r.remoteOptions(ctx)...)
		switch {
		case err == nil:
			result[h] = true
		case isStatus(err, http.StatusNotFound):
			result[h] = false
		default:
			return nil, r.translate(wire.CmdStat, err)
		}
	}
	return result, nil
}

func (r *OCIStore) Fetch(ctx context.Context, hash string) ([]byte, error) {
	if err := blob.Check(hash); err != nil {
		return nil, err
	}

	img, err := remote.Image(r.repo.Tag(hash), r.remoteOptions(ctx)...)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, notFound(r.String(), hash)
		}
		return nil, r.translate(wire.CmdGet, err)
	}

	layers, err := img.Layers()
	if err != nil {
		return nil, r.translate(wire.CmdGet, err)
	}
	if len(layers) != 1 {
		return nil, &RemoteCorruptionError{Remote: r.String(), Hash: hash}
	}

	data, err := r.layerData(layers[0])
	if err != nil {
		return nil, r.translate(wire.CmdGet, fmt.Errorf("read layer: %w", err))
	}

	if actual := blob.Hash(data); actual != hash {
		r.log.Warn("received corrupt largefile", zap.String("hash", hash), zap.String("actual", actual))
		return nil, &RemoteCorruptionError{Remote: r.String(), Hash: hash, Actual: actual}
	}
	return data, nil
}

func (r *OCIStore) Put(ctx context.Context, hash string, data []byte) error {
	if err := blob.Check(hash); err != nil {
		return err
	}
	if !blob.Matches(hash, data) {
		return &StoreRejectedError{Remote: r.String(), Hash: hash, Reason: "largefile contents do not match hash"}
	}

	img, err := r.image(hash, data)
	if err != nil {
		return fmt.Errorf("build image: %w", err)
	}

	if err := remote.Write(r.repo.Tag(hash), img, r.remoteOptions(ctx)...); err != nil {
		return r.translate(wire.CmdPut, err)
	}
	r.log.Debug("pushed largefile", zap.String("hash", hash), zap.Int("size", len(data)))
	return nil
}

func (r *OCIStore) Close() error { return r.compressor.Close() }

// image wraps data as a single-layer image labelled with its hash. The layer
// is zstd when that makes it smaller and raw otherwise.
func (r *OCIStore) image(hash string, data []byte) (v1.Image, error) {
	mt := types.OCIUncompressedLayer
	body := r.compressor.Compress(data)
	if len(body) < len(data) {
		mt = types.OCILayerZStd
	}

	img, err := mutate.AppendLayers(empty.Image, static.NewLayer(body, mt))
	if err != nil {
		return nil, err
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return nil, err
	}
	cfg = cfg.DeepCopy()
	cfg.Config.Labels = map[string]string{labelHash: hash}

	return mutate.ConfigFile(img, cfg)
}

// layerData returns the largefile bytes carried by l.
func (r *OCIStore) layerData(l v1.Layer) ([]byte, error) {
	mt, err := l.MediaType()
	if err != nil {
		return nil, err
	}
	rc, err := l.Compressed()
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(rc)
	if cerr := rc.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	if mt == types.OCILayerZStd {
		return r.compressor.Decompress(data)
	}
	return data, nil
}

func (r *OCIStore) remoteOptions(ctx context.Context) []remote.Option {
	options := []remote.Option{remote.WithContext(ctx)}
	if r.auth != nil {
		username, password, err := r.auth.Authenticate(r.Registry())
		if err == nil && username != "" {
			return append(options, remote.WithAuth(&authn.Basic{
				Username: username,
				Password: password,
			}))
		}
	}
	return append(options, remote.WithAuthFromKeychain(authn.DefaultKeychain))
}

func (r *OCIStore) translate(op string, err error) error {
	if isStatus(err, http.StatusUnauthorized) || isStatus(err, http.StatusForbidden) {
		return &AuthorizationError{Remote: r.String(), Err: err}
	}
	return &TransportError{Remote: r.String(), Op: op, Err: err}
}

func isStatus(err error, code int) bool {
	var terr *transport.Error
	return errors.As(err, &terr) && terr.StatusCode == code
}
