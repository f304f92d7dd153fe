// Package server answers largefile wire commands from a repository's
// content store.
//
// Presence checks look at the store only. Reads are verified, so a damaged
// entry is reported as corrupt rather than served. Uploads are re-hashed and
// refused without touching the store when they do not match their claimed
// hash.
package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aweris/largefiles/internal/blob"
	"github.com/aweris/largefiles/internal/store"
	"github.com/aweris/largefiles/internal/wire"
)

// ErrUnsupported is returned for largefile commands on a repository without
// a largefile store.
var ErrUnsupported = errors.New("does not appear to be a largefile store")

// RejectedError is an upload refused after checking its content.
type RejectedError struct {
	Hash   string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("largefile %s rejected: %s", e.Hash, e.Reason)
}

const mismatch = "largefile contents do not match hash"

// DefaultMaxBlobSize bounds putlfile bodies accepted over HTTP.
const DefaultMaxBlobSize int64 = 4 << 30

// Server serves one repository. A nil store means the repository has no
// largefile support.
type Server struct {
	name    string
	store   store.Store
	cache   *store.UserCache
	maxBlob int64
	log     *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithUserCache also keeps accepted uploads in the user cache and serves
// reads the store cannot satisfy from it.
func WithUserCache(c *store.UserCache) Option {
	return func(s *Server) { s.cache = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxBlobSize limits the size of uploads received by Handler.
func WithMaxBlobSize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBlob = n
		}
	}
}

// WithName sets the repository name used in messages.
func WithName(name string) Option {
	return func(s *Server) { s.name = name }
}

func New(st store.Store, opts ...Option) *Server {
	s := &Server{store: st, log: zap.NewNop(), name: "repository", maxBlob: DefaultMaxBlobSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether the repository serves largefiles.
func (s *Server) Enabled() bool { return s.store != nil }

func (s *Server) Capabilities() wire.Capabilities {
	caps := wire.Capabilities{wire.CapBatch: ""}
	if s.Enabled() {
		caps[wire.CapLargefiles] = wire.LargefilesServe
		caps[wire.CapHash] = wire.HashSHA1
	}
	return caps
}

// Stat reports whether the store holds hash.
func (s *Server) Stat(ctx context.Context, hash string) (bool, error) {
	if err := blob.Check(hash); err != nil {
		return false, err
	}
	if !s.Enabled() {
		return false, nil
	}
	return s.store.Has(ctx, hash)
}

// StatBatch answers Stat for each hash.
func (s *Server) StatBatch(ctx context.Context, hashes []string) (map[string]bool, error) {
	res := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		ok, err := s.Stat(ctx, h)
		if err != nil {
			return nil, err
		}
		res[h] = ok
	}
	return res, nil
}

// GetBlob returns the verified bytes for hash.
func (s *Server) GetBlob(ctx context.Context, hash string) ([]byte, error) {
	if err := blob.Check(hash); err != nil {
		return nil, err
	}
	if !s.Enabled() {
		return nil, s.unsupported()
	}

	data, err := s.store.Get(ctx, hash)
	if err == nil || s.cache == nil || !errors.Is(err, store.ErrNotFound) {
		return data, err
	}
	return s.cache.Promote(ctx, hash, s.store)
}

// PutBlob checks data against hash and stores it. Nothing is written when
// the check fails.
func (s *Server) PutBlob(ctx context.Context, hash string, data []byte) error {
	if err := blob.Check(hash); err != nil {
		return err
	}
	if !s.Enabled() {
		return s.unsupported()
	}
	if !blob.Matches(hash, data) {
		s.log.Warn("rejected largefile", zap.String("hash", hash), zap.String("actual", blob.Hash(data)))
		return &RejectedError{Hash: hash, Reason: mismatch}
	}

	if err := s.store.PutHash(ctx, hash, data); err != nil {
		return fmt.Errorf("store largefile %s: %w", hash, err)
	}
	if s.cache != nil {
		if err := s.cache.PutHash(ctx, hash, data); err != nil {
			s.log.Warn("failed to cache largefile", zap.String("hash", hash), zap.Error(err))
		}
	}
	s.log.Debug("stored largefile", zap.String("hash", hash), zap.Int("size", len(data)))
	return nil
}

// Dispatch runs one wire command and returns its reply payload.
func (s *Server) Dispatch(ctx context.Context, cmd string, args []wire.Arg, body []byte) ([]byte, error) {
	switch cmd {
	case wire.CmdCapabilities:
		return []byte(s.Capabilities().String()), nil

	case wire.CmdStat:
		hash, err := hashArg(cmd, args)
		if err != nil {
			return nil, err
		}
		ok, err := s.Stat(ctx, hash)
		if err != nil {
			return nil, s.commandError(cmd, err)
		}
		if ok {
			return []byte(wire.StatPresent), nil
		}
		return []byte(wire.StatMissing), nil

	case wire.CmdBatch:
		return s.batch(ctx, args)

	case wire.CmdGet:
		hash, err := hashArg(cmd, args)
		if err != nil {
			return nil, err
		}
		data, err := s.GetBlob(ctx, hash)
		if err != nil {
			return nil, s.commandError(cmd, err)
		}
		return wire.EncodeBlob(data), nil

	case wire.CmdPut:
		hash, err := hashArg(cmd, args)
		if err != nil {
			return nil, err
		}
		err = s.PutBlob(ctx, hash, body)
		var rej *RejectedError
		if errors.As(err, &rej) {
			return wire.EncodePutReply(rej.Reason), nil
		}
		if err != nil {
			return nil, s.commandError(cmd, err)
		}
		return wire.EncodePutReply(""), nil

	default:
		return nil, &wire.CommandError{Cmd: cmd, Code: wire.CodeUnknownCommand, Message: "unknown command " + cmd}
	}
}

// batch runs body-less commands in order. The first failure fails the whole batch.
func (s *Server) batch(ctx context.Context, args []wire.Arg) ([]byte, error) {
	raw, _ := wire.Lookup(args, wire.ArgCmds)
	calls, err := wire.DecodeBatch(raw)
	if err != nil {
		return nil, &wire.CommandError{Cmd: wire.CmdBatch, Code: wire.CodeBadRequest, Message: err.Error()}
	}

	results := make([][]byte, 0, len(calls))
	for _, call := range calls {
		if call.Cmd == wire.CmdBatch || call.Cmd == wire.CmdPut {
			return nil, &wire.CommandError{Cmd: wire.CmdBatch, Code: wire.CodeBadRequest, Message: call.Cmd + " cannot be batched"}
		}
		r, err := s.Dispatch(ctx, call.Cmd, call.Args, nil)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	s.log.Debug("batch", zap.Int("calls", len(calls)))
	return wire.EncodeBatchResults(results), nil
}

func (s *Server) unsupported() error {
	return fmt.Errorf("%s %w", s.name, ErrUnsupported)
}

func (s *Server) commandError(cmd string, err error) error {
	code := 0
	switch {
	case errors.Is(err, ErrUnsupported):
		code = wire.CodeUnsupported
	case errors.Is(err, store.ErrNotFound):
		code = wire.CodeNotFound
	case errors.Is(err, store.ErrCorrupt):
		s.log.Error("corrupt largefile in store", zap.Error(err))
		code = wire.CodeCorrupt
	case errors.Is(err, blob.ErrInvalidHash):
		code = wire.CodeBadRequest
	default:
		return err
	}
	return &wire.CommandError{Cmd: cmd, Code: code, Message: err.Error()}
}

func hashArg(cmd string, args []wire.Arg) (string, error) {
	h, ok := wire.Lookup(args, wire.ArgHash)
	if !ok {
		return "", &wire.CommandError{Cmd: cmd, Code: wire.CodeBadRequest, Message: "missing argument " + wire.ArgHash}
	}
	return strings.TrimSpace(h), nil
}
