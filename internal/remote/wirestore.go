package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/aweris/largefiles/internal/blob"
	"github.com/aweris/largefiles/internal/wire"
)

// State of a WireStore session.
type State int

const (
	Unconnected State = iota
	CapabilitiesNegotiated
	Active
	Closed
)

func (s State) String() string {
	switch s {
	case Unconnected:
		return "unconnected"
	case CapabilitiesNegotiated:
		return "capabilities-negotiated"
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Strategy is how stat queries travel. It is fixed once capabilities are known.
type Strategy int

const (
	// StrategySerial sends one statlfile per hash.
	StrategySerial Strategy = iota
	// StrategyBatched packs all statlfile calls into one batch request.
	StrategyBatched
)

func (s Strategy) String() string {
	if s == StrategyBatched {
		return "batched"
	}
	return "serial"
}

// WireStore is a remote store session speaking wire commands over a Transport.
type WireStore struct {
	t   Transport
	log *zap.Logger

	mu       sync.Mutex
	state    State
	caps     wire.Capabilities
	strategy Strategy

	// hashes the remote is known to hold; content is immutable so a
	// positive answer stays true for the whole session
	present *lru.Cache[string, struct{}]
}

func NewWireStore(t Transport, opts ...Option) *WireStore {
	o := newOptions(opts)
	present, _ := lru.New[string, struct{}](o.statCacheSize)
	return &WireStore{
		t:       t,
		log:     o.log.With(zap.String("remote", t.String())),
		present: present,
	}
}

func (s *WireStore) String() string { return s.t.String() }

func (s *WireStore) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *WireStore) Strategy() Strategy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategy
}

// Connect asks the remote for its capabilities once and picks the stat
// strategy for the rest of the session.
func (s *WireStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Closed:
		return ErrClosed
	case CapabilitiesNegotiated, Active:
		return nil
	}

	reply, err := s.t.Call(ctx, wire.CmdCapabilities)
	if err != nil {
		return s.translate(err, "")
	}

	s.caps = wire.ParseCapabilities(strings.TrimSpace(string(reply)))
	s.strategy = StrategySerial
	if s.caps.Has(wire.CapBatch) {
		s.strategy = StrategyBatched
	}
	s.state = CapabilitiesNegotiated

	s.log.Debug("negotiated capabilities",
		zap.String("capabilities", s.caps.String()),
		zap.Stringer("strategy", s.strategy),
	)
	return nil
}

func (s *WireStore) activate(ctx context.Context) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Closed:
		return ErrClosed
	case CapabilitiesNegotiated:
		s.state = Active
	}
	return nil
}

func (s *WireStore) Capabilities(ctx context.Context) (wire.Capabilities, error) {
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps, nil
}

func (s *WireStore) BatchStat(ctx context.Context, hashes []string) (map[string]bool, error) {
	if err := s.activate(ctx); err != nil {
		return nil, err
	}

	result := make(map[string]bool, len(hashes))
	pending := make([]string, 0, len(hashes))
	queued := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		if err := blob.Check(h); err != nil {
			return nil, err
		}
		if _, ok := queued[h]; ok {
			continue
		}
		queued[h] = struct{}{}
		if s.present.Contains(h) {
			result[h] = true
			continue
		}
		pending = append(pending, h)
	}
	if len(pending) == 0 {
		return result, nil
	}

	var replies [][]byte
	var err error
	if s.Strategy() == StrategyBatched {
		replies, err = s.statBatched(ctx, pending)
	} else {
		replies, err = s.statSerial(ctx, pending)
	}
	if err != nil {
		return nil, err
	}

	for i, h := range pending {
		exists, err := parseStat(replies[i])
		if err != nil {
			return nil, &TransportError{Remote: s.String(), Op: wire.CmdStat, Err: err}
		}
		result[h] = exists
		if exists {
			s.present.Add(h, struct{}{})
		}
	}

	s.log.Debug("stat", zap.Int("queried", len(pending)), zap.Int("total", len(result)))
	return result, nil
}

func (s *WireStore) statBatched(ctx context.Context, hashes []string) ([][]byte, error) {
	calls := make([]wire.Call, 0, len(hashes))
	for _, h := range hashes {
		calls = append(calls, wire.Call{Cmd: wire.CmdStat, Args: []wire.Arg{{Name: wire.ArgHash, Value: h}}})
	}

	reply, err := s.t.Call(ctx, wire.CmdBatch, wire.Arg{Name: wire.ArgCmds, Value: wire.EncodeBatch(calls)})
	if err != nil {
		return nil, s.translate(err, "")
	}

	replies, err := wire.DecodeBatchResults(reply, len(hashes))
	if err != nil {
		return nil, &TransportError{Remote: s.String(), Op: wire.CmdBatch, Err: err}
	}
	return replies, nil
}

func (s *WireStore) statSerial(ctx context.Context, hashes []string) ([][]byte, error) {
	replies := make([][]byte, 0, len(hashes))
	for _, h := range hashes {
		reply, err := s.t.Call(ctx, wire.CmdStat, wire.Arg{Name: wire.ArgHash, Value: h})
		if err != nil {
			return nil, s.translate(err, h)
		}
		replies = append(replies, reply)
	}
	return replies, nil
}

func parseStat(reply []byte) (bool, error) {
	switch code := strings.TrimSpace(string(reply)); code {
	case wire.StatPresent:
		return true, nil
	case wire.StatMissing:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected statlfile reply %q", code)
	}
}

// Fetch downloads a blob and checks its hash. Nothing is retried here.
func (s *WireStore) Fetch(ctx context.Context, hash string) ([]byte, error) {
	if err := blob.Check(hash); err != nil {
		return nil, err
	}
	if err := s.activate(ctx); err != nil {
		return nil, err
	}

	reply, err := s.t.Call(ctx, wire.CmdGet, wire.Arg{Name: wire.ArgHash, Value: hash})
	if err != nil {
		return nil, s.translate(err, hash)
	}

	data, err := wire.DecodeBlob(reply)
	if err != nil {
		return nil, &TransportError{Remote: s.String(), Op: wire.CmdGet, Err: err}
	}
	if actual := blob.Hash(data); actual != hash {
		s.log.Warn("received corrupt largefile", zap.String("hash", hash), zap.String("actual", actual))
		return nil, &RemoteCorruptionError{Remote: s.String(), Hash: hash, Actual: actual}
	}
	return data, nil
}

// Put uploads a blob. The remote re-hashes it and may reject it.
func (s *WireStore) Put(ctx context.Context, hash string, data []byte) error {
	if err := blob.Check(hash); err != nil {
		return err
	}
	if err := s.activate(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	serves := s.caps.ServesLargefiles()
	s.mu.Unlock()
	if !serves {
		return NotLargefileStore(s.String())
	}

	reply, err := s.t.Push(ctx, wire.CmdPut, data, wire.Arg{Name: wire.ArgHash, Value: hash})
	if err != nil {
		return s.translate(err, hash)
	}

	ok, rejection, err := wire.DecodePutReply(reply)
	if err != nil {
		return &TransportError{Remote: s.String(), Op: wire.CmdPut, Err: err}
	}
	if !ok {
		return &StoreRejectedError{Remote: s.String(), Hash: hash, Reason: rejection}
	}

	s.present.Add(hash, struct{}{})
	return nil
}

func (s *WireStore) Close() error {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return nil
	}
	s.state = Closed
	s.mu.Unlock()

	s.present.Purge()
	return s.t.Close()
}

// translate maps command errors reported by the remote onto the client taxonomy.
func (s *WireStore) translate(err error, hash string) error {
	var ce *wire.CommandError
	if !errors.As(err, &ce) {
		return err
	}

	switch ce.Code {
	case wire.CodeNotFound:
		return notFound(s.String(), hash)
	case wire.CodeCorrupt:
		return &RemoteCorruptionError{Remote: s.String(), Hash: hash}
	case wire.CodeRejected:
		return &StoreRejectedError{Remote: s.String(), Hash: hash, Reason: ce.Message}
	case wire.CodeUnsupported:
		return NotLargefileStore(s.String())
	default:
		return fmt.Errorf("%s: %w", s.String(), err)
	}
}
