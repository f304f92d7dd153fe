package remote

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/aweris/largefiles/internal/wire"
)

// Transport carries wire commands to a remote and returns raw replies.
//
// Implementations report a command the remote refused as *wire.CommandError,
// a refused identity as *AuthorizationError and anything else as
// *TransportError.
type Transport interface {
	String() string
	Call(ctx context.Context, cmd string, args ...wire.Arg) ([]byte, error)
	Push(ctx context.Context, cmd string, body []byte, args ...wire.Arg) ([]byte, error)
	Close() error
}

// Dispatcher executes wire commands. The server implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd string, args []wire.Arg, body []byte) ([]byte, error)
}

// InProcessTransport hands commands straight to a Dispatcher in the same process.
type InProcessTransport struct {
	name   string
	d      Dispatcher
	closed atomic.Bool
}

func NewInProcessTransport(name string, d Dispatcher) *InProcessTransport {
	return &InProcessTransport{name: name, d: d}
}

func (t *InProcessTransport) String() string { return t.name }

func (t *InProcessTransport) Call(ctx context.Context, cmd string, args ...wire.Arg) ([]byte, error) {
	return t.Push(ctx, cmd, nil, args...)
}

func (t *InProcessTransport) Push(ctx context.Context, cmd string, body []byte, args ...wire.Arg) ([]byte, error) {
	if t.closed.Load() {
		return nil, &TransportError{Remote: t.name, Op: cmd, Err: ErrClosed}
	}
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Remote: t.name, Op: cmd, Err: err}
	}

	reply, err := t.d.Dispatch(ctx, cmd, args, body)
	if err != nil {
		var ce *wire.CommandError
		if errors.As(err, &ce) {
			return nil, ce
		}
		return nil, &TransportError{Remote: t.name, Op: cmd, Err: err}
	}
	return reply, nil
}

func (t *InProcessTransport) Close() error {
	t.closed.Store(true)
	return nil
}
