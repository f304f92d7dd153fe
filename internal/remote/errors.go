package remote

import (
	"errors"
	"fmt"
)

var (
	ErrClosed        = errors.New("remote store session closed")
	ErrRemoteCorrupt = errors.New("remote largefile corrupt")
	ErrRejected      = errors.New("remote store rejected largefile")
	ErrCapability    = errors.New("remote lacks required capability")
)

// TransportError is a failure to reach the remote or to read its reply.
// It says nothing about the remote's content and is safe to retry.
type TransportError struct {
	Remote string
	Op     string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Remote, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteCorruptionError reports remote bytes that do not hash to the requested hash.
type RemoteCorruptionError struct {
	Remote string
	Hash   string
	Actual string
}

func (e *RemoteCorruptionError) Error() string {
	if e.Actual == "" {
		return fmt.Sprintf("%s: largefile %s is corrupt on the remote", e.Remote, e.Hash)
	}
	return fmt.Sprintf("%s: largefile %s is corrupt on the remote (content hashes to %s)", e.Remote, e.Hash, e.Actual)
}

func (e *RemoteCorruptionError) Is(target error) bool { return target == ErrRemoteCorrupt }

// StoreRejectedError is the remote refusing a blob after checking it.
// Sending the same bytes again will fail the same way.
type StoreRejectedError struct {
	Remote string
	Hash   string
	Reason string
}

func (e *StoreRejectedError) Error() string {
	return fmt.Sprintf("%s: remote rejected largefile %s: %s", e.Remote, e.Hash, e.Reason)
}

func (e *StoreRejectedError) Is(target error) bool { return target == ErrRejected }

// CapabilityError is returned when the remote cannot take part in a largefile exchange.
type CapabilityError struct {
	Remote  string
	Message string
}

func (e *CapabilityError) Error() string {
	return e.Remote + " " + e.Message
}

func (e *CapabilityError) Is(target error) bool { return target == ErrCapability }

// NotLargefileStore is the CapabilityError for remotes without largefile support.
func NotLargefileStore(remote string) *CapabilityError {
	return &CapabilityError{Remote: remote, Message: "does not appear to be a largefile store"}
}

// AuthorizationError carries an authentication or permission refusal from
// the transport unchanged.
type AuthorizationError struct {
	Remote string
	Err    error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: authorization failed: %v", e.Remote, e.Err)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// IsRetryable reports whether err may succeed when the same request is sent again.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
