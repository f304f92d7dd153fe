package largefiles

import (
	"github.com/aweris/largefiles/internal/blob"
	"github.com/aweris/largefiles/internal/remote"
	"github.com/aweris/largefiles/internal/standin"
	"github.com/aweris/largefiles/internal/store"
)

var (
	ErrFormat        = standin.ErrFormat
	ErrInvalidHash   = blob.ErrInvalidHash
	ErrNotFound      = store.ErrNotFound
	ErrCorrupt       = store.ErrCorrupt
	ErrRemoteCorrupt = remote.ErrRemoteCorrupt
	ErrRejected      = remote.ErrRejected
	ErrCapability    = remote.ErrCapability
	ErrClosed        = remote.ErrClosed
)

type (
	// FormatError is a malformed standin pointer.
	FormatError = standin.FormatError
	// CorruptionError is a local store entry whose bytes do not match its hash.
	CorruptionError = store.CorruptionError

	RemoteCorruptionError = remote.RemoteCorruptionError
	StoreRejectedError    = remote.StoreRejectedError
	TransportError        = remote.TransportError
	CapabilityError       = remote.CapabilityError
	AuthorizationError    = remote.AuthorizationError
)

// IsRetryable reports whether err is a transport failure worth retrying.
func IsRetryable(err error) bool { return remote.IsRetryable(err) }
