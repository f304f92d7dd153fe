package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("largefile not found")
	ErrCorrupt  = errors.New("largefile corrupt")
)

// CorruptionError reports stored bytes that do not hash to their key.
type CorruptionError struct {
	Hash   string
	Actual string
	Store  string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("%s: largefile %s is corrupt (content hashes to %s)", e.Store, e.Hash, e.Actual)
}

func (e *CorruptionError) Is(target error) bool { return target == ErrCorrupt }
