// Package store implements content-addressed largefile storage on disk.
//
// Entries are keyed by the SHA-1 of their content and are immutable. Every
// read re-hashes the bytes, so a damaged entry surfaces as a CorruptionError
// instead of wrong content. Writes go through a staging area and are renamed
// into place, so concurrent readers never see a partial entry.
package store

import "context"

// Store handles local content storage.
type Store interface {
	String() string

	// Get retrieves and verifies an object by hash.
	Get(ctx context.Context, hash string) ([]byte, error)

	// Put stores an object and returns its hash.
	Put(ctx context.Context, data []byte) (hash string, err error)

	// PutHash stores an object under a hash the caller already knows,
	// refusing data that does not hash to it.
	PutHash(ctx context.Context, hash string, data []byte) error

	// Has checks if an object exists without reading it.
	Has(ctx context.Context, hash string) (bool, error)

	// Verify re-reads and re-hashes an object.
	Verify(ctx context.Context, hash string) (bool, error)

	// Repair atomically replaces a damaged object with verified data.
	Repair(ctx context.Context, hash string, data []byte) error

	// Hashes lists every stored object.
	Hashes(ctx context.Context) ([]string, error)
}

// RepoDir is the directory inside a repository holding its largefile store.
const RepoDir = ".largefiles"
