package store

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
)

// UserCache is a machine-wide store shared by every repository of a user.
// It is never authoritative: reads are verified like any other store and a
// damaged entry is only replaced through Repair with bytes from a trusted
// source.
type UserCache struct {
	*LocalStore
}

// NewUserCache opens the user cache rooted at the top of fsys.
func NewUserCache(fsys afero.Fs, opts ...Option) (*UserCache, error) {
	ls, err := NewLocalStore(fsys, opts...)
	if err != nil {
		return nil, fmt.Errorf("open user cache: %w", err)
	}
	return &UserCache{LocalStore: ls}, nil
}

// Promote copies a verified cache entry into dst.
func (c *UserCache) Promote(ctx context.Context, hash string, dst Store) ([]byte, error) {
	data, err := c.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	if err := dst.PutHash(ctx, hash, data); err != nil {
		return nil, fmt.Errorf("promote %s into %s: %w", hash, dst, err)
	}
	return data, nil
}
