// Package blob defines largefile identity: the SHA-1 hex digest of the content.
package blob

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// HashLen is the length of a hex encoded SHA-1 digest.
const HashLen = 40

// ErrInvalidHash is returned for strings that are not lowercase hex SHA-1 digests.
var ErrInvalidHash = errors.New("invalid largefile hash")

// Blob is an immutable byte sequence with its content hash.
type Blob struct {
	Hash string
	Data []byte
}

// New hashes data and returns the blob.
func New(data []byte) Blob {
	return Blob{Hash: Hash(data), Data: data}
}

// Size returns the length of the blob in bytes.
func (b Blob) Size() int64 { return int64(len(b.Data)) }

// Hash returns the hex SHA-1 digest of data.
func Hash(data []byte) string {
	h := sha1.Sum(data)
	return hex.EncodeToString(h[:])
}

// HashReader hashes everything read from r and returns the digest and byte count.
func HashReader(r io.Reader) (string, int64, error) {
	h := sha1.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Valid reports whether s is a lowercase hex SHA-1 digest.
func Valid(s string) bool {
	if len(s) != HashLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Check returns ErrInvalidHash wrapped with the offending value if s is not valid.
func Check(s string) error {
	if !Valid(s) {
		return fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}
	return nil
}

// Matches reports whether data hashes to want.
func Matches(want string, data []byte) bool {
	return Hash(data) == want
}
