// Package standin converts between largefile content and the small pointer
// records committed to history in its place.
//
// A standin holds exactly two newline terminated lines: the hex content hash
// and the decimal size in bytes. Standins live in the working copy under the
// .hglf directory, mirroring the path of the file they stand in for.
package standin

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/aweris/largefiles/internal/blob"
)

// Dir is the working copy directory holding standins.
const Dir = ".hglf"

// ErrFormat is matched by every FormatError.
var ErrFormat = errors.New("malformed standin")

// FormatError reports a byte sequence that is not a valid standin.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s", ErrFormat, e.Reason)
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// Pointer is the hash and size recorded in history for a largefile.
type Pointer struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// FromContent returns the pointer for data.
func FromContent(data []byte) Pointer {
	return Pointer{Hash: blob.Hash(data), Size: int64(len(data))}
}

// Matches reports whether data is the content p points to.
func (p Pointer) Matches(data []byte) bool {
	return int64(len(data)) == p.Size && blob.Matches(p.Hash, data)
}

// Encode renders the standin bytes for p.
func Encode(p Pointer) []byte {
	return []byte(p.Hash + "\n" + strconv.FormatInt(p.Size, 10) + "\n")
}

// Decode parses standin bytes.
func Decode(b []byte) (Pointer, error) {
	if len(b) == 0 || b[len(b)-1] != '\n' {
		return Pointer{}, &FormatError{Reason: "missing trailing newline"}
	}
	lines := bytes.Split(b[:len(b)-1], []byte{'\n'})
	if len(lines) != 2 {
		return Pointer{}, &FormatError{Reason: fmt.Sprintf("expected 2 lines, got %d", len(lines))}
	}

	hash := string(lines[0])
	if !blob.Valid(hash) {
		return Pointer{}, &FormatError{Reason: fmt.Sprintf("bad hash %q", hash)}
	}

	size, err := parseSize(lines[1])
	if err != nil {
		return Pointer{}, err
	}
	return Pointer{Hash: hash, Size: size}, nil
}

func parseSize(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, &FormatError{Reason: "empty size"}
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, &FormatError{Reason: fmt.Sprintf("bad size %q", b)}
		}
	}
	if len(b) > 1 && b[0] == '0' {
		return 0, &FormatError{Reason: fmt.Sprintf("bad size %q", b)}
	}
	size, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, &FormatError{Reason: fmt.Sprintf("bad size %q", b)}
	}
	return size, nil
}

// StandinPath returns the standin location for a working copy file.
func StandinPath(file string) string {
	return path.Join(Dir, toSlash(file))
}

// IsStandin reports whether p lies inside the standin directory.
func IsStandin(p string) bool {
	p = strings.TrimPrefix(toSlash(p), "/")
	return p == Dir || strings.HasPrefix(p, Dir+"/")
}

// SplitStandin returns the working copy file a standin path stands in for.
func SplitStandin(p string) (string, bool) {
	p = strings.TrimPrefix(toSlash(p), "/")
	file, ok := strings.CutPrefix(p, Dir+"/")
	if !ok || file == "" {
		return "", false
	}
	return file, true
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
