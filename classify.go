package largefiles

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Classifier decides which working files are stored as largefiles.
type Classifier struct {
	// MinSize in bytes; zero or less disables the size rule.
	MinSize int64
	// Patterns are doublestar globs matched against the slash path.
	Patterns []string
}

func (c Classifier) Validate() error {
	for _, p := range c.Patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid largefile pattern %q", p)
		}
	}
	return nil
}

// IsLarge reports whether a file at path with size bytes is large.
func (c Classifier) IsLarge(path string, size int64) bool {
	for _, p := range c.Patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return c.MinSize > 0 && size >= c.MinSize
}
