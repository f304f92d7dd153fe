package largefiles

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/aweris/largefiles/internal/remote"
	"github.com/aweris/largefiles/internal/store"
)

// Outcome of one file in an update or verify run.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeMissing Outcome = "missing"
	OutcomeCorrupt Outcome = "corrupt"
	// OutcomeFailed is any other failure, e.g. an unreachable remote.
	OutcomeFailed Outcome = "failed"
)

func outcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, store.ErrNotFound):
		return OutcomeMissing
	case errors.Is(err, store.ErrCorrupt), errors.Is(err, remote.ErrRemoteCorrupt):
		return OutcomeCorrupt
	default:
		return OutcomeFailed
	}
}

// FileResult is the outcome for one tracked file.
type FileResult struct {
	Path    string
	Hash    string
	Outcome Outcome
	Err     error
}

func (f FileResult) String() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Path, f.Outcome)
	}
	return fmt.Sprintf("%s: %s largefile %s: %v", f.Path, f.Outcome, f.Hash, f.Err)
}

func sortResults(rs []FileResult) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].Path < rs[j].Path })
}

func combine(rs []FileResult) error {
	var err error
	for _, f := range rs {
		if f.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", f.Path, f.Err))
		}
	}
	return err
}
