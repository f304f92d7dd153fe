package largefiles

import (
	"context"
	"fmt"
)

// State of a tracked file in the working copy.
type State byte

const (
	StateClean    State = 'C'
	StateModified State = 'M'
	StateMissing  State = '!'
)

func (s State) String() string { return string(rune(s)) }

// FileStatus is one line of Status.
type FileStatus struct {
	Path  string
	State State
}

func (f FileStatus) String() string { return fmt.Sprintf("%s %s", f.State, f.Path) }

// Status compares the working copy against rev.
func (r *Repo) Status(ctx context.Context, rev Revision) ([]FileStatus, error) {
	res := make([]FileStatus, 0, len(rev.Standins))
	for _, p := range rev.Paths() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, ok, err := r.readFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		state := StateClean
		switch {
		case !ok:
			state = StateMissing
		case !rev.Standins[p].Matches(data):
			state = StateModified
		}
		res = append(res, FileStatus{Path: p, State: state})
	}
	return res, nil
}
