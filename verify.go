package largefiles

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aweris/largefiles/internal/store"
)

// VerifyLevel is how thoroughly Verify checks largefiles.
type VerifyLevel int

const (
	// VerifyExists checks presence only, on the remote when one is given.
	VerifyExists VerifyLevel = iota
	// VerifyLocalContents re-hashes the repository store entries.
	VerifyLocalContents
	// VerifyAllContents re-hashes local entries and downloads and re-hashes
	// every remote copy.
	VerifyAllContents
)

func (l VerifyLevel) String() string {
	switch l {
	case VerifyExists:
		return "exists"
	case VerifyLocalContents:
		return "local"
	case VerifyAllContents:
		return "all"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseVerifyLevel is the inverse of VerifyLevel.String.
func ParseVerifyLevel(s string) (VerifyLevel, error) {
	for _, l := range []VerifyLevel{VerifyExists, VerifyLocalContents, VerifyAllContents} {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown verify level %q", s)
}

// VerifyReport holds one result per tracked file.
type VerifyReport struct {
	Level   VerifyLevel
	Checked int
	Files   []FileResult
}

func (r *VerifyReport) count(o Outcome) int {
	n := 0
	for _, f := range r.Files {
		if f.Outcome == o {
			n++
		}
	}
	return n
}

func (r *VerifyReport) Missing() int { return r.count(OutcomeMissing) }
func (r *VerifyReport) Corrupt() int { return r.count(OutcomeCorrupt) }

// Err combines every file that did not verify.
func (r *VerifyReport) Err() error { return combine(r.Files) }

// Verify checks the largefiles referenced by revs at the given level. rs may
// be nil, in which case only this machine is consulted. Missing and corrupt
// largefiles are reported per file and do not stop the run.
func (r *Repo) Verify(ctx context.Context, revs []Revision, level VerifyLevel, rs RemoteStore) (*VerifyReport, error) {
	var hashes []string
	for _, rev := range revs {
		for _, ptr := range rev.Standins {
			hashes = append(hashes, ptr.Hash)
		}
	}
	sort.Strings(hashes)
	hashes = compact(hashes)

	var results map[string]error
	var err error
	switch level {
	case VerifyExists:
		results, err = r.verifyExists(ctx, hashes, rs)
	case VerifyLocalContents, VerifyAllContents:
		results, err = r.verifyContents(ctx, hashes, level, rs)
	default:
		return nil, fmt.Errorf("unknown verify level %d", int(level))
	}
	if err != nil {
		return nil, err
	}

	report := &VerifyReport{Level: level, Checked: len(hashes)}
	for _, rev := range revs {
		for _, p := range rev.Paths() {
			h := rev.Standins[p].Hash
			ferr := results[h]
			report.Files = append(report.Files, FileResult{Path: rev.label(p), Hash: h, Outcome: outcomeOf(ferr), Err: ferr})
		}
	}
	sortResults(report.Files)

	for _, f := range report.Files {
		if f.Err != nil {
			fmt.Fprintln(r.out, f)
		}
	}
	fmt.Fprintf(r.out, "verified %d largefiles (%d missing, %d corrupt)\n", report.Checked, report.Missing(), report.Corrupt())
	return report, nil
}

func (r *Repo) verifyExists(ctx context.Context, hashes []string, rs RemoteStore) (map[string]error, error) {
	results := make(map[string]error, len(hashes))
	if len(hashes) == 0 {
		return results, nil
	}

	if rs != nil {
		present, err := rs.BatchStat(ctx, hashes)
		if err != nil {
			return nil, fmt.Errorf("check largefiles on %s: %w", rs, err)
		}
		for _, h := range hashes {
			if !present[h] {
				results[h] = fmt.Errorf("%s: %w: %s", rs, store.ErrNotFound, h)
			}
		}
		return results, nil
	}

	for _, h := range hashes {
		ok, err := r.store.Has(ctx, h)
		if err == nil && !ok && r.cache != nil {
			ok, err = r.cache.Has(ctx, h)
		}
		if err != nil {
			return nil, err
		}
		if !ok {
			results[h] = fmt.Errorf("%w: %s", store.ErrNotFound, h)
		}
	}
	return results, nil
}

func (r *Repo) verifyContents(ctx context.Context, hashes []string, level VerifyLevel, rs RemoteStore) (map[string]error, error) {
	results := make(map[string]error, len(hashes))
	var mu sync.Mutex

	err := transfer(ctx, hashes, r.concurrency, ContinueOnError, func(ctx context.Context, h string) error {
		err := r.verifyOne(ctx, h, level, rs)
		if err != nil {
			mu.Lock()
			results[h] = err
			mu.Unlock()
		}
		return err
	})
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return results, nil
}

// verifyOne reads and re-hashes one largefile without changing any store.
// At VerifyAllContents the remote copy is downloaded and checked as well,
// whether or not a local copy exists.
func (r *Repo) verifyOne(ctx context.Context, h string, level VerifyLevel, rs RemoteStore) error {
	_, err := r.store.Get(ctx, h)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if level == VerifyLocalContents || rs == nil {
		return err
	}
	_, err = rs.Fetch(ctx, h)
	return err
}

func compact(s []string) []string {
	out := s[:0]
	for i, v := range s {
		if i == 0 || v != s[i-1] {
			out = append(out, v)
		}
	}
	return out
}
