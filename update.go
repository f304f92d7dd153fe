package largefiles

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/aweris/largefiles/internal/blob"
)

// UpdateReport lists what Update did.
type UpdateReport struct {
	Updated []string
	Removed []string
	// Modified lists files left alone because they differ from what the
	// last update or capture wrote.
	Modified []string
	Failed   []FileResult
}

// Err combines the per-file failures, nil when every file was updated.
func (r *UpdateReport) Err() error { return combine(r.Failed) }

// Update brings the working copy's largefiles to the content of to. Files
// that already match are left alone; the others are resolved from the
// repository store, the user cache and then rs (which may be nil).
//
// Working files that differ from the content last written for them are
// never overwritten or removed; they are listed in Modified. A file that
// cannot be resolved is reported and left absent from the working copy; the
// remaining files are still updated. Files written by an earlier update that
// to no longer tracks are removed unless they were modified since.
func (r *Repo) Update(ctx context.Context, to Revision, rs RemoteStore) (*UpdateReport, error) {
	ds, err := r.loadDirstate()
	if err != nil {
		return nil, err
	}

	report := &UpdateReport{}
	var pending []string
	for _, p := range to.Paths() {
		ptr := to.Standins[p]
		data, ok, err := r.readFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		if ok && ptr.Matches(data) {
			ds.Files[p] = ptr.Hash
			continue
		}
		if ok {
			if recorded, had := ds.Files[p]; !had || !blob.Matches(recorded, data) {
				r.log.Info("keeping modified file", zap.String("path", p))
				report.Modified = append(report.Modified, p)
				continue
			}
		}
		pending = append(pending, p)
	}

	var mu sync.Mutex
	err = transfer(ctx, pending, r.concurrency, ContinueOnError, func(ctx context.Context, p string) error {
		ptr := to.Standins[p]
		data, err := r.fetch(ctx, ptr.Hash, rs)
		if err == nil {
			err = r.writeFile(p, data)
		}

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			if rerr := r.removeFile(p); rerr != nil {
				r.log.Warn("failed to remove stale largefile", zap.String("path", p), zap.Error(rerr))
			}
			delete(ds.Files, p)
			report.Failed = append(report.Failed, FileResult{Path: p, Hash: ptr.Hash, Outcome: outcomeOf(err), Err: err})
			return err
		}
		ds.Files[p] = ptr.Hash
		report.Updated = append(report.Updated, p)
		return nil
	})
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	for p, hash := range ds.Files {
		if _, ok := to.Standins[p]; ok {
			continue
		}
		delete(ds.Files, p)

		data, ok, err := r.readFile(p)
		if err != nil || !ok {
			continue
		}
		if !blob.Matches(hash, data) {
			r.log.Info("keeping modified file no longer tracked", zap.String("path", p))
			continue
		}
		if err := r.removeFile(p); err != nil {
			return nil, fmt.Errorf("remove %s: %w", p, err)
		}
		report.Removed = append(report.Removed, p)
	}

	if err := r.saveDirstate(ds); err != nil {
		return nil, err
	}

	sort.Strings(report.Updated)
	sort.Strings(report.Removed)
	sortResults(report.Failed)
	for _, p := range report.Modified {
		fmt.Fprintf(r.out, "%s: not updated, modified locally\n", p)
	}
	for _, f := range report.Failed {
		fmt.Fprintln(r.out, f)
	}
	fmt.Fprintf(r.out, "%d largefiles updated, %d removed\n", len(report.Updated), len(report.Removed))
	return report, nil
}
