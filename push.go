package largefiles

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/aweris/largefiles/internal/remote"
)

// Push makes sure rs holds every largefile referenced by revs and then
// calls pushChangesets, which sends the revisions themselves.
//
// If revs reference any largefile and rs is not a largefile store, Push
// fails before pushChangesets is called. Blobs the remote already reports
// are not sent again. Any blob that cannot be read locally or is refused by
// the remote aborts the push and pushChangesets is never called.
func (r *Repo) Push(ctx context.Context, rs RemoteStore, revs []Revision, pushChangesets func(context.Context) error) error {
	paths := map[string]string{}
	for _, rev := range revs {
		for _, p := range rev.Paths() {
			h := rev.Standins[p].Hash
			if _, ok := paths[h]; !ok {
				paths[h] = rev.label(p)
			}
		}
	}

	if len(paths) > 0 {
		if err := r.upload(ctx, rs, paths); err != nil {
			return err
		}
	}

	if pushChangesets == nil {
		return nil
	}
	return pushChangesets(ctx)
}

func (r *Repo) upload(ctx context.Context, rs RemoteStore, paths map[string]string) error {
	caps, err := rs.Capabilities(ctx)
	if err != nil {
		return err
	}
	if !caps.ServesLargefiles() {
		return remote.NotLargefileStore(rs.String())
	}

	hashes := make([]string, 0, len(paths))
	for h := range paths {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	present, err := rs.BatchStat(ctx, hashes)
	if err != nil {
		return fmt.Errorf("check largefiles on %s: %w", rs, err)
	}

	var missing []string
	for _, h := range hashes {
		if !present[h] {
			missing = append(missing, h)
		}
	}
	fmt.Fprintf(r.out, "[push] %d largefiles referenced, %d to upload to %s\n", len(hashes), len(missing), rs)

	err = transfer(ctx, missing, r.concurrency, AbortOnError, func(ctx context.Context, h string) error {
		data, err := r.local(ctx, h)
		if err != nil {
			return fmt.Errorf("largefile %s (%s) cannot be pushed to %s: %w", paths[h], h, rs, err)
		}
		_, err = remote.Retry(ctx, r.attempts, func() (struct{}, error) {
			return struct{}{}, rs.Put(ctx, h, data)
		})
		if err != nil {
			return fmt.Errorf("failed to push largefile %s to %s: %w", paths[h], rs, err)
		}
		r.log.Debug("uploaded largefile", zap.String("path", paths[h]), zap.String("hash", h))
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(r.out, "[push] uploaded %d largefiles\n", len(missing))
	return nil
}
