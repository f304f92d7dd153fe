package largefiles

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/aweris/largefiles/internal/standin"
)

// Capture stores the content of large working files and writes their
// standins. With no paths every working file is considered; otherwise only
// the named files and directories. Files that already have a standin stay
// large regardless of the classifier.
//
// The returned revision holds the pointers written by this call.
func (r *Repo) Capture(ctx context.Context, paths ...string) (Revision, error) {
	tracked, err := r.Standins(ctx)
	if err != nil {
		return Revision{}, err
	}

	var names []string
	collect := func(name string, size int64) error {
		if _, ok := tracked.Standins[name]; ok || r.classifier.IsLarge(name, size) {
			names = append(names, name)
		}
		return nil
	}

	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		p = filepath.ToSlash(filepath.Clean(p))
		if standin.IsStandin(p) {
			return Revision{}, fmt.Errorf("%s: cannot track standin files", p)
		}
		if err := r.walk(p, collect); err != nil {
			return Revision{}, fmt.Errorf("capture %s: %w", p, err)
		}
	}
	sort.Strings(names)

	var mu sync.Mutex
	rev := Revision{Standins: make(map[string]Pointer, len(names))}
	err = transfer(ctx, names, r.concurrency, AbortOnError, func(ctx context.Context, name string) error {
		ptr, err := r.captureFile(ctx, name)
		if err != nil {
			return err
		}
		mu.Lock()
		rev.Standins[name] = ptr
		mu.Unlock()
		return nil
	})
	if err != nil {
		return Revision{}, err
	}

	ds, err := r.loadDirstate()
	if err != nil {
		return Revision{}, err
	}
	for name, ptr := range rev.Standins {
		ds.Files[name] = ptr.Hash
	}
	if err := r.saveDirstate(ds); err != nil {
		return Revision{}, err
	}

	r.log.Debug("captured largefiles", zap.Int("count", len(rev.Standins)))
	return rev, nil
}

func (r *Repo) captureFile(ctx context.Context, name string) (Pointer, error) {
	data, err := afero.ReadFile(r.wc, name)
	if err != nil {
		return Pointer{}, fmt.Errorf("read %s: %w", name, err)
	}

	ptr := standin.FromContent(data)
	if err := r.store.PutHash(ctx, ptr.Hash, data); err != nil {
		return Pointer{}, fmt.Errorf("store %s: %w", name, err)
	}
	if r.cache != nil {
		if err := r.cache.PutHash(ctx, ptr.Hash, data); err != nil {
			r.log.Warn("failed to cache largefile", zap.String("path", name), zap.Error(err))
		}
	}
	if err := r.writeFile(standin.StandinPath(name), standin.Encode(ptr)); err != nil {
		return Pointer{}, err
	}
	return ptr, nil
}

// Standins reads the pointers recorded in the working copy's standin
// directory. A malformed standin fails the whole read.
func (r *Repo) Standins(ctx context.Context) (Revision, error) {
	rev := Revision{Standins: map[string]Pointer{}}
	if ok, err := afero.DirExists(r.wc, standin.Dir); err != nil || !ok {
		return rev, err
	}

	err := afero.Walk(r.wc, standin.Dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		p = filepath.ToSlash(p)
		name, ok := standin.SplitStandin(p)
		if !ok {
			return nil
		}

		b, err := afero.ReadFile(r.wc, p)
		if err != nil {
			return err
		}
		ptr, err := standin.Decode(b)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		rev.Standins[name] = ptr
		return nil
	})
	if err != nil {
		return Revision{}, err
	}
	return rev, ctx.Err()
}
