package largefiles

import (
	"encoding/json"
	"fmt"
	"path"

	"github.com/aweris/largefiles/internal/store"
)

var dirstatePath = path.Join(store.RepoDir, "dirstate")

// dirstate remembers which largefile content Update last wrote to each
// working copy path.
type dirstate struct {
	Files map[string]string `json:"files"`
}

func (r *Repo) loadDirstate() (*dirstate, error) {
	ds := &dirstate{Files: map[string]string{}}
	b, ok, err := r.readFile(dirstatePath)
	if err != nil || !ok {
		return ds, err
	}
	if err := json.Unmarshal(b, ds); err != nil {
		return nil, fmt.Errorf("read dirstate: %w", err)
	}
	if ds.Files == nil {
		ds.Files = map[string]string{}
	}
	return ds, nil
}

func (r *Repo) saveDirstate(ds *dirstate) error {
	b, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return err
	}
	return r.writeFile(dirstatePath, b)
}
