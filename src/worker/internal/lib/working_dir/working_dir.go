package working_dir

import (
	"path/filepath"

	"github.com/retunelab/voicefixer-worker/src/worker/internal/lib/cerr"
)

// WorkingDir is an absolute path to a directory that a component is
// allowed to scratch around in.
type WorkingDir struct {
	root string
}

func NewWorkingDir(dir string) (WorkingDir, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return WorkingDir{}, cerr.Field("dir", dir).
			Wrap(err).Error("Failed to convert dir to absolute format")
	}

	return WorkingDir{root: absDir}, nil
}

func (w WorkingDir) Root() string {
	return w.root
}

func (w WorkingDir) TempDir() string {
	return filepath.Join(w.root, "tmp")
}

func (w WorkingDir) String() string {
	return w.root
}
