package publish

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// FileSink writes the snapshot to a local path. The write goes to a temp
// file in the same directory and is renamed into place, so readers see
// either the old snapshot or the new one.
type FileSink struct {
	path string
}

// NewFileSink creates a sink writing to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Put ignores obj.Key; the configured path wins.
func (s *FileSink) Put(ctx context.Context, obj Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "file sink: put")
	}

	abs, err := filepath.Abs(s.path)
	if err != nil {
		return "", eris.Wrap(err, "file sink: resolve path")
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "file sink: create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(abs)+".*.tmp")
	if err != nil {
		return "", eris.Wrap(err, "file sink: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(obj.Body); err != nil {
		tmp.Close() //nolint:errcheck
		return "", eris.Wrap(err, "file sink: write")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return "", eris.Wrap(err, "file sink: sync")
	}
	if err := tmp.Close(); err != nil {
		return "", eris.Wrap(err, "file sink: close")
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", eris.Wrap(err, "file sink: chmod")
	}
	if err := os.Rename(tmp.Name(), abs); err != nil {
		return "", eris.Wrapf(err, "file sink: rename to %s", abs)
	}
	return abs, nil
}

func (s *FileSink) Close() error { return nil }
