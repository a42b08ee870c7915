package store

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
)

// WriteFile streams body into the store-relative path rel.
// The data goes to a hidden sibling first and is renamed over rel only once the
// whole body has been written, so a failed write leaves the previous copy intact.
// It returns the number of bytes written.
func (s *Store) WriteFile(rel string, body io.Reader) (int64, error) {
	dir := filepath.Dir(rel)
	if err := s.EnsureDir(dir); err != nil {
		return 0, err
	}

	staged, err := afero.TempFile(s.fs, dir, "."+filepath.Base(rel)+".*")
	if err != nil {
		return 0, fmt.Errorf("stage %s: %w", rel, err)
	}

	stagedName := filepath.Join(dir, filepath.Base(staged.Name()))

	written, err := io.Copy(staged, body)
	if err == nil {
		err = staged.Sync()
	}

	if closeErr := staged.Close(); err == nil {
		err = closeErr
	}

	if err == nil {
		err = s.fs.Chmod(stagedName, DefaultFilePermissions)
	}

	if err == nil {
		err = s.fs.Rename(stagedName, rel)
	}

	if err != nil {
		if removeErr := s.fs.Remove(stagedName); removeErr != nil && !errors.Is(removeErr, afero.ErrFileNotFound) {
			err = errors.Join(err, removeErr)
		}

		return written, err
	}

	return written, nil
}
