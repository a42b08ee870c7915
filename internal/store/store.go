package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const (
	// DownloadsDir holds raw downloaded files.
	DownloadsDir = "downloads"

	// ExtractedDir holds one directory per extracted archive.
	ExtractedDir = "extracted"

	// DefaultDirPermissions is used for every directory the store creates.
	DefaultDirPermissions os.FileMode = 0o755

	// DefaultFilePermissions is used for files whose archive entry carries no mode.
	DefaultFilePermissions os.FileMode = 0o644
)

var (
	// ErrInvalidName is returned for empty or dot-only file names.
	ErrInvalidName = errors.New("invalid file name")

	// errRootRequired is returned when the store root is empty.
	errRootRequired = errors.New("store root must be provided")
)

// archiveSuffixes lists the multi-part extensions stripped from archive names.
// Longer suffixes come first.
//
//nolint:gochecknoglobals // Read-only lookup table.
var archiveSuffixes = []string{".tar.gz", ".tar.xz", ".tgz", ".txz", ".tar", ".zip"}

// Store is the local area holding downloaded and extracted files.
type Store struct {
	// fs is rooted at root; every path handed to it is relative.
	fs afero.Fs
	// root is the absolute directory backing the store on the host.
	root string
}

// New creates the root directory if needed and returns a store backed by the OS filesystem.
func New(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errRootRequired
	}

	absolute, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve store root: %w", err)
	}

	if err = os.MkdirAll(absolute, DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}

	return &Store{
		fs:   afero.NewBasePathFs(afero.NewOsFs(), absolute),
		root: absolute,
	}, nil
}

// NewWithFs wraps an existing filesystem, typically an in-memory one in tests.
// root is only used to build host paths with RealPath.
func NewWithFs(fs afero.Fs, root string) *Store {
	return &Store{
		fs:   fs,
		root: filepath.Clean(root),
	}
}

// Fs exposes the underlying filesystem.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Root returns the host directory backing the store.
func (s *Store) Root() string {
	return s.root
}

// DownloadPath returns the store-relative path of a downloaded file.
// Only the base name is kept so catalog-provided names cannot leave downloads/.
func (s *Store) DownloadPath(fileName string) (string, error) {
	name, err := baseName(fileName)
	if err != nil {
		return "", err
	}

	return filepath.Join(DownloadsDir, name), nil
}

// ExtractDir returns the store-relative destination for an archive:
// extracted/<archive name without extension>.
func (s *Store) ExtractDir(archivePath string) (string, error) {
	name, err := baseName(archivePath)
	if err != nil {
		return "", err
	}

	return filepath.Join(ExtractedDir, ArchiveStem(name)), nil
}

// RealPath converts a store-relative path into a host path.
func (s *Store) RealPath(rel string) string {
	return filepath.Join(s.root, filepath.Clean(string(filepath.Separator)+rel))
}

// Stat returns file information for a store-relative path.
func (s *Store) Stat(rel string) (os.FileInfo, error) {
	return s.fs.Stat(rel)
}

// EnsureDir creates a store-relative directory and its parents.
func (s *Store) EnsureDir(rel string) error {
	if err := s.fs.MkdirAll(rel, DefaultDirPermissions); err != nil {
		return fmt.Errorf("create directory %s: %w", rel, err)
	}

	return nil
}

// ArchiveStem strips a known archive extension, or the last extension otherwise.
// "foo-v1.zip" -> "foo-v1", "data.tar.gz" -> "data", "notes.txt" -> "notes".
func ArchiveStem(name string) string {
	lower := strings.ToLower(name)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) && len(name) > len(suffix) {
			return name[:len(name)-len(suffix)]
		}
	}

	if ext := filepath.Ext(name); ext != "" && len(name) > len(ext) {
		return strings.TrimSuffix(name, ext)
	}

	return name
}

// baseName returns the last element of a slash or OS separated path.
func baseName(fileName string) (string, error) {
	name := filepath.Base(filepath.FromSlash(strings.TrimSpace(fileName)))
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return "", fmt.Errorf("%q: %w", fileName, ErrInvalidName)
	}

	return name, nil
}
