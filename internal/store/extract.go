package store

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/ulikunitz/xz"
)

var (
	// ErrUnsupportedFormat is returned for archives whose extension is not recognised.
	ErrUnsupportedFormat = errors.New("unsupported archive format")

	// ErrUnsafePath is returned when an archive entry would land outside the destination.
	ErrUnsafePath = errors.New("archive entry escapes destination")
)

// ownerWritable is added to every extracted file mode.
const ownerWritable os.FileMode = 0o200

// Format is an archive container recognised by file name.
type Format int

// Supported archive formats.
const (
	FormatUnknown Format = iota
	FormatZip
	FormatTar
	FormatTarGzip
	FormatTarXz
)

// DetectFormat picks the archive format from the file name.
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)

	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGzip
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return FormatTarXz
	case strings.HasSuffix(lower, ".tar"):
		return FormatTar
	default:
		return FormatUnknown
	}
}

// Extract unpacks a store-relative archive into ExtractDir(archivePath), creating it if absent.
// Existing files are overwritten; nothing is cleaned up when extraction fails midway.
// It returns the store-relative destination and the number of files written.
func (s *Store) Extract(archivePath string) (string, int, error) {
	dest, err := s.ExtractDir(archivePath)
	if err != nil {
		return "", 0, err
	}

	format := DetectFormat(archivePath)
	if format == FormatUnknown {
		return dest, 0, fmt.Errorf("%s: %w", filepath.Base(archivePath), ErrUnsupportedFormat)
	}

	file, err := s.fs.Open(archivePath)
	if err != nil {
		return dest, 0, fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	if err = s.EnsureDir(dest); err != nil {
		return dest, 0, err
	}

	var written int

	switch format {
	case FormatZip:
		var info os.FileInfo

		info, err = file.Stat()
		if err != nil {
			return dest, 0, fmt.Errorf("stat archive: %w", err)
		}

		written, err = s.extractZip(file, info.Size(), dest)
	case FormatTar:
		written, err = s.extractTar(file, dest)
	case FormatTarGzip:
		var gzipReader *gzip.Reader

		gzipReader, err = gzip.NewReader(file)
		if err != nil {
			return dest, 0, fmt.Errorf("open gzip stream: %w", err)
		}

		defer func() {
			_ = gzipReader.Close()
		}()

		written, err = s.extractTar(gzipReader, dest)
	case FormatTarXz:
		var xzReader *xz.Reader

		xzReader, err = xz.NewReader(file)
		if err != nil {
			return dest, 0, fmt.Errorf("open xz stream: %w", err)
		}

		written, err = s.extractTar(xzReader, dest)
	}

	return dest, written, err
}

// extractZip writes every zip member under dest.
func (s *Store) extractZip(r io.ReaderAt, size int64, dest string) (int, error) {
	zipReader, err := zip.NewReader(r, size)
	if err != nil {
		return 0, fmt.Errorf("open zip: %w", err)
	}

	written := 0

	for _, entry := range zipReader.File {
		target, err := safeJoin(dest, entry.Name)
		if err != nil {
			return written, err
		}

		info := entry.FileInfo()

		switch {
		case info.IsDir():
			if err = s.EnsureDir(target); err != nil {
				return written, err
			}
		case info.Mode()&os.ModeType != 0:
			// Symlinks and devices are not materialised.
			continue
		default:
			if err = s.writeEntry(target, entry.Open, info.Mode().Perm()); err != nil {
				return written, fmt.Errorf("extract %s: %w", entry.Name, err)
			}

			written++
		}
	}

	return written, nil
}

// extractTar writes every regular file and directory of a tar stream under dest.
func (s *Store) extractTar(r io.Reader, dest string) (int, error) {
	tarReader := tar.NewReader(r)
	written := 0

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			return written, nil
		}

		if err != nil {
			return written, fmt.Errorf("read tar: %w", err)
		}

		target, err := safeJoin(dest, header.Name)
		if err != nil {
			return written, err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err = s.EnsureDir(target); err != nil {
				return written, err
			}
		case tar.TypeReg:
			open := func() (io.ReadCloser, error) { return io.NopCloser(tarReader), nil }
			if err = s.writeEntry(target, open, header.FileInfo().Mode().Perm()); err != nil {
				return written, fmt.Errorf("extract %s: %w", header.Name, err)
			}

			written++
		default:
			// Links, devices and FIFOs are not materialised.
			continue
		}
	}
}

// writeEntry copies one archive member to target, creating parent directories.
func (s *Store) writeEntry(target string, open func() (io.ReadCloser, error), perm os.FileMode) error {
	if err := s.EnsureDir(filepath.Dir(target)); err != nil {
		return err
	}

	if perm == 0 {
		perm = DefaultFilePermissions
	}

	// Read-only members would block the next extraction over the same tree.
	perm |= ownerWritable

	source, err := open()
	if err != nil {
		return err
	}

	defer func() {
		_ = source.Close()
	}()

	out, err := s.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(out, source)

	return errors.Join(copyErr, out.Close())
}

// safeJoin resolves an archive member name under dest and rejects absolute
// names and names climbing out of dest.
func safeJoin(dest, name string) (string, error) {
	local := filepath.FromSlash(name)
	if filepath.IsAbs(local) || strings.HasPrefix(local, string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafePath)
	}

	target := filepath.Join(dest, local)

	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafePath)
	}

	return target, nil
}
