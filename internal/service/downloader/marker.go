package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/dmd-downloader/internal/logger"
	"github.com/oshokin/dmd-downloader/internal/store"
)

const (
	// MarkerFilename marks that a pass is running in the data directory.
	MarkerFilename = "dmd-downloader.lock"

	// markerFilePermissions is the mode of the marker file.
	markerFilePermissions = 0o644
)

// ErrAlreadyRunning is returned when a live process holds the run marker.
var ErrAlreadyRunning = errors.New("another synchronization pass is running")

// Marker is the run marker owned by the current process.
type Marker struct {
	path string
}

// AcquireMarker writes the current PID into <dir>/dmd-downloader.lock.
// A marker left by a process that is no longer alive is replaced.
func AcquireMarker(ctx context.Context, dir string) (*Marker, error) {
	path := filepath.Join(dir, MarkerFilename)

	logger.DebugKV(ctx, "Checking for the presence of a run marker", "path", path)

	holder, err := readMarker(path)

	switch {
	case errors.Is(err, os.ErrNotExist):
		// Nobody else is running.
	case err != nil:
		logger.WarnKV(ctx, "Unreadable run marker, replacing it", "path", path, "error", err)
	case isProcessRunning(ctx, holder):
		return nil, fmt.Errorf("pid %d holds %s: %w", holder, path, ErrAlreadyRunning)
	default:
		logger.InfoKV(ctx, "The run marker is stale, replacing it", "path", path, "pid", holder)
	}

	if err = os.MkdirAll(dir, store.DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("create marker directory: %w", err)
	}

	pid := strconv.Itoa(os.Getpid())
	if err = os.WriteFile(path, []byte(pid), markerFilePermissions); err != nil {
		return nil, fmt.Errorf("write run marker: %w", err)
	}

	return &Marker{path: path}, nil
}

// Release removes the marker if it still belongs to this process.
func (m *Marker) Release(ctx context.Context) {
	if m == nil {
		return
	}

	holder, err := readMarker(m.path)
	if err != nil || holder != os.Getpid() {
		return
	}

	if err = os.Remove(m.path); err != nil {
		logger.WarnKV(ctx, "Unable to remove run marker", "path", m.path, "error", err)
	}
}

// readMarker returns the PID stored in the marker file.
func readMarker(path string) (int, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		return 0, fmt.Errorf("parse pid: %w", err)
	}

	return pid, nil
}

// isProcessRunning reports whether pid belongs to another live process.
// Lookup failures are treated as running so that a marker is never stolen blindly.
func isProcessRunning(ctx context.Context, pid int) bool {
	if pid <= 0 || pid == os.Getpid() {
		return false
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		logger.WarnKV(ctx, "Unable to look up marker holder", "pid", pid, "error", err)
		return true
	}

	if process == nil {
		return false
	}

	logger.DebugKV(ctx, "Marker holder is alive", "pid", pid, "executable", process.Executable())

	return true
}
