package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// dailyFile is a zapcore.WriteSyncer appending to <dir>/<tool>_<YYYYMMDD>.log.
// The file is switched on the first write after the date changes in location.
type dailyFile struct {
	mu       sync.Mutex
	dir      string
	tool     string
	location *time.Location
	now      func() time.Time
	name     string
	file     *os.File
}

// openDailyFile creates the log directory and opens the file of the current day.
func openDailyFile(dir, tool string, location *time.Location, now func() time.Time) (*dailyFile, error) {
	if tool == "" {
		return nil, errToolRequired
	}

	d := &dailyFile{
		dir:      filepath.Clean(dir),
		tool:     tool,
		location: location,
		now:      now,
	}

	if err := os.MkdirAll(d.dir, DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("create log directory %q: %w", d.dir, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.rotate(); err != nil {
		return nil, err
	}

	return d, nil
}

// Write appends p to the file of the current day.
func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.rotate(); err != nil {
		return 0, err
	}

	return d.file.Write(p)
}

// Sync flushes the current file.
func (d *dailyFile) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}

	return d.file.Sync()
}

// Close closes the current file. Later writes reopen it.
func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}

	err := d.file.Close()
	d.file = nil
	d.name = ""

	return err
}

// rotate opens the file for the current date when it is not the open one.
// The caller holds d.mu.
func (d *dailyFile) rotate() error {
	name := FileName(d.tool, d.now().In(d.location))
	if d.file != nil && name == d.name {
		return nil
	}

	path := filepath.Join(d.dir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, DefaultFilePermissions)
	if err != nil {
		return fmt.Errorf("open log file %q: %w", path, err)
	}

	previous := d.file
	d.file = file
	d.name = name

	if previous != nil {
		_ = previous.Close()
	}

	return nil
}
