package logger

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		" Error ": zapcore.ErrorLevel,
		"panic":   zapcore.PanicLevel,
		"fatal":   zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestNew_WritesConsoleAndDailyFile checks both outputs and the dated file name.
func TestNew_WritesConsoleAndDailyFile(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "logs")
	fixed := time.Date(2025, time.March, 9, 23, 30, 0, 0, time.UTC)
	dhaka := time.FixedZone("BST", 6*60*60)

	var console bytes.Buffer

	l, cleanup, err := New(Config{
		Level:    zapcore.InfoLevel,
		Dir:      dir,
		Tool:     "dmd-downloader",
		Location: dhaka,
		Console:  &console,
		Now:      func() time.Time { return fixed },
	})
	require.NoError(t, err)

	l.Infow("hello", "file", "a.zip")
	l.Debug("hidden")
	cleanup()

	// 23:30 UTC is already the next day in UTC+6.
	path := filepath.Join(dir, "dmd-downloader_20250310.log")

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "hello")
	require.Contains(t, string(contents), "INFO")
	require.NotContains(t, string(contents), "hidden")

	require.Contains(t, console.String(), "hello")
}

// TestNew_FileRequiresTool ensures file logging cannot silently produce a nameless file.
func TestNew_FileRequiresTool(t *testing.T) {
	t.Parallel()

	_, _, err := New(Config{Dir: t.TempDir()})
	require.ErrorIs(t, err, errToolRequired)
}

// TestFromContext_Fallback verifies that a bare context yields a usable no-op logger.
func TestFromContext_Fallback(t *testing.T) {
	t.Parallel()

	require.NotNil(t, FromContext(context.Background()))

	var console bytes.Buffer

	l, cleanup, err := New(Config{Level: zapcore.DebugLevel, Console: &console})
	require.NoError(t, err)

	ctx := WithKV(WithName(ToContext(context.Background(), l), "sync"), "run_id", "r1")
	InfoKV(ctx, "scoped")
	cleanup()

	require.Contains(t, console.String(), "sync")
	require.Contains(t, console.String(), "run_id")
}

// TestNew_SwitchesFileAtMidnight keeps one file per day for a long-lived logger.
func TestNew_SwitchesFileAtMidnight(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dhaka := time.FixedZone("BST", 6*60*60)

	var (
		mu      sync.Mutex
		current = time.Date(2025, time.March, 10, 17, 55, 0, 0, time.UTC)
	)

	l, cleanup, err := New(Config{
		Level:    zapcore.InfoLevel,
		Dir:      dir,
		Tool:     "dmd-downloader",
		Location: dhaka,
		Console:  io.Discard,
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()

			return current
		},
	})
	require.NoError(t, err)

	l.Info("before midnight")

	// 18:05 UTC is 00:05 on the next day in UTC+6.
	mu.Lock()
	current = current.Add(10 * time.Minute)
	mu.Unlock()

	l.Info("after midnight")
	cleanup()

	first, err := os.ReadFile(filepath.Join(dir, "dmd-downloader_20250310.log"))
	require.NoError(t, err)
	require.Contains(t, string(first), "before midnight")
	require.NotContains(t, string(first), "after midnight")

	second, err := os.ReadFile(filepath.Join(dir, "dmd-downloader_20250311.log"))
	require.NoError(t, err)
	require.Contains(t, string(second), "after midnight")
	require.NotContains(t, string(second), "before midnight")
}
