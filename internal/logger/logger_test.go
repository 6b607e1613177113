package logger

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWithoutFilePathLogsToStderrOnly(t *testing.T) {
	l := New(Config{Level: slog.LevelInfo})
	require.NotNil(t, l)
	l.Info("hello")
}

func TestNewWithFilePathDuplicatesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.log")

	l := New(Config{FilePath: path, Level: slog.LevelInfo})
	l.Info("started", "server", "demo")

	data, err := os.ReadFile(path)
	require.NoError(t, err, "expected log file at %s", path)
	require.Contains(t, string(data), "started")
}

func TestNewFileHandlerWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.log")

	l := New(Config{FilePath: path, Level: slog.LevelInfo})
	l.Info("server started", "server_id", "abc123")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan(), "expected at least one line in log file")
	line := scanner.Text()
	require.True(t, strings.HasPrefix(strings.TrimSpace(line), "{"), "expected JSON line in file sink, got %q", line)
	require.Contains(t, line, "server_id")
}

func TestValOr(t *testing.T) {
	require.Equal(t, 7, valOr(0, 7), "expected default for zero")
	require.Equal(t, 7, valOr(-1, 7), "expected default for negative")
	require.Equal(t, 42, valOr(42, 7), "expected override to win")
}
