package build

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggingConsoleAndFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var console bytes.Buffer

	logs, err := NewLogging(LogConfig{Dir: dir, Level: "debug"}, &console)
	require.NoError(t, err)

	logs.Root.Info("hello from root", "k", "v")
	logs.SubLogger("TEST").Debugf("sub %d", 7)
	require.NoError(t, logs.Close())

	out := console.String()
	require.Contains(t, out, "hello from root")
	require.Contains(t, out, "TEST")
	require.Contains(t, out, "sub 7")

	data, err := os.ReadFile(filepath.Join(dir, DefaultLogFilename))
	require.NoError(t, err)
	require.Contains(t, string(data), "hello from root")
}

func TestLoggingLevelFilters(t *testing.T) {
	t.Parallel()

	var console bytes.Buffer
	logs, err := NewLogging(LogConfig{Level: "warn"}, &console)
	require.NoError(t, err)

	logs.Root.Info("quiet")
	logs.Root.Warn("loud")
	require.NoError(t, logs.Close())

	require.NotContains(t, console.String(), "quiet")
	require.Contains(t, console.String(), "loud")
}

func TestLoggingRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := NewLogging(LogConfig{Level: "loudest"}, &bytes.Buffer{})
	require.ErrorContains(t, err, "unknown log level")
}

func TestVersion(t *testing.T) {
	t.Parallel()

	require.Equal(t, "0.1.0", Version())
	require.Nil(t, Tags())
}
