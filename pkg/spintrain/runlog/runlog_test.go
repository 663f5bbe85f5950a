package runlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerCreatesFileLazily(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)
	defer l.Close()

	assert.NoFileExists(t, l.Path())

	require.NoError(t, l.Info("first line"))
	assert.FileExists(t, l.Path())
	assert.Equal(t, filepath.Join(dir, FileName), l.Path())
}

func TestLoggerAppendsLines(t *testing.T) {
	l := New(t.TempDir())
	defer l.Close()

	require.NoError(t, l.Info("one"))
	require.NoError(t, l.Infof("Epoch#%d. time_cost: %.2f s. train_loss: %.8f. eval_loss: %.8f", 1, 2.5, 0.9, 0.8))

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[INFO] one")
	assert.Contains(t, lines[1], "[INFO] Epoch#1. time_cost: 2.50 s. train_loss: 0.90000000. eval_loss: 0.80000000")
	for _, line := range lines {
		// "2006-01-02 15:04:05 [INFO] ..." layout.
		assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} \[INFO\] `, line)
	}
}

func TestLoggerAppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	l := New(dir)
	require.NoError(t, l.Info("before crash"))
	require.NoError(t, l.Close())

	l2 := New(dir)
	defer l2.Close()
	require.NoError(t, l2.Info("after resume"))

	data, err := os.ReadFile(l2.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "before crash")
	assert.Contains(t, string(data), "after resume")
}

func TestLoggerCloseWithoutWrites(t *testing.T) {
	l := New(t.TempDir())
	assert.NoError(t, l.Close())
}

func TestLoggerInfoFailsOnMissingDir(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, l.Info("cannot write"))
}
