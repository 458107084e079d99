package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWriterRotatesOnSizeLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "svcwatchdog.log")

	w := newFileWriter(path, 32, 0)
	require.NoError(t, w.write([]byte("0123456789")))
	require.NoError(t, w.write([]byte("0123456789")))
	require.NoError(t, w.write([]byte("0123456789")))
	require.NoError(t, w.write([]byte("012345")))
	defer w.close()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var rotated, static int
	for _, e := range entries {
		if e.Name() == "svcwatchdog.log" {
			static++
		} else if strings.HasPrefix(e.Name(), "svcwatchdog.") {
			rotated++
		}
	}
	assert.Equal(t, 1, static)
	assert.GreaterOrEqual(t, rotated, 1)
}

func TestFileWriterEnforcesRetention(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "svcwatchdog.log")

	w := newFileWriter(path, 8, 2)
	for i := 0; i < 6; i++ {
		require.NoError(t, w.write([]byte("0123456789")))
	}
	defer w.close()

	rotated := w.rotationSet()
	assert.LessOrEqual(t, len(rotated), 2)
}

func TestFileWriterUnlimitedRetentionKeepsAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "svcwatchdog.log")

	w := newFileWriter(path, 8, 0)
	for i := 0; i < 5; i++ {
		require.NoError(t, w.write([]byte("0123456789")))
	}
	defer w.close()

	assert.GreaterOrEqual(t, len(w.rotationSet()), 4)
}

func TestFileWriterOpenCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested", "logs")
	path := filepath.Join(nested, "svcwatchdog.log")

	w := newFileWriter(path, 0, 0)
	require.NoError(t, w.write([]byte("hello\n")))
	defer w.close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}
