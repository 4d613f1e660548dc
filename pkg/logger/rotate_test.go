package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRotatingWriterShiftsBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "tools.log")
	w, err := newRotatingWriter(path, 1, 2, 30)
	require.NoError(t, err)
	w.maxSize = 16
	t.Cleanup(func() { _ = w.Close() })

	for _, line := range []string{"first-line-0001\n", "second-line-002\n", "third-line-0003\n"} {
		_, err := w.Write([]byte(line))
		require.NoError(t, err)
	}

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "third-line-0003\n", string(current))

	first, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	require.Equal(t, "second-line-002\n", string(first))

	second, err := os.ReadFile(path + ".2")
	require.NoError(t, err)
	require.Equal(t, "first-line-0001\n", string(second))
}

func TestRotatingWriterPrunesOldBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.log")
	w, err := newRotatingWriter(path, 1, 3, 1)
	require.NoError(t, err)
	w.maxSize = 4
	t.Cleanup(func() { _ = w.Close() })

	stale := path + ".2"
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	old := time.Now().Add(-72 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	_, err = w.Write([]byte("abcd"))
	require.NoError(t, err)
	_, err = w.Write([]byte("efgh"))
	require.NoError(t, err)

	_, err = os.Stat(path + ".3")
	require.True(t, os.IsNotExist(err), "stale backup shifted to .3 should have been pruned")
	got, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	require.True(t, bytes.Equal(got, []byte("abcd")))
}
