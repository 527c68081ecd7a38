package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBackupFileCopiesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.py")
	require.NoError(t, os.WriteFile(path, []byte("print('a')\n"), 0o644))

	backup, err := BackupFile(path)
	require.NoError(t, err)
	require.Equal(t, path+".orig", backup)

	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	require.Equal(t, "print('a')\n", string(data))
}

func TestBackupFileMissingSource(t *testing.T) {
	_, err := BackupFile(filepath.Join(t.TempDir(), "missing.py"))
	require.Error(t, err)
}

func TestWriteFileAtomicReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "main.go")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSafeJoinRejectsEscape(t *testing.T) {
	base := t.TempDir()
	_, err := SafeJoin(base, "../outside.txt")
	require.Error(t, err)

	got, err := SafeJoin(base, "inside/file.txt")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "inside", "file.txt"), got)
}
