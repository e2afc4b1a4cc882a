package fsutil_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qube-forensics/sealcheck/pkg/fsutil"
)

func leftovers(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var tmp []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), fsutil.TmpPrefix) {
			tmp = append(tmp, e.Name())
		}
	}
	return tmp
}

func TestAtomicWrite_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sealed.ndjson")
	data := []byte(`{"a":1}` + "\n")

	require.NoError(t, fsutil.AtomicWrite(path, data, 0644))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, content)
	assert.Empty(t, leftovers(t, dir))
}

func TestAtomicWrite_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sealcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	require.NoError(t, fsutil.AtomicWrite(path, []byte("new"), 0600))

	content, _ := os.ReadFile(path)
	assert.Equal(t, "new", string(content))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestPendingFile_TargetUntouchedUntilCommit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.ndjson")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0644))

	p, err := fsutil.Create(path, 0644)
	require.NoError(t, err)
	_, err = p.WriteString("next")
	require.NoError(t, err)

	content, _ := os.ReadFile(path)
	assert.Equal(t, "previous", string(content))

	require.NoError(t, p.Commit())
	content, _ = os.ReadFile(path)
	assert.Equal(t, "next", string(content))

	assert.Error(t, p.Commit(), "second commit")
	p.Abort() // no-op after commit
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestPendingFile_Abort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.ndjson")

	p, err := fsutil.Create(path, 0644)
	require.NoError(t, err)
	_, err = p.WriteString("partial")
	require.NoError(t, err)
	p.Abort()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, leftovers(t, dir))
}

func TestCreate_MissingDir(t *testing.T) {
	_, err := fsutil.Create(filepath.Join(t.TempDir(), "missing", "x"), 0644)
	assert.Error(t, err)
}

func TestFsyncDir(t *testing.T) {
	assert.NoError(t, fsutil.FsyncDir(t.TempDir()))
	assert.Error(t, fsutil.FsyncDir(filepath.Join(t.TempDir(), "nope")))
}
