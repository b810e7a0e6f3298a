package fsutil

import (
	"os"
	"os/user"
	"path"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
)

func TestReplaceTildeInDir(t *testing.T) {
	usr := must.M1(user.Current())

	dir, err := ReplaceTildeInDir("~/kernels")
	require.NoError(t, err)
	require.Equal(t, path.Join(usr.HomeDir, "kernels"), dir)

	dir, err = ReplaceTildeInDir("/tmp/kernels")
	require.NoError(t, err)
	require.Equal(t, "/tmp/kernels", dir)

	dir, err = ReplaceTildeInDir("")
	require.NoError(t, err)
	require.Equal(t, "", dir)

	_, err = ReplaceTildeInDir("~no_such_user_for_sure/kernels")
	require.Error(t, err)
}

func TestCopyFile(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "conv1.cl_cache")
	dst := filepath.Join(tmp, "out.cl_cache")
	must.M(os.WriteFile(src, []byte("kernel binary"), 0644))
	must.M(os.WriteFile(dst, []byte("stale contents, longer than the new ones"), 0644))

	require.NoError(t, CopyFile(src, dst))
	require.Equal(t, "kernel binary", string(must.M1(os.ReadFile(dst))))

	require.Error(t, CopyFile(filepath.Join(tmp, "missing"), dst))
}

func TestRemoveIfExistsAndExists(t *testing.T) {
	tmp := t.TempDir()
	f := filepath.Join(tmp, "conv1.gen")
	must.M(os.WriteFile(f, nil, 0644))

	found, err := Exists(f)
	require.NoError(t, err)
	require.True(t, found)

	removed, err := RemoveIfExists(f)
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = RemoveIfExists(f)
	require.NoError(t, err)
	require.False(t, removed)

	found, err = Exists(f)
	require.NoError(t, err)
	require.False(t, found)
}

func TestResetDirAndGlob(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, ResetDir(dir))
	for _, name := range []string{"b.cl", "a.cl", "notes.txt"} {
		must.M(os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	must.M(os.Mkdir(filepath.Join(dir, "sub.cl"), 0755))

	files, err := Glob(dir, ".cl")
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "a.cl"), filepath.Join(dir, "b.cl")}, files)

	require.NoError(t, ResetDir(dir))
	files, err = Glob(dir, ".cl")
	require.NoError(t, err)
	require.Empty(t, files)
}
