package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/pathguard/internal/sandbox"
)

func setup(t *testing.T) (string, *sandbox.Sandbox) {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	sb, err := sandbox.New(sandbox.Options{AllowedDirectories: []string{root}, HomeDir: root})
	require.NoError(t, err)
	return root, sb
}

func resolve(t *testing.T, sb *sandbox.Sandbox, p string) sandbox.ValidatedPath {
	t.Helper()
	vp, err := sb.Resolve(p)
	require.NoError(t, err)
	return vp
}

func TestReadFileLines(t *testing.T) {
	data := []byte("one\ntwo\nthree\nfour")

	lines, total, err := ReadFileLines(data, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"two", "three"}, lines)
	assert.Equal(t, 4, total)

	lines, _, err = ReadFileLines(data, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"three", "four"}, lines)

	_, _, err = ReadFileLines(data, 9, 10)
	assert.Error(t, err)

	lines, total, err = ReadFileLines([]byte("a\nb\n"), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, lines)
	assert.Equal(t, 2, total)

	lines, total, err = ReadFileLines(nil, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Zero(t, total)
}

func TestWriteFileCreatesParents(t *testing.T) {
	root, sb := setup(t)
	ctx := context.Background()

	vp := resolve(t, sb, "nested/dir/file.txt")
	require.NoError(t, WriteFile(ctx, vp, []byte("hello"), 0644))

	data, err := os.ReadFile(filepath.Join(root, "nested", "dir", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	entries, err := os.ReadDir(filepath.Join(root, "nested", "dir"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must be gone")
}

func TestWriteFileKeepsModeAndFollowsLinks(t *testing.T) {
	root, sb := setup(t)
	ctx := context.Background()

	target := filepath.Join(root, "script.sh")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0755))
	require.NoError(t, os.Symlink(target, filepath.Join(root, "link.sh")))

	vp := resolve(t, sb, "link.sh")
	require.NoError(t, WriteFile(ctx, vp, []byte("new"), 0644))

	info, err := os.Lstat(filepath.Join(root, "link.sh"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink, "link must survive the write")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	info, err = os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}

func TestWriteFileRejectsDirectory(t *testing.T) {
	root, sb := setup(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0755))

	err := WriteFile(context.Background(), resolve(t, sb, "dir"), []byte("x"), 0644)
	assert.ErrorContains(t, err, "is a directory")
}

func TestReadFileMissing(t *testing.T) {
	_, sb := setup(t)

	_, err := ReadFile(context.Background(), resolve(t, sb, "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestListDirAndStat(t *testing.T) {
	root, sb := setup(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("bb"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "A.txt"), []byte("a"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "c"), 0755))
	require.NoError(t, os.Symlink(filepath.Join(root, "b.txt"), filepath.Join(root, "d")))

	entries, err := ListDir(context.Background(), resolve(t, sb, "."))
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "A.txt", entries[0].Name)
	assert.Equal(t, "b.txt", entries[1].Name)
	assert.True(t, entries[2].IsDir)
	assert.True(t, entries[3].IsSymlink)

	fi, err := Stat(resolve(t, sb, "d"))
	require.NoError(t, err)
	assert.True(t, fi.IsSymlink)
	assert.Equal(t, int64(2), fi.Size)
	assert.Equal(t, "-rw-r--r--", fi.Permissions())
}

func TestMove(t *testing.T) {
	root, sb := setup(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "src.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "taken.txt"), []byte("y"), 0644))

	err := Move(resolve(t, sb, "src.txt"), resolve(t, sb, "taken.txt"))
	assert.ErrorIs(t, err, os.ErrExist)

	require.NoError(t, Move(resolve(t, sb, "src.txt"), resolve(t, sb, "sub/dst.txt")))
	_, err = os.Stat(filepath.Join(root, "src.txt"))
	assert.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(filepath.Join(root, "sub", "dst.txt"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestCopyFileRefusesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0600))

	require.NoError(t, CopyFile(src, dst, 0600))
	assert.Error(t, CopyFile(src, dst, 0600))
}

func TestIgnore(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\nbuild/\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg", "build"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", ".gitignore"), []byte("secret.txt\n"), 0644))

	ig := NewIgnore(root)
	assert.True(t, ig.Match(filepath.Join(root, "app.log"), false))
	assert.True(t, ig.Match(filepath.Join(root, "pkg", "deep", "trace.log"), false))
	assert.True(t, ig.Match(filepath.Join(root, "pkg", "build"), true))
	assert.True(t, ig.Match(filepath.Join(root, "pkg", "secret.txt"), false))
	assert.True(t, ig.Match(filepath.Join(root, ".git"), true))
	assert.False(t, ig.Match(filepath.Join(root, "secret.txt"), false))
	assert.False(t, ig.Match(filepath.Join(root, "main.go"), false))

	var none *Ignore
	assert.False(t, none.Match(filepath.Join(root, "app.log"), false))
}
