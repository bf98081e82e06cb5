// Package fs performs file I/O on paths the sandbox has already validated.
// Every function takes a sandbox.ValidatedPath, so an unchecked string path
// cannot reach the filesystem through this package.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/codefionn/pathguard/internal/sandbox"
)

// FileInfo represents file metadata.
type FileInfo struct {
	Path      string      `json:"path"`
	Name      string      `json:"name"`
	Size      int64       `json:"size"`
	Mode      os.FileMode `json:"-"`
	ModTime   time.Time   `json:"modified"`
	IsDir     bool        `json:"is_dir"`
	IsSymlink bool        `json:"is_symlink,omitempty"`
}

// Permissions renders Mode like ls -l.
func (fi *FileInfo) Permissions() string {
	return fi.Mode.String()
}

func newFileInfo(path string, info os.FileInfo) *FileInfo {
	return &FileInfo{
		Path:      path,
		Name:      info.Name(),
		Size:      info.Size(),
		Mode:      info.Mode(),
		ModTime:   info.ModTime(),
		IsDir:     info.IsDir(),
		IsSymlink: info.Mode()&os.ModeSymlink != 0,
	}
}

// ReadFile reads the whole file at vp.
func ReadFile(ctx context.Context, vp sandbox.ValidatedPath) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !vp.Exists() {
		return nil, fmt.Errorf("file not found: %s: %w", vp.Path(), os.ErrNotExist)
	}
	return os.ReadFile(vp.Path())
}

// ReadFileLines returns lines from..to (1-indexed, inclusive) of data and the
// total number of lines.
func ReadFileLines(data []byte, from, to int) ([]string, int, error) {
	if from < 1 {
		from = 1
	}

	lines := make([]string, 0)
	currentLine := 1
	lineStart := 0

	for i := 0; i < len(data); i++ {
		if data[i] == '\n' {
			if currentLine >= from && (to <= 0 || currentLine <= to) {
				lines = append(lines, string(data[lineStart:i]))
			}
			currentLine++
			lineStart = i + 1
		}
	}

	// Last line without trailing newline
	total := currentLine - 1
	if lineStart < len(data) {
		if currentLine >= from && (to <= 0 || currentLine <= to) {
			lines = append(lines, string(data[lineStart:]))
		}
		total = currentLine
	}

	if from > total && total > 0 {
		return nil, total, fmt.Errorf("from line %d exceeds file length %d", from, total)
	}
	return lines, total, nil
}

// WriteFile replaces the contents of vp, creating missing parent directories.
// The data is written to a temporary file next to the target and renamed
// into place, so readers never observe a partial file.
func WriteFile(ctx context.Context, vp sandbox.ValidatedPath, data []byte, perm os.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := vp.Path()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return fmt.Errorf("cannot write %s: is a directory", path)
		}
		perm = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	target := path
	if vp.Exists() {
		// Write through symlinks instead of replacing the link itself.
		target = vp.Real()
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Stat returns metadata for vp, following symlinks.
func Stat(vp sandbox.ValidatedPath) (*FileInfo, error) {
	info, err := os.Stat(vp.Path())
	if err != nil {
		return nil, err
	}
	fi := newFileInfo(vp.Path(), info)
	if linfo, err := os.Lstat(vp.Path()); err == nil {
		fi.IsSymlink = linfo.Mode()&os.ModeSymlink != 0
	}
	return fi, nil
}

// ListDir lists the entries of the directory at vp sorted by name. Entries
// are not followed: a symlink is reported as a symlink.
func ListDir(ctx context.Context, vp sandbox.ValidatedPath) ([]*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(vp.Path())
	if err != nil {
		return nil, err
	}

	result := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue // removed since ReadDir
		}
		result = append(result, newFileInfo(filepath.Join(vp.Path(), entry.Name()), info))
	}

	sort.Slice(result, func(i, j int) bool {
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})
	return result, nil
}

// MkdirAll creates the directory at vp and any missing parents.
func MkdirAll(vp sandbox.ValidatedPath, perm os.FileMode) error {
	return os.MkdirAll(vp.Path(), perm)
}

// Move renames src to dst. It refuses to replace an existing destination and
// falls back to copy+remove for regular files across filesystems.
func Move(src, dst sandbox.ValidatedPath) error {
	if _, err := os.Lstat(dst.Path()); err == nil {
		return fmt.Errorf("destination already exists: %s: %w", dst.Path(), os.ErrExist)
	}
	if err := os.MkdirAll(filepath.Dir(dst.Path()), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	err := os.Rename(src.Path(), dst.Path())
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}

	info, serr := os.Lstat(src.Path())
	if serr != nil {
		return serr
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("cannot move %s across filesystems: not a regular file", src.Path())
	}
	if err := CopyFile(src.Path(), dst.Path(), info.Mode().Perm()); err != nil {
		return err
	}
	return os.Remove(src.Path())
}

// CopyFile copies the regular file src to dst, which must not exist.
func CopyFile(src, dst string, perm os.FileMode) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		destFile.Close()
		_ = os.Remove(dst)
		return err
	}
	return destFile.Close()
}
