package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// maxSymlinkHops bounds how many dangling links are followed by hand, matching
// the kernel's MAXSYMLINKS.
const maxSymlinkHops = 40

// candidate is a path after canonicalization, ready for containment checks.
type candidate struct {
	// lexical is the absolute, cleaned path the caller asked for. It is what
	// a successful validation hands back for I/O.
	lexical string
	// real is the symlink-free location of lexical when it exists, otherwise
	// of its nearest existing ancestor.
	real string
	// ancestorUsed is set when lexical does not exist and real belongs to an
	// ancestor.
	ancestorUsed bool
	// dangling is set when a symlink on the way to the missing target was
	// followed by hand because its own target does not exist yet.
	dangling bool
}

type canonicalizer struct {
	home string
}

// expandHome rewrites "~" and "~/..." to the home directory. "~user" is left
// alone and ends up as a relative name.
func (c canonicalizer) expandHome(p string) string {
	if c.home == "" {
		return p
	}
	if p == "~" {
		return c.home
	}
	if strings.HasPrefix(p, "~/") || strings.HasPrefix(p, "~"+string(filepath.Separator)) {
		return filepath.Join(c.home, p[2:])
	}
	return p
}

// absolute performs the lexical steps: home expansion, joining with base and
// cleaning. It never touches the filesystem.
func (c canonicalizer) absolute(raw, base string) (string, error) {
	if raw == "" {
		return "", &Rejection{Kind: KindResolutionFailed, Path: raw, Err: errors.New("empty path")}
	}
	if strings.ContainsRune(raw, 0) {
		return "", &Rejection{Kind: KindResolutionFailed, Path: raw, Err: errors.New("path contains NUL byte")}
	}

	p := c.expandHome(raw)
	if !filepath.IsAbs(p) {
		if base == "" {
			return "", &Rejection{Kind: KindResolutionFailed, Path: raw, Err: errors.New("relative path without working directory")}
		}
		p = filepath.Join(base, p)
	}
	return filepath.Clean(p), nil
}

// canonicalize turns raw into a candidate, resolving relative paths against
// base. Only "does not exist" falls back to the nearest existing ancestor;
// every other filesystem error is a rejection.
func (c canonicalizer) canonicalize(raw, base string) (candidate, error) {
	lexical, err := c.absolute(raw, base)
	if err != nil {
		return candidate{}, err
	}

	real, err := filepath.EvalSymlinks(lexical)
	if err == nil {
		return candidate{lexical: lexical, real: real}, nil
	}
	if !isNotExist(err) {
		return candidate{}, &Rejection{Kind: KindResolutionFailed, Path: lexical, Err: err}
	}

	ancestor, dangling, err := nearestExistingDir(lexical)
	if err != nil {
		return candidate{}, err
	}
	return candidate{lexical: lexical, real: ancestor, ancestorUsed: true, dangling: dangling}, nil
}

// nearestExistingDir walks up from a path that does not exist to the closest
// directory that does, returning its real path. Symlinks whose target is
// missing are followed by hand so that a later create through the link is
// judged by where it would actually land.
func nearestExistingDir(p string) (string, bool, error) {
	var (
		cur      = p
		dangling bool
		hops     int
	)

	for {
		real, err := filepath.EvalSymlinks(cur)
		if err == nil {
			info, err := os.Stat(real)
			if err != nil {
				return "", dangling, &Rejection{Kind: KindResolutionFailed, Path: p, Err: err}
			}
			if !info.IsDir() {
				return "", dangling, &Rejection{Kind: KindParentDirectoryMissing, Path: p, Resolved: real}
			}
			return real, dangling, nil
		}
		if !isNotExist(err) {
			return "", dangling, &Rejection{Kind: KindResolutionFailed, Path: p, Err: err}
		}

		info, lerr := os.Lstat(cur)
		switch {
		case lerr == nil && info.Mode()&fs.ModeSymlink != 0:
			hops++
			if hops > maxSymlinkHops {
				return "", dangling, &Rejection{Kind: KindResolutionFailed, Path: p, Err: syscall.ELOOP}
			}
			next, err := followLink(cur)
			if err != nil {
				return "", dangling, &Rejection{Kind: KindResolutionFailed, Path: p, Err: err}
			}
			cur = next
			dangling = true
		case lerr == nil:
			// Exists yet could not be resolved a moment ago: changing under us.
			return "", dangling, &Rejection{Kind: KindResolutionFailed, Path: p,
				Err: fmt.Errorf("%s changed during resolution", cur)}
		case isNotExist(lerr):
			parent := filepath.Dir(cur)
			if parent == cur {
				return "", dangling, reject(KindParentDirectoryMissing, p)
			}
			cur = parent
		default:
			return "", dangling, &Rejection{Kind: KindResolutionFailed, Path: p, Err: lerr}
		}
	}
}

// followLink returns the absolute target of the symlink at p. Relative
// targets are interpreted against the real parent directory, the way the
// kernel would.
func followLink(p string) (string, error) {
	target, err := os.Readlink(p)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target), nil
	}
	parent, err := filepath.EvalSymlinks(filepath.Dir(p))
	if err != nil {
		return "", err
	}
	return filepath.Join(parent, target), nil
}

// isNotExist treats ENOTDIR like ENOENT: a regular file in the middle of a
// path means the rest of it does not exist.
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
