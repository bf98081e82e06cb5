package sandbox

import (
	"path/filepath"
	"strings"
)

// Root is an allowed directory as reported to callers.
type Root struct {
	Path string `json:"path"`
	// Missing is set when the directory no longer exists on disk. Such a root
	// still bounds the sandbox until it is removed.
	Missing bool `json:"missing,omitempty"`
}

// registry is the ordered set of canonical allowed directories. It is not
// safe for concurrent use; Sandbox serializes access.
type registry struct {
	roots []string
}

func (r *registry) len() int {
	return len(r.roots)
}

func (r *registry) first() string {
	if len(r.roots) == 0 {
		return ""
	}
	return r.roots[0]
}

func (r *registry) indexOf(root string) int {
	for i, existing := range r.roots {
		if existing == root {
			return i
		}
	}
	return -1
}

// add appends root and reports whether it was new.
func (r *registry) add(root string) bool {
	if r.indexOf(root) >= 0 {
		return false
	}
	r.roots = append(r.roots, root)
	return true
}

// remove deletes an exact match and reports whether one existed.
func (r *registry) remove(root string) bool {
	i := r.indexOf(root)
	if i < 0 {
		return false
	}
	r.roots = append(r.roots[:i:i], r.roots[i+1:]...)
	return true
}

func (r *registry) snapshot() []string {
	out := make([]string, len(r.roots))
	copy(out, r.roots)
	return out
}

// containsPrefix reports whether candidate is one of the roots or lies below
// one of them.
func (r *registry) containsPrefix(candidate string) bool {
	for _, root := range r.roots {
		if within(root, candidate) {
			return true
		}
	}
	return false
}

// within compares whole path segments: /home/alice-evil is not within
// /home/alice. Both arguments must be clean absolute paths.
func within(root, candidate string) bool {
	if candidate == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(candidate, prefix)
}
