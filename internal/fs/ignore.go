package fs

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Ignore matches paths against the .gitignore files between a base
// directory and the directory being visited. Parsed files are cached; an
// Ignore is meant for one walk and is not safe for concurrent use.
type Ignore struct {
	base     string
	matchers map[string]*gitignore.GitIgnore
}

// NewIgnore creates an empty matcher rooted at base.
func NewIgnore(base string) *Ignore {
	return &Ignore{base: filepath.Clean(base), matchers: make(map[string]*gitignore.GitIgnore)}
}

// Match reports whether path (absolute, below base) is ignored. The .git
// directory is always ignored.
func (ig *Ignore) Match(path string, isDir bool) bool {
	if ig == nil {
		return false
	}
	if filepath.Base(path) == ".git" {
		return true
	}

	dir := filepath.Dir(path)
	for {
		rel, err := filepath.Rel(dir, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			return false
		}
		rel = filepath.ToSlash(rel)
		if isDir {
			rel += "/"
		}
		if m := ig.load(dir); m != nil && m.MatchesPath(rel) {
			return true
		}

		if dir == ig.base || !strings.HasPrefix(dir, ig.base) {
			return false
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}

func (ig *Ignore) load(dir string) *gitignore.GitIgnore {
	if m, ok := ig.matchers[dir]; ok {
		return m
	}
	var m *gitignore.GitIgnore
	file := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(file); err == nil {
		m, _ = gitignore.CompileIgnoreFile(file)
	}
	ig.matchers[dir] = m
	return m
}
