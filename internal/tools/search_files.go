package tools

import (
	"context"
	"errors"
	iofs "io/fs"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/codefionn/pathguard/internal/fs"
	"github.com/codefionn/pathguard/internal/logger"
	"github.com/codefionn/pathguard/internal/sandbox"
)

const (
	defaultSearchResults = 100
	maxSearchResults     = 1000
	maxContentScanBytes  = 1 << 20
)

var errSearchLimit = errors.New("search result limit reached")

// SearchFilesToolSpec describes the search_files tool
type SearchFilesToolSpec struct{}

func (s *SearchFilesToolSpec) Name() string {
	return ToolNameSearchFiles
}

func (s *SearchFilesToolSpec) Description() string {
	return "Search for files below a directory by name. A pattern containing glob characters is matched against the relative path ('**' for any depth); otherwise it is a case-insensitive substring of the file name. Optionally filter by content. Symlinks are not followed."
}

func (s *SearchFilesToolSpec) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"pattern": map[string]interface{}{
				"type":        "string",
				"description": "Glob (e.g. '**/*.go') or name substring",
			},
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory to search (defaults to the working directory)",
			},
			"exclude_patterns": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Glob patterns to skip",
			},
			"content_regex": map[string]interface{}{
				"type":        "string",
				"description": "Only return text files whose content matches this regex",
			},
			"max_results": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum number of results (default 100, max 1000)",
			},
			"respect_gitignore": map[string]interface{}{
				"type":        "boolean",
				"description": "Skip files ignored by .gitignore (default true)",
			},
		},
		"required": []string{"pattern"},
	}
}

type SearchFilesTool struct {
	sb  *sandbox.Sandbox
	log *logger.Logger
}

func NewSearchFilesTool(sb *sandbox.Sandbox, log *logger.Logger) *SearchFilesTool {
	return &SearchFilesTool{sb: sb, log: log}
}

func (t *SearchFilesTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	pattern := GetStringParam(params, "pattern", "")
	if pattern == "" {
		return failuref(ToolNameSearchFiles, "pattern is required")
	}
	glob := strings.ContainsAny(pattern, "*?[{")
	if glob && !doublestar.ValidatePattern(pattern) {
		return failuref(ToolNameSearchFiles, "invalid glob pattern: "+pattern)
	}
	exclude, err := GetStringSliceParam(params, "exclude_patterns")
	if err != nil {
		return failuref(ToolNameSearchFiles, err.Error())
	}

	var contentRe *regexp.Regexp
	if expr := GetStringParam(params, "content_regex", ""); expr != "" {
		if contentRe, err = regexp.Compile(expr); err != nil {
			return failuref(ToolNameSearchFiles, "invalid content_regex: "+err.Error())
		}
	}

	maxResults := GetIntParam(params, "max_results", defaultSearchResults)
	if maxResults > maxSearchResults {
		maxResults = maxSearchResults
	}
	if maxResults < 1 {
		maxResults = 1
	}

	startTime := time.Now()
	base, err := t.sb.ResolveDirectory(GetStringParam(params, "path", "."))
	if err != nil {
		return failure(ToolNameSearchFiles, err)
	}

	var ignore *fs.Ignore
	if GetBoolParam(params, "respect_gitignore", true) {
		ignore = fs.NewIgnore(base.Path())
	}

	var (
		matches   []string
		skipped   int
		truncated bool
		lowerPat  = strings.ToLower(pattern)
	)

	walkErr := filepath.WalkDir(base.Path(), func(p string, d iofs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil || p == base.Path() {
			return nil
		}

		rel, _ := filepath.Rel(base.Path(), p)
		rel = filepath.ToSlash(rel)

		if ignore.Match(p, d.IsDir()) || matchesAny(exclude, rel, d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		var ok bool
		if glob {
			ok, _ = doublestar.Match(pattern, rel)
			if !ok && !strings.Contains(pattern, "/") {
				ok, _ = doublestar.Match(pattern, d.Name())
			}
		} else {
			ok = strings.Contains(strings.ToLower(d.Name()), lowerPat)
		}
		if !ok {
			return nil
		}

		// A match reached through the walk may still be a symlink leading out
		// of the sandbox, so it is validated like any request.
		vp, err := t.sb.Resolve(p)
		if err != nil {
			skipped++
			return nil
		}

		if contentRe != nil {
			if d.IsDir() || !contentMatches(ctx, vp, contentRe) {
				return nil
			}
		}

		if len(matches) >= maxResults {
			truncated = true
			return errSearchLimit
		}
		matches = append(matches, vp.Path())
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, errSearchLimit) {
		return failure(ToolNameSearchFiles, walkErr)
	}

	t.log.Debug("search_files: %q in %s: %d matches, %d skipped", pattern, base.Path(), len(matches), skipped)
	return success(ToolNameSearchFiles, map[string]interface{}{
		"path":      base.Path(),
		"matches":   matches,
		"count":     len(matches),
		"truncated": truncated,
		"skipped":   skipped,
	}, startTime)
}

func matchesAny(patterns []string, rel, name string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func contentMatches(ctx context.Context, vp sandbox.ValidatedPath, re *regexp.Regexp) bool {
	data, err := fs.ReadFile(ctx, vp)
	if err != nil || len(data) > maxContentScanBytes || isLikelyBinaryFile(vp.Path(), data) {
		return false
	}
	return re.Match(data)
}

// NewSearchFilesToolFactory creates a factory for SearchFilesTool
func NewSearchFilesToolFactory(sb *sandbox.Sandbox, log *logger.Logger) ToolFactory {
	return func(reg *Registry) ToolExecutor {
		return NewSearchFilesTool(sb, log)
	}
}
