package tools

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/codefionn/pathguard/internal/fs"
	"github.com/codefionn/pathguard/internal/logger"
	"github.com/codefionn/pathguard/internal/sandbox"
)

const (
	defaultTreeDepth = 5
	maxTreeEntries   = 5000
)

// DirectoryTreeToolSpec describes the directory_tree tool
type DirectoryTreeToolSpec struct{}

func (s *DirectoryTreeToolSpec) Name() string {
	return ToolNameDirectoryTree
}

func (s *DirectoryTreeToolSpec) Description() string {
	return "Return a recursive tree of a directory as JSON. Symlinks are reported but not followed."
}

func (s *DirectoryTreeToolSpec) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory to describe (defaults to the working directory)",
			},
			"max_depth": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum depth (default 5)",
			},
			"exclude_patterns": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Glob patterns (relative to path, ** supported) to leave out",
			},
			"respect_gitignore": map[string]interface{}{
				"type":        "boolean",
				"description": "Skip files ignored by .gitignore (default true)",
			},
		},
	}
}

type DirectoryTreeTool struct {
	sb  *sandbox.Sandbox
	log *logger.Logger
}

func NewDirectoryTreeTool(sb *sandbox.Sandbox, log *logger.Logger) *DirectoryTreeTool {
	return &DirectoryTreeTool{sb: sb, log: log}
}

// treeNode is one entry of the tree.
type treeNode struct {
	Name      string      `json:"name"`
	Type      string      `json:"type"` // directory, file, symlink, truncated
	Children  []*treeNode `json:"children,omitempty"`
	Truncated bool        `json:"truncated,omitempty"`
}

type treeWalker struct {
	base     string
	maxDepth int
	exclude  []string
	ignore   *fs.Ignore
	count    int
}

func (t *DirectoryTreeTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	path := GetStringParam(params, "path", ".")
	if path == "" {
		path = "."
	}
	maxDepth := GetIntParam(params, "max_depth", defaultTreeDepth)
	if maxDepth < 1 {
		maxDepth = 1
	}
	exclude, err := GetStringSliceParam(params, "exclude_patterns")
	if err != nil {
		return failuref(ToolNameDirectoryTree, err.Error())
	}
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return failuref(ToolNameDirectoryTree, "invalid exclude pattern: "+pattern)
		}
	}

	startTime := time.Now()
	vp, err := t.sb.ResolveDirectory(path)
	if err != nil {
		return failure(ToolNameDirectoryTree, err)
	}

	w := &treeWalker{base: vp.Path(), maxDepth: maxDepth, exclude: exclude}
	if GetBoolParam(params, "respect_gitignore", true) {
		w.ignore = fs.NewIgnore(vp.Path())
	}

	children, err := w.walk(ctx, vp.Path(), 1)
	if err != nil {
		return failure(ToolNameDirectoryTree, err)
	}

	t.log.Debug("directory_tree: %s (%d entries)", vp.Path(), w.count)
	return success(ToolNameDirectoryTree, map[string]interface{}{
		"path":    vp.Path(),
		"tree":    children,
		"entries": w.count,
	}, startTime)
}

func (w *treeWalker) walk(ctx context.Context, dir string, depth int) ([]*treeNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	nodes := make([]*treeNode, 0, len(entries))
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		if w.excluded(full, entry.IsDir()) {
			continue
		}
		if w.count >= maxTreeEntries {
			nodes = append(nodes, &treeNode{Name: "...", Type: "truncated", Truncated: true})
			break
		}
		w.count++

		node := &treeNode{Name: entry.Name(), Type: "file"}
		switch {
		case entry.Type()&os.ModeSymlink != 0:
			node.Type = "symlink"
		case entry.IsDir():
			node.Type = "directory"
			if depth >= w.maxDepth {
				node.Truncated = true
				break
			}
			children, err := w.walk(ctx, full, depth+1)
			if err != nil {
				if ctx.Err() != nil {
					return nil, err
				}
				node.Truncated = true
				break
			}
			node.Children = children
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (w *treeWalker) excluded(full string, isDir bool) bool {
	if w.ignore.Match(full, isDir) {
		return true
	}
	rel, err := filepath.Rel(w.base, full)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, filepath.Base(full)); ok {
			return true
		}
	}
	return false
}

// NewDirectoryTreeToolFactory creates a factory for DirectoryTreeTool
func NewDirectoryTreeToolFactory(sb *sandbox.Sandbox, log *logger.Logger) ToolFactory {
	return func(reg *Registry) ToolExecutor {
		return NewDirectoryTreeTool(sb, log)
	}
}
