package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/codefionn/pathguard/internal/fs"
	"github.com/codefionn/pathguard/internal/logger"
	"github.com/codefionn/pathguard/internal/sandbox"
)

// ListDirectoryToolSpec describes the list_directory tool
type ListDirectoryToolSpec struct{}

func (s *ListDirectoryToolSpec) Name() string {
	return ToolNameListDirectory
}

func (s *ListDirectoryToolSpec) Description() string {
	return "List directory contents. Entries are marked [DIR], [FILE] or [LINK]; long_format adds permissions, sizes and timestamps."
}

func (s *ListDirectoryToolSpec) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory to list (optional, defaults to the working directory)",
			},
			"long_format": map[string]interface{}{
				"type":        "boolean",
				"description": "Show permissions, size and modification time",
			},
			"all": map[string]interface{}{
				"type":        "boolean",
				"description": "Show hidden files (files starting with .)",
			},
			"sort_by_time": map[string]interface{}{
				"type":        "boolean",
				"description": "Sort by modification time (newest first)",
			},
			"reverse": map[string]interface{}{
				"type":        "boolean",
				"description": "Reverse sort order",
			},
		},
	}
}

type ListDirectoryTool struct {
	sb  *sandbox.Sandbox
	log *logger.Logger
}

func NewListDirectoryTool(sb *sandbox.Sandbox, log *logger.Logger) *ListDirectoryTool {
	return &ListDirectoryTool{sb: sb, log: log}
}

func (t *ListDirectoryTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	path := GetStringParam(params, "path", ".")
	if path == "" {
		path = "."
	}
	longFormat := GetBoolParam(params, "long_format", false)
	all := GetBoolParam(params, "all", false)
	sortByTime := GetBoolParam(params, "sort_by_time", false)
	reverse := GetBoolParam(params, "reverse", false)

	startTime := time.Now()
	vp, err := t.sb.ResolveDirectory(path)
	if err != nil {
		return failure(ToolNameListDirectory, err)
	}

	entries, err := fs.ListDir(ctx, vp)
	if err != nil {
		return failure(ToolNameListDirectory, fmt.Errorf("failed to read directory %s: %w", vp.Path(), err))
	}

	files := entries[:0]
	for _, entry := range entries {
		if !all && strings.HasPrefix(entry.Name, ".") {
			continue
		}
		files = append(files, entry)
	}

	if sortByTime {
		sort.SliceStable(files, func(i, j int) bool {
			return files[i].ModTime.After(files[j].ModTime)
		})
	}
	if reverse {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}

	result := make([]interface{}, 0, len(files))
	outputLines := make([]string, 0, len(files))
	for _, file := range files {
		if longFormat {
			result = append(result, formatLongEntry(file))
			outputLines = append(outputLines, longFormatLine(file))
		} else {
			result = append(result, formatShortEntry(file))
			outputLines = append(outputLines, entryMarker(file)+" "+file.Name)
		}
	}

	t.log.Debug("list_directory: %s (%d entries)", vp.Path(), len(files))
	res := success(ToolNameListDirectory, map[string]interface{}{
		"path":    vp.Path(),
		"entries": result,
		"listing": strings.Join(outputLines, "\n"),
	}, startTime)
	res.ExecutionMetadata.WorkingDir = vp.Path()
	res.ExecutionMetadata.OutputLineCount = len(outputLines)
	return res
}

func entryMarker(file *fs.FileInfo) string {
	switch {
	case file.IsSymlink:
		return "[LINK]"
	case file.IsDir:
		return "[DIR]"
	default:
		return "[FILE]"
	}
}

func formatShortEntry(file *fs.FileInfo) map[string]interface{} {
	return map[string]interface{}{
		"name":       file.Name,
		"size":       file.Size,
		"is_dir":     file.IsDir,
		"is_symlink": file.IsSymlink,
		"mod_time":   file.ModTime,
	}
}

func formatLongEntry(file *fs.FileInfo) map[string]interface{} {
	return map[string]interface{}{
		"name":        file.Name,
		"size":        file.Size,
		"permissions": file.Permissions(),
		"is_dir":      file.IsDir,
		"is_symlink":  file.IsSymlink,
		"mod_time":    file.ModTime.Format("Jan 02 15:04"),
		"full_size":   formatFileSize(file.Size),
	}
}

func longFormatLine(file *fs.FileInfo) string {
	return fmt.Sprintf("%s %6s %s  %s",
		file.Permissions(),
		formatFileSize(file.Size),
		file.ModTime.Format("Jan 02 15:04"),
		file.Name,
	)
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%d%c", size/div, "KMGTP"[exp])
}

// NewListDirectoryToolFactory creates a factory for ListDirectoryTool
func NewListDirectoryToolFactory(sb *sandbox.Sandbox, log *logger.Logger) ToolFactory {
	return func(reg *Registry) ToolExecutor {
		return NewListDirectoryTool(sb, log)
	}
}
