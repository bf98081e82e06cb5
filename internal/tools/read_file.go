package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/codefionn/pathguard/internal/fs"
	"github.com/codefionn/pathguard/internal/logger"
	"github.com/codefionn/pathguard/internal/sandbox"
)

// maxReadLines bounds one read_file call; callers page with from_line/to_line.
const maxReadLines = 2000

// ReadFileToolSpec describes the read_file tool
type ReadFileToolSpec struct{}

func (s *ReadFileToolSpec) Name() string {
	return ToolNameReadFile
}

func (s *ReadFileToolSpec) Description() string {
	return fmt.Sprintf("Read a text file inside the allowed directories. Can read the entire file or a line range. At most %d lines per read.", maxReadLines)
}

func (s *ReadFileToolSpec) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file (absolute, ~-relative or relative to the working directory)",
			},
			"from_line": map[string]interface{}{
				"type":        "integer",
				"description": "Starting line number (1-indexed, optional)",
			},
			"to_line": map[string]interface{}{
				"type":        "integer",
				"description": "Ending line number (1-indexed, inclusive, optional)",
			},
		},
		"required": []string{"path"},
	}
}

// ReadFileTool is the executor with runtime dependencies
type ReadFileTool struct {
	sb  *sandbox.Sandbox
	log *logger.Logger
}

func NewReadFileTool(sb *sandbox.Sandbox, log *logger.Logger) *ReadFileTool {
	return &ReadFileTool{sb: sb, log: log}
}

func (t *ReadFileTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	path := GetStringParam(params, "path", "")
	if path == "" {
		return failuref(ToolNameReadFile, "path is required")
	}
	fromLine := GetIntParam(params, "from_line", 0)
	toLine := GetIntParam(params, "to_line", 0)

	startTime := time.Now()
	t.log.Debug("read_file: path=%s, from_line=%d, to_line=%d", path, fromLine, toLine)

	result, err := readText(ctx, t.sb, path, fromLine, toLine)
	if err != nil {
		return failure(ToolNameReadFile, err)
	}
	t.log.Info("read_file: read %s (%d lines)", result["path"], result["lines"])
	return success(ToolNameReadFile, result, startTime)
}

// readText resolves path and returns its content as a result map. It is
// shared by read_file and read_multiple_files.
func readText(ctx context.Context, sb *sandbox.Sandbox, path string, fromLine, toLine int) (map[string]interface{}, error) {
	vp, err := sb.Resolve(path)
	if err != nil {
		return nil, err
	}

	data, err := fs.ReadFile(ctx, vp)
	if err != nil {
		return nil, err
	}
	if isLikelyBinaryFile(vp.Path(), data) {
		return nil, fmt.Errorf("%s appears to be a binary file (%d bytes)", vp.Path(), len(data))
	}

	if fromLine > 0 && toLine > 0 && toLine < fromLine {
		return nil, fmt.Errorf("to_line %d is before from_line %d", toLine, fromLine)
	}
	if fromLine <= 0 {
		fromLine = 1
	}
	if toLine <= 0 || toLine-fromLine+1 > maxReadLines {
		toLine = fromLine + maxReadLines - 1
	}

	lines, total, err := fs.ReadFileLines(data, fromLine, toLine)
	if err != nil {
		return nil, err
	}

	content := strings.Join(lines, "\n")
	if fromLine == 1 && toLine >= total && strings.HasSuffix(string(data), "\n") {
		content += "\n"
	}
	if last := fromLine + len(lines) - 1; last < total {
		content += fmt.Sprintf("\n\n[... showing lines %d-%d of %d. Use from_line and to_line to read more]", fromLine, last, total)
	}

	return map[string]interface{}{
		"path":        vp.Path(),
		"content":     content,
		"lines":       len(lines),
		"total_lines": total,
	}, nil
}

// Known binary extensions where returning raw bytes is not useful.
var binaryExtensions = map[string]struct{}{
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".a": {}, ".o": {},
	".wasm": {}, ".zip": {}, ".gz": {}, ".tar": {}, ".png": {}, ".jpg": {},
	".jpeg": {}, ".gif": {}, ".pdf": {}, ".db": {}, ".sqlite": {},
}

// isLikelyBinaryFile checks the extension and looks for NUL bytes in the
// first 512 bytes.
func isLikelyBinaryFile(path string, data []byte) bool {
	if _, ok := binaryExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return true
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	for _, b := range head {
		if b == 0 {
			return true
		}
	}
	return false
}

// NewReadFileToolFactory creates a factory for ReadFileTool
func NewReadFileToolFactory(sb *sandbox.Sandbox, log *logger.Logger) ToolFactory {
	return func(reg *Registry) ToolExecutor {
		return NewReadFileTool(sb, log)
	}
}
