package tools

import (
	"context"
	"time"

	"github.com/codefionn/pathguard/internal/fs"
	"github.com/codefionn/pathguard/internal/logger"
	"github.com/codefionn/pathguard/internal/sandbox"
)

// WriteFileToolSpec describes the write_file tool
type WriteFileToolSpec struct{}

func (s *WriteFileToolSpec) Name() string {
	return ToolNameWriteFile
}

func (s *WriteFileToolSpec) Description() string {
	return "Create a file or replace its entire content. Missing parent directories inside the allowed directories are created."
}

func (s *WriteFileToolSpec) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "File to write",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Complete new content of the file",
			},
		},
		"required": []string{"path", "content"},
	}
}

type WriteFileTool struct {
	sb  *sandbox.Sandbox
	log *logger.Logger
}

func NewWriteFileTool(sb *sandbox.Sandbox, log *logger.Logger) *WriteFileTool {
	return &WriteFileTool{sb: sb, log: log}
}

func (t *WriteFileTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	path := GetStringParam(params, "path", "")
	if path == "" {
		return failuref(ToolNameWriteFile, "path is required")
	}
	content, ok := params["content"].(string)
	if !ok {
		return failuref(ToolNameWriteFile, "content is required")
	}

	startTime := time.Now()
	vp, err := t.sb.Resolve(path)
	if err != nil {
		return failure(ToolNameWriteFile, err)
	}

	if err := fs.WriteFile(ctx, vp, []byte(content), 0644); err != nil {
		t.log.Error("write_file: %v", err)
		return failure(ToolNameWriteFile, err)
	}

	t.log.Info("write_file: wrote %s (%d bytes)", vp.Path(), len(content))
	return success(ToolNameWriteFile, map[string]interface{}{
		"path":          vp.Path(),
		"bytes_written": len(content),
		"created":       !vp.Exists(),
	}, startTime)
}

// NewWriteFileToolFactory creates a factory for WriteFileTool
func NewWriteFileToolFactory(sb *sandbox.Sandbox, log *logger.Logger) ToolFactory {
	return func(reg *Registry) ToolExecutor {
		return NewWriteFileTool(sb, log)
	}
}
