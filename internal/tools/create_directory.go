package tools

import (
	"context"
	"time"

	"github.com/codefionn/pathguard/internal/fs"
	"github.com/codefionn/pathguard/internal/logger"
	"github.com/codefionn/pathguard/internal/sandbox"
)

// CreateDirectoryToolSpec describes the create_directory tool
type CreateDirectoryToolSpec struct{}

func (s *CreateDirectoryToolSpec) Name() string {
	return ToolNameCreateDirectory
}

func (s *CreateDirectoryToolSpec) Description() string {
	return "Create a directory, including missing parents. Succeeds if the directory already exists."
}

func (s *CreateDirectoryToolSpec) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory to create",
			},
		},
		"required": []string{"path"},
	}
}

type CreateDirectoryTool struct {
	sb  *sandbox.Sandbox
	log *logger.Logger
}

func NewCreateDirectoryTool(sb *sandbox.Sandbox, log *logger.Logger) *CreateDirectoryTool {
	return &CreateDirectoryTool{sb: sb, log: log}
}

func (t *CreateDirectoryTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	path := GetStringParam(params, "path", "")
	if path == "" {
		return failuref(ToolNameCreateDirectory, "path is required")
	}

	startTime := time.Now()
	vp, err := t.sb.Resolve(path)
	if err != nil {
		return failure(ToolNameCreateDirectory, err)
	}
	if err := fs.MkdirAll(vp, 0755); err != nil {
		return failure(ToolNameCreateDirectory, err)
	}

	t.log.Info("create_directory: %s", vp.Path())
	return success(ToolNameCreateDirectory, map[string]interface{}{
		"path":    vp.Path(),
		"created": !vp.Exists(),
	}, startTime)
}

// NewCreateDirectoryToolFactory creates a factory for CreateDirectoryTool
func NewCreateDirectoryToolFactory(sb *sandbox.Sandbox, log *logger.Logger) ToolFactory {
	return func(reg *Registry) ToolExecutor {
		return NewCreateDirectoryTool(sb, log)
	}
}
