package tools

import (
	"context"
	"time"

	"github.com/codefionn/pathguard/internal/fs"
	"github.com/codefionn/pathguard/internal/logger"
	"github.com/codefionn/pathguard/internal/sandbox"
)

// MoveFileToolSpec describes the move_file tool
type MoveFileToolSpec struct{}

func (s *MoveFileToolSpec) Name() string {
	return ToolNameMoveFile
}

func (s *MoveFileToolSpec) Description() string {
	return "Move or rename a file or directory. Both source and destination must be inside the allowed directories; the destination must not exist."
}

func (s *MoveFileToolSpec) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"source": map[string]interface{}{
				"type":        "string",
				"description": "Existing file or directory",
			},
			"destination": map[string]interface{}{
				"type":        "string",
				"description": "New location",
			},
		},
		"required": []string{"source", "destination"},
	}
}

type MoveFileTool struct {
	sb  *sandbox.Sandbox
	log *logger.Logger
}

func NewMoveFileTool(sb *sandbox.Sandbox, log *logger.Logger) *MoveFileTool {
	return &MoveFileTool{sb: sb, log: log}
}

func (t *MoveFileTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	source := GetStringParam(params, "source", "")
	destination := GetStringParam(params, "destination", "")
	if source == "" || destination == "" {
		return failuref(ToolNameMoveFile, "source and destination are required")
	}

	startTime := time.Now()
	src, err := t.sb.ResolveEntry(source)
	if err != nil {
		return failure(ToolNameMoveFile, err)
	}
	if !src.Exists() {
		return failure(ToolNameMoveFile, &sandbox.Rejection{Kind: sandbox.KindDoesNotExist, Path: src.Path()})
	}
	dst, err := t.sb.Resolve(destination)
	if err != nil {
		return failure(ToolNameMoveFile, err)
	}

	if err := fs.Move(src, dst); err != nil {
		return failure(ToolNameMoveFile, err)
	}

	t.log.Info("move_file: %s -> %s", src.Path(), dst.Path())
	return success(ToolNameMoveFile, map[string]interface{}{
		"source":      src.Path(),
		"destination": dst.Path(),
	}, startTime)
}

// NewMoveFileToolFactory creates a factory for MoveFileTool
func NewMoveFileToolFactory(sb *sandbox.Sandbox, log *logger.Logger) ToolFactory {
	return func(reg *Registry) ToolExecutor {
		return NewMoveFileTool(sb, log)
	}
}
