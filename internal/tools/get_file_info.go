package tools

import (
	"context"
	"time"

	"github.com/codefionn/pathguard/internal/fs"
	"github.com/codefionn/pathguard/internal/logger"
	"github.com/codefionn/pathguard/internal/sandbox"
)

// GetFileInfoToolSpec describes the get_file_info tool
type GetFileInfoToolSpec struct{}

func (s *GetFileInfoToolSpec) Name() string {
	return ToolNameGetFileInfo
}

func (s *GetFileInfoToolSpec) Description() string {
	return "Return metadata for a file or directory: size, permissions, modification time, type and its resolved location."
}

func (s *GetFileInfoToolSpec) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "File or directory",
			},
		},
		"required": []string{"path"},
	}
}

type GetFileInfoTool struct {
	sb  *sandbox.Sandbox
	log *logger.Logger
}

func NewGetFileInfoTool(sb *sandbox.Sandbox, log *logger.Logger) *GetFileInfoTool {
	return &GetFileInfoTool{sb: sb, log: log}
}

func (t *GetFileInfoTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	path := GetStringParam(params, "path", "")
	if path == "" {
		return failuref(ToolNameGetFileInfo, "path is required")
	}

	startTime := time.Now()
	vp, err := t.sb.Resolve(path)
	if err != nil {
		return failure(ToolNameGetFileInfo, err)
	}
	if !vp.Exists() {
		return failure(ToolNameGetFileInfo, &sandbox.Rejection{Kind: sandbox.KindDoesNotExist, Path: vp.Path()})
	}

	info, err := fs.Stat(vp)
	if err != nil {
		return failure(ToolNameGetFileInfo, err)
	}

	t.log.Debug("get_file_info: %s", vp.Path())
	return success(ToolNameGetFileInfo, map[string]interface{}{
		"path":        vp.Path(),
		"real_path":   vp.Real(),
		"size":        info.Size,
		"permissions": info.Permissions(),
		"modified":    info.ModTime,
		"is_dir":      info.IsDir,
		"is_symlink":  info.IsSymlink,
	}, startTime)
}

// NewGetFileInfoToolFactory creates a factory for GetFileInfoTool
func NewGetFileInfoToolFactory(sb *sandbox.Sandbox, log *logger.Logger) ToolFactory {
	return func(reg *Registry) ToolExecutor {
		return NewGetFileInfoTool(sb, log)
	}
}
