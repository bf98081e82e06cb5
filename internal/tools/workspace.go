package tools

import (
	"context"
	"time"

	"github.com/codefionn/pathguard/internal/logger"
	"github.com/codefionn/pathguard/internal/sandbox"
)

// The workspace tools expose the registry and the working directory. They
// share one executor type that dispatches on the tool name.

// ListAllowedDirectoriesToolSpec describes the list_allowed_directories tool
type ListAllowedDirectoriesToolSpec struct{}

func (s *ListAllowedDirectoriesToolSpec) Name() string {
	return ToolNameListAllowedDirectories
}

func (s *ListAllowedDirectoriesToolSpec) Description() string {
	return "List the directories this server may access, in the order they were added, and the current working directory."
}

func (s *ListAllowedDirectoriesToolSpec) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// AddAllowedDirectoryToolSpec describes the add_allowed_directory tool
type AddAllowedDirectoryToolSpec struct{}

func (s *AddAllowedDirectoryToolSpec) Name() string {
	return ToolNameAddAllowedDirectory
}

func (s *AddAllowedDirectoryToolSpec) Description() string {
	return "Allow access to an existing directory. Adding a directory twice has no effect."
}

func (s *AddAllowedDirectoryToolSpec) Parameters() map[string]interface{} {
	return pathOnlyParameters("Directory to allow")
}

// RemoveAllowedDirectoryToolSpec describes the remove_allowed_directory tool
type RemoveAllowedDirectoryToolSpec struct{}

func (s *RemoveAllowedDirectoryToolSpec) Name() string {
	return ToolNameRemoveAllowedDirectory
}

func (s *RemoveAllowedDirectoryToolSpec) Description() string {
	return "Revoke access to an allowed directory. If the working directory was inside it, the working directory moves to the first remaining allowed directory."
}

func (s *RemoveAllowedDirectoryToolSpec) Parameters() map[string]interface{} {
	return pathOnlyParameters("Allowed directory to remove")
}

// GetCwdToolSpec describes the get_cwd tool
type GetCwdToolSpec struct{}

func (s *GetCwdToolSpec) Name() string {
	return ToolNameGetCwd
}

func (s *GetCwdToolSpec) Description() string {
	return "Return the working directory that relative paths are resolved against."
}

func (s *GetCwdToolSpec) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// ChangeCwdToolSpec describes the change_cwd tool
type ChangeCwdToolSpec struct{}

func (s *ChangeCwdToolSpec) Name() string {
	return ToolNameChangeCwd
}

func (s *ChangeCwdToolSpec) Description() string {
	return "Change the working directory. Relative paths are resolved against the current working directory; the target must be an existing directory inside the allowed directories."
}

func (s *ChangeCwdToolSpec) Parameters() map[string]interface{} {
	return pathOnlyParameters("New working directory")
}

func pathOnlyParameters(description string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": description,
			},
		},
		"required": []string{"path"},
	}
}

// WorkspaceTool executes the workspace tools.
type WorkspaceTool struct {
	name string
	sb   *sandbox.Sandbox
	log  *logger.Logger
}

func NewWorkspaceTool(name string, sb *sandbox.Sandbox, log *logger.Logger) *WorkspaceTool {
	return &WorkspaceTool{name: name, sb: sb, log: log}
}

func (t *WorkspaceTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	startTime := time.Now()
	path := GetStringParam(params, "path", "")
	t.log.Debug("%s: path=%q", t.name, path)

	switch t.name {
	case ToolNameListAllowedDirectories:
		return success(t.name, t.snapshot(), startTime)

	case ToolNameGetCwd:
		cwd, err := t.sb.Cwd()
		if err != nil {
			return failure(t.name, err)
		}
		return success(t.name, map[string]interface{}{"cwd": cwd}, startTime)

	case ToolNameAddAllowedDirectory:
		if path == "" {
			return failuref(t.name, "path is required")
		}
		root, err := t.sb.AddAllowedDirectory(path)
		if err != nil {
			return failure(t.name, err)
		}
		result := t.snapshot()
		result["added"] = root.Path
		return success(t.name, result, startTime)

	case ToolNameRemoveAllowedDirectory:
		if path == "" {
			return failuref(t.name, "path is required")
		}
		if err := t.sb.RemoveAllowedDirectory(path); err != nil {
			return failure(t.name, err)
		}
		return success(t.name, t.snapshot(), startTime)

	case ToolNameChangeCwd:
		if path == "" {
			return failuref(t.name, "path is required")
		}
		cwd, err := t.sb.ChangeCwd(path)
		if err != nil {
			return failure(t.name, err)
		}
		return success(t.name, map[string]interface{}{"cwd": cwd}, startTime)
	}

	return failuref(t.name, "unknown workspace tool: "+t.name)
}

// snapshot reports the roots and the working directory. An empty sandbox
// has no working directory.
func (t *WorkspaceTool) snapshot() map[string]interface{} {
	result := map[string]interface{}{
		"allowed_directories": t.sb.ListAllowedDirectories(),
	}
	if cwd, err := t.sb.Cwd(); err == nil {
		result["cwd"] = cwd
	} else {
		result["cwd"] = nil
	}
	return result
}

// NewWorkspaceToolFactory creates a factory for one workspace tool
func NewWorkspaceToolFactory(name string, sb *sandbox.Sandbox, log *logger.Logger) ToolFactory {
	return func(reg *Registry) ToolExecutor {
		return NewWorkspaceTool(name, sb, log)
	}
}
