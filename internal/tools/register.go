package tools

import (
	"time"

	"github.com/codefionn/pathguard/internal/logger"
	"github.com/codefionn/pathguard/internal/sandbox"
)

// Dependencies are the runtime services the tools share.
type Dependencies struct {
	Sandbox *sandbox.Sandbox
	// Confiner wraps execute_command; nil runs commands unconfined.
	Confiner       *sandbox.Confiner
	CommandTimeout time.Duration
	Logger         *logger.Logger
	// DisableTerminal leaves out execute_command.
	DisableTerminal bool
}

// NewServerRegistry registers the filesystem, workspace and terminal tools.
func NewServerRegistry(deps Dependencies) *Registry {
	log := deps.Logger
	if log == nil {
		log = logger.Global()
	}
	log = log.WithPrefix("tools")
	sb := deps.Sandbox

	reg := NewRegistry()

	reg.RegisterSpec(&ReadFileToolSpec{}, NewReadFileToolFactory(sb, log))
	reg.RegisterSpec(&ReadMultipleFilesToolSpec{}, NewReadMultipleFilesToolFactory(sb, log))
	reg.RegisterSpec(&WriteFileToolSpec{}, NewWriteFileToolFactory(sb, log))
	reg.RegisterSpec(&EditFileToolSpec{}, NewEditFileToolFactory(sb, log))
	reg.RegisterSpec(&CreateDirectoryToolSpec{}, NewCreateDirectoryToolFactory(sb, log))
	reg.RegisterSpec(&ListDirectoryToolSpec{}, NewListDirectoryToolFactory(sb, log))
	reg.RegisterSpec(&DirectoryTreeToolSpec{}, NewDirectoryTreeToolFactory(sb, log))
	reg.RegisterSpec(&MoveFileToolSpec{}, NewMoveFileToolFactory(sb, log))
	reg.RegisterSpec(&SearchFilesToolSpec{}, NewSearchFilesToolFactory(sb, log))
	reg.RegisterSpec(&GetFileInfoToolSpec{}, NewGetFileInfoToolFactory(sb, log))

	for _, spec := range []ToolSpec{
		&ListAllowedDirectoriesToolSpec{},
		&AddAllowedDirectoryToolSpec{},
		&RemoveAllowedDirectoryToolSpec{},
		&GetCwdToolSpec{},
		&ChangeCwdToolSpec{},
	} {
		reg.RegisterSpec(spec, NewWorkspaceToolFactory(spec.Name(), sb, log))
	}

	if !deps.DisableTerminal {
		reg.RegisterSpec(&ExecuteCommandToolSpec{}, NewExecuteCommandToolFactory(sb, deps.Confiner, deps.CommandTimeout, log))
	}

	return reg
}
