package tools

const (
	ToolNameReadFile          = "read_file"
	ToolNameReadMultipleFiles = "read_multiple_files"
	ToolNameWriteFile         = "write_file"
	ToolNameEditFile          = "edit_file"
	ToolNameCreateDirectory   = "create_directory"
	ToolNameListDirectory     = "list_directory"
	ToolNameDirectoryTree     = "directory_tree"
	ToolNameMoveFile          = "move_file"
	ToolNameSearchFiles       = "search_files"
	ToolNameGetFileInfo       = "get_file_info"

	ToolNameListAllowedDirectories = "list_allowed_directories"
	ToolNameAddAllowedDirectory    = "add_allowed_directory"
	ToolNameRemoveAllowedDirectory = "remove_allowed_directory"
	ToolNameGetCwd                 = "get_cwd"
	ToolNameChangeCwd              = "change_cwd"
	ToolNameExecuteCommand         = "execute_command"
)
