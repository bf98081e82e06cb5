package tools

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/codefionn/pathguard/internal/sandbox"
)

// failure turns err into an error result for tool. Sandbox rejections keep
// their own message, which names the offending path and, for paths outside
// every root, the allow-list.
func failure(tool string, err error) *ToolResult {
	return &ToolResult{
		Error:   err.Error(),
		IsError: true,
		ExecutionMetadata: &ExecutionMetadata{
			ToolType:  tool,
			ErrorType: classifyError(err),
		},
	}
}

// failuref is failure for errors that only exist as text.
func failuref(tool, msg string) *ToolResult {
	return &ToolResult{
		Error:   msg,
		IsError: true,
		ExecutionMetadata: &ExecutionMetadata{
			ToolType:  tool,
			ErrorType: "invalid_arguments",
		},
	}
}

// success wraps result with timing metadata.
func success(tool string, result interface{}, started time.Time) *ToolResult {
	ended := time.Now()
	return &ToolResult{
		Result: result,
		ExecutionMetadata: &ExecutionMetadata{
			StartTime:  &started,
			EndTime:    &ended,
			DurationMs: ended.Sub(started).Milliseconds(),
			ToolType:   tool,
		},
	}
}

// classifyError categorizes errors for clients.
func classifyError(err error) string {
	if err == nil {
		return ""
	}

	switch sandbox.KindOf(err) {
	case sandbox.KindOutsideAllowedRoots,
		sandbox.KindSymlinkEscapesSandbox,
		sandbox.KindParentDirectoryOutsideSandbox,
		sandbox.KindSandboxEmpty:
		return "access_denied"
	case sandbox.KindDoesNotExist, sandbox.KindParentDirectoryMissing, sandbox.KindNotInRegistry:
		return "not_found"
	case sandbox.KindNotADirectory:
		return "not_a_directory"
	case sandbox.KindResolutionFailed:
		if errors.Is(err, fs.ErrPermission) {
			return "permission"
		}
		return "resolution_failed"
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, fs.ErrNotExist):
		return "not_found"
	case errors.Is(err, fs.ErrExist):
		return "already_exists"
	case errors.Is(err, fs.ErrPermission):
		return "permission"
	}

	if strings.Contains(strings.ToLower(err.Error()), "exit status") {
		return "process_exit"
	}
	return "unknown"
}
