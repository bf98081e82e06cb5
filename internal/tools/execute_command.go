package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/codefionn/pathguard/internal/logger"
	"github.com/codefionn/pathguard/internal/sandbox"
)

// maxCommandOutput caps each captured stream.
const maxCommandOutput = 256 * 1024

// ExecuteCommandToolSpec describes the execute_command tool
type ExecuteCommandToolSpec struct{}

func (s *ExecuteCommandToolSpec) Name() string {
	return ToolNameExecuteCommand
}

func (s *ExecuteCommandToolSpec) Description() string {
	return "Run a shell command (sh -c) in the working directory or in cwd, which must be an existing directory inside the allowed directories. Returns stdout, stderr and the exit code."
}

func (s *ExecuteCommandToolSpec) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "Command line passed to sh -c",
			},
			"cwd": map[string]interface{}{
				"type":        "string",
				"description": "Working directory for the command (defaults to the current working directory)",
			},
			"timeout_seconds": map[string]interface{}{
				"type":        "integer",
				"description": "Timeout in seconds; cannot exceed the server limit",
			},
		},
		"required": []string{"command"},
	}
}

// ExecuteCommandTool runs commands inside the sandbox's directories.
type ExecuteCommandTool struct {
	sb       *sandbox.Sandbox
	confiner *sandbox.Confiner
	timeout  time.Duration
	log      *logger.Logger
}

// NewExecuteCommandTool creates the terminal tool. timeout is the upper bound
// for a command; confiner may be nil.
func NewExecuteCommandTool(sb *sandbox.Sandbox, confiner *sandbox.Confiner, timeout time.Duration, log *logger.Logger) *ExecuteCommandTool {
	return &ExecuteCommandTool{sb: sb, confiner: confiner, timeout: timeout, log: log}
}

func (t *ExecuteCommandTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	command := GetStringParam(params, "command", "")
	if command == "" {
		return failuref(ToolNameExecuteCommand, "command is required")
	}

	startTime := time.Now()
	cwd := GetStringParam(params, "cwd", "")
	if cwd == "" {
		cwd = "."
	}
	dir, err := t.sb.ResolveDirectory(cwd)
	if err != nil {
		return failure(ToolNameExecuteCommand, err)
	}

	timeout := t.timeout
	if secs := GetIntParam(params, "timeout_seconds", 0); secs > 0 {
		if requested := time.Duration(secs) * time.Second; timeout <= 0 || requested < timeout {
			timeout = requested
		}
	}

	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = dir.Path()
	cmd.Env = os.Environ()
	stdout := &cappedBuffer{limit: maxCommandOutput}
	stderr := &cappedBuffer{limit: maxCommandOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Background children keep the output pipes open; do not wait on them.
	cmd.WaitDelay = time.Second
	ownProcessGroup(cmd)

	confined := t.confiner.Active()
	if err := t.confiner.Wrap(cmd); err != nil {
		return failure(ToolNameExecuteCommand, err)
	}

	t.log.Info("execute_command: %q in %s (timeout=%s, confined=%t)", command, dir.Path(), timeout, confined)
	if err := cmd.Start(); err != nil {
		return failure(ToolNameExecuteCommand, fmt.Errorf("failed to start command: %w", err))
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var timerC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	var (
		waitErr  error
		timedOut bool
	)
	select {
	case waitErr = <-done:
	case <-timerC:
		timedOut = true
		t.log.Warn("execute_command: killing pid %d after %s", cmd.Process.Pid, timeout)
		killProcessGroup(cmd)
		waitErr = <-done
	case <-ctx.Done():
		t.log.Warn("execute_command: killing pid %d: %v", cmd.Process.Pid, ctx.Err())
		killProcessGroup(cmd)
		<-done
		return failure(ToolNameExecuteCommand, ctx.Err())
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return failure(ToolNameExecuteCommand, fmt.Errorf("failed to execute command: %w", waitErr))
		}
		exitCode = exitErr.ExitCode()
	}

	endTime := time.Now()
	outBytes, outLines := CalculateOutputStats(stdout.String())
	result := &ToolResult{
		Result: map[string]interface{}{
			"stdout":    stdout.String(),
			"stderr":    stderr.String(),
			"exit_code": exitCode,
			"timed_out": timedOut,
			"truncated": stdout.truncated || stderr.truncated,
			"cwd":       dir.Path(),
		},
		ExecutionMetadata: &ExecutionMetadata{
			StartTime:       &startTime,
			EndTime:         &endTime,
			DurationMs:      endTime.Sub(startTime).Milliseconds(),
			Command:         command,
			ExitCode:        exitCode,
			PID:             cmd.Process.Pid,
			OutputSizeBytes: outBytes,
			OutputLineCount: outLines,
			HasStderr:       stderr.Len() > 0,
			WorkingDir:      dir.Path(),
			TimeoutSeconds:  int(timeout / time.Second),
			WasTimedOut:     timedOut,
			Confined:        confined,
			ToolType:        ToolNameExecuteCommand,
		},
	}
	if timedOut {
		result.Error = fmt.Sprintf("command timed out after %s", timeout)
		result.ExecutionMetadata.ErrorType = "timeout"
	}
	return result
}

// cappedBuffer keeps the first limit bytes written to it.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - b.buf.Len(); room < len(p) {
		b.truncated = true
		if room > 0 {
			b.buf.Write(p[:room])
		}
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *cappedBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// NewExecuteCommandToolFactory creates a factory for ExecuteCommandTool
func NewExecuteCommandToolFactory(sb *sandbox.Sandbox, confiner *sandbox.Confiner, timeout time.Duration, log *logger.Logger) ToolFactory {
	return func(reg *Registry) ToolExecutor {
		return NewExecuteCommandTool(sb, confiner, timeout, log)
	}
}
