//go:build !windows

package tools

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/pathguard/internal/logger"
	"github.com/codefionn/pathguard/internal/sandbox"
)

func TestExecuteCommand(t *testing.T) {
	f := newFixture(t)
	f.write(t, "sub/marker.txt", "")

	res := f.ok(t, ToolNameExecuteCommand, map[string]interface{}{"command": "pwd; echo oops >&2"})
	assert.Equal(t, f.root, strings.TrimSpace(res["stdout"].(string)))
	assert.Equal(t, "oops\n", res["stderr"])
	assert.Equal(t, 0, res["exit_code"])

	res = f.ok(t, ToolNameExecuteCommand, map[string]interface{}{"command": "ls", "cwd": "sub"})
	assert.Equal(t, "marker.txt\n", res["stdout"])
	assert.Equal(t, filepath.Join(f.root, "sub"), res["cwd"])
}

func TestExecuteCommandExitCode(t *testing.T) {
	f := newFixture(t)

	res := f.call(t, ToolNameExecuteCommand, map[string]interface{}{"command": "exit 3"})
	assert.False(t, res.IsError, "a failing command is still a result")
	assert.Equal(t, 3, res.Result.(map[string]interface{})["exit_code"])
	assert.Equal(t, 3, res.ExecutionMetadata.ExitCode)
}

func TestExecuteCommandOutsideCwd(t *testing.T) {
	f := newFixture(t)
	outside := f.outside(t)

	r := f.denied(t, ToolNameExecuteCommand, map[string]interface{}{"command": "touch planted", "cwd": outside})
	assert.Equal(t, "access_denied", r.ExecutionMetadata.ErrorType)

	f.denied(t, ToolNameExecuteCommand, map[string]interface{}{"command": ""})
}

func TestExecuteCommandTimeout(t *testing.T) {
	f := newFixture(t)

	start := time.Now()
	res := f.call(t, ToolNameExecuteCommand, map[string]interface{}{"command": "sleep 30", "timeout_seconds": float64(1)})
	assert.Less(t, time.Since(start), 10*time.Second)
	require.True(t, res.IsError)
	assert.Contains(t, res.Error, "timed out")
	assert.True(t, res.ExecutionMetadata.WasTimedOut)
	assert.Equal(t, "timeout", res.ExecutionMetadata.ErrorType)
}

func TestExecuteCommandCanceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res := f.reg.Execute(ctx, &ToolCall{ID: "c", Name: ToolNameExecuteCommand, Parameters: map[string]interface{}{"command": "sleep 30"}})
	require.True(t, res.IsError)
	assert.Equal(t, "timeout", res.ExecutionMetadata.ErrorType)
}

func TestExecuteCommandOutputCap(t *testing.T) {
	f := newFixture(t)

	res := f.ok(t, ToolNameExecuteCommand, map[string]interface{}{"command": "head -c 300000 /dev/zero | tr '\\0' a"})
	assert.Equal(t, true, res["truncated"])
	assert.Len(t, res["stdout"], maxCommandOutput)
}

func TestExecuteCommandEmptySandboxWithConfiner(t *testing.T) {
	log := logger.NewWriter(logger.LevelNone, nil, "")
	sb, err := sandbox.New(sandbox.Options{Logger: log})
	require.NoError(t, err)
	confiner := sandbox.NewConfiner(sb, sandbox.ConfineOptions{Enabled: true, Executable: "/bin/true", Logger: log})

	reg := NewServerRegistry(Dependencies{Sandbox: sb, Confiner: confiner, Logger: log})
	res := reg.Execute(context.Background(), &ToolCall{ID: "x", Name: ToolNameExecuteCommand, Parameters: map[string]interface{}{"command": "true"}})
	require.True(t, res.IsError)
	assert.Equal(t, "access_denied", res.ExecutionMetadata.ErrorType)
}
