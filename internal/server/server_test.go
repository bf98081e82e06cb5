package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/pathguard/internal/logger"
	"github.com/codefionn/pathguard/internal/sandbox"
	"github.com/codefionn/pathguard/internal/tools"
)

type response struct {
	ID                string                   `json:"id"`
	Result            map[string]interface{}   `json:"result"`
	Error             string                   `json:"error"`
	IsError           bool                     `json:"is_error"`
	ExecutionMetadata *tools.ExecutionMetadata `json:"execution_metadata"`
}

func newServer(t *testing.T) (*Server, string) {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	log := logger.NewWriter(logger.LevelNone, nil, "")
	sb, err := sandbox.New(sandbox.Options{AllowedDirectories: []string{root}, HomeDir: root, Logger: log})
	require.NoError(t, err)

	reg := tools.NewServerRegistry(tools.Dependencies{Sandbox: sb, DisableTerminal: true, Logger: log})
	return New(reg, Options{Logger: log, MaxConcurrent: 4}), root
}

func serve(t *testing.T, s *Server, input string) map[string]response {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, s.Serve(context.Background(), strings.NewReader(input), &out))

	responses := make(map[string]response)
	scanner := bufio.NewScanner(&out)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var r response
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r), scanner.Text())
		_, dup := responses[r.ID]
		require.False(t, dup, "duplicate response for %q", r.ID)
		responses[r.ID] = r
	}
	require.NoError(t, scanner.Err())
	return responses
}

func TestServeListTools(t *testing.T) {
	s, _ := newServer(t)

	responses := serve(t, s, `{"id":"1","name":"list_tools"}`+"\n")
	require.Contains(t, responses, "1")
	list := responses["1"].Result["tools"].([]interface{})
	assert.Len(t, list, 15)

	names := make([]string, 0, len(list))
	for _, item := range list {
		names = append(names, item.(map[string]interface{})["name"].(string))
	}
	assert.Contains(t, names, tools.ToolNameReadFile)
	assert.NotContains(t, names, tools.ToolNameExecuteCommand)
}

func TestServeToolCalls(t *testing.T) {
	s, root := newServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hi"), 0644))

	input := strings.Join([]string{
		`{"id":"read","name":"read_file","parameters":{"path":"hello.txt"}}`,
		`{"id":"deny","name":"read_file","parameters":{"path":"/etc/passwd"}}`,
		``,
		`{"id":"nope","name":"no_such_tool"}`,
		`{"id":"noname"}`,
	}, "\n")

	responses := serve(t, s, input)
	require.Len(t, responses, 4)

	assert.False(t, responses["read"].IsError)
	assert.Equal(t, "hi", responses["read"].Result["content"])

	assert.True(t, responses["deny"].IsError)
	assert.Contains(t, responses["deny"].Error, "access denied")
	assert.Equal(t, "access_denied", responses["deny"].ExecutionMetadata.ErrorType)

	assert.Equal(t, "tool not found: no_such_tool", responses["nope"].Error)
	assert.Equal(t, "name is required", responses["noname"].Error)
}

func TestServeInvalidJSON(t *testing.T) {
	s, _ := newServer(t)

	responses := serve(t, s, "{not json}\n"+`{"id":"after","name":"get_cwd"}`+"\n")
	require.Contains(t, responses, "")
	assert.Contains(t, responses[""].Error, "invalid JSON")
	assert.Equal(t, "invalid_request", responses[""].ExecutionMetadata.ErrorType)

	require.Contains(t, responses, "after", "a bad line does not stop the server")
	assert.False(t, responses["after"].IsError)
}

func TestServeAssignsMissingIDs(t *testing.T) {
	s, _ := newServer(t)

	responses := serve(t, s, `{"name":"get_cwd"}`)
	require.Len(t, responses, 1)
	for id := range responses {
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	}
}

func TestServeManyConcurrentCalls(t *testing.T) {
	s, root := newServer(t)

	var input strings.Builder
	for i := 0; i < 50; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, fmt.Sprintf("f%d.txt", i)), []byte(fmt.Sprint(i)), 0644))
		fmt.Fprintf(&input, `{"id":"c%d","name":"read_file","parameters":{"path":"f%d.txt"}}`+"\n", i, i)
	}

	responses := serve(t, s, input.String())
	require.Len(t, responses, 50)
	for i := 0; i < 50; i++ {
		r := responses[fmt.Sprintf("c%d", i)]
		assert.Equal(t, fmt.Sprint(i), r.Result["content"])
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	s, _ := newServer(t)
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx, pr, &bytes.Buffer{})
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
