package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ToolSpec is the static description of a tool (name, description, JSON
// schema of its parameters). Specs carry no runtime dependencies.
type ToolSpec interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
}

// ToolExecutor runs a tool with its runtime dependencies.
type ToolExecutor interface {
	Execute(ctx context.Context, params map[string]interface{}) *ToolResult
}

// ToolFactory creates an executor. It receives the registry so that
// executors can reach other tools.
type ToolFactory func(registry *Registry) ToolExecutor

// ToolCall is one request from a client.
type ToolCall struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// ToolResult is the response to a ToolCall. IsError marks Error as a
// reportable tool failure (such as an access denial) rather than a
// transport problem.
type ToolResult struct {
	ID      string      `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
	IsError bool        `json:"is_error,omitempty"`

	ExecutionMetadata *ExecutionMetadata `json:"execution_metadata,omitempty"`
}

// ExecutionMetadata captures details about one execution.
type ExecutionMetadata struct {
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	DurationMs int64      `json:"duration_ms,omitempty"`

	Command  string `json:"command,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
	PID      int    `json:"pid,omitempty"`

	OutputSizeBytes int  `json:"output_size_bytes,omitempty"`
	OutputLineCount int  `json:"output_line_count,omitempty"`
	HasStderr       bool `json:"has_stderr,omitempty"`

	WorkingDir     string `json:"working_dir,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	WasTimedOut    bool   `json:"was_timed_out,omitempty"`
	Confined       bool   `json:"confined,omitempty"`

	ToolType string `json:"tool_type,omitempty"`

	// "access_denied", "timeout", "not_found", "permission", ...
	ErrorType string `json:"error_type,omitempty"`
}

type registryEntry struct {
	spec     ToolSpec
	executor ToolExecutor
}

// Registry manages the available tools. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
	}
}

// RegisterSpec adds a tool spec with a factory to the registry.
func (r *Registry) RegisterSpec(spec ToolSpec, factory ToolFactory) {
	executor := factory(r)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[spec.Name()] = &registryEntry{
		spec:     spec,
		executor: executor,
	}
}

// GetExecutor retrieves a tool executor by name.
func (r *Registry) GetExecutor(name string) (ToolExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return entry.executor, true
}

// ListSpecs returns all registered tool specs sorted by name.
func (r *Registry) ListSpecs() []ToolSpec {
	r.mu.RLock()
	result := make([]ToolSpec, 0, len(r.entries))
	for _, entry := range r.entries {
		result = append(result, entry.spec)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

// Execute executes a tool call.
func (r *Registry) Execute(ctx context.Context, call *ToolCall) *ToolResult {
	executor, ok := r.GetExecutor(call.Name)
	if !ok {
		return &ToolResult{
			ID:      call.ID,
			Error:   "tool not found: " + call.Name,
			IsError: true,
		}
	}

	params := call.Parameters
	if params == nil {
		params = map[string]interface{}{}
	}

	result := executor.Execute(ctx, params)
	if result == nil {
		return &ToolResult{
			ID:      call.ID,
			Error:   "tool returned nil result",
			IsError: true,
		}
	}

	if result.Error != "" {
		result.IsError = true
	}
	result.ID = call.ID
	return result
}

// ToJSONSchema describes the registered tools for clients.
func (r *Registry) ToJSONSchema() []map[string]interface{} {
	specs := r.ListSpecs()
	schemas := make([]map[string]interface{}, 0, len(specs))
	for _, spec := range specs {
		schemas = append(schemas, map[string]interface{}{
			"name":        spec.Name(),
			"description": spec.Description(),
			"parameters":  spec.Parameters(),
		})
	}
	return schemas
}

// CalculateOutputStats computes statistics for output content.
func CalculateOutputStats(content string) (bytes int, lines int) {
	if content == "" {
		return 0, 0
	}
	bytes = len(content)
	lines = strings.Count(content, "\n") + 1
	return bytes, lines
}

// Helper function to get string parameter
func GetStringParam(params map[string]interface{}, key string, defaultVal string) string {
	if val, ok := params[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultVal
}

// Helper function to get int parameter
func GetIntParam(params map[string]interface{}, key string, defaultVal int) int {
	if val, ok := params[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case float64:
			return int(v)
		case json.Number:
			if i, err := v.Int64(); err == nil {
				return int(i)
			}
		}
	}
	return defaultVal
}

// Helper function to get bool parameter
func GetBoolParam(params map[string]interface{}, key string, defaultVal bool) bool {
	if val, ok := params[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// GetStringSliceParam reads a list of strings. Non-string elements are an error.
func GetStringSliceParam(params map[string]interface{}, key string) ([]string, error) {
	val, ok := params[key]
	if !ok || val == nil {
		return nil, nil
	}

	switch v := val.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", key, i)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be an array of strings", key)
	}
}

func pointerToTime(t time.Time) *time.Time {
	return &t
}
