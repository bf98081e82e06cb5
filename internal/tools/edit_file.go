package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"

	"github.com/codefionn/pathguard/internal/fs"
	"github.com/codefionn/pathguard/internal/logger"
	"github.com/codefionn/pathguard/internal/sandbox"
)

// EditFileToolSpec describes the edit_file tool
type EditFileToolSpec struct{}

func (s *EditFileToolSpec) Name() string {
	return ToolNameEditFile
}

func (s *EditFileToolSpec) Description() string {
	return "Edit an existing text file, either with exact text replacements (each old_text must match exactly once unless replace_all is set) or by applying a unified diff. All edits succeed or none are written. Returns a unified diff of the change."
}

func (s *EditFileToolSpec) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "File to edit",
			},
			"edits": map[string]interface{}{
				"type":        "array",
				"description": "Replacements applied in order",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"old_text":    map[string]interface{}{"type": "string"},
						"new_text":    map[string]interface{}{"type": "string"},
						"replace_all": map[string]interface{}{"type": "boolean"},
					},
					"required": []string{"old_text", "new_text"},
				},
			},
			"diff": map[string]interface{}{
				"type":        "string",
				"description": "Unified diff to apply instead of edits",
			},
			"dry_run": map[string]interface{}{
				"type":        "boolean",
				"description": "Only return the diff without writing",
			},
		},
		"required": []string{"path"},
	}
}

type EditFileTool struct {
	sb  *sandbox.Sandbox
	log *logger.Logger
}

func NewEditFileTool(sb *sandbox.Sandbox, log *logger.Logger) *EditFileTool {
	return &EditFileTool{sb: sb, log: log}
}

type textEdit struct {
	oldText    string
	newText    string
	replaceAll bool
}

func parseEdits(params map[string]interface{}) ([]textEdit, error) {
	raw, ok := params["edits"]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("edits must be an array")
	}

	edits := make([]textEdit, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("edits[%d] must be an object", i)
		}
		oldText, ok := m["old_text"].(string)
		if !ok || oldText == "" {
			return nil, fmt.Errorf("edits[%d].old_text must be a non-empty string", i)
		}
		newText, ok := m["new_text"].(string)
		if !ok {
			return nil, fmt.Errorf("edits[%d].new_text must be a string", i)
		}
		edits = append(edits, textEdit{
			oldText:    oldText,
			newText:    newText,
			replaceAll: GetBoolParam(m, "replace_all", false),
		})
	}
	return edits, nil
}

func applyEdits(content string, edits []textEdit) (string, error) {
	for i, e := range edits {
		count := strings.Count(content, e.oldText)
		switch {
		case count == 0:
			return "", fmt.Errorf("edit %d: old_text not found", i+1)
		case count > 1 && !e.replaceAll:
			return "", fmt.Errorf("edit %d: old_text matches %d times; add context or set replace_all", i+1, count)
		}
		content = strings.ReplaceAll(content, e.oldText, e.newText)
	}
	return content, nil
}

func (t *EditFileTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	path := GetStringParam(params, "path", "")
	if path == "" {
		return failuref(ToolNameEditFile, "path is required")
	}
	edits, err := parseEdits(params)
	if err != nil {
		return failuref(ToolNameEditFile, err.Error())
	}
	patch := GetStringParam(params, "diff", "")
	if (len(edits) == 0) == (patch == "") {
		return failuref(ToolNameEditFile, "exactly one of edits or diff is required")
	}
	dryRun := GetBoolParam(params, "dry_run", false)

	startTime := time.Now()
	vp, err := t.sb.Resolve(path)
	if err != nil {
		return failure(ToolNameEditFile, err)
	}
	data, err := fs.ReadFile(ctx, vp)
	if err != nil {
		return failure(ToolNameEditFile, err)
	}
	original := string(data)

	var updated string
	if patch != "" {
		updated, err = applyUnifiedDiff(original, patch)
	} else {
		updated, err = applyEdits(original, edits)
	}
	if err != nil {
		return failure(ToolNameEditFile, fmt.Errorf("%s: %w", vp.Path(), err))
	}

	unified, stat, err := describeChange(vp.Path(), original, updated)
	if err != nil {
		return failure(ToolNameEditFile, err)
	}

	if !dryRun && updated != original {
		if err := fs.WriteFile(ctx, vp, []byte(updated), 0644); err != nil {
			return failure(ToolNameEditFile, err)
		}
		t.log.Info("edit_file: updated %s (+%d -%d)", vp.Path(), stat.Added, stat.Deleted)
	}

	return success(ToolNameEditFile, map[string]interface{}{
		"path":    vp.Path(),
		"diff":    unified,
		"added":   stat.Added,
		"changed": stat.Changed,
		"deleted": stat.Deleted,
		"written": !dryRun && updated != original,
	}, startTime)
}

// describeChange renders the change as a unified diff and counts its lines.
func describeChange(path, before, after string) (string, diff.Stat, error) {
	if before == after {
		return "", diff.Stat{}, nil
	}

	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a" + path,
		ToFile:   "b" + path,
		Context:  3,
	})
	if err != nil {
		return "", diff.Stat{}, fmt.Errorf("failed to render diff: %w", err)
	}

	fileDiff, err := diff.ParseFileDiff([]byte(unified))
	if err != nil {
		return unified, diff.Stat{}, nil
	}
	return unified, fileDiff.Stat(), nil
}

// applyUnifiedDiff applies a single-file unified diff to content. Context and
// removed lines must match the original.
func applyUnifiedDiff(original, diffText string) (string, error) {
	if !strings.HasPrefix(diffText, "---") && !strings.HasPrefix(diffText, "diff ") {
		diffText = "--- a/file\n+++ b/file\n" + diffText
	}

	fileDiff, err := diff.ParseFileDiff([]byte(diffText))
	if err != nil {
		return "", fmt.Errorf("failed to parse unified diff: %w", err)
	}
	if len(fileDiff.Hunks) == 0 {
		return "", fmt.Errorf("diff contains no hunks")
	}

	originalLines := strings.Split(original, "\n")
	result := make([]string, 0, len(originalLines))
	current := 0

	for _, hunk := range fileDiff.Hunks {
		start := int(hunk.OrigStartLine) - 1
		if hunk.OrigLines == 0 {
			// Pure insertion: the hunk goes after OrigStartLine.
			start = int(hunk.OrigStartLine)
		}
		if start < current || start > len(originalLines) {
			return "", fmt.Errorf("hunk at line %d is out of order or beyond the end of the file", hunk.OrigStartLine)
		}
		result = append(result, originalLines[current:start]...)
		current = start

		body := strings.TrimSuffix(string(hunk.Body), "\n")
		for _, line := range strings.Split(body, "\n") {
			if line == "" {
				line = " "
			}
			switch line[0] {
			case ' ', '-':
				if current >= len(originalLines) || originalLines[current] != line[1:] {
					return "", fmt.Errorf("hunk at line %d does not match the file", hunk.OrigStartLine)
				}
				if line[0] == ' ' {
					result = append(result, originalLines[current])
				}
				current++
			case '+':
				result = append(result, line[1:])
			case '\\':
				// "\ No newline at end of file"
			default:
				return "", fmt.Errorf("invalid diff line %q", line)
			}
		}
	}

	result = append(result, originalLines[current:]...)
	return strings.Join(result, "\n"), nil
}

// NewEditFileToolFactory creates a factory for EditFileTool
func NewEditFileToolFactory(sb *sandbox.Sandbox, log *logger.Logger) ToolFactory {
	return func(reg *Registry) ToolExecutor {
		return NewEditFileTool(sb, log)
	}
}
