package tools

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codefionn/pathguard/internal/logger"
	"github.com/codefionn/pathguard/internal/sandbox"
)

const (
	maxBatchFiles   = 50
	readConcurrency = 8
)

// ReadMultipleFilesToolSpec describes the read_multiple_files tool
type ReadMultipleFilesToolSpec struct{}

func (s *ReadMultipleFilesToolSpec) Name() string {
	return ToolNameReadMultipleFiles
}

func (s *ReadMultipleFilesToolSpec) Description() string {
	return "Read several text files at once. Each path is checked on its own; a denied or unreadable file is reported in its entry without failing the others."
}

func (s *ReadMultipleFilesToolSpec) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"paths": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Files to read (at most 50)",
			},
		},
		"required": []string{"paths"},
	}
}

// ReadMultipleFilesTool reads files concurrently.
type ReadMultipleFilesTool struct {
	sb  *sandbox.Sandbox
	log *logger.Logger
}

func NewReadMultipleFilesTool(sb *sandbox.Sandbox, log *logger.Logger) *ReadMultipleFilesTool {
	return &ReadMultipleFilesTool{sb: sb, log: log}
}

func (t *ReadMultipleFilesTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	paths, err := GetStringSliceParam(params, "paths")
	if err != nil {
		return failuref(ToolNameReadMultipleFiles, err.Error())
	}
	if len(paths) == 0 {
		return failuref(ToolNameReadMultipleFiles, "paths is required")
	}
	if len(paths) > maxBatchFiles {
		return failuref(ToolNameReadMultipleFiles, "too many paths: at most 50 per call")
	}

	startTime := time.Now()
	files := make([]map[string]interface{}, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := readText(gctx, t.sb, path, 0, 0)
			if err != nil {
				files[i] = map[string]interface{}{
					"path":  path,
					"error": err.Error(),
				}
				return nil
			}
			files[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return failure(ToolNameReadMultipleFiles, err)
	}

	failed := 0
	for _, f := range files {
		if _, ok := f["error"]; ok {
			failed++
		}
	}
	t.log.Info("read_multiple_files: read %d files (%d failed)", len(paths)-failed, failed)

	return success(ToolNameReadMultipleFiles, map[string]interface{}{
		"files":  files,
		"failed": failed,
	}, startTime)
}

// NewReadMultipleFilesToolFactory creates a factory for ReadMultipleFilesTool
func NewReadMultipleFilesToolFactory(sb *sandbox.Sandbox, log *logger.Logger) ToolFactory {
	return func(reg *Registry) ToolExecutor {
		return NewReadMultipleFilesTool(sb, log)
	}
}
