// Package server speaks the pathguard wire protocol: newline-delimited JSON
// tool calls in, newline-delimited JSON results out.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codefionn/pathguard/internal/logger"
	"github.com/codefionn/pathguard/internal/tools"
)

// ListToolsRequest is the request name that returns the tool schemas instead
// of running a tool.
const ListToolsRequest = "list_tools"

// DefaultMaxConcurrent bounds the number of calls executing at once.
const DefaultMaxConcurrent = 16

// Options configures a Server.
type Options struct {
	MaxConcurrent int
	Logger        *logger.Logger
}

// Server dispatches calls read from one stream to a tool registry. Calls run
// concurrently; results are written as they finish and are matched to their
// call by id.
type Server struct {
	reg           *tools.Registry
	log           *logger.Logger
	maxConcurrent int
}

// New creates a server for reg.
func New(reg *tools.Registry, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.Global()
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Server{reg: reg, log: log.WithPrefix("server"), maxConcurrent: maxConcurrent}
}

// Serve reads calls from in until EOF or ctx is done and writes results to
// out. It returns after every started call has been answered.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	send := make(chan *tools.ToolResult, 64)
	writeDone := make(chan error, 1)
	go func() {
		writeDone <- s.writePump(out, send)
	}()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go s.readPump(ctx, in, lines, readErr)

	g := &errgroup.Group{}
	g.SetLimit(s.maxConcurrent)

	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				err = <-readErr
				break loop
			}
			s.dispatch(ctx, g, line, send)
		}
	}

	// Results of calls still running are written before returning.
	_ = g.Wait()
	close(send)
	if werr := <-writeDone; werr != nil && err == nil {
		err = werr
	}
	return err
}

func (s *Server) readPump(ctx context.Context, in io.Reader, lines chan<- string, errc chan<- error) {
	defer close(lines)

	reader := bufio.NewReader(in)
	for {
		line, err := reader.ReadString('\n')
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			select {
			case lines <- trimmed:
			case <-ctx.Done():
				errc <- nil
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Info("Input closed (EOF)")
				err = nil
			} else {
				s.log.Error("Error reading input: %v", err)
			}
			errc <- err
			return
		}
	}
}

func (s *Server) writePump(out io.Writer, send <-chan *tools.ToolResult) error {
	w := bufio.NewWriter(out)
	var writeErr error

	for result := range send {
		if writeErr != nil {
			continue
		}
		data, err := json.Marshal(result)
		if err != nil {
			s.log.Error("Failed to marshal result %s: %v", result.ID, err)
			data, _ = json.Marshal(&tools.ToolResult{ID: result.ID, Error: "failed to encode result: " + err.Error(), IsError: true})
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			writeErr = fmt.Errorf("failed to write result: %w", err)
			continue
		}
		// Flush per result; clients wait on individual calls.
		if err := w.Flush(); err != nil {
			writeErr = fmt.Errorf("failed to write result: %w", err)
		}
	}
	return writeErr
}

func (s *Server) dispatch(ctx context.Context, g *errgroup.Group, line string, send chan<- *tools.ToolResult) {
	var call tools.ToolCall
	if err := json.Unmarshal([]byte(line), &call); err != nil {
		s.log.Warn("Failed to parse call: %v", err)
		send <- protocolError("", "invalid JSON: "+err.Error())
		return
	}
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	if call.Name == "" {
		send <- protocolError(call.ID, "name is required")
		return
	}

	if call.Name == ListToolsRequest {
		send <- &tools.ToolResult{
			ID:     call.ID,
			Result: map[string]interface{}{"tools": s.reg.ToJSONSchema()},
		}
		return
	}

	g.Go(func() error {
		s.log.Debug("Call %s: %s", call.ID, call.Name)
		result := s.reg.Execute(ctx, &call)
		if result.IsError {
			s.log.Debug("Call %s failed: %s", call.ID, result.Error)
		}
		send <- result
		return nil
	})
}

func protocolError(id, msg string) *tools.ToolResult {
	return &tools.ToolResult{
		ID:      id,
		Error:   msg,
		IsError: true,
		ExecutionMetadata: &tools.ExecutionMetadata{
			ErrorType: "invalid_request",
		},
	}
}
