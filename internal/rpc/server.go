// Package rpc serves the tool registry over JSON-RPC 2.0 on stdio so
// editors and agents can drive the engine without shelling out.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/dfalgout/specsentry/internal/logger"
	"github.com/dfalgout/specsentry/internal/tools"
	"github.com/dfalgout/specsentry/pkg/protocol"
)

var log = logger.ForComponent("rpc")

type Server struct {
	registry  *tools.Registry
	startTime time.Time
}

func NewServer(registry *tools.Registry) *Server {
	return &Server{registry: registry, startTime: time.Now()}
}

type stdioReadWriteCloser struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

func (s *stdioReadWriteCloser) Read(p []byte) (int, error)  { return s.reader.Read(p) }
func (s *stdioReadWriteCloser) Write(p []byte) (int, error) { return s.writer.Write(p) }

func (s *stdioReadWriteCloser) Close() error {
	rerr := s.reader.Close()
	werr := s.writer.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}

// Serve runs the server over the given streams until the peer
// disconnects or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, stdin io.ReadCloser, stdout io.WriteCloser) error {
	rwc := &stdioReadWriteCloser{reader: stdin, writer: stdout}
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle))

	log.Info("rpc server listening on stdio")
	select {
	case <-ctx.Done():
		conn.Close()
		return ctx.Err()
	case <-conn.DisconnectNotify():
		return nil
	}
}

func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	switch req.Method {
	case "ping":
		return protocol.PingResult{
			Status: "ok",
			Uptime: int64(time.Since(s.startTime).Seconds()),
		}, nil

	case "tools/list":
		list := s.registry.List()
		result := protocol.ListToolsResult{}
		for _, t := range list {
			result.Tools = append(result.Tools, protocol.ToolDescriptor{
				Name:        t.Name(),
				Description: t.Description(),
				InputSchema: t.Schema(),
			})
		}
		return result, nil

	case "tools/call":
		var params protocol.CallToolParams
		if req.Params == nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
		}
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
		}
		if params.Name == "" {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "tool name is required"}
		}

		out, err := s.registry.Execute(ctx, params.Name, params.Arguments)
		if err != nil {
			log.Warn("tool call failed", "tool", params.Name, "error", err)
			return nil, &jsonrpc2.Error{
				Code:    jsonrpc2.CodeInternalError,
				Message: fmt.Sprintf("%s: %v", params.Name, err),
			}
		}

		blob, err := json.Marshal(out)
		if err != nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
		}
		return protocol.CallToolResult{Result: blob}, nil

	default:
		return nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: "method not found: " + req.Method,
		}
	}
}
