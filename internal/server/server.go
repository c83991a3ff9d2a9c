package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ironsheep/ui-regions-mcp/internal/config"
	"github.com/ironsheep/ui-regions-mcp/internal/imaging"
	"github.com/ironsheep/ui-regions-mcp/internal/logging"
)

// Version is reported in the initialize handshake. The main package
// overrides it from its ldflags.
var Version = "0.1.0"

// Server answers MCP requests for one client. Images loaded by path stay
// cached for the life of the server.
type Server struct {
	cache            *imaging.ImageCache
	defaults         config.DetectionDefaults
	batchConcurrency int
	log              *logging.Logger
}

// MCPRequest is one JSON-RPC request line. Notifications have a nil ID.
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse carries either Result or Error.
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError is a JSON-RPC error object.
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPNotification is a server-initiated message without an ID.
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

const (
	jsonRPCVersion  = "2.0"
	protocolVersion = "2024-11-05"
)

// JSON-RPC error codes used by the server.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeToolFailed     = -32000
)

// New creates a server with built-in detection defaults that logs to stderr.
func New() *Server {
	return &Server{
		cache:            imaging.NewImageCache(),
		defaults:         config.DefaultDetectionDefaults(),
		batchConcurrency: 4,
		log:              logging.New("server"),
	}
}

// NewWithConfig creates a server using cfg for tool defaults and batch
// concurrency.
func NewWithConfig(cfg *config.Config, log *logging.Logger) *Server {
	s := New()
	s.defaults = cfg.Defaults
	if cfg.BatchConcurrency > 0 {
		s.batchConcurrency = cfg.BatchConcurrency
	}
	if log != nil {
		s.log = log
	}
	return s
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve processes newline-delimited requests from r until EOF and writes
// responses to w.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Base64 screenshots make for long lines.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 64*1024*1024)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.Warn("failed to parse request", "error", err)
			if err := encoder.Encode(s.errorResponse(nil, codeParseError, "Parse error", err.Error())); err != nil {
				s.log.Error("failed to encode response", "error", err)
			}
			continue
		}

		resp := s.handleRequest(&req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.log.Error("failed to encode response", "error", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes a request by method. Notifications get no response.
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	if strings.HasPrefix(req.Method, "notifications/") {
		s.log.Debug("notification", "method", req.Method)
		return nil
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{
			JSONRPC: jsonRPCVersion,
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: jsonRPCVersion,
			ID:      req.ID,
			Error: &MCPError{
				Code:    codeMethodNotFound,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize answers the handshake with the tools capability.
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: jsonRPCVersion,
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "ui-regions-mcp",
				"version": Version,
			},
		},
	}
}
