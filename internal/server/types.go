package server

import (
	"encoding/json"

	"foreman-mcp/internal/tools"
)

const (
	jsonrpcVersion = "2.0"

	// DefaultProtocolVersion is answered when the client asks for no version
	// or one the server does not speak.
	DefaultProtocolVersion = "2025-03-26"
)

var supportedProtocolVersions = []string{DefaultProtocolVersion, "2024-11-05"}

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// CallRequest is the body of POST /mcp/call and the params of tools/call.
type CallRequest struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"arguments"`
}

// CallToolResult is the MCP result of a tool call.
type CallToolResult struct {
	Meta    map[string]interface{} `json:"_meta,omitempty"`
	Content []tools.Content        `json:"content"`
	IsError bool                   `json:"isError,omitempty"`
}

// ListToolsResult is the MCP result of tools/list.
type ListToolsResult struct {
	Tools []tools.Descriptor `json:"tools"`
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// isNotification reports whether the message expects no response.
func (r *rpcRequest) isNotification() bool { return len(r.ID) == 0 }

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
}

type implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      implementation         `json:"serverInfo"`
}
