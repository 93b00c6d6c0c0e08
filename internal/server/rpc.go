package server

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// handleRPC serves the streamable HTTP transport in stateless mode: every POST
// carries one JSON-RPC message and gets a JSON reply.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, rpcResponse{
			JSONRPC: jsonrpcVersion,
			ID:      json.RawMessage("null"),
			Error:   &rpcError{Code: codeParseError, Message: "parse error"},
		})
		return
	}
	resp := s.dispatchRPC(r.Context(), &req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// dispatchRPC handles one JSON-RPC message. It returns nil for notifications.
func (s *Server) dispatchRPC(ctx context.Context, req *rpcRequest) *rpcResponse {
	logger := s.logger.With(zap.String("method", req.Method))
	if req.isNotification() {
		logger.Debug("Notification received")
		return nil
	}
	resp := &rpcResponse{JSONRPC: jsonrpcVersion, ID: req.ID}
	if req.JSONRPC != jsonrpcVersion || req.Method == "" {
		resp.Error = &rpcError{Code: codeInvalidRequest, Message: "invalid request"}
		return resp
	}

	switch req.Method {
	case "initialize":
		var params initializeParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				resp.Error = &rpcError{Code: codeInvalidParams, Message: "invalid params: " + err.Error()}
				return resp
			}
		}
		resp.Result = initializeResult{
			ProtocolVersion: negotiateVersion(params.ProtocolVersion),
			Capabilities:    map[string]interface{}{"tools": map[string]interface{}{"listChanged": false}},
			ServerInfo:      implementation{Name: s.cfg.Name, Version: s.cfg.Version},
		}
	case "ping":
		resp.Result = map[string]interface{}{}
	case "tools/list":
		resp.Result = ListToolsResult{Tools: s.tools.List()}
	case "tools/call":
		var params CallRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp.Error = &rpcError{Code: codeInvalidParams, Message: "invalid params: " + err.Error()}
			return resp
		}
		result, rpcErr := s.callResult(ctx, params)
		if rpcErr != nil {
			resp.Error = rpcErr
			return resp
		}
		resp.Result = result
	default:
		logger.Warn("Method not found")
		resp.Error = &rpcError{Code: codeMethodNotFound, Message: "method not found: " + req.Method}
	}
	return resp
}

// negotiateVersion returns the requested protocol version when the server
// speaks it and the server's default otherwise.
func negotiateVersion(requested string) string {
	for _, v := range supportedProtocolVersions {
		if v == requested {
			return v
		}
	}
	return DefaultProtocolVersion
}
