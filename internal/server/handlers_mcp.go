package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleMCPStatus reports the connection status of every MCP server
// configured for the project (spec §4 tool use).
func (s *Server) handleMCPStatus(w http.ResponseWriter, r *http.Request) {
	ns, id := chi.URLParam(r, "ns"), chi.URLParam(r, "id")

	pr, err := s.projects.get(ns, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if pr.mcp == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, pr.mcp.Status())
}

type mcpToolExecuteRequest struct {
	Arguments json.RawMessage `json:"arguments"`
}

type mcpToolExecuteResponse struct {
	Result string `json:"result"`
}

// handleMCPExecuteTool runs a single MCP tool call directly, outside a
// chat completion, for clients that already know which tool they want
// (e.g. an assistant message's tool_calls entry).
func (s *Server) handleMCPExecuteTool(w http.ResponseWriter, r *http.Request) {
	ns, id, tool := chi.URLParam(r, "ns"), chi.URLParam(r, "id"), chi.URLParam(r, "tool")

	pr, err := s.projects.get(ns, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if pr.mcp == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "project has no mcp_servers configured")
		return
	}

	var req mcpToolExecuteRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body: "+err.Error())
			return
		}
	}

	result, err := pr.mcp.ExecuteTool(r.Context(), tool, req.Arguments)
	if err != nil {
		writeError(w, http.StatusBadGateway, ErrCodeInvalidRequest, "mcp tool execution failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mcpToolExecuteResponse{Result: result})
}
