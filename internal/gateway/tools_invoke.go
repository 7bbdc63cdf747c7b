package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/parleylabs/parley/internal/config"
	"github.com/parleylabs/parley/internal/tools"
)

// toolsInvokeHandler serves POST /v1/tools/invoke: direct tool dispatch
// without a model run. A dry run only checks the tool exists and echoes
// its schema.
type toolsInvokeHandler struct {
	server *Server
}

func newToolsInvokeHandler(s *Server) *toolsInvokeHandler {
	return &toolsInvokeHandler{server: s}
}

type toolsInvokeRequest struct {
	Tool    string                 `json:"tool"`
	Args    map[string]interface{} `json:"args"`
	Session string                 `json:"session,omitempty"`
	DryRun  bool                   `json:"dry_run,omitempty"`
}

func (h *toolsInvokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s := h.server

	if !tokenMatch(bearerToken(r), s.cfg.Server.Token) {
		writeToolsInvokeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
		return
	}

	limitKey := r.RemoteAddr
	if token := bearerToken(r); token != "" {
		limitKey = "token:" + token
	}
	if !s.limiter.Allow(limitKey) {
		w.Header().Set("Retry-After", "60")
		writeToolsInvokeError(w, http.StatusTooManyRequests, "RESOURCE_EXHAUSTED", "rate limit exceeded, slow down")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req toolsInvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeToolsInvokeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON: "+err.Error())
		return
	}
	if req.Tool == "" {
		writeToolsInvokeError(w, http.StatusBadRequest, "INVALID_REQUEST", "tool is required")
		return
	}

	slog.Info("tools invoke request", "tool", req.Tool, "dry_run", req.DryRun)

	if req.DryRun {
		tool, err := s.registry.Get(req.Tool)
		if err != nil {
			writeToolsInvokeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"tool":        req.Tool,
			"description": tool.Description(),
			"parameters":  tool.Parameters(),
			"dry_run":     true,
		})
		return
	}

	session := config.NormalizeSessionID(req.Session)
	ctx := tools.WithSessionKey(r.Context(), session)

	args := req.Args
	if args == nil {
		args = make(map[string]interface{})
	}

	result, err := s.registry.Execute(ctx, req.Tool, args)
	if err != nil {
		var unknown *tools.UnknownToolError
		if errors.As(err, &unknown) {
			writeToolsInvokeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		writeToolsInvokeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"tool":     req.Tool,
		"output":   result.ForLLM,
		"is_error": result.IsError,
	})
}

func writeToolsInvokeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"code":%q,"message":%q}}`, code, message)
}
