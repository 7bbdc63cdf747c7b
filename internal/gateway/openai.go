package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/parleylabs/parley/internal/chat"
	"github.com/parleylabs/parley/internal/tools"
)

// completionsHandler serves POST /v1/chat/completions. Each request is
// stateless: the caller supplies the full message history, so the run
// uses a throwaway session seeded from the request.
type completionsHandler struct {
	server *Server
}

func newCompletionsHandler(s *Server) *completionsHandler {
	return &completionsHandler{server: s}
}

type completionsRequest struct {
	Model       string              `json:"model"`
	Messages    []completionMessage `json:"messages"`
	Stream      bool                `json:"stream"`
	Temperature *float64            `json:"temperature,omitempty"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionsResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
	Usage   *completionUsage   `json:"usage,omitempty"`
}

type completionChoice struct {
	Index        int                `json:"index"`
	Message      *completionMessage `json:"message,omitempty"`
	Delta        *completionMessage `json:"delta,omitempty"`
	FinishReason string             `json:"finish_reason,omitempty"`
}

type completionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (h *completionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s := h.server

	if !tokenMatch(bearerToken(r), s.cfg.Server.Token) {
		http.Error(w, `{"error":{"message":"Invalid authentication","type":"invalid_request_error"}}`, http.StatusUnauthorized)
		return
	}

	limitKey := r.RemoteAddr
	if token := bearerToken(r); token != "" {
		limitKey = "token:" + token
	}
	if !s.limiter.Allow(limitKey) {
		w.Header().Set("Retry-After", "60")
		http.Error(w, `{"error":{"message":"Rate limit exceeded","type":"rate_limit_error"}}`, http.StatusTooManyRequests)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req completionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"message":"Invalid JSON: %s"}}`, err), http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, `{"error":{"message":"messages is required"}}`, http.StatusBadRequest)
		return
	}

	history, ok := historyFromMessages(req.Messages)
	if !ok {
		http.Error(w, `{"error":{"message":"No user message found"}}`, http.StatusBadRequest)
		return
	}

	model := req.Model
	if model == "" || model == "parley" {
		model = s.cfg.Provider.Model
	}
	temp := s.cfg.Provider.Temperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}

	runID := uuid.NewString()
	sessionID := "api-" + runID[:8]

	slog.Info("completions request", "model", model, "stream", req.Stream, "session", sessionID)

	ctx := tools.WithSessionKey(r.Context(), sessionID)
	ctx = tools.WithRunID(ctx, runID)

	opts := chat.Options{
		Model:         model,
		Temperature:   &temp,
		MaxIterations: s.cfg.Chat.MaxIterations,
		RunID:         runID,
		SessionID:     sessionID,
		Tracer:        s.tracer,
	}

	if req.Stream {
		h.serveStream(w, ctx, history, opts, runID, model)
		return
	}

	result, err := chat.Respond(ctx, history, s.provider, s.registry, opts)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"message":"Completion failed: %s"}}`, err), http.StatusInternalServerError)
		return
	}

	resp := completionsResponse{
		ID:      "chatcmpl-" + runID[:8],
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []completionChoice{{
			Index:        0,
			Message:      &completionMessage{Role: "assistant", Content: result.Text},
			FinishReason: finishReason(result.StopReason),
		}},
		Usage: &completionUsage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// serveStream delivers the completion as SSE chunks. The whole run
// executes before the content chunk: tool dispatch happens between the
// role chunk and the answer.
func (h *completionsHandler) serveStream(w http.ResponseWriter, ctx context.Context, history *chat.History, opts chat.Options, runID, model string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	completionID := "chatcmpl-" + runID[:8]
	writeSSEChunk(w, flusher, completionID, model, &completionMessage{Role: "assistant"}, "")

	result, err := chat.Respond(ctx, history, h.server.provider, h.server.registry, opts)
	if err != nil {
		writeSSEChunk(w, flusher, completionID, model, &completionMessage{Content: "Error: " + err.Error()}, "stop")
	} else {
		writeSSEChunk(w, flusher, completionID, model, &completionMessage{Content: result.Text}, finishReason(result.StopReason))
	}

	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeSSEChunk(w http.ResponseWriter, flusher http.Flusher, id, model string, delta *completionMessage, reason string) {
	chunk := map[string]interface{}{
		"id":      id,
		"object":  "chat.completion.chunk",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []map[string]interface{}{{
			"index":         0,
			"delta":         delta,
			"finish_reason": nilIfEmpty(reason),
		}},
	}

	data, _ := json.Marshal(chunk)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// historyFromMessages seeds a throwaway history from the request. The
// last message must be from the user; it becomes the turn the run
// answers.
func historyFromMessages(msgs []completionMessage) (*chat.History, bool) {
	history := chat.NewHistory("")
	sawUser := false
	for _, m := range msgs {
		switch m.Role {
		case "system":
			history.Append(chat.SystemTurn(m.Content))
		case "user":
			history.Append(chat.UserTurn(m.Content))
			sawUser = true
		case "assistant":
			history.Append(chat.AssistantTurn(m.Content))
		}
	}
	return history, sawUser
}

func finishReason(reason chat.StopReason) string {
	if reason == chat.StopIterationLimit {
		return "length"
	}
	return "stop"
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
