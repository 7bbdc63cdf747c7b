package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/parleylabs/parley/internal/bus"
	"github.com/parleylabs/parley/internal/chat"
	"github.com/parleylabs/parley/internal/config"
	"github.com/parleylabs/parley/internal/tools"
	"github.com/parleylabs/parley/pkg/protocol"
)

// --- connect / health / status ---

func (r *MethodRouter) handleConnect(_ context.Context, client *Client, req *protocol.RequestFrame) {
	var params struct {
		Token   string `json:"token"`
		Session string `json:"session"`
	}
	if req.Params != nil {
		json.Unmarshal(req.Params, &params)
	}

	if !tokenMatch(params.Token, r.server.cfg.Server.Token) {
		slog.Warn("connect rejected: bad token", "client", client.id)
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrUnauthorized, "invalid token"))
		return
	}

	client.session = config.NormalizeSessionID(params.Session)
	client.authenticated.Store(true)

	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"protocol": protocol.ProtocolVersion,
		"session":  client.session,
		"model":    r.server.cfg.Provider.Model,
		"provider": r.server.provider.Name(),
		"tools":    r.server.registry.Count(),
		"server": map[string]interface{}{
			"name":    "parley",
			"version": serverVersion,
		},
	}))
}

func (r *MethodRouter) handleHealth(_ context.Context, client *Client, req *protocol.RequestFrame) {
	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"status": "ok",
	}))
}

func (r *MethodRouter) handleStatus(_ context.Context, client *Client, req *protocol.RequestFrame) {
	s := r.server
	payload := map[string]interface{}{
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"provider":       s.provider.Name(),
		"model":          s.cfg.Provider.Model,
		"tools":          s.registry.Names(),
		"sessions":       s.sessions.Len(),
		"clients":        s.clientCount(),
		"tracing":        s.tracer != nil,
	}
	if s.index != nil {
		payload["docs"] = map[string]interface{}{
			"collections": s.index.Collections(),
			"passages":    s.index.PassageCount(),
		}
	}
	client.SendResponse(protocol.NewOKResponse(req.ID, payload))
}

// --- chat ---

type chatSendParams struct {
	Message       string `json:"message"`
	Session       string `json:"session"`
	MaxIterations int    `json:"maxIterations"`
}

func (r *MethodRouter) handleChatSend(ctx context.Context, client *Client, req *protocol.RequestFrame) {
	s := r.server

	if !s.limiter.Allow(client.id) {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrResourceExhausted, "rate limit exceeded, slow down"))
		return
	}

	var params chatSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "invalid params: "+err.Error()))
		return
	}
	if params.Message == "" {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "message is required"))
		return
	}

	sessionID := params.Session
	if sessionID == "" {
		sessionID = client.session
	}

	if action := s.cfg.Chat.InjectionAction; action != "off" {
		if hits := s.guard.scan(params.Message); len(hits) > 0 {
			switch action {
			case "block":
				slog.Warn("message blocked by input guard", "session", sessionID, "patterns", hits)
				client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "message rejected by input guard"))
				return
			case "log":
				slog.Info("injection patterns in message", "session", sessionID, "patterns", hits)
			default:
				slog.Warn("injection patterns in message", "session", sessionID, "patterns", hits)
			}
		}
	}

	sess := s.sessions.Get(sessionID)

	if !sess.BeginRun() {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrFailedPrecondition, "a run is already active for session "+sess.ID))
		return
	}

	runID := uuid.NewString()
	sess.History.Append(chat.UserTurn(params.Message))

	maxIter := params.MaxIterations
	if maxIter <= 0 {
		maxIter = s.cfg.Chat.MaxIterations
	}

	runCtx := tools.WithSessionKey(ctx, sess.ID)
	runCtx = tools.WithRunID(runCtx, runID)

	s.events.Broadcast(bus.Event{
		Kind: protocol.ChatEventRunStarted, SessionID: sess.ID, RunID: runID,
		Payload: map[string]interface{}{"message": params.Message},
	})

	// The run outlives this frame: progress streams as events and the
	// response frame carries the final result.
	go func() {
		defer sess.EndRun()

		temp := s.cfg.Provider.Temperature
		result, err := chat.Respond(runCtx, sess.History, s.provider, s.registry, chat.Options{
			Model:         s.cfg.Provider.Model,
			Temperature:   &temp,
			MaxIterations: maxIter,
			RunID:         runID,
			SessionID:     sess.ID,
			Tracer:        s.tracer,
			OnEvent: func(ev chat.Event) {
				s.events.Broadcast(busEvent(ev, sess.ID, runID))
			},
		})
		sess.Touch()

		if err != nil {
			s.events.Broadcast(bus.Event{
				Kind: protocol.ChatEventRunFailed, SessionID: sess.ID, RunID: runID,
				Payload: map[string]interface{}{"error": err.Error()},
			})
			client.SendResponse(protocol.NewErrorResponse(req.ID, runErrorCode(err), err.Error()))
			return
		}

		s.events.Broadcast(bus.Event{
			Kind: protocol.ChatEventRunCompleted, SessionID: sess.ID, RunID: runID,
			Payload: map[string]interface{}{
				"stop_reason": string(result.StopReason),
				"iterations":  result.Iterations,
			},
		})
		client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
			"run_id":      runID,
			"session":     sess.ID,
			"content":     result.Text,
			"stop_reason": string(result.StopReason),
			"iterations":  result.Iterations,
			"model_calls": result.ModelCalls,
			"usage":       result.Usage,
		}))
	}()
}

// busEvent maps a loop progress event onto the broadcast bus.
func busEvent(ev chat.Event, sessionID, runID string) bus.Event {
	out := bus.Event{SessionID: sessionID, RunID: runID}
	switch ev.Kind {
	case chat.EventToolCall:
		out.Kind = protocol.ChatEventToolCall
		out.Payload = map[string]interface{}{
			"call_id": ev.CallID, "tool": ev.Tool, "args": ev.Args,
		}
	case chat.EventToolResult:
		out.Kind = protocol.ChatEventToolResult
		out.Payload = map[string]interface{}{
			"call_id": ev.CallID, "tool": ev.Tool,
			"content": ev.Content, "is_error": ev.IsError,
		}
	case chat.EventAssistant:
		out.Kind = protocol.ChatEventMessage
		out.Payload = map[string]interface{}{"content": ev.Content}
	}
	return out
}

// runErrorCode maps loop failures onto protocol error codes.
func runErrorCode(err error) string {
	var unknown *tools.UnknownToolError
	if errors.As(err, &unknown) {
		return protocol.ErrNotFound
	}
	return protocol.ErrInternal
}

func (r *MethodRouter) handleChatHistory(_ context.Context, client *Client, req *protocol.RequestFrame) {
	var params struct {
		Session string `json:"session"`
	}
	if req.Params != nil {
		json.Unmarshal(req.Params, &params)
	}
	if params.Session == "" {
		params.Session = client.session
	}

	sess := r.server.sessions.Get(params.Session)
	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"session": sess.ID,
		"turns":   sess.History.Turns(),
	}))
}

func (r *MethodRouter) handleChatReset(_ context.Context, client *Client, req *protocol.RequestFrame) {
	var params struct {
		Session string `json:"session"`
	}
	if req.Params != nil {
		json.Unmarshal(req.Params, &params)
	}
	if params.Session == "" {
		params.Session = client.session
	}

	sess := r.server.sessions.Reset(params.Session)
	slog.Info("session reset", "session", sess.ID, "client", client.id)
	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"session": sess.ID,
	}))
}

// --- tools ---

func (r *MethodRouter) handleToolsList(_ context.Context, client *Client, req *protocol.RequestFrame) {
	list := r.server.registry.List()
	out := make([]map[string]interface{}, 0, len(list))
	for _, t := range list {
		out = append(out, map[string]interface{}{
			"name":        t.Name(),
			"description": t.Description(),
			"parameters":  t.Parameters(),
		})
	}
	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"tools": out,
	}))
}

func (r *MethodRouter) handleToolsInvoke(ctx context.Context, client *Client, req *protocol.RequestFrame) {
	s := r.server

	if !s.limiter.Allow(client.id) {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrResourceExhausted, "rate limit exceeded, slow down"))
		return
	}

	var params struct {
		Tool    string                 `json:"tool"`
		Args    map[string]interface{} `json:"args"`
		Session string                 `json:"session"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "invalid params: "+err.Error()))
		return
	}
	if params.Tool == "" {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "tool is required"))
		return
	}
	if params.Session == "" {
		params.Session = client.session
	}

	invokeCtx := tools.WithSessionKey(ctx, config.NormalizeSessionID(params.Session))
	result, err := s.registry.Execute(invokeCtx, params.Tool, params.Args)
	if err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrNotFound, err.Error()))
		return
	}

	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"tool":     params.Tool,
		"output":   result.ForLLM,
		"is_error": result.IsError,
	}))
}

// --- sessions ---

func (r *MethodRouter) handleSessionsList(_ context.Context, client *Client, req *protocol.RequestFrame) {
	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"sessions": r.server.sessions.List(),
	}))
}
