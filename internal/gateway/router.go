package gateway

import (
	"context"
	"log/slog"

	"github.com/parleylabs/parley/pkg/protocol"
)

// MethodHandler processes one RPC request.
type MethodHandler func(ctx context.Context, client *Client, req *protocol.RequestFrame)

// MethodRouter maps method names to handlers.
type MethodRouter struct {
	handlers map[string]MethodHandler
	server   *Server
}

func NewMethodRouter(server *Server) *MethodRouter {
	r := &MethodRouter{
		handlers: make(map[string]MethodHandler),
		server:   server,
	}
	r.registerDefaults()
	return r
}

// Register adds a method handler.
func (r *MethodRouter) Register(method string, handler MethodHandler) {
	r.handlers[method] = handler
}

// Handle dispatches a request to its handler. Authentication has
// already been checked by the frame layer.
func (r *MethodRouter) Handle(ctx context.Context, client *Client, req *protocol.RequestFrame) {
	handler, ok := r.handlers[req.Method]
	if !ok {
		slog.Warn("unknown method", "method", req.Method, "client", client.id)
		client.SendResponse(protocol.NewErrorResponse(
			req.ID,
			protocol.ErrInvalidRequest,
			"unknown method: "+req.Method,
		))
		return
	}

	slog.Debug("handling method", "method", req.Method, "client", client.id, "req_id", req.ID)
	handler(ctx, client, req)
}

func (r *MethodRouter) registerDefaults() {
	r.Register(protocol.MethodConnect, r.handleConnect)
	r.Register(protocol.MethodHealth, r.handleHealth)
	r.Register(protocol.MethodStatus, r.handleStatus)
	r.Register(protocol.MethodChatSend, r.handleChatSend)
	r.Register(protocol.MethodChatHistory, r.handleChatHistory)
	r.Register(protocol.MethodChatReset, r.handleChatReset)
	r.Register(protocol.MethodToolsList, r.handleToolsList)
	r.Register(protocol.MethodToolsInvoke, r.handleToolsInvoke)
	r.Register(protocol.MethodSessionsList, r.handleSessionsList)
}
