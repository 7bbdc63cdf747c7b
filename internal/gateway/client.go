package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/parleylabs/parley/internal/bus"
	"github.com/parleylabs/parley/pkg/protocol"
)

// Gorilla closes the connection with ErrReadLimit past this size.
const maxWSMessageSize = 512 * 1024

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

// Client is one WebSocket connection. The authenticated flag is
// atomic: the event bus reads it from run goroutines.
type Client struct {
	id            string
	conn          *websocket.Conn
	server        *Server
	authenticated atomic.Bool
	session       string // default session for this connection
	send          chan []byte
	seq           atomic.Int64
}

func NewClient(conn *websocket.Conn, server *Server) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		server: server,
		send:   make(chan []byte, 256),
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string { return c.id }

// Run pumps the connection until it closes.
func (c *Client) Run(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxWSMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read error", "client", c.id, "error", err)
			}
			return
		}

		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handleFrame(ctx, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleFrame(ctx context.Context, data []byte) {
	frameType, err := protocol.ParseFrameType(data)
	if err != nil {
		c.sendError("", protocol.ErrInvalidRequest, "invalid frame: "+err.Error())
		return
	}

	switch frameType {
	case protocol.FrameTypeRequest:
		var req protocol.RequestFrame
		if err := json.Unmarshal(data, &req); err != nil {
			c.sendError("", protocol.ErrInvalidRequest, "malformed request: "+err.Error())
			return
		}

		// The handshake must come first.
		if !c.authenticated.Load() && req.Method != protocol.MethodConnect {
			c.sendError(req.ID, protocol.ErrUnauthorized, "first request must be 'connect'")
			return
		}

		c.server.router.Handle(ctx, c, &req)

	default:
		c.sendError("", protocol.ErrInvalidRequest, "unexpected frame type: "+frameType)
	}
}

// SendResponse queues a response frame. Full buffers drop the frame
// rather than block the caller.
func (c *Client) SendResponse(resp *protocol.ResponseFrame) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("marshal response failed", "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("client send buffer full, dropping response", "client", c.id)
	}
}

// SendEvent queues an event frame with the next sequence number.
func (c *Client) SendEvent(event *protocol.EventFrame) {
	event.Seq = c.seq.Add(1)
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal event failed", "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("client send buffer full, dropping event", "client", c.id, "event", event.Event)
	}
}

// forwardEvent bridges bus events onto this connection. Unauthenticated
// connections receive nothing.
func (c *Client) forwardEvent(ev bus.Event) {
	if !c.authenticated.Load() {
		return
	}

	switch ev.Kind {
	case protocol.EventShutdown:
		c.SendEvent(protocol.NewEvent(protocol.EventShutdown, nil))
	case protocol.EventTick, protocol.EventHealth:
		c.SendEvent(protocol.NewEvent(ev.Kind, ev.Payload))
	default:
		c.SendEvent(protocol.NewEvent(protocol.EventChat, map[string]interface{}{
			"type":    ev.Kind,
			"session": ev.SessionID,
			"run_id":  ev.RunID,
			"data":    ev.Payload,
		}))
	}
}

func (c *Client) sendError(id, code, message string) {
	c.SendResponse(protocol.NewErrorResponse(id, code, message))
}

// Close shuts down the write pump.
func (c *Client) Close() {
	close(c.send)
}
