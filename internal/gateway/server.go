// Package gateway runs the WebSocket and HTTP front end: the browser
// chat UI, the RPC protocol for clients, and an OpenAI-compatible
// completions endpoint.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/parleylabs/parley/internal/bus"
	"github.com/parleylabs/parley/internal/config"
	"github.com/parleylabs/parley/internal/docs"
	"github.com/parleylabs/parley/internal/providers"
	"github.com/parleylabs/parley/internal/sessions"
	"github.com/parleylabs/parley/internal/tools"
	"github.com/parleylabs/parley/internal/tracing"
	"github.com/parleylabs/parley/pkg/protocol"
)

const serverVersion = "1.0.0"

// tickInterval paces the liveness event broadcast.
const tickInterval = 30 * time.Second

// Deps carries the services the gateway exposes. Index and Tracer may
// be nil when those features are disabled.
type Deps struct {
	Provider providers.Provider
	Registry *tools.Registry
	Sessions *sessions.Manager
	Index    *docs.Index
	Tracer   *tracing.Collector
}

// Server is the gateway process: one listener serving the UI, the
// WebSocket protocol, and the completions endpoint.
type Server struct {
	cfg      *config.Config
	provider providers.Provider
	registry *tools.Registry
	sessions *sessions.Manager
	index    *docs.Index
	tracer   *tracing.Collector
	events   *bus.Bus
	router   *MethodRouter
	limiter  *RateLimiter
	guard    *inputGuard

	mu        sync.Mutex
	clients   map[string]*Client
	startedAt time.Time

	httpSrv *http.Server
	ln      net.Listener
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:       cfg,
		provider:  deps.Provider,
		registry:  deps.Registry,
		sessions:  deps.Sessions,
		index:     deps.Index,
		tracer:    deps.Tracer,
		events:    bus.New(),
		limiter:   NewRateLimiter(cfg.Server.RateRPM, cfg.Server.RateBurst),
		guard:     newInputGuard(),
		clients:   make(map[string]*Client),
		startedAt: time.Now(),
	}
	s.router = NewMethodRouter(s)
	return s
}

// The UI connects from file:// and arbitrary localhost ports, so
// origin checks are disabled. Access control is the connect token.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.ln = netutil.LimitListener(ln, s.cfg.Server.MaxConns)

	s.httpSrv = &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("gateway listening", "addr", s.Addr(), "max_conns", s.cfg.Server.MaxConns)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpSrv.Serve(s.ln); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		s.tickLoop(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.shutdown()
		return nil
	})
	return g.Wait()
}

// tickLoop broadcasts a liveness pulse so connected clients can show
// gateway status without polling.
func (s *Server) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.events.Broadcast(bus.Event{
				Kind: protocol.EventTick,
				Payload: map[string]interface{}{
					"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
					"sessions":       s.sessions.Len(),
					"clients":        s.clientCount(),
				},
			})
		}
	}
}

// handler builds the route table.
func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveUI)
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", s.serveHealthz)
	mux.Handle("/v1/chat/completions", newCompletionsHandler(s))
	mux.Handle("/v1/tools/invoke", newToolsInvokeHandler(s))
	return mux
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Events returns the event bus runs publish to.
func (s *Server) Events() *bus.Bus { return s.events }

func (s *Server) shutdown() {
	s.events.Broadcast(bus.Event{Kind: protocol.EventShutdown})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		slog.Warn("gateway shutdown", "error", err)
	}

	s.mu.Lock()
	for _, c := range s.clients {
		c.Close()
	}
	s.clients = make(map[string]*Client)
	s.mu.Unlock()
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, s)
	s.addClient(client)
	defer s.removeClient(client)

	slog.Debug("client connected", "client", client.id, "remote", r.RemoteAddr)
	client.Run(r.Context())
}

func (s *Server) addClient(c *Client) {
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	s.events.Subscribe(c.id, c.forwardEvent)
}

func (s *Server) removeClient(c *Client) {
	s.events.Unsubscribe(c.id)

	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	slog.Debug("client disconnected", "client", c.id)
}

func (s *Server) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) serveHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"status":"ok"}`)
}
