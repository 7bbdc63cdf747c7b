// Package mcp bridges external MCP servers into the tool registry.
// Each configured server is spawned over stdio, its tools are listed
// once at startup, and every tool is registered under the namespaced
// name "{server}__{tool}".
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/parleylabs/parley/internal/config"
	"github.com/parleylabs/parley/internal/tools"
)

const defaultCallTimeout = 60 * time.Second

// Server is a live connection to one stdio MCP server.
type Server struct {
	name      string
	client    *mcpclient.Client
	timeout   time.Duration
	connected atomic.Bool
}

// Dial spawns the server process and completes the MCP handshake.
func Dial(ctx context.Context, cfg config.MCPServerConfig) (*Server, error) {
	c, err := mcpclient.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("spawn mcp server %s: %w", cfg.Name, err)
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: "parley", Version: "1.0.0"}

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := c.Initialize(initCtx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("initialize mcp server %s: %w", cfg.Name, err)
	}

	timeout := defaultCallTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	s := &Server{name: cfg.Name, client: c, timeout: timeout}
	s.connected.Store(true)
	return s, nil
}

// Name returns the configured server name.
func (s *Server) Name() string { return s.name }

// Tools lists the server's tools wrapped for the registry.
func (s *Server) Tools(ctx context.Context) ([]tools.Tool, error) {
	result, err := s.client.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools on %s: %w", s.name, err)
	}

	out := make([]tools.Tool, 0, len(result.Tools))
	for _, t := range result.Tools {
		out = append(out, newBridgedTool(s, t))
	}
	return out, nil
}

// Close marks the server disconnected and terminates the process.
func (s *Server) Close() error {
	s.connected.Store(false)
	return s.client.Close()
}

// RegisterServers dials every configured server and registers its tools.
// A server that fails to start is logged and skipped; the others still
// come up. Returned servers must be closed on shutdown.
func RegisterServers(ctx context.Context, reg *tools.Registry, cfgs []config.MCPServerConfig) []*Server {
	var servers []*Server
	for _, cfg := range cfgs {
		srv, err := Dial(ctx, cfg)
		if err != nil {
			slog.Warn("mcp server unavailable", "server", cfg.Name, "error", err)
			continue
		}

		bridged, err := srv.Tools(ctx)
		if err != nil {
			slog.Warn("mcp server tool listing failed", "server", cfg.Name, "error", err)
			srv.Close()
			continue
		}

		registered := 0
		for _, t := range bridged {
			if err := reg.Register(t); err != nil {
				slog.Warn("mcp tool skipped", "tool", t.Name(), "error", err)
				continue
			}
			registered++
		}
		slog.Info("mcp server connected", "server", cfg.Name, "tools", registered)
		servers = append(servers, srv)
	}
	return servers
}
