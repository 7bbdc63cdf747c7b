package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	shellwords "github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"

	"github.com/parleylabs/parley/internal/chat"
	"github.com/parleylabs/parley/internal/config"
	"github.com/parleylabs/parley/internal/docs"
	"github.com/parleylabs/parley/internal/providers"
	"github.com/parleylabs/parley/internal/tools"
	"github.com/parleylabs/parley/pkg/protocol"
)

// REPL styles.
var (
	youStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	toolStyle      = lipgloss.NewStyle().Faint(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func chatCmd() *cobra.Command {
	var (
		sessionID string
		execMsg   string
		attach    bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat from the terminal, against the gateway or standalone",
		Long: `Chat with the assistant from the terminal.

When the gateway is running the command connects to it over WebSocket,
so the conversation is shared with the browser UI. Otherwise it runs
the loop in-process against the configured provider.

Slash commands inside the REPL:
  /new       start a fresh session
  /tools     list registered tools
  /history   show the session transcript
  /invoke    run a tool directly, e.g. /invoke fetch_weather city=Paris
  /quit      exit

Examples:
  parley chat
  parley chat -s work
  parley chat --exec "What is 2*(3+4)?"
  parley chat --attach`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(sessionID, execMsg, attach)
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", `session id (default "default")`)
	cmd.Flags().StringVarP(&execMsg, "exec", "e", "", "send one message, print the answer, exit")
	cmd.Flags().BoolVar(&attach, "attach", false, "require a running gateway (no standalone fallback)")

	return cmd
}

func runChat(sessionID, execMsg string, attach bool) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	sessionID = config.NormalizeSessionID(sessionID)

	host := cfg.Server.Host
	if host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)

	var backend chatBackend
	if isGatewayRunning(addr) {
		fmt.Fprintf(os.Stderr, "Connected to gateway at %s\n", addr)
		backend, err = dialGateway(addr, cfg.Server.Token, sessionID)
		if err != nil {
			return fmt.Errorf("gateway handshake: %w", err)
		}
	} else if attach {
		return fmt.Errorf("gateway not reachable at %s (start it with: parley serve)", addr)
	} else {
		fmt.Fprintln(os.Stderr, "Gateway not running, using standalone mode")
		backend, err = newLocalBackend(cfg, sessionID)
		if err != nil {
			return err
		}
	}
	defer backend.Close()

	if execMsg != "" {
		answer, err := backend.Send(execMsg)
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	}

	return runREPL(backend, cfg)
}

func isGatewayRunning(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// chatBackend is the seam between the REPL and where the loop actually
// runs: the gateway over WebSocket, or in-process.
type chatBackend interface {
	Send(message string) (string, error)
	Reset() error
	Tools() ([]toolSummary, error)
	History() ([]chat.Turn, error)
	Invoke(tool string, args map[string]interface{}) (output string, isError bool, err error)
	Session() string
	Close() error
}

type toolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// --- REPL ---

func runREPL(backend chatBackend, cfg *config.Config) error {
	fmt.Fprintf(os.Stderr, "\nParley chat (model: %s)\n", cfg.Provider.Model)
	fmt.Fprintf(os.Stderr, "Session: %s\n", backend.Session())
	fmt.Fprintf(os.Stderr, "Type /quit to exit, /new for a fresh session\n\n")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\nGoodbye!")
			return nil
		default:
		}

		fmt.Fprint(os.Stderr, youStyle.Render("You: "))
		if !scanner.Scan() {
			fmt.Fprintln(os.Stderr)
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := handleSlashCommand(backend, input); quit {
				return nil
			}
			continue
		}

		answer, err := backend.Send(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n\n", errorStyle.Render("Error: "+err.Error()))
			continue
		}
		fmt.Printf("\n%s\n\n", assistantStyle.Render(answer))
	}
}

// handleSlashCommand runs one REPL command. Returns true to exit.
func handleSlashCommand(backend chatBackend, input string) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/quit", "/exit":
		fmt.Fprintln(os.Stderr, "Goodbye!")
		return true

	case "/new":
		if err := backend.Reset(); err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
			return false
		}
		fmt.Fprintf(os.Stderr, "Session %s cleared.\n\n", backend.Session())

	case "/tools":
		list, err := backend.Tools()
		if err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
			return false
		}
		for _, t := range list {
			fmt.Fprintf(os.Stderr, "  %-18s %s\n", t.Name, t.Description)
		}
		fmt.Fprintln(os.Stderr)

	case "/history":
		turns, err := backend.History()
		if err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
			return false
		}
		printHistory(turns)

	case "/invoke":
		runSlashInvoke(backend, strings.TrimSpace(strings.TrimPrefix(input, "/invoke")))

	default:
		fmt.Fprintf(os.Stderr, "Unknown command %s (try /tools, /history, /invoke, /new, /quit)\n", fields[0])
	}
	return false
}

// runSlashInvoke parses "/invoke tool key=value ..." and runs the tool
// directly, outside a model run.
func runSlashInvoke(backend chatBackend, line string) {
	parts, err := shellwords.Parse(line)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Parse error: "+err.Error()))
		return
	}
	if len(parts) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: /invoke <tool> [key=value ...]")
		return
	}

	args := make(map[string]interface{})
	for _, kv := range parts[1:] {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			fmt.Fprintf(os.Stderr, "Ignoring %q (expected key=value)\n", kv)
			continue
		}
		args[key] = parseArgValue(val)
	}

	output, isErr, err := backend.Invoke(parts[0], args)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		return
	}
	if isErr {
		fmt.Fprintf(os.Stderr, "%s\n\n", errorStyle.Render(output))
		return
	}
	fmt.Fprintf(os.Stderr, "%s\n\n", output)
}

// parseArgValue interprets numbers and booleans so schemas with
// non-string parameters validate; everything else stays a string.
func parseArgValue(s string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		switch v.(type) {
		case float64, bool:
			return v
		}
	}
	return s
}

func printHistory(turns []chat.Turn) {
	if len(turns) == 0 {
		fmt.Fprintln(os.Stderr, "History is empty.")
		return
	}
	for _, t := range turns {
		switch t.Role {
		case chat.RoleSystem:
			fmt.Fprintf(os.Stderr, "%s\n", toolStyle.Render("[system] "+t.Content))
		case chat.RoleUser:
			fmt.Fprintf(os.Stderr, "%s %s\n", youStyle.Render("You:"), t.Content)
		case chat.RoleAssistant:
			if len(t.ToolCalls) > 0 {
				for _, call := range t.ToolCalls {
					fmt.Fprintf(os.Stderr, "%s\n", toolStyle.Render(fmt.Sprintf("[call] %s %s", call.Name, call.Arguments)))
				}
			}
			if t.Content != "" {
				fmt.Fprintf(os.Stderr, "%s %s\n", assistantStyle.Render("Assistant:"), t.Content)
			}
		case chat.RoleTool:
			fmt.Fprintf(os.Stderr, "%s\n", toolStyle.Render("[result] "+t.Content))
		}
	}
	fmt.Fprintln(os.Stderr)
}

// --- client mode: talk to the running gateway ---

type gatewayBackend struct {
	conn    *websocket.Conn
	session string
}

func dialGateway(addr, token, session string) (*gatewayBackend, error) {
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws", addr), nil)
	if err != nil {
		return nil, err
	}

	b := &gatewayBackend{conn: conn, session: session}
	payload, err := b.call(protocol.MethodConnect, map[string]interface{}{
		"token":   token,
		"session": session,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if s, ok := payload["session"].(string); ok && s != "" {
		b.session = s
	}
	return b, nil
}

// call sends one request and reads frames until its response arrives,
// displaying chat events for this session along the way.
func (b *gatewayBackend) call(method string, params interface{}) (map[string]interface{}, error) {
	reqID := uuid.NewString()[:8]
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	req := protocol.RequestFrame{
		Type:   protocol.FrameTypeRequest,
		ID:     reqID,
		Method: method,
		Params: raw,
	}
	if err := b.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	// Runs can spend minutes in tool rounds; server pings keep the
	// connection alive in between.
	b.conn.SetReadDeadline(time.Now().Add(5 * time.Minute))

	for {
		_, msg, err := b.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}

		frameType, _ := protocol.ParseFrameType(msg)
		switch frameType {
		case protocol.FrameTypeEvent:
			var evt protocol.EventFrame
			if json.Unmarshal(msg, &evt) == nil {
				b.displayEvent(evt)
			}

		case protocol.FrameTypeResponse:
			var resp protocol.ResponseFrame
			if err := json.Unmarshal(msg, &resp); err != nil {
				continue
			}
			if resp.ID != reqID {
				continue
			}
			if !resp.OK {
				if resp.Error != nil {
					return nil, fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message)
				}
				return nil, fmt.Errorf("%s failed", method)
			}
			payload, _ := resp.Payload.(map[string]interface{})
			return payload, nil
		}
	}
}

// displayEvent shows tool activity while a run is in flight. The final
// text arrives in the response frame, so message events stay silent.
func (b *gatewayBackend) displayEvent(evt protocol.EventFrame) {
	if evt.Event != protocol.EventChat {
		return
	}
	payload, ok := evt.Payload.(map[string]interface{})
	if !ok {
		return
	}
	if s, _ := payload["session"].(string); s != "" && s != b.session {
		return
	}

	data, _ := payload["data"].(map[string]interface{})
	switch payload["type"] {
	case protocol.ChatEventToolCall:
		name, _ := data["tool"].(string)
		fmt.Fprintln(os.Stderr, toolStyle.Render("  [tool] "+name))
	case protocol.ChatEventToolResult:
		if isErr, _ := data["is_error"].(bool); isErr {
			name, _ := data["tool"].(string)
			fmt.Fprintln(os.Stderr, toolStyle.Render("  [tool] "+name+" -> error"))
		}
	}
}

func (b *gatewayBackend) Send(message string) (string, error) {
	payload, err := b.call(protocol.MethodChatSend, map[string]interface{}{
		"message": message,
		"session": b.session,
	})
	if err != nil {
		return "", err
	}
	content, _ := payload["content"].(string)
	return content, nil
}

func (b *gatewayBackend) Reset() error {
	_, err := b.call(protocol.MethodChatReset, map[string]interface{}{"session": b.session})
	return err
}

func (b *gatewayBackend) Tools() ([]toolSummary, error) {
	payload, err := b.call(protocol.MethodToolsList, map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(payload["tools"])
	var out []toolSummary
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse tools list: %w", err)
	}
	return out, nil
}

func (b *gatewayBackend) History() ([]chat.Turn, error) {
	payload, err := b.call(protocol.MethodChatHistory, map[string]interface{}{"session": b.session})
	if err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(payload["turns"])
	var out []chat.Turn
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	return out, nil
}

func (b *gatewayBackend) Invoke(tool string, args map[string]interface{}) (string, bool, error) {
	payload, err := b.call(protocol.MethodToolsInvoke, map[string]interface{}{
		"tool":    tool,
		"args":    args,
		"session": b.session,
	})
	if err != nil {
		return "", false, err
	}
	output, _ := payload["output"].(string)
	isErr, _ := payload["is_error"].(bool)
	return output, isErr, nil
}

func (b *gatewayBackend) Session() string { return b.session }

func (b *gatewayBackend) Close() error { return b.conn.Close() }

// --- standalone mode: run the loop in-process ---

type localBackend struct {
	cfg      *config.Config
	provider providers.Provider
	registry *tools.Registry
	index    *docs.Index
	history  *chat.History
	session  string
}

func newLocalBackend(cfg *config.Config, session string) (*localBackend, error) {
	provider, err := providers.New(providerOptions(cfg))
	if err != nil {
		return nil, err
	}

	var index *docs.Index
	if cfg.Docs.Manifest != "" {
		index, err = docs.Open(cfg.Docs.Manifest)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: docs index unavailable: %v\n", err)
			index = nil
		}
	}

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry, index); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	return &localBackend{
		cfg:      cfg,
		provider: provider,
		registry: registry,
		index:    index,
		history:  chat.NewHistory(cfg.Chat.SystemPrompt),
		session:  session,
	}, nil
}

func (b *localBackend) Send(message string) (string, error) {
	b.history.Append(chat.UserTurn(message))

	runID := "cli-" + uuid.NewString()[:8]
	ctx := tools.WithSessionKey(context.Background(), b.session)
	ctx = tools.WithRunID(ctx, runID)

	temp := b.cfg.Provider.Temperature
	result, err := chat.Respond(ctx, b.history, b.provider, b.registry, chat.Options{
		Model:         b.cfg.Provider.Model,
		Temperature:   &temp,
		MaxIterations: b.cfg.Chat.MaxIterations,
		RunID:         runID,
		SessionID:     b.session,
		OnEvent: func(ev chat.Event) {
			switch ev.Kind {
			case chat.EventToolCall:
				fmt.Fprintln(os.Stderr, toolStyle.Render("  [tool] "+ev.Tool))
			case chat.EventToolResult:
				if ev.IsError {
					fmt.Fprintln(os.Stderr, toolStyle.Render("  [tool] "+ev.Tool+" -> error"))
				}
			}
		},
	})
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

func (b *localBackend) Reset() error {
	b.history = chat.NewHistory(b.cfg.Chat.SystemPrompt)
	return nil
}

func (b *localBackend) Tools() ([]toolSummary, error) {
	list := b.registry.List()
	out := make([]toolSummary, 0, len(list))
	for _, t := range list {
		out = append(out, toolSummary{Name: t.Name(), Description: t.Description()})
	}
	return out, nil
}

func (b *localBackend) History() ([]chat.Turn, error) {
	return b.history.Turns(), nil
}

func (b *localBackend) Invoke(tool string, args map[string]interface{}) (string, bool, error) {
	ctx := tools.WithSessionKey(context.Background(), b.session)
	result, err := b.registry.Execute(ctx, tool, args)
	if err != nil {
		return "", false, err
	}
	return result.ForLLM, result.IsError, nil
}

func (b *localBackend) Session() string { return b.session }

func (b *localBackend) Close() error {
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}
