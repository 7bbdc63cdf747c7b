package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parleylabs/parley/internal/config"
	"github.com/parleylabs/parley/internal/providers"
	"github.com/parleylabs/parley/internal/sessions"
	"github.com/parleylabs/parley/internal/tools"
	"github.com/parleylabs/parley/pkg/protocol"
)

// stubProvider replays canned responses. The last response repeats if
// the loop asks for more. An optional gate blocks the first call until
// released, for concurrency tests.
type stubProvider struct {
	mu        sync.Mutex
	responses []providers.ChatResponse
	calls     int
	gate      chan struct{}
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	p.mu.Lock()
	idx := p.calls
	p.calls++
	gate := p.gate
	p.mu.Unlock()

	if gate != nil && idx == 0 {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	resp := p.responses[idx]
	return &resp, nil
}

func (p *stubProvider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return p.Chat(ctx, req)
}

func finalResp(text string) providers.ChatResponse {
	return providers.ChatResponse{Content: text, FinishReason: "stop", Model: "stub-model"}
}

func toolResp(name, args string) providers.ChatResponse {
	return providers.ChatResponse{
		FinishReason: "tool_calls",
		ToolCalls: []providers.ToolCall{{
			ID:   "call_1",
			Type: "function",
			Function: providers.FunctionCall{Name: name, Arguments: args},
		}},
	}
}

// echoTool repeats its text argument.
type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "Echo the input text" }
func (echoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"text": map[string]interface{}{"type": "string"},
		},
		"required": []string{"text"},
	}
}
func (echoTool) Execute(_ context.Context, args map[string]interface{}) *tools.Result {
	text, _ := args["text"].(string)
	return tools.NewResult("echo: " + text)
}

type gatewayFixture struct {
	server   *Server
	ts       *httptest.Server
	provider *stubProvider
}

func newFixture(t *testing.T, mutate func(*config.Config), responses ...providers.ChatResponse) *gatewayFixture {
	t.Helper()

	cfg := config.Default()
	cfg.Chat.SystemPrompt = "You are a test assistant."
	if mutate != nil {
		mutate(cfg)
	}

	if len(responses) == 0 {
		responses = []providers.ChatResponse{finalResp("ok")}
	}
	provider := &stubProvider{responses: responses}

	registry := tools.NewRegistry()
	if err := registry.Register(echoTool{}); err != nil {
		t.Fatalf("register echo: %v", err)
	}

	mgr, err := sessions.NewManager(cfg.Sessions.MaxSessions, cfg.Chat.SystemPrompt)
	if err != nil {
		t.Fatalf("sessions manager: %v", err)
	}

	srv := NewServer(cfg, Deps{
		Provider: provider,
		Registry: registry,
		Sessions: mgr,
	})

	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)

	return &gatewayFixture{server: srv, ts: ts, provider: provider}
}

func (f *gatewayFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type wireFrame struct {
	Type    string               `json:"type"`
	ID      string               `json:"id"`
	OK      bool                 `json:"ok"`
	Payload json.RawMessage      `json:"payload"`
	Error   *protocol.ErrorShape `json:"error"`
	Event   string               `json:"event"`
	Seq     int64                `json:"seq"`
}

func sendReq(t *testing.T, conn *websocket.Conn, id, method string, params interface{}) {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	frame := map[string]interface{}{
		"type": "req", "id": id, "method": method,
		"params": json.RawMessage(raw),
	}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write %s: %v", method, err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) wireFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var f wireFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

// awaitResponse reads frames until the response for id arrives,
// collecting events seen along the way.
func awaitResponse(t *testing.T, conn *websocket.Conn, id string) (wireFrame, []wireFrame) {
	t.Helper()
	var events []wireFrame
	for i := 0; i < 50; i++ {
		f := readFrame(t, conn)
		if f.Type == "res" && f.ID == id {
			return f, events
		}
		if f.Type == "event" {
			events = append(events, f)
		}
	}
	t.Fatalf("no response for request %s", id)
	return wireFrame{}, nil
}

func connectClient(t *testing.T, conn *websocket.Conn, token, session string) map[string]interface{} {
	t.Helper()
	sendReq(t, conn, "c1", "connect", map[string]string{"token": token, "session": session})
	resp, _ := awaitResponse(t, conn, "c1")
	if !resp.OK {
		t.Fatalf("connect failed: %+v", resp.Error)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(resp.Payload, &payload); err != nil {
		t.Fatalf("connect payload: %v", err)
	}
	return payload
}

func payloadOf(t *testing.T, f wireFrame) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal(f.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return payload
}

func TestConnectHandshake(t *testing.T) {
	f := newFixture(t, nil)
	conn := f.dial(t)

	payload := connectClient(t, conn, "", "")
	if payload["session"] != "default" {
		t.Errorf("session = %v, want default", payload["session"])
	}
	if payload["provider"] != "stub" {
		t.Errorf("provider = %v, want stub", payload["provider"])
	}
	if payload["protocol"].(float64) != float64(protocol.ProtocolVersion) {
		t.Errorf("protocol = %v", payload["protocol"])
	}
	server := payload["server"].(map[string]interface{})
	if server["name"] != "parley" {
		t.Errorf("server name = %v", server["name"])
	}
}

func TestRequestBeforeConnectRejected(t *testing.T) {
	f := newFixture(t, nil)
	conn := f.dial(t)

	sendReq(t, conn, "h1", "health", map[string]string{})
	resp, _ := awaitResponse(t, conn, "h1")
	if resp.OK {
		t.Fatal("health before connect should fail")
	}
	if resp.Error.Code != protocol.ErrUnauthorized {
		t.Errorf("code = %s, want %s", resp.Error.Code, protocol.ErrUnauthorized)
	}
}

func TestConnectTokenAuth(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Server.Token = "secret-token" })
	conn := f.dial(t)

	sendReq(t, conn, "c1", "connect", map[string]string{"token": "wrong"})
	resp, _ := awaitResponse(t, conn, "c1")
	if resp.OK {
		t.Fatal("connect with wrong token should fail")
	}
	if resp.Error.Code != protocol.ErrUnauthorized {
		t.Errorf("code = %s", resp.Error.Code)
	}

	// Same connection can retry with the right token.
	connectClient(t, conn, "secret-token", "")
}

func TestUnknownMethod(t *testing.T) {
	f := newFixture(t, nil)
	conn := f.dial(t)
	connectClient(t, conn, "", "")

	sendReq(t, conn, "x1", "no.such.method", map[string]string{})
	resp, _ := awaitResponse(t, conn, "x1")
	if resp.OK || resp.Error.Code != protocol.ErrInvalidRequest {
		t.Fatalf("expected INVALID_REQUEST, got %+v", resp)
	}
}

func TestStatusReportsRuntime(t *testing.T) {
	f := newFixture(t, nil)
	conn := f.dial(t)
	connectClient(t, conn, "", "")

	sendReq(t, conn, "s1", "status", map[string]string{})
	resp, _ := awaitResponse(t, conn, "s1")
	if !resp.OK {
		t.Fatalf("status failed: %+v", resp.Error)
	}
	payload := payloadOf(t, resp)
	if payload["provider"] != "stub" {
		t.Errorf("provider = %v", payload["provider"])
	}
	toolNames := payload["tools"].([]interface{})
	if len(toolNames) != 1 || toolNames[0] != "echo" {
		t.Errorf("tools = %v, want [echo]", toolNames)
	}
	if payload["clients"].(float64) != 1 {
		t.Errorf("clients = %v, want 1", payload["clients"])
	}
}

func TestChatSendFinalAnswer(t *testing.T) {
	f := newFixture(t, nil, finalResp("Hello there."))
	conn := f.dial(t)
	connectClient(t, conn, "", "")

	sendReq(t, conn, "m1", "chat.send", map[string]string{"message": "Hi"})
	resp, events := awaitResponse(t, conn, "m1")
	if !resp.OK {
		t.Fatalf("chat.send failed: %+v", resp.Error)
	}
	payload := payloadOf(t, resp)
	if payload["content"] != "Hello there." {
		t.Errorf("content = %v", payload["content"])
	}
	if payload["stop_reason"] != "final" {
		t.Errorf("stop_reason = %v", payload["stop_reason"])
	}

	kinds := chatEventKinds(events)
	if kinds[0] != "run.started" || kinds[len(kinds)-1] != "run.completed" {
		t.Errorf("event kinds = %v", kinds)
	}
}

func TestChatSendToolRound(t *testing.T) {
	f := newFixture(t, nil,
		toolResp("echo", `{"text":"ping"}`),
		finalResp("The echo said ping."),
	)
	conn := f.dial(t)
	connectClient(t, conn, "", "")

	sendReq(t, conn, "m1", "chat.send", map[string]string{"message": "echo ping"})
	resp, events := awaitResponse(t, conn, "m1")
	if !resp.OK {
		t.Fatalf("chat.send failed: %+v", resp.Error)
	}

	kinds := chatEventKinds(events)
	wantOrder := []string{"run.started", "tool.call", "tool.result", "message", "run.completed"}
	if strings.Join(kinds, ",") != strings.Join(wantOrder, ",") {
		t.Errorf("event kinds = %v, want %v", kinds, wantOrder)
	}

	// The history now holds user, assistant call, tool, assistant.
	sendReq(t, conn, "h1", "chat.history", map[string]string{})
	hist, _ := awaitResponse(t, conn, "h1")
	turns := payloadOf(t, hist)["turns"].([]interface{})
	if len(turns) != 5 { // system + 4
		t.Errorf("len(turns) = %d, want 5", len(turns))
	}
}

// chatEventKinds flattens chat event frames into their payload types.
func chatEventKinds(events []wireFrame) []string {
	var kinds []string
	for _, ev := range events {
		if ev.Event != "chat" {
			continue
		}
		var p struct {
			Type string `json:"type"`
		}
		json.Unmarshal(ev.Payload, &p)
		kinds = append(kinds, p.Type)
	}
	return kinds
}

func TestChatSendRequiresMessage(t *testing.T) {
	f := newFixture(t, nil)
	conn := f.dial(t)
	connectClient(t, conn, "", "")

	sendReq(t, conn, "m1", "chat.send", map[string]string{})
	resp, _ := awaitResponse(t, conn, "m1")
	if resp.OK || resp.Error.Code != protocol.ErrInvalidRequest {
		t.Fatalf("expected INVALID_REQUEST, got %+v", resp)
	}
}

func TestChatSendSingleRunPerSession(t *testing.T) {
	gate := make(chan struct{})
	f := newFixture(t, nil, finalResp("done"))
	f.provider.gate = gate

	conn := f.dial(t)
	connectClient(t, conn, "", "")

	sendReq(t, conn, "m1", "chat.send", map[string]string{"message": "first"})

	// The first run is parked on the gate; the second send must be
	// refused for the same session.
	deadline := time.Now().Add(2 * time.Second)
	for f.server.sessions.Get("default").Running() == false {
		if time.Now().After(deadline) {
			t.Fatal("first run never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sendReq(t, conn, "m2", "chat.send", map[string]string{"message": "second"})
	resp2, _ := awaitResponse(t, conn, "m2")
	if resp2.OK || resp2.Error.Code != protocol.ErrFailedPrecondition {
		t.Fatalf("expected FAILED_PRECONDITION, got %+v", resp2)
	}

	close(gate)
	resp1, _ := awaitResponse(t, conn, "m1")
	if !resp1.OK {
		t.Fatalf("first run failed: %+v", resp1.Error)
	}
}

func TestChatResetClearsHistory(t *testing.T) {
	f := newFixture(t, nil, finalResp("remembered"))
	conn := f.dial(t)
	connectClient(t, conn, "", "")

	sendReq(t, conn, "m1", "chat.send", map[string]string{"message": "note this"})
	awaitResponse(t, conn, "m1")

	sendReq(t, conn, "r1", "chat.reset", map[string]string{})
	resetResp, _ := awaitResponse(t, conn, "r1")
	if !resetResp.OK {
		t.Fatalf("chat.reset failed: %+v", resetResp.Error)
	}

	sendReq(t, conn, "h1", "chat.history", map[string]string{})
	hist, _ := awaitResponse(t, conn, "h1")
	turns := payloadOf(t, hist)["turns"].([]interface{})
	if len(turns) != 1 { // fresh system prompt only
		t.Errorf("len(turns) = %d after reset, want 1", len(turns))
	}
}

func TestToolsListAndInvoke(t *testing.T) {
	f := newFixture(t, nil)
	conn := f.dial(t)
	connectClient(t, conn, "", "")

	sendReq(t, conn, "t1", "tools.list", map[string]string{})
	listResp, _ := awaitResponse(t, conn, "t1")
	toolList := payloadOf(t, listResp)["tools"].([]interface{})
	if len(toolList) != 1 {
		t.Fatalf("len(tools) = %d, want 1", len(toolList))
	}
	entry := toolList[0].(map[string]interface{})
	if entry["name"] != "echo" || entry["description"] == "" {
		t.Errorf("tool entry = %v", entry)
	}

	sendReq(t, conn, "t2", "tools.invoke", map[string]interface{}{
		"tool": "echo",
		"args": map[string]interface{}{"text": "direct"},
	})
	invokeResp, _ := awaitResponse(t, conn, "t2")
	payload := payloadOf(t, invokeResp)
	if payload["output"] != "echo: direct" {
		t.Errorf("output = %v", payload["output"])
	}
	if payload["is_error"] != false {
		t.Errorf("is_error = %v", payload["is_error"])
	}

	sendReq(t, conn, "t3", "tools.invoke", map[string]interface{}{"tool": "nope"})
	missingResp, _ := awaitResponse(t, conn, "t3")
	if missingResp.OK || missingResp.Error.Code != protocol.ErrNotFound {
		t.Fatalf("expected NOT_FOUND, got %+v", missingResp)
	}
}

func TestSessionsList(t *testing.T) {
	f := newFixture(t, nil, finalResp("hi"))
	conn := f.dial(t)
	connectClient(t, conn, "", "")

	sendReq(t, conn, "m1", "chat.send", map[string]interface{}{"message": "hello", "session": "alpha"})
	awaitResponse(t, conn, "m1")

	sendReq(t, conn, "l1", "sessions.list", map[string]string{})
	resp, _ := awaitResponse(t, conn, "l1")
	list := payloadOf(t, resp)["sessions"].([]interface{})
	if len(list) != 1 {
		t.Fatalf("len(sessions) = %d, want 1", len(list))
	}
	info := list[0].(map[string]interface{})
	if info["id"] != "alpha" {
		t.Errorf("session id = %v", info["id"])
	}
	if info["turns"].(float64) < 3 {
		t.Errorf("turns = %v, want >= 3", info["turns"])
	}
}

func TestChatRateLimit(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Server.RateRPM = 1
		c.Server.RateBurst = 1
	}, finalResp("ok"))
	conn := f.dial(t)
	connectClient(t, conn, "", "")

	sendReq(t, conn, "m1", "chat.send", map[string]string{"message": "one"})
	first, _ := awaitResponse(t, conn, "m1")
	if !first.OK {
		t.Fatalf("first send failed: %+v", first.Error)
	}

	sendReq(t, conn, "m2", "chat.send", map[string]string{"message": "two"})
	second, _ := awaitResponse(t, conn, "m2")
	if second.OK || second.Error.Code != protocol.ErrResourceExhausted {
		t.Fatalf("expected RESOURCE_EXHAUSTED, got %+v", second)
	}
}

func TestServeUI(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := http.Get(f.ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %s", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("parley")) {
		t.Error("UI page missing title")
	}

	missing, err := http.Get(f.ts.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("GET /nope status = %d, want 404", missing.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := http.Get(f.ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(`"ok"`)) {
		t.Errorf("healthz body = %s", body)
	}
}

func TestCompletionsEndpoint(t *testing.T) {
	f := newFixture(t, nil, finalResp("Paris."))

	reqBody := `{"model":"parley","messages":[{"role":"user","content":"Capital of France?"}]}`
	resp, err := http.Post(f.ts.URL+"/v1/chat/completions", "application/json", strings.NewReader(reqBody))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Object  string `json:"object"`
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage map[string]int `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Object != "chat.completion" {
		t.Errorf("object = %s", out.Object)
	}
	if len(out.Choices) != 1 || out.Choices[0].Message.Content != "Paris." {
		t.Errorf("choices = %+v", out.Choices)
	}
	if out.Choices[0].FinishReason != "stop" {
		t.Errorf("finish_reason = %s", out.Choices[0].FinishReason)
	}
}

func TestCompletionsAuth(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Server.Token = "api-secret" })

	body := `{"messages":[{"role":"user","content":"hi"}]}`
	resp, err := http.Post(f.ts.URL+"/v1/chat/completions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, f.ts.URL+"/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer api-secret")
	req.Header.Set("Content-Type", "application/json")
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST with token: %v", err)
	}
	authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Fatalf("status with token = %d, want 200", authed.StatusCode)
	}
}

func TestCompletionsRejectsEmptyMessages(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := http.Post(f.ts.URL+"/v1/chat/completions", "application/json", strings.NewReader(`{"messages":[]}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCompletionsStream(t *testing.T) {
	f := newFixture(t, nil, finalResp("Streamed answer."))

	reqBody := `{"stream":true,"messages":[{"role":"user","content":"go"}]}`
	resp, err := http.Post(f.ts.URL+"/v1/chat/completions", "application/json", strings.NewReader(reqBody))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %s", ct)
	}

	var chunks []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			chunks = append(chunks, strings.TrimPrefix(line, "data: "))
		}
	}

	if len(chunks) < 3 {
		t.Fatalf("got %d chunks, want at least 3", len(chunks))
	}
	if chunks[len(chunks)-1] != "[DONE]" {
		t.Errorf("last chunk = %q, want [DONE]", chunks[len(chunks)-1])
	}

	var sawContent bool
	for _, raw := range chunks[:len(chunks)-1] {
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(raw), &chunk); err != nil {
			t.Fatalf("chunk not JSON: %q", raw)
		}
		if len(chunk.Choices) == 1 && chunk.Choices[0].Delta.Content == "Streamed answer." {
			sawContent = true
		}
	}
	if !sawContent {
		t.Error("no chunk carried the answer")
	}
}

func TestEventSequenceNumbers(t *testing.T) {
	f := newFixture(t, nil,
		toolResp("echo", `{"text":"x"}`),
		finalResp("done"),
	)
	conn := f.dial(t)
	connectClient(t, conn, "", "")

	sendReq(t, conn, "m1", "chat.send", map[string]string{"message": "go"})
	_, events := awaitResponse(t, conn, "m1")

	if len(events) < 2 {
		t.Fatalf("got %d events", len(events))
	}
	var last int64
	for _, ev := range events {
		if ev.Seq <= last {
			t.Fatalf("sequence not increasing: %d after %d", ev.Seq, last)
		}
		last = ev.Seq
	}
}

func TestToolsInvokeEndpoint(t *testing.T) {
	f := newFixture(t, nil)

	body := `{"tool":"echo","args":{"text":"direct"}}`
	resp, err := http.Post(f.ts.URL+"/v1/tools/invoke", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, raw)
	}

	var out struct {
		Tool    string `json:"tool"`
		Output  string `json:"output"`
		IsError bool   `json:"is_error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Tool != "echo" || out.Output != "echo: direct" || out.IsError {
		t.Errorf("invoke result = %+v", out)
	}
}

func TestToolsInvokeDryRun(t *testing.T) {
	f := newFixture(t, nil)

	body := `{"tool":"echo","dry_run":true}`
	resp, err := http.Post(f.ts.URL+"/v1/tools/invoke", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out struct {
		Tool       string                 `json:"tool"`
		DryRun     bool                   `json:"dry_run"`
		Parameters map[string]interface{} `json:"parameters"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.DryRun {
		t.Error("dry_run not echoed")
	}
	if out.Parameters["type"] != "object" {
		t.Errorf("parameters = %v", out.Parameters)
	}
}

func TestToolsInvokeUnknownTool(t *testing.T) {
	f := newFixture(t, nil)

	body := `{"tool":"nope","args":{}}`
	resp, err := http.Post(f.ts.URL+"/v1/tools/invoke", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(raw, []byte("NOT_FOUND")) {
		t.Errorf("body = %s", raw)
	}
}

func TestToolsInvokeRequiresToolName(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := http.Post(f.ts.URL+"/v1/tools/invoke", "application/json", strings.NewReader(`{"args":{}}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
