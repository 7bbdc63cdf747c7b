package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

const openaiDefaultBase = "https://api.openai.com/v1"

// OpenAIProvider talks to any OpenAI-compatible chat-completions
// endpoint. Transient failures (429, 5xx) are retried with exponential
// backoff, honoring Retry-After when the server sends one.
type OpenAIProvider struct {
	name       string
	apiKey     string
	apiBase    string
	model      string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// NewOpenAIProvider creates a provider for an OpenAI-compatible API.
func NewOpenAIProvider(name, apiKey, apiBase, defaultModel string) *OpenAIProvider {
	if apiBase == "" {
		apiBase = openaiDefaultBase
	}
	return &OpenAIProvider{
		name:       name,
		apiKey:     apiKey,
		apiBase:    strings.TrimRight(apiBase, "/"),
		model:      defaultModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		maxRetries: 2,
		retryDelay: time.Second,
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

// Model returns the default model used when a request leaves Model empty.
func (p *OpenAIProvider) Model() string { return p.model }

// Chat performs a non-streaming completion.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	p.fillRequest(&req)
	req.Stream = false

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := p.backoff(attempt, lastErr)
			slog.Debug("retrying chat request", "provider", p.name, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := p.doRequest(ctx, body)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) && !apiErr.Retryable() {
				return nil, err
			}
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("chat request failed after %d attempts: %w", p.maxRetries+1, lastErr)
}

// ChatStream performs a streaming completion, invoking onChunk for each
// delta. The accumulated response is returned when the stream ends.
func (p *OpenAIProvider) ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error) {
	p.fillRequest(&req)
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := p.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.apiError(resp)
	}

	return p.consumeStream(resp.Body, onChunk)
}

func (p *OpenAIProvider) fillRequest(req *ChatRequest) {
	if req.Model == "" {
		req.Model = p.model
	}
	if len(req.Tools) > 0 {
		req.Tools = CleanToolSchemas(req.Tools)
	}
}

func (p *OpenAIProvider) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	url := p.apiBase + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	return httpReq, nil
}

// doRequest performs one request and decodes the completion. Retryable
// failures come back as *APIError for the caller to decide.
func (p *OpenAIProvider) doRequest(ctx context.Context, body []byte) (*ChatResponse, error) {
	httpReq, err := p.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.apiError(resp)
	}

	var wire chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	slog.Debug("chat completion",
		"provider", p.name,
		"model", wire.Model,
		"elapsed", time.Since(start).Round(time.Millisecond))

	if wire.Error != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Type:       wire.Error.Type,
			Code:       wire.Error.Code,
			Message:    wire.Error.Message,
		}
	}
	if len(wire.Choices) == 0 {
		return nil, fmt.Errorf("response contained no choices")
	}

	choice := wire.Choices[0]
	return &ChatResponse{
		Content:      choice.Message.Content,
		Thinking:     choice.Message.ReasoningContent,
		ToolCalls:    choice.Message.ToolCalls,
		FinishReason: choice.FinishReason,
		Model:        wire.Model,
		Usage:        wire.Usage,
	}, nil
}

func (p *OpenAIProvider) apiError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(raw)),
	}
	var wire struct {
		Error *apiErrorBody `json:"error"`
	}
	if json.Unmarshal(raw, &wire) == nil && wire.Error != nil {
		apiErr.Type = wire.Error.Type
		apiErr.Code = wire.Error.Code
		apiErr.Message = wire.Error.Message
	}
	if after := resp.Header.Get("Retry-After"); after != "" {
		if secs, err := strconv.Atoi(after); err == nil {
			apiErr.RetryAfter = secs
		}
	}
	return apiErr
}

// backoff computes the delay before the given retry attempt. A server
// Retry-After wins over exponential backoff when it is longer.
func (p *OpenAIProvider) backoff(attempt int, lastErr error) time.Duration {
	delay := p.retryDelay * time.Duration(1<<uint(attempt-1))
	var apiErr *APIError
	if errors.As(lastErr, &apiErr) && apiErr.RetryAfter > 0 {
		if server := time.Duration(apiErr.RetryAfter) * time.Second; server > delay {
			delay = server
		}
	}
	return delay
}

func (p *OpenAIProvider) consumeStream(body io.Reader, onChunk func(StreamChunk)) (*ChatResponse, error) {
	var (
		content   strings.Builder
		thinking  strings.Builder
		finish    string
		model     string
		usage     *Usage
		toolCalls = map[int]*ToolCall{}
	)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk streamChunkResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Debug("skipping malformed stream chunk", "provider", p.name, "error", err)
			continue
		}
		if chunk.Model != "" {
			model = chunk.Model
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			finish = choice.FinishReason
		}
		delta := choice.Delta
		if delta.Content != "" {
			content.WriteString(delta.Content)
			if onChunk != nil {
				onChunk(StreamChunk{Content: delta.Content})
			}
		}
		if delta.ReasoningContent != "" {
			thinking.WriteString(delta.ReasoningContent)
			if onChunk != nil {
				onChunk(StreamChunk{Thinking: delta.ReasoningContent})
			}
		}
		for _, tc := range delta.ToolCalls {
			existing, ok := toolCalls[tc.Index]
			if !ok {
				existing = &ToolCall{Type: "function"}
				toolCalls[tc.Index] = existing
			}
			if tc.ID != "" {
				existing.ID = tc.ID
			}
			if tc.Type != "" {
				existing.Type = tc.Type
			}
			if tc.Function.Name != "" {
				existing.Function.Name = tc.Function.Name
			}
			existing.Function.Arguments += tc.Function.Arguments
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	if onChunk != nil {
		onChunk(StreamChunk{Done: true})
	}

	resp := &ChatResponse{
		Content:      content.String(),
		Thinking:     thinking.String(),
		FinishReason: finish,
		Model:        model,
		Usage:        usage,
	}
	if len(toolCalls) > 0 {
		indexes := make([]int, 0, len(toolCalls))
		for i := range toolCalls {
			indexes = append(indexes, i)
		}
		sort.Ints(indexes)
		for _, i := range indexes {
			resp.ToolCalls = append(resp.ToolCalls, *toolCalls[i])
		}
	}
	return resp, nil
}

// Wire shapes for decoding completions.

type apiErrorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role             string     `json:"role"`
			Content          string     `json:"content"`
			ReasoningContent string     `json:"reasoning_content"`
			ToolCalls        []ToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage        `json:"usage"`
	Error *apiErrorBody `json:"error"`
}

type streamChunkResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Role             string          `json:"role"`
			Content          string          `json:"content"`
			ReasoningContent string          `json:"reasoning_content"`
			ToolCalls        []toolCallDelta `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

type toolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}
