package providers

import "context"

const (
	groqDefaultBase  = "https://api.groq.com/openai/v1"
	groqDefaultModel = "llama-3.1-8b-instant"
)

// GroqProvider wraps OpenAIProvider for Groq's OpenAI-compatible API.
// Groq's llama tool models expect parallel_tool_calls=false; both entry
// points force it unless the caller already set a value.
type GroqProvider struct {
	*OpenAIProvider
}

func NewGroqProvider(apiKey, apiBase, defaultModel string) *GroqProvider {
	if apiBase == "" {
		apiBase = groqDefaultBase
	}
	if defaultModel == "" {
		defaultModel = groqDefaultModel
	}
	return &GroqProvider{
		OpenAIProvider: NewOpenAIProvider("groq", apiKey, apiBase, defaultModel),
	}
}

func (p *GroqProvider) Name() string { return "groq" }

func (p *GroqProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	forceSequentialToolCalls(&req)
	return p.OpenAIProvider.Chat(ctx, req)
}

func (p *GroqProvider) ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error) {
	forceSequentialToolCalls(&req)
	return p.OpenAIProvider.ChatStream(ctx, req, onChunk)
}

func forceSequentialToolCalls(req *ChatRequest) {
	if len(req.Tools) > 0 && req.ParallelToolCalls == nil {
		off := false
		req.ParallelToolCalls = &off
	}
}
