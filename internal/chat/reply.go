package chat

import "github.com/parleylabs/parley/internal/providers"

// Reply is the closed set of model answer shapes: either a final
// answer or a request to invoke tools. Callers type-switch on the two
// variants instead of probing optional response fields.
type Reply interface {
	isReply()
}

// FinalAnswer carries the model's final text.
type FinalAnswer struct {
	Text string
}

// ToolCallRequest carries the model's tool invocations, plus any
// commentary text that accompanied them.
type ToolCallRequest struct {
	Calls []ToolCall
	Text  string
}

func (FinalAnswer) isReply()     {}
func (ToolCallRequest) isReply() {}

// parseReply classifies a provider response into its Reply variant.
func parseReply(resp *providers.ChatResponse) Reply {
	if len(resp.ToolCalls) == 0 {
		return FinalAnswer{Text: resp.Content}
	}

	calls := make([]ToolCall, 0, len(resp.ToolCalls))
	for _, tc := range resp.ToolCalls {
		calls = append(calls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return ToolCallRequest{Calls: calls, Text: resp.Content}
}
