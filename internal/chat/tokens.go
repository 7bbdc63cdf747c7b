package chat

import (
	"sync"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Per-message framing overhead in the chat completion format.
const tokensPerTurn = 4

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

func tokenEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		// Best effort: loading can fail offline on a cold cache.
		encoding, _ = tiktoken.GetEncoding("cl100k_base")
	})
	return encoding
}

// EstimateTokens approximates the prompt-side token footprint of the
// history using cl100k_base, falling back to a chars/4 heuristic when
// the encoding is unavailable.
func (h *History) EstimateTokens() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, t := range h.turns {
		total += tokensPerTurn + countTokens(t.Content)
		for _, tc := range t.ToolCalls {
			total += countTokens(tc.Name) + countTokens(tc.Arguments)
		}
	}
	return total
}

func countTokens(s string) int {
	if s == "" {
		return 0
	}
	if enc := tokenEncoding(); enc != nil {
		return len(enc.Encode(s, nil, nil))
	}
	return utf8.RuneCountInString(s)/4 + 1
}
