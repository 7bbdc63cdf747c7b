// Package chat implements the bounded tool-calling conversation loop:
// the model is sent the session history plus tool schemas and answers
// with either final text or tool-call requests, which are dispatched
// in order and fed back as tool turns until the model produces a final
// answer or the iteration cap stops the run.
package chat

import (
	"sync"
	"time"

	"github.com/parleylabs/parley/internal/providers"
)

// Role tags a turn's author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one tool invocation requested in an assistant turn.
// Arguments is the raw JSON object string from the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Turn is one immutable entry in a conversation. Tool turns carry the
// ToolCallID of the assistant request they answer.
type Turn struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	At         time.Time  `json:"at"`
}

// SystemTurn builds a system-prompt turn.
func SystemTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: content, At: time.Now()}
}

// UserTurn builds a user message turn.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content, At: time.Now()}
}

// AssistantTurn builds a final assistant answer turn.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content, At: time.Now()}
}

// assistantCallTurn builds the assistant turn that requested tools.
func assistantCallTurn(content string, calls []ToolCall) Turn {
	return Turn{Role: RoleAssistant, Content: content, ToolCalls: calls, At: time.Now()}
}

// ToolTurn builds a tool-result turn answering callID.
func ToolTurn(callID, content string) Turn {
	return Turn{Role: RoleTool, Content: content, ToolCallID: callID, At: time.Now()}
}

// History is the append-only turn sequence for one session. Reads are
// safe while a run appends; writes come from exactly one run at a
// time, which the owning session enforces.
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewHistory starts a history, seeded with a system turn when the
// prompt is non-empty.
func NewHistory(systemPrompt string) *History {
	h := &History{}
	if systemPrompt != "" {
		h.Append(SystemTurn(systemPrompt))
	}
	return h
}

// Append adds a turn. Appended turns are never mutated or removed.
func (h *History) Append(t Turn) {
	h.mu.Lock()
	h.turns = append(h.turns, t)
	h.mu.Unlock()
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Turns returns a copy of the turn sequence.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Messages serializes the history into the provider wire format.
func (h *History) Messages() []providers.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msgs := make([]providers.Message, 0, len(h.turns))
	for _, t := range h.turns {
		m := providers.Message{
			Role:       string(t.Role),
			Content:    t.Content,
			ToolCallID: t.ToolCallID,
		}
		for _, tc := range t.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, providers.ToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: providers.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		msgs = append(msgs, m)
	}
	return msgs
}
