package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/parleylabs/parley/internal/providers"
	"github.com/parleylabs/parley/internal/tools"
	"github.com/parleylabs/parley/internal/tracing"
)

// DefaultMaxIterations bounds tool-dispatch rounds per user message.
const DefaultMaxIterations = 5

// IterationLimitMessage is returned when the cap is hit and no partial
// assistant text is available.
const IterationLimitMessage = "Iteration limit reached without a final answer."

// ErrEmptyReply reports a final answer with no content.
var ErrEmptyReply = errors.New("model returned an empty reply")

// StopReason says how a run ended.
type StopReason string

const (
	StopFinal          StopReason = "final"
	StopIterationLimit StopReason = "iteration_limit"
)

// EventKind tags loop progress events.
type EventKind string

const (
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventAssistant  EventKind = "assistant"
)

// Event is one progress notification from a running loop.
type Event struct {
	Kind    EventKind
	CallID  string
	Tool    string
	Args    string
	Content string
	IsError bool
}

// Options tunes one Respond run.
type Options struct {
	Model         string
	Temperature   *float64
	MaxIterations int

	// Identifiers stamped onto events and spans.
	RunID     string
	SessionID string

	OnEvent func(Event)
	Tracer  *tracing.Collector
}

// Result is the outcome of a completed run.
type Result struct {
	Text       string
	StopReason StopReason
	Iterations int // tool-dispatch rounds performed
	ModelCalls int
	Usage      providers.Usage
}

// Respond drives the conversation loop for one user message already
// appended to history: model round-trips alternate with sequential
// tool dispatch until a final answer arrives or the iteration cap
// stops the run.
//
// Tool failures become tool-turn observations so the model can
// correct itself. An unknown tool name aborts the run with
// *tools.UnknownToolError and appends no turn for that call: the
// advertised schema and the registry disagree, which no retry fixes.
// Hitting the cap is a defined outcome (StopIterationLimit), not an
// error.
func Respond(ctx context.Context, history *History, provider providers.Provider, registry *tools.Registry, opts Options) (*Result, error) {
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	var defs []providers.ToolDefinition
	if registry != nil {
		defs = registry.ProviderDefs()
	}

	res := &Result{StopReason: StopFinal}
	lastText := ""

	for iteration := 0; ; {
		resp, err := callModel(ctx, provider, history, defs, opts, res)
		if err != nil {
			return nil, err
		}

		switch reply := parseReply(resp).(type) {
		case FinalAnswer:
			text := strings.TrimSpace(reply.Text)
			if text == "" {
				return nil, ErrEmptyReply
			}
			history.Append(AssistantTurn(text))
			emit(opts, Event{Kind: EventAssistant, Content: text})
			res.Text = text
			return res, nil

		case ToolCallRequest:
			history.Append(assistantCallTurn(reply.Text, reply.Calls))
			if t := strings.TrimSpace(reply.Text); t != "" {
				lastText = t
			}

			if err := dispatchCalls(ctx, history, registry, reply.Calls, opts); err != nil {
				return nil, err
			}

			iteration++
			res.Iterations = iteration
			if iteration >= maxIter {
				slog.Warn("iteration limit reached",
					"session", opts.SessionID, "iterations", iteration)
				res.StopReason = StopIterationLimit
				res.Text = lastText
				if res.Text == "" {
					res.Text = IterationLimitMessage
				}
				return res, nil
			}
		}
	}
}

// callModel performs one round-trip, recording a span and summing
// token usage into res.
func callModel(ctx context.Context, provider providers.Provider, history *History, defs []providers.ToolDefinition, opts Options, res *Result) (*providers.ChatResponse, error) {
	req := providers.ChatRequest{
		Model:       opts.Model,
		Messages:    history.Messages(),
		Tools:       defs,
		Temperature: opts.Temperature,
	}

	start := time.Now()
	resp, err := provider.Chat(ctx, req)
	res.ModelCalls++

	if opts.Tracer != nil {
		span := tracing.SpanData{
			RunID:      opts.RunID,
			SessionID:  opts.SessionID,
			SpanType:   tracing.SpanLLMCall,
			Name:       provider.Name(),
			StartedAt:  start,
			DurationMs: time.Since(start).Milliseconds(),
			Status:     tracing.StatusOK,
		}
		if err != nil {
			span.Status = tracing.StatusError
			span.Error = err.Error()
		} else {
			span.Model = resp.Model
			span.OutputPreview = resp.Content
			if resp.Usage != nil {
				span.PromptTokens = resp.Usage.PromptTokens
				span.CompletionTokens = resp.Usage.CompletionTokens
			}
		}
		opts.Tracer.EmitSpan(span)
	}

	if err != nil {
		return nil, fmt.Errorf("model request: %w", err)
	}
	if resp.Usage != nil {
		res.Usage.PromptTokens += resp.Usage.PromptTokens
		res.Usage.CompletionTokens += resp.Usage.CompletionTokens
		res.Usage.TotalTokens += resp.Usage.TotalTokens
	}
	return resp, nil
}

// dispatchCalls executes requested calls strictly in the order
// received, appending one tool turn per executed call.
func dispatchCalls(ctx context.Context, history *History, registry *tools.Registry, calls []ToolCall, opts Options) error {
	for _, call := range calls {
		if registry == nil {
			return &tools.UnknownToolError{Name: call.Name}
		}
		if _, err := registry.Get(call.Name); err != nil {
			return err
		}

		emit(opts, Event{Kind: EventToolCall, CallID: call.ID, Tool: call.Name, Args: call.Arguments})

		observation, isErr, err := runTool(ctx, registry, call, opts)
		if err != nil {
			return err
		}

		history.Append(ToolTurn(call.ID, observation))
		emit(opts, Event{
			Kind: EventToolResult, CallID: call.ID, Tool: call.Name,
			Content: observation, IsError: isErr,
		})
	}
	return nil
}

// runTool executes one call and records its span. The returned error
// is non-nil only for an unknown tool; every other failure is folded
// into the observation string.
func runTool(ctx context.Context, registry *tools.Registry, call ToolCall, opts Options) (string, bool, error) {
	start := time.Now()
	observation, isErr, err := executeCall(ctx, registry, call)

	if opts.Tracer != nil {
		span := tracing.SpanData{
			RunID:         opts.RunID,
			SessionID:     opts.SessionID,
			SpanType:      tracing.SpanToolCall,
			Name:          call.Name,
			StartedAt:     start,
			DurationMs:    time.Since(start).Milliseconds(),
			Status:        tracing.StatusOK,
			InputPreview:  call.Arguments,
			OutputPreview: observation,
		}
		if err != nil || isErr {
			span.Status = tracing.StatusError
			if err != nil {
				span.Error = err.Error()
			} else {
				span.Error = observation
			}
		}
		opts.Tracer.EmitSpan(span)
	}

	return observation, isErr, err
}

func executeCall(ctx context.Context, registry *tools.Registry, call ToolCall) (string, bool, error) {
	args, perr := parseArgs(call.Arguments)
	if perr != nil {
		e := &tools.InvalidArgumentsError{Tool: call.Name, Reason: perr.Error()}
		return e.Error(), true, nil
	}

	result, err := registry.Execute(ctx, call.Name, args)
	if err != nil {
		return "", false, err
	}
	return result.ForLLM, result.IsError, nil
}

// parseArgs decodes the model's raw argument string. Empty arguments
// mean an empty object.
func parseArgs(raw string) (map[string]interface{}, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %v", err)
	}
	return args, nil
}

func emit(opts Options, ev Event) {
	if opts.OnEvent != nil {
		opts.OnEvent(ev)
	}
}
