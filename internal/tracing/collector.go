// Package tracing buffers model-call and tool-call spans from chat
// runs. Spans are kept in a bounded in-memory ring for the status
// surface and, when an exporter is attached, batched out via OTLP.
package tracing

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	defaultFlushInterval = 5 * time.Second
	defaultBufferSize    = 1000
	recentSpanLimit      = 256
	previewMaxLen        = 500
)

// Span types.
const (
	SpanLLMCall  = "llm_call"
	SpanToolCall = "tool_call"
)

// Span statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// SpanData is one recorded model or tool call.
type SpanData struct {
	ID        uuid.UUID `json:"id"`
	RunID     string    `json:"run_id"`
	SessionID string    `json:"session_id"`
	SpanType  string    `json:"span_type"`
	Name      string    `json:"name"`
	Model     string    `json:"model,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`

	Status string `json:"status"`
	Error  string `json:"error,omitempty"`

	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`

	InputPreview  string `json:"input_preview,omitempty"`
	OutputPreview string `json:"output_preview,omitempty"`
}

// SpanExporter is implemented by backends that receive flushed spans
// (e.g. OTLP). Keeping it an interface confines the OTel dependency to
// its own sub-package.
type SpanExporter interface {
	ExportSpans(ctx context.Context, spans []SpanData)
	Shutdown(ctx context.Context) error
}

// Collector buffers spans and flushes them periodically: into the
// recent-span ring always, and to the exporter when one is attached.
type Collector struct {
	spanCh chan SpanData
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu     sync.Mutex
	recent []SpanData

	verbose  bool
	exporter SpanExporter
}

// NewCollector creates a collector. Set PARLEY_TRACE_VERBOSE=1 to keep
// full previews on spans instead of truncating them.
func NewCollector() *Collector {
	verbose := os.Getenv("PARLEY_TRACE_VERBOSE") != ""
	if verbose {
		slog.Info("tracing: verbose mode enabled (PARLEY_TRACE_VERBOSE)")
	}
	return &Collector{
		spanCh:  make(chan SpanData, defaultBufferSize),
		stopCh:  make(chan struct{}),
		verbose: verbose,
	}
}

// Verbose reports whether full previews are kept.
func (c *Collector) Verbose() bool { return c.verbose }

// SetExporter attaches an external span exporter.
func (c *Collector) SetExporter(exp SpanExporter) {
	c.exporter = exp
}

// Start begins the background flush loop.
func (c *Collector) Start() {
	c.wg.Add(1)
	go c.flushLoop()
	slog.Info("tracing collector started")
}

// Stop flushes remaining spans and shuts down the exporter.
func (c *Collector) Stop() {
	close(c.stopCh)
	c.wg.Wait()

	if c.exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.exporter.Shutdown(ctx); err != nil {
			slog.Warn("tracing: span exporter shutdown failed", "error", err)
		}
	}

	slog.Info("tracing collector stopped")
}

// EmitSpan enqueues a span. Non-blocking: drops the span if the buffer
// is full.
func (c *Collector) EmitSpan(span SpanData) {
	if span.ID == uuid.Nil {
		span.ID = uuid.New()
	}
	if span.StartedAt.IsZero() {
		span.StartedAt = time.Now().UTC()
	}
	if !c.verbose {
		span.InputPreview = truncatePreview(span.InputPreview)
		span.OutputPreview = truncatePreview(span.OutputPreview)
	}

	select {
	case c.spanCh <- span:
	default:
		slog.Warn("tracing: span buffer full, dropping span",
			"span_type", span.SpanType, "name", span.Name)
	}
}

// Recent returns up to n of the most recently flushed spans, newest
// first.
func (c *Collector) Recent(n int) []SpanData {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n <= 0 || n > len(c.recent) {
		n = len(c.recent)
	}
	out := make([]SpanData, n)
	for i := 0; i < n; i++ {
		out[i] = c.recent[len(c.recent)-1-i]
	}
	return out
}

func (c *Collector) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(defaultFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-c.stopCh:
			c.flush()
			return
		}
	}
}

func (c *Collector) flush() {
	var spans []SpanData
	for {
		select {
		case span := <-c.spanCh:
			spans = append(spans, span)
		default:
			goto done
		}
	}
done:
	if len(spans) == 0 {
		return
	}

	c.mu.Lock()
	c.recent = append(c.recent, spans...)
	if overflow := len(c.recent) - recentSpanLimit; overflow > 0 {
		c.recent = append(c.recent[:0], c.recent[overflow:]...)
	}
	c.mu.Unlock()

	if c.exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.exporter.ExportSpans(ctx, spans)
	}
	slog.Debug("tracing: flushed spans", "count", len(spans))
}

// truncatePreview sanitizes and truncates a string to previewMaxLen
// bytes on a rune boundary.
func truncatePreview(s string) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= previewMaxLen {
		return s
	}
	maxLen := previewMaxLen
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
