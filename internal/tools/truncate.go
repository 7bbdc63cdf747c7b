package tools

import "fmt"

// DefaultMaxResultChars caps how much of a tool result reaches the
// model. MCP servers in particular can return arbitrarily large
// payloads; an unbounded observation can blow the context window in a
// single round.
const DefaultMaxResultChars = 16_000

// Head/tail split for oversized results. The middle is the least
// informative part of most outputs.
const (
	truncHeadRatio = 0.7
	truncTailRatio = 0.2
)

// TruncateOutput shortens s to at most maxChars, keeping the head and
// tail with a marker in between. maxChars <= 0 applies the default.
func TruncateOutput(s string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxResultChars
	}
	if len(s) <= maxChars {
		return s
	}

	headChars := int(float64(maxChars) * truncHeadRatio)
	tailChars := int(float64(maxChars) * truncTailRatio)

	marker := fmt.Sprintf("\n\n[...output truncated: kept %d+%d of %d chars...]\n\n",
		headChars, tailChars, len(s))

	return s[:headChars] + marker + s[len(s)-tailChars:]
}
