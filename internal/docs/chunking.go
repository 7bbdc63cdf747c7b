package docs

import "strings"

const defaultPassageLen = 1000

// passage is an indexable fragment with its source line span.
type passage struct {
	text      string
	startLine int
	endLine   int
}

// splitPassages breaks a document into passages at paragraph
// boundaries. A blank line closes the current passage once it has
// reached half the target size; a passage is force-closed at the
// target size regardless of boundaries.
func splitPassages(text string, maxLen int) []passage {
	if maxLen <= 0 {
		maxLen = defaultPassageLen
	}

	lines := strings.Split(text, "\n")
	var out []passage
	var buf strings.Builder
	start := 1

	emit := func(end int) {
		if body := strings.TrimSpace(buf.String()); body != "" {
			out = append(out, passage{text: body, startLine: start, endLine: end})
		}
		buf.Reset()
		start = end + 1
	}

	for i, line := range lines {
		n := i + 1
		blank := strings.TrimSpace(line) == ""

		if blank && buf.Len() >= maxLen/2 {
			emit(n - 1)
			continue
		}

		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)

		if buf.Len() >= maxLen {
			emit(n)
		}
	}
	emit(len(lines))

	return out
}
