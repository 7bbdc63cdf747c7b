package gateway

import "regexp"

// inputGuard scans inbound chat messages for prompt injection markers
// before they enter the model loop. What happens on a hit is decided by
// chat.injectionAction: "log", "warn" (default), "block", or "off".
type inputGuard struct {
	patterns []guardPattern
}

type guardPattern struct {
	name string
	re   *regexp.Regexp
}

func newInputGuard() *inputGuard {
	return &inputGuard{patterns: []guardPattern{
		{
			name: "ignore_instructions",
			re:   regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier|preceding)\s+(instructions?|rules?|prompts?|directives?|guidelines?)`),
		},
		{
			name: "role_override",
			re:   regexp.MustCompile(`(?i)(you are now|from now on you are|pretend you are|act as if you are|imagine you are)\s+`),
		},
		{
			name: "system_tags",
			re:   regexp.MustCompile(`(?i)</?system>|\[SYSTEM\]|\[INST\]|<<SYS>>|<\|im_start\|>system`),
		},
		{
			name: "instruction_injection",
			re:   regexp.MustCompile(`(?i)(new instructions?:|override:|system prompt:|<\|system\|>)`),
		},
		{
			name: "null_bytes",
			re:   regexp.MustCompile(`\x00`),
		},
		{
			name: "delimiter_escape",
			re:   regexp.MustCompile(`(?i)(end of system|begin user input|</?(instructions?|rules|prompt|context)>)`),
		},
	}}
}

// scan returns the names of matched patterns, nil when clean. The
// patterns aim at common injection phrasing while staying quiet on
// ordinary messages.
func (g *inputGuard) scan(message string) []string {
	if message == "" {
		return nil
	}
	var hits []string
	for _, gp := range g.patterns {
		if gp.re.MatchString(message) {
			hits = append(hits, gp.name)
		}
	}
	return hits
}
