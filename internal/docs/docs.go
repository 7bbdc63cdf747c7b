// Package docs indexes document collections for full-text search
// (FTS5). Collections are declared in a YAML manifest; the index is
// rebuilt in memory at startup, which is cheap for the corpus sizes
// this serves.
package docs

// Passage is a text fragment returned by a search.
type Passage struct {
	Collection string  `json:"collection"`
	Document   string  `json:"document"`
	StartLine  int     `json:"start_line"`
	EndLine    int     `json:"end_line"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet"`
}
