package tools

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	defaultSearchResults = 5
	maxSearchResults     = 10
)

// SearchWebTool returns canned search results. Wire a search API
// (Brave, SerpAPI) to make it live.
type SearchWebTool struct{}

func NewSearchWebTool() *SearchWebTool { return &SearchWebTool{} }

func (t *SearchWebTool) Name() string { return "search_web" }

func (t *SearchWebTool) Description() string {
	return "Search the internet for current information, news, and web content. Use for recent events, up-to-date facts, or topics outside the model's knowledge cutoff."
}

func (t *SearchWebTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search query string. Use specific keywords for better results.",
			},
			"max_results": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum number of results to return (1-10). Default is 5.",
				"minimum":     1.0,
				"maximum":     float64(maxSearchResults),
			},
		},
		"required": []string{"query"},
	}
}

func (t *SearchWebTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	query, _ := args["query"].(string)
	if query == "" {
		return ErrorResult("query is required")
	}

	maxResults := defaultSearchResults
	if c, ok := args["max_results"].(float64); ok {
		if int(c) < 1 || int(c) > maxSearchResults {
			return Errorf("max_results must be between 1 and %d", maxSearchResults)
		}
		maxResults = int(c)
	}

	slog.Debug("search_web called", "query", query, "max_results", maxResults)
	return NewResult(fmt.Sprintf("Search results for '%s':\n1. Result placeholder 1\n2. Result placeholder 2", query))
}
