package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/parleylabs/parley/internal/docs"
)

const maxDocPassages = 5

// SearchDocumentsTool searches configured document collections via the
// full-text index. Without an index it returns a canned placeholder.
type SearchDocumentsTool struct {
	index *docs.Index
}

func NewSearchDocumentsTool(index *docs.Index) *SearchDocumentsTool {
	return &SearchDocumentsTool{index: index}
}

func (t *SearchDocumentsTool) Name() string { return "search_documents" }

func (t *SearchDocumentsTool) Description() string {
	return "Search internal document repositories and knowledge bases for relevant information. Use for policies, product documentation, or anything indexed in a collection."
}

func (t *SearchDocumentsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Natural language search query. More specific queries yield better results.",
			},
			"collection": map[string]interface{}{
				"type":        "string",
				"description": "Document collection name to search (e.g., \"policies\", \"technical-docs\"). Default is \"default\".",
			},
		},
		"required": []string{"query"},
	}
}

func (t *SearchDocumentsTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	query, _ := args["query"].(string)
	if query == "" {
		return ErrorResult("query is required")
	}

	collection, _ := args["collection"].(string)
	if collection == "" {
		collection = "default"
	}

	header := fmt.Sprintf("Document search results from '%s' collection for '%s':", collection, query)

	if t.index == nil {
		return NewResult(header + "\nNo documents found (placeholder).")
	}

	passages, err := t.index.Search(ctx, collection, query, maxDocPassages)
	if err != nil {
		slog.Warn("document search failed", "collection", collection, "error", err)
		return Errorf("Error searching documents in '%s': %v", collection, err)
	}
	if len(passages) == 0 {
		return NewResult(header + "\nNo documents found.")
	}

	var b strings.Builder
	b.WriteString(header)
	for i, p := range passages {
		fmt.Fprintf(&b, "\n%d. [%s:%d-%d] %s", i+1, p.Document, p.StartLine, p.EndLine, p.Snippet)
	}
	return NewResult(b.String())
}
