package docs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

const maxSnippetLen = 700

// Index is an in-memory FTS5 index over document collections.
type Index struct {
	db *sql.DB
	mu sync.RWMutex

	// passage counts per collection, for status reporting
	collections map[string]int
	documents   int
}

// Open loads a manifest and builds the index from its collections.
func Open(manifestPath string) (*Index, error) {
	m, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	ix, err := newIndex()
	if err != nil {
		return nil, err
	}

	baseDir := filepath.Dir(manifestPath)
	for _, spec := range m.Collections {
		files, err := sourceFiles(baseDir, spec)
		if err != nil {
			ix.Close()
			return nil, err
		}
		for _, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				ix.Close()
				return nil, fmt.Errorf("collection %s: %w", spec.Name, err)
			}
			if err := ix.addDocument(spec.Name, filepath.Base(f), string(data)); err != nil {
				ix.Close()
				return nil, err
			}
		}
	}

	slog.Info("document index built",
		"collections", len(ix.collections), "documents", ix.documents)
	return ix, nil
}

// newIndex opens an empty in-memory index.
func newIndex() (*Index, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	// Each sqlite connection to :memory: is a separate database; the
	// pool must never grow past one.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE VIRTUAL TABLE passages USING fts5(
		text,
		collection UNINDEXED,
		document UNINDEXED,
		start_line UNINDEXED,
		end_line UNINDEXED,
		tokenize='porter unicode61'
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create fts table: %w", err)
	}

	return &Index{db: db, collections: map[string]int{}}, nil
}

// addDocument chunks a document and indexes its passages.
func (ix *Index) addDocument(collection, document, text string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	tx, err := ix.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	passages := splitPassages(text, defaultPassageLen)
	for _, p := range passages {
		_, err := tx.Exec(`INSERT INTO passages (text, collection, document, start_line, end_line)
			VALUES (?, ?, ?, ?, ?)`,
			p.text, collection, document, p.startLine, p.endLine)
		if err != nil {
			return fmt.Errorf("index %s/%s: %w", collection, document, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	ix.collections[collection] += len(passages)
	ix.documents++
	return nil
}

// Search returns the best-matching passages in a collection, scored by
// BM25 rank normalized to (0,1]. An unknown collection simply yields
// no results.
func (ix *Index) Search(ctx context.Context, collection, query string, limit int) ([]Passage, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if limit <= 0 {
		limit = 5
	}
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := ix.db.QueryContext(ctx, `SELECT document, start_line, end_line, text,
		1.0 / (1.0 + abs(rank)) AS score
		FROM passages
		WHERE passages MATCH ? AND collection = ?
		ORDER BY rank
		LIMIT ?`, match, collection, limit)
	if err != nil {
		return nil, fmt.Errorf("fts query: %w", err)
	}
	defer rows.Close()

	var results []Passage
	for rows.Next() {
		var p Passage
		var text string
		if err := rows.Scan(&p.Document, &p.StartLine, &p.EndLine, &text, &p.Score); err != nil {
			return nil, err
		}
		p.Collection = collection
		p.Snippet = truncateSnippet(text, maxSnippetLen)
		results = append(results, p)
	}
	return results, rows.Err()
}

// Collections returns the indexed collection names, sorted.
func (ix *Index) Collections() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	names := make([]string, 0, len(ix.collections))
	for name := range ix.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PassageCount returns the total number of indexed passages.
func (ix *Index) PassageCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	total := 0
	for _, n := range ix.collections {
		total += n
	}
	return total
}

// Close releases the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// ftsQuery rewrites free text into an FTS5 OR-query of quoted tokens,
// so punctuation in user input cannot break the match syntax.
func ftsQuery(query string) string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return !isWordRune(r)
	})
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + f + `"`
	}
	return strings.Join(quoted, " OR ")
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r >= 0x80:
		// Let unicode61 handle non-ASCII tokens.
		return true
	}
	return false
}

func truncateSnippet(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
