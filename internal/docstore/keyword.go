package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/ziadkadry99/ctxpack/internal/retrieval"
)

// maxKeywordTerms bounds the LIKE clauses built for one query.
const maxKeywordTerms = 8

// KeywordSearcher ranks documents by the fraction of query terms they
// contain. It is the search channel used when no semantic index exists.
type KeywordSearcher struct {
	store *Store
}

// NewKeywordSearcher creates a keyword searcher over s.
func NewKeywordSearcher(s *Store) *KeywordSearcher {
	return &KeywordSearcher{store: s}
}

// Search implements retrieval.Searcher.
func (k *KeywordSearcher) Search(ctx context.Context, q retrieval.SearchQuery) ([]retrieval.SearchResult, error) {
	terms := Terms(q.Query)
	if len(terms) == 0 {
		return nil, nil
	}

	var where []string
	args := []any{q.Requester}
	for _, t := range terms {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(content) LIKE ?)")
		like := "%" + t + "%"
		args = append(args, like, like)
	}
	query := `SELECT id, title, content FROM documents
		 WHERE (owner = '' OR owner = ?) AND (` + strings.Join(where, " OR ") + `)`
	if q.ScopeID != "" {
		query += " AND scope_id = ?"
		args = append(args, q.ScopeID)
	}

	rows, err := k.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var results []retrieval.SearchResult
	for rows.Next() {
		var r retrieval.SearchResult
		if err := rows.Scan(&r.DocumentID, &r.Title, &r.Content); err != nil {
			return nil, fmt.Errorf("scanning keyword hit: %w", err)
		}
		r.Score = termCoverage(terms, r.Title+"\n"+r.Content)
		if r.Score < q.MinScore {
			continue
		}
		r.Snippet = retrieval.MakeSnippet(r.Content)
		r.Source = retrieval.SourceKeyword
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// Terms splits a query into distinct lowercase words of two or more letters
// or digits.
func Terms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool)
	var out []string
	for _, f := range fields {
		if len([]rune(f)) < 2 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
		if len(out) == maxKeywordTerms {
			break
		}
	}
	return out
}

func termCoverage(terms []string, text string) float64 {
	text = strings.ToLower(text)
	hits := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}
