package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyQuery is returned when a search query has no terms
var ErrEmptyQuery = errors.New("empty search query")

// searchDeclarations performs BM25 full-text search over declaration names and docstrings
func searchDeclarations(ctx context.Context, q querier, moduleID int64, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, ErrEmptyQuery
	}

	sqlQuery := `
		SELECT
			d.id AS declaration_id,
			bm25(declarations_fts) AS score
		FROM declarations_fts
		INNER JOIN declarations d ON d.id = declarations_fts.rowid
		INNER JOIN files f ON d.file_id = f.id
		WHERE declarations_fts MATCH ?
		AND f.module_id = ?
	`
	args := []any{sanitized, moduleID}

	sqlQuery, args = applyTextFilters(sqlQuery, args, filters)

	// bm25 is negative and more negative is a better match; ties fall back to source order
	sqlQuery += " ORDER BY score, f.file_path, d.line LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTextResults(rows, filters)
}

// applyTextFilters adds WHERE clause filters for text search
func applyTextFilters(query string, args []any, filters *SearchFilters) (string, []any) {
	if filters == nil {
		return query, args
	}

	kinds := make([]string, 0, len(filters.Kinds))
	for _, k := range filters.Kinds {
		if k != "" {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) > 0 {
		query += " AND d.kind IN (" + strings.TrimSuffix(strings.Repeat("?,", len(kinds)), ",") + ")"
		for _, k := range kinds {
			args = append(args, k)
		}
	}

	if filters.FilePattern != "" {
		query += " AND f.file_path GLOB ?"
		args = append(args, filters.FilePattern)
	}

	return query, args
}

// collectTextResults normalizes BM25 scores and drops results under MinRelevance
func collectTextResults(rows *sql.Rows, filters *SearchFilters) ([]TextResult, error) {
	results := make([]TextResult, 0)

	for rows.Next() {
		var result TextResult
		if err := rows.Scan(&result.DeclarationID, &result.BM25Score); err != nil {
			return nil, err
		}

		result.BM25Score = normalizeBM25(result.BM25Score)

		if filters != nil && filters.MinRelevance > 0 && result.BM25Score < filters.MinRelevance {
			continue
		}

		results = append(results, result)
	}

	return results, rows.Err()
}

// normalizeBM25 maps a raw bm25 score (negative, lower is better) into [0, 1)
// so that stronger matches get higher relevance.
func normalizeBM25(score float64) float64 {
	if score >= 0 {
		return 0
	}
	return -score / (1 - score)
}

// sanitizeFTSQuery turns free text into an FTS5 query of quoted terms, so
// operators and punctuation in user input are matched literally. A trailing
// '*' on a term is kept as a prefix match.
func sanitizeFTSQuery(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		prefix := strings.HasSuffix(field, "*")
		field = strings.TrimRight(field, "*")
		if field == "" {
			continue
		}
		term := `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
		if prefix {
			term += "*"
		}
		terms = append(terms, term)
	}
	return strings.Join(terms, " ")
}
