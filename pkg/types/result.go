package types

// SearchResult represents a single documentation search hit with relevance information
type SearchResult struct {
	// Identification
	DeclarationID int64 `json:"declaration_id"`
	Rank          int   `json:"rank"` // Position in result set (1-based)

	// Scoring
	RelevanceScore float64 `json:"relevance_score"` // Normalized BM25 score

	// Metadata
	Statement StatementRecord `json:"statement"`
	File      string          `json:"file"` // Relative to module root
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.DeclarationID == 0 {
		return ErrInvalidDeclarationID
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.RelevanceScore < 0 || sr.RelevanceScore > 1 {
		return ErrInvalidRelevanceScore
	}

	if sr.File == "" {
		return ErrMissingFile
	}

	return nil
}
