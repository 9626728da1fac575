// Package keyword provides an in-memory keyword index over the records of the extracted batches.
package keyword

import "github.com/hyperjump/apuntes/internal/models"

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// Kind restricts hits to one kind. Empty searches both.
	Kind models.Kind
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 2 when FuzzyEnabled is true.
	Fuzziness int
}

// Hit is a single matching slide or document.
type Hit struct {
	Kind       models.Kind `json:"kind"`
	OriginFile string      `json:"originFile"`
	// Part is the slide part name; empty for documents.
	Part    string  `json:"part,omitempty"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Result is the outcome of a search.
type Result struct {
	Query string `json:"query"`
	Hits  []*Hit `json:"hits"`
	// Suggestion is a corrected query, offered only when nothing matched.
	Suggestion string `json:"suggestion,omitempty"`
}

// TermDictionary provides access to the term dictionary for spell checking.
type TermDictionary interface {
	// TermCounts returns every indexed term with its document frequency.
	TermCounts() (map[string]int, error)
}

// record is the indexed form of one slide or document.
type record struct {
	Kind       string `json:"kind"`
	OriginFile string `json:"origin_file"`
	Part       string `json:"part"`
	Text       string `json:"text"`
}
