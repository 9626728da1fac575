package keyword

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// minCorrectableLen is the shortest term (in runes) the spell checker tries to correct.
const minCorrectableLen = 4

// Suggestion represents a spelling suggestion with its score.
type Suggestion struct {
	Term      string
	Distance  int
	Frequency int
	Score     float64
}

// SpellChecker suggests indexed terms close to query terms that are not in the index.
type SpellChecker struct {
	dictionary     TermDictionary
	maxDistance    int
	maxSuggestions int
}

// SpellCheckerOption is a functional option for configuring SpellChecker.
type SpellCheckerOption func(*SpellChecker)

// WithMaxDistance sets the maximum edit distance for suggestions.
func WithMaxDistance(d int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMaxSuggestions sets the maximum number of suggestions to return per term.
func WithMaxSuggestions(n int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

// NewSpellChecker creates a new SpellChecker with the given dictionary.
func NewSpellChecker(dict TermDictionary, opts ...SpellCheckerOption) *SpellChecker {
	s := &SpellChecker{
		dictionary:     dict,
		maxDistance:    2,
		maxSuggestions: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Suggest returns spelling suggestions for a single term, best first.
// Known terms and terms shorter than four characters get none.
func (s *SpellChecker) Suggest(term string) ([]Suggestion, error) {
	counts, err := s.dictionary.TermCounts()
	if err != nil {
		return nil, err
	}
	return s.suggest(strings.ToLower(term), counts), nil
}

func (s *SpellChecker) suggest(term string, counts map[string]int) []Suggestion {
	if _, known := counts[term]; known || utf8.RuneCountInString(term) < minCorrectableLen {
		return nil
	}
	termLen := utf8.RuneCountInString(term)
	suggestions := make([]Suggestion, 0)
	for dictTerm, freq := range counts {
		lenDiff := utf8.RuneCountInString(dictTerm) - termLen
		if lenDiff < 0 {
			lenDiff = -lenDiff
		}
		if lenDiff > s.maxDistance {
			continue
		}
		distance := DamerauLevenshteinDistance(term, dictTerm)
		if distance > s.maxDistance {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Term:      dictTerm,
			Distance:  distance,
			Frequency: freq,
			// Lower distance is better, higher frequency is better.
			Score: float64(freq) / float64(distance+1),
		})
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		return suggestions[i].Term < suggestions[j].Term
	})
	if len(suggestions) > s.maxSuggestions {
		suggestions = suggestions[:s.maxSuggestions]
	}
	return suggestions
}

// SuggestedQuery returns the lowercased query with each unknown term replaced by its best
// suggestion. Terms without a suggestion are kept.
func (s *SpellChecker) SuggestedQuery(query string) string {
	terms := tokenizeQuery(query)
	counts, err := s.dictionary.TermCounts()
	if err != nil {
		return strings.Join(terms, " ")
	}
	for i, term := range terms {
		if sugg := s.suggest(term, counts); len(sugg) > 0 {
			terms[i] = sugg[0].Term
		}
	}
	return strings.Join(terms, " ")
}
