package keyword

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/hyperjump/apuntes/internal/models"
	"github.com/hyperjump/apuntes/pkg/utils"
)

const (
	snippetLead  = 60
	snippetWidth = 200
)

// Index is an in-memory Bleve index holding the records of the current batch of each kind.
type Index struct {
	index   bleve.Index
	speller *SpellChecker
	logger  *zap.Logger

	mu  sync.Mutex
	ids map[models.Kind][]string
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(x *Index) { x.logger = l }
}

// NewIndex creates an empty in-memory index.
func NewIndex(opts ...Option) (*Index, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so queries match the exact word.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	docMapping.AddFieldMappingsAt("origin_file", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("kind", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("part", keywordFieldMapping)
	im.AddDocumentMapping("record", docMapping)
	im.DefaultType = "record"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	x := &Index{
		index:  index,
		logger: zap.NewNop(),
		ids:    make(map[models.Kind][]string),
	}
	for _, opt := range opts {
		opt(x)
	}
	x.speller = NewSpellChecker(x)
	return x, nil
}

// IndexBatch replaces the records of the batch's kind.
func (x *Index) IndexBatch(b models.Batch) error {
	switch b := b.(type) {
	case *models.SlidesBatch:
		return x.IndexSlides(b)
	case *models.DocumentsBatch:
		return x.IndexDocuments(b)
	default:
		return fmt.Errorf("unsupported batch type %T", b)
	}
}

// IndexSlides replaces the slide records with those of b.
func (x *Index) IndexSlides(b *models.SlidesBatch) error {
	recs := make([]record, len(b.Slides))
	for i, s := range b.Slides {
		recs[i] = record{Kind: string(models.KindSlides), OriginFile: s.OriginFile, Part: s.Filename, Text: s.Text}
	}
	return x.replace(models.KindSlides, recs)
}

// IndexDocuments replaces the document records with those of b.
func (x *Index) IndexDocuments(b *models.DocumentsBatch) error {
	recs := make([]record, len(b.Docs))
	for i, d := range b.Docs {
		recs[i] = record{Kind: string(models.KindDocuments), OriginFile: d.OriginFile, Text: d.Text}
	}
	return x.replace(models.KindDocuments, recs)
}

func (x *Index) replace(kind models.Kind, recs []record) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	batch := x.index.NewBatch()
	for _, id := range x.ids[kind] {
		batch.Delete(id)
	}
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = fmt.Sprintf("%s/%d", kind, i)
		if err := batch.Index(ids[i], r); err != nil {
			return fmt.Errorf("index %s: %w", ids[i], err)
		}
	}
	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	x.ids[kind] = ids
	x.logger.Debug("indexed batch", zap.String("kind", string(kind)), zap.Int("records", len(recs)))
	return nil
}

// RemoveKind drops every record of kind.
func (x *Index) RemoveKind(kind models.Kind) error {
	return x.replace(kind, nil)
}

// DocCount returns the total number of indexed records.
func (x *Index) DocCount() (uint64, error) {
	return x.index.DocCount()
}

// Search runs a match query and returns up to limit hits. When nothing matches, the result
// carries a spelling suggestion if one exists.
func (x *Index) Search(ctx context.Context, query string, limit int, opts *SearchOptions) (*Result, error) {
	if limit <= 0 {
		limit = 10
	}
	fuzzyEnabled := false
	fuzziness := 2
	var kind models.Kind
	if opts != nil {
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
		kind = opts.Kind
	}

	var q blevequery.Query
	if fuzzyEnabled {
		q = buildFuzzyQuery(query, fuzziness, "text")
	} else {
		mq := bleve.NewMatchQuery(query)
		mq.SetField("text")
		q = mq
	}
	if kind != "" {
		kq := bleve.NewTermQuery(string(kind))
		kq.SetField("kind")
		q = bleve.NewConjunctionQuery(q, kq)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"kind", "origin_file", "part", "text"}
	results, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	terms := tokenizeQuery(query)
	out := &Result{Query: query, Hits: make([]*Hit, 0, len(results.Hits))}
	for _, h := range results.Hits {
		out.Hits = append(out.Hits, &Hit{
			Kind:       models.Kind(fieldString(h.Fields, "kind")),
			OriginFile: fieldString(h.Fields, "origin_file"),
			Part:       fieldString(h.Fields, "part"),
			Snippet:    snippet(fieldString(h.Fields, "text"), terms),
			Score:      h.Score,
		})
	}
	if len(out.Hits) == 0 && len(terms) > 0 {
		if corrected := x.speller.SuggestedQuery(query); corrected != strings.ToLower(strings.Join(terms, " ")) {
			out.Suggestion = corrected
		}
	}
	return out, nil
}

// TermCounts returns every term of the text field with its document frequency.
func (x *Index) TermCounts() (map[string]int, error) {
	dict, err := x.index.FieldDict("text")
	if err != nil {
		return nil, fmt.Errorf("read term dictionary: %w", err)
	}
	defer dict.Close()
	counts := make(map[string]int)
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, fmt.Errorf("read term dictionary: %w", err)
		}
		if entry == nil {
			break
		}
		counts[entry.Term] = int(entry.Count)
	}
	return counts, nil
}

// Close closes the Bleve index.
func (x *Index) Close() error {
	return x.index.Close()
}

func fieldString(fields map[string]interface{}, name string) string {
	s, _ := fields[name].(string)
	return s
}

// tokenizeQuery splits query into lowercase terms, filtering out empty strings.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries for each term in the query.
func buildFuzzyQuery(queryStr string, fuzziness int, field string) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		mq.SetField(field)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// snippet returns a window of text starting a little before the first query term found.
func snippet(text string, terms []string) string {
	runes := []rune(text)
	lower := []rune(strings.ToLower(text))
	start := 0
	if len(lower) == len(runes) {
		for _, t := range terms {
			if i := indexRunes(lower, []rune(t)); i >= 0 {
				start = max(i-snippetLead, 0)
				break
			}
		}
	}
	out := strings.Join(strings.Fields(string(runes[start:])), " ")
	if start > 0 {
		out = "..." + out
	}
	return utils.Truncate(out, snippetWidth)
}

func indexRunes(s, sub []rune) int {
	if len(sub) == 0 {
		return -1
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
