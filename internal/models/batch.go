package models

import "strings"

// Key-value slot names.
const (
	SlotSlides     = "pptData"
	SlotDocuments  = "pdfData"
	SlotAPIKey     = "userOpenAIKey"
	slotQuizPrefix = "quiz:"
)

// BatchSchemaVersion is written into every persisted batch.
const BatchSchemaVersion = 1

// SlideRecord is the text of one slide part.
type SlideRecord struct {
	Filename   string `json:"filename"`
	Text       string `json:"text"`
	OriginFile string `json:"originFile,omitempty"`
}

// DocumentRecord is the text of one PDF document.
type DocumentRecord struct {
	OriginFile string `json:"originFile"`
	Text       string `json:"text"`
}

// Batch is the aggregated, persisted result of parsing all stored files of one kind.
type Batch interface {
	Kind() Kind
	Len() int
	// CombinedText joins every record's text with newlines.
	CombinedText() string
}

// SlidesBatch is persisted under SlotSlides.
type SlidesBatch struct {
	Version int           `json:"version"`
	Slides  []SlideRecord `json:"slides"`
}

// NewSlidesBatch returns a batch at the current schema version. A nil slice becomes empty.
func NewSlidesBatch(slides []SlideRecord) *SlidesBatch {
	if slides == nil {
		slides = []SlideRecord{}
	}
	return &SlidesBatch{Version: BatchSchemaVersion, Slides: slides}
}

func (b *SlidesBatch) Kind() Kind { return KindSlides }
func (b *SlidesBatch) Len() int   { return len(b.Slides) }

func (b *SlidesBatch) CombinedText() string {
	texts := make([]string, len(b.Slides))
	for i, s := range b.Slides {
		texts[i] = s.Text
	}
	return strings.Join(texts, "\n")
}

// DocumentsBatch is persisted under SlotDocuments.
type DocumentsBatch struct {
	Version int              `json:"version"`
	Docs    []DocumentRecord `json:"docs"`
}

// NewDocumentsBatch returns a batch at the current schema version. A nil slice becomes empty.
func NewDocumentsBatch(docs []DocumentRecord) *DocumentsBatch {
	if docs == nil {
		docs = []DocumentRecord{}
	}
	return &DocumentsBatch{Version: BatchSchemaVersion, Docs: docs}
}

func (b *DocumentsBatch) Kind() Kind { return KindDocuments }
func (b *DocumentsBatch) Len() int   { return len(b.Docs) }

func (b *DocumentsBatch) CombinedText() string {
	texts := make([]string, len(b.Docs))
	for i, d := range b.Docs {
		texts[i] = d.Text
	}
	return strings.Join(texts, "\n")
}
