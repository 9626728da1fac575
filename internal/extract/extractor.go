// Package extract provides text extraction from presentation archives and PDF documents.
package extract

import (
	"github.com/hyperjump/apuntes/internal/models"
	"go.uber.org/zap"
)

// Extractor turns stored upload bytes into text.
type Extractor struct {
	logger *zap.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithLogger sets a logger for debug output (parts read, page counts).
func WithLogger(l *zap.Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Slides extracts one record per slide from a .pptx buffer.
// OriginFile is left empty; the caller labels records with the upload name.
func (e *Extractor) Slides(content []byte) ([]models.SlideRecord, error) {
	slides, err := ExtractSlides(content)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("extracted slides", zap.Int("slides", len(slides)), zap.Int("bytes", len(content)))
	return slides, nil
}

// Document extracts the text of a PDF buffer.
func (e *Extractor) Document(content []byte) (string, error) {
	text, err := ExtractDocument(content)
	if err != nil {
		return "", err
	}
	e.logger.Debug("extracted document", zap.Int("chars", len(text)), zap.Int("bytes", len(content)))
	return text, nil
}
