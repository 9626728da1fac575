// Package pipeline turns the stored uploads of one kind into a persisted text batch.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/apuntes/internal/extract"
	"github.com/hyperjump/apuntes/internal/models"
	"github.com/hyperjump/apuntes/internal/storage"
)

// ErrNoBatch is returned when a kind has not been parsed yet.
var ErrNoBatch = errors.New("no extracted text; parse the uploaded files first")

// Outcome is the result class of a parse run.
type Outcome string

const (
	// Parsed means a new batch was written.
	Parsed Outcome = "parsed"
	// NothingToParse means no uploads were stored; the batch slot was left as it was.
	NothingToParse Outcome = "nothing_to_parse"
)

// Status describes a finished parse run.
type Status struct {
	Kind    models.Kind `json:"kind"`
	Outcome Outcome     `json:"outcome"`
	Files   int         `json:"files"`
	Records int         `json:"records"`
	Message string      `json:"message"`
}

// BatchIndexer receives every batch written by a parse run.
type BatchIndexer interface {
	IndexBatch(b models.Batch) error
}

// Pipeline reads uploads from a BlobStore, extracts their text and writes the batch slot.
type Pipeline struct {
	blobs     storage.BlobStore
	kv        storage.KVStore
	extractor *extract.Extractor
	index     BatchIndexer
	logger    *zap.Logger

	mu map[models.Kind]*sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Extraction failures are logged here before being returned.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithIndex pushes each written batch into idx. Index failures are logged, not returned.
func WithIndex(idx BatchIndexer) Option {
	return func(p *Pipeline) { p.index = idx }
}

// WithExtractor overrides the default extractor.
func WithExtractor(e *extract.Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// New returns a Pipeline over the given stores.
func New(blobs storage.BlobStore, kv storage.KVStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		blobs:  blobs,
		kv:     kv,
		logger: zap.NewNop(),
		mu:     make(map[models.Kind]*sync.Mutex, len(models.Kinds)),
	}
	for _, k := range models.Kinds {
		p.mu[k] = &sync.Mutex{}
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.extractor == nil {
		p.extractor = extract.NewExtractor(extract.WithLogger(p.logger))
	}
	return p
}

// ParseSlides extracts every stored presentation and overwrites the slides batch.
func (p *Pipeline) ParseSlides(ctx context.Context) (*Status, error) {
	return p.Parse(ctx, models.KindSlides)
}

// ParseDocuments extracts every stored PDF and overwrites the documents batch.
func (p *Pipeline) ParseDocuments(ctx context.Context) (*Status, error) {
	return p.Parse(ctx, models.KindDocuments)
}

// Parse runs the pipeline for kind. When no uploads exist the slot is not touched.
// Any failing file aborts the run and leaves the previous batch in place.
func (p *Pipeline) Parse(ctx context.Context, kind models.Kind) (*Status, error) {
	mu, ok := p.mu[kind]
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	mu.Lock()
	defer mu.Unlock()

	files, err := p.blobs.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	if len(files) == 0 {
		st := &Status{
			Kind:    kind,
			Outcome: NothingToParse,
			Message: fmt.Sprintf("No hay %s para parsear.", fileLabel(kind)),
		}
		p.logger.Info("nothing to parse", zap.String("kind", string(kind)))
		return st, nil
	}

	batch, err := p.extractAll(ctx, kind, files)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encode %s batch: %w", kind, err)
	}
	if err := p.kv.Set(ctx, kind.Slot(), data); err != nil {
		return nil, err
	}

	if p.index != nil {
		if err := p.index.IndexBatch(batch); err != nil {
			p.logger.Warn("failed to index batch", zap.String("kind", string(kind)), zap.Error(err))
		}
	}

	st := &Status{
		Kind:    kind,
		Outcome: Parsed,
		Files:   len(files),
		Records: batch.Len(),
		Message: parsedMessage(kind, len(files), batch.Len()),
	}
	p.logger.Info("parsed batch", zap.String("kind", string(kind)), zap.Int("files", st.Files), zap.Int("records", st.Records))
	return st, nil
}

// Status messages are shown to the user as-is.
func parsedMessage(kind models.Kind, files, records int) string {
	if kind == models.KindSlides {
		return fmt.Sprintf("¡Parse PPTX exitoso! %d diapositivas de %d archivo(s).", records, files)
	}
	return fmt.Sprintf("¡Parse PDF exitoso! %d archivo(s).", files)
}

func fileLabel(kind models.Kind) string {
	if kind == models.KindSlides {
		return "PPTX"
	}
	return "PDF"
}

func (p *Pipeline) extractAll(ctx context.Context, kind models.Kind, files []*models.UploadedFile) (models.Batch, error) {
	if kind == models.KindSlides {
		slides := make([]models.SlideRecord, 0)
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			recs, err := p.extractor.Slides(f.Data)
			if err != nil {
				return nil, p.fileError(kind, f, err)
			}
			for i := range recs {
				recs[i].OriginFile = f.Name
			}
			slides = append(slides, recs...)
		}
		return models.NewSlidesBatch(slides), nil
	}

	docs := make([]models.DocumentRecord, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := p.extractor.Document(f.Data)
		if err != nil {
			return nil, p.fileError(kind, f, err)
		}
		docs = append(docs, models.DocumentRecord{OriginFile: f.Name, Text: text})
	}
	return models.NewDocumentsBatch(docs), nil
}

func (p *Pipeline) fileError(kind models.Kind, f *models.UploadedFile, err error) error {
	p.logger.Error("extraction failed", zap.String("kind", string(kind)), zap.String("file", f.Name), zap.Error(err))
	return fmt.Errorf("parse %s: %w", f.Name, err)
}

// LoadSlides reads the persisted slides batch.
func (p *Pipeline) LoadSlides(ctx context.Context) (*models.SlidesBatch, error) {
	var b models.SlidesBatch
	if err := p.load(ctx, models.KindSlides, &b); err != nil {
		return nil, err
	}
	if b.Slides == nil {
		b.Slides = []models.SlideRecord{}
	}
	return &b, nil
}

// LoadDocuments reads the persisted documents batch.
func (p *Pipeline) LoadDocuments(ctx context.Context) (*models.DocumentsBatch, error) {
	var b models.DocumentsBatch
	if err := p.load(ctx, models.KindDocuments, &b); err != nil {
		return nil, err
	}
	if b.Docs == nil {
		b.Docs = []models.DocumentRecord{}
	}
	return &b, nil
}

// Load reads the persisted batch of kind.
func (p *Pipeline) Load(ctx context.Context, kind models.Kind) (models.Batch, error) {
	if kind == models.KindSlides {
		return p.LoadSlides(ctx)
	}
	return p.LoadDocuments(ctx)
}

// LoadText returns the combined text of kind's batch.
func (p *Pipeline) LoadText(ctx context.Context, kind models.Kind) (string, error) {
	b, err := p.Load(ctx, kind)
	if err != nil {
		return "", err
	}
	return b.CombinedText(), nil
}

func (p *Pipeline) load(ctx context.Context, kind models.Kind, v any) error {
	data, err := p.kv.Get(ctx, kind.Slot())
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNoBatch
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s batch: %w", kind, err)
	}
	return nil
}
