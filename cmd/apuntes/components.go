package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/apuntes/internal/config"
	"github.com/hyperjump/apuntes/internal/extract"
	"github.com/hyperjump/apuntes/internal/keyword"
	"github.com/hyperjump/apuntes/internal/library"
	"github.com/hyperjump/apuntes/internal/llm"
	"github.com/hyperjump/apuntes/internal/models"
	"github.com/hyperjump/apuntes/internal/pipeline"
	"github.com/hyperjump/apuntes/internal/settings"
	"github.com/hyperjump/apuntes/internal/storage"
	"github.com/hyperjump/apuntes/internal/study"
	"go.uber.org/zap"
)

// Components holds every wired service of one process.
type Components struct {
	Blobs    storage.BlobStore
	KV       storage.KVStore
	Index    *keyword.Index
	Library  *library.Library
	Pipeline *pipeline.Pipeline
	Settings *settings.Settings
	Study    *study.Service
}

// Close releases the stores and the search index.
func (c *Components) Close() {
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.KV != nil {
		_ = c.KV.Close()
	}
	if c.Blobs != nil {
		_ = c.Blobs.Close()
	}
}

func openKV(ctx context.Context, cfg *config.StorageConfig) (storage.KVStore, error) {
	switch cfg.KVBackend {
	case config.KVBackendBolt, "":
		return storage.NewBoltKV(cfg.KVPath)
	case config.KVBackendRedis:
		return storage.NewRedisKV(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown kv_backend %q (use bolt or redis)", cfg.KVBackend)
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	blobs, err := storage.NewSQLiteBlobStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload store: %w", err)
	}
	kv, err := openKV(ctx, &cfg.Storage)
	if err != nil {
		_ = blobs.Close()
		if cfg.Storage.KVBackend != config.KVBackendRedis {
			return nil, fmt.Errorf("failed to open %s (is the server running?): %w", cfg.Storage.KVPath, err)
		}
		return nil, fmt.Errorf("failed to initialize key-value store: %w", err)
	}
	idx, err := keyword.NewIndex(keyword.WithLogger(logger))
	if err != nil {
		_ = kv.Close()
		_ = blobs.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	c := &Components{Blobs: blobs, KV: kv, Index: idx}
	c.Library = library.New(blobs, kv, library.WithLogger(logger), library.WithIndex(idx))
	c.Pipeline = pipeline.New(blobs, kv,
		pipeline.WithLogger(logger),
		pipeline.WithIndex(idx),
		pipeline.WithExtractor(extract.NewExtractor(extract.WithLogger(logger))),
	)
	c.Settings = settings.New(kv, cfg.LLM.APIKey)
	client := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout(),
	}, c.Settings, llm.WithLogger(logger))
	c.Study = study.New(c.Pipeline, client, kv, study.Config{
		Model:            cfg.LLM.Model,
		NotesTemperature: cfg.LLM.NotesTemperatureOrDefault(),
		QuizTemperature:  cfg.LLM.QuizTemperatureOrDefault(),
	}, study.WithLogger(logger))

	if err := rebuildIndex(ctx, c.Pipeline, idx, logger); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// rebuildIndex loads every persisted batch into the in-memory keyword index.
func rebuildIndex(ctx context.Context, pipe *pipeline.Pipeline, idx *keyword.Index, logger *zap.Logger) error {
	for _, kind := range models.Kinds {
		batch, err := pipe.Load(ctx, kind)
		if errors.Is(err, pipeline.ErrNoBatch) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load %s batch: %w", kind, err)
		}
		if err := idx.IndexBatch(batch); err != nil {
			return fmt.Errorf("failed to index %s batch: %w", kind, err)
		}
		logger.Debug("indexed batch", zap.String("kind", string(kind)), zap.Int("records", batch.Len()))
	}
	return nil
}
