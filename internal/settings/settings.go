// Package settings stores user preferences in the key-value store.
package settings

import (
	"context"
	"errors"
	"strings"

	"github.com/hyperjump/apuntes/internal/models"
	"github.com/hyperjump/apuntes/internal/storage"
)

// Settings reads and writes the user's API key. A stored key overrides the configured default.
type Settings struct {
	kv         storage.KVStore
	defaultKey string
}

// New returns Settings backed by kv. defaultKey is used when no user key is stored.
func New(kv storage.KVStore, defaultKey string) *Settings {
	return &Settings{kv: kv, defaultKey: strings.TrimSpace(defaultKey)}
}

// APIKey returns the stored user key, or "" when none is set.
func (s *Settings) APIKey(ctx context.Context) (string, error) {
	v, err := s.kv.Get(ctx, models.SlotAPIKey)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// SetAPIKey stores key after trimming. An empty key clears the stored one.
func (s *Settings) SetAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return s.ClearAPIKey(ctx)
	}
	return s.kv.Set(ctx, models.SlotAPIKey, []byte(key))
}

func (s *Settings) ClearAPIKey(ctx context.Context) error {
	return s.kv.Delete(ctx, models.SlotAPIKey)
}

// EffectiveAPIKey returns the user key when set, otherwise the configured default.
func (s *Settings) EffectiveAPIKey(ctx context.Context) (string, error) {
	key, err := s.APIKey(ctx)
	if err != nil {
		return "", err
	}
	if key != "" {
		return key, nil
	}
	return s.defaultKey, nil
}

// Mask shortens a key for display, keeping the first and last four characters.
func Mask(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
