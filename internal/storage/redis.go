package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV implements KVStore on a Redis server. Keys are stored as prefix+key, without expiry.
type RedisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisKV connects to addr and verifies the connection.
func NewRedisKV(ctx context.Context, addr, password string, db int, prefix string) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisKV{client: client, prefix: prefix}, nil
}

func (s *RedisKV) key(k string) string {
	return s.prefix + k
}

// Get returns the value at key or ErrNotFound.
func (s *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap("get "+key, err)
	}
	return data, nil
}

func (s *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	return wrap("set "+key, s.client.Set(ctx, s.key(key), value, 0).Err())
}

func (s *RedisKV) Delete(ctx context.Context, key string) error {
	return wrap("delete "+key, s.client.Del(ctx, s.key(key)).Err())
}

// Close closes the Redis client.
func (s *RedisKV) Close() error {
	return s.client.Close()
}
