package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"

	"cambi/internal/core"
)

// RedisStore keeps the slot under a single redis key.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Slot     string
}

func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisStoreWithClient(client, opts.Slot)
}

func NewRedisStoreWithClient(client redis.UniversalClient, slot string) *RedisStore {
	if slot == "" {
		slot = DefaultSlot
	}
	return &RedisStore{client: client, key: slot}
}

func (s *RedisStore) Load(ctx context.Context) ([]core.Entry, error) {
	payload, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []core.Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", s.key, err)
	}
	return Decode(payload)
}

func (s *RedisStore) Save(ctx context.Context, entries []core.Entry) error {
	b, err := Encode(entries)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, b, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", s.key, err)
	}
	slog.DebugContext(ctx, "Storage slot written to Redis", "key", s.key, "entries", len(entries))
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
