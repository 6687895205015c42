package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "chunks:settings:"

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis constructs a redis-backed settings store. Keys never expire.
func NewRedis(cfg *RedisConfig) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &redisStore{client: client, prefix: prefix}, nil
}

func (s *redisStore) key(id string) string {
	return s.prefix + id
}

func (s *redisStore) Get(ctx context.Context, clientID string) (Settings, error) {
	raw, err := s.client.Get(ctx, s.key(clientID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Settings{}, ErrNotFound
		}
		return Settings{}, err
	}
	var out Settings
	if err := sonic.ConfigStd.Unmarshal(raw, &out); err != nil {
		return Settings{}, fmt.Errorf("decode settings %s: %w", clientID, err)
	}
	return out, nil
}

func (s *redisStore) Save(ctx context.Context, clientID string, v Settings) error {
	if clientID == "" {
		return fmt.Errorf("client id required")
	}
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(clientID), data, 0).Err()
}

func (s *redisStore) Delete(ctx context.Context, clientID string) error {
	return s.client.Del(ctx, s.key(clientID)).Err()
}

func (s *redisStore) Stats(ctx context.Context) (map[string]any, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		total += len(keys)
		if next == 0 {
			break
		}
		cursor = next
	}
	return map[string]any{
		"type":  DriverRedis,
		"total": total,
	}, nil
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
