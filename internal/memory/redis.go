package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/justinsane/ClassicRides/internal/config"
)

// RedisStore persists the scrapbook as one string key holding the
// serialized collection.
type RedisStore struct {
	collection
	client *redis.Client
	key    string
}

func NewRedisStore(cfg config.RedisConfig, key string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s := &RedisStore{client: client, key: key}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewRedisStoreWithClient wires an existing client; tests use this with
// miniredis.
func NewRedisStoreWithClient(ctx context.Context, client *redis.Client, key string) (*RedisStore, error) {
	s := &RedisStore{client: client, key: key}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) load(ctx context.Context) error {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("failed to load scrapbook from redis: %w", err)
	}
	if err := s.restore(data); err != nil {
		return fmt.Errorf("failed to parse scrapbook from redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Upsert(ctx context.Context, m Memory) error {
	if err := s.upsert(m); err != nil {
		return err
	}
	data, err := s.snapshot()
	if err != nil {
		return fmt.Errorf("failed to marshal scrapbook: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store scrapbook in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Memory, error) {
	return s.get(id)
}

func (s *RedisStore) List(ctx context.Context) ([]Memory, error) {
	return s.list(), nil
}
