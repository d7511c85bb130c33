package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/tazhate/dombot/internal/domain"
)

// Redis keeps the JSON document under a single key.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis connects and pings before returning.
func NewRedis(ctx context.Context, addr, password string, db int, prefix string) (*Redis, error) {
	if addr == "" {
		return nil, fmt.Errorf("empty redis addr")
	}
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisWithClient(c, prefix), nil
}

func NewRedisWithClient(c *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "dombot"
	}
	return &Redis{client: c, key: prefix + ":document"}
}

func (r *Redis) Load(ctx context.Context) (*domain.Document, bool, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", r.key, err)
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrDecodeFailed, r.key, err)
	}
	return &doc, true, nil
}

func (r *Redis) Save(ctx context.Context, doc *domain.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// Key is the redis key holding the document.
func (r *Redis) Key() string {
	return r.key
}
