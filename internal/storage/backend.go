package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/tazhate/dombot/config"
	"github.com/tazhate/dombot/internal/domain"
)

var (
	ErrDecodeFailed = errors.New("storage: decode failed")
	ErrClosed       = errors.New("storage: closed")
)

// Backend is durable storage for the whole document. Load returns a fresh
// snapshot; Save overwrites everything.
type Backend interface {
	Load(ctx context.Context) (doc *domain.Document, found bool, err error)
	Save(ctx context.Context, doc *domain.Document) error
	Close() error
}

// OpenBackend picks the backend named by cfg.Driver.
func OpenBackend(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
	switch cfg.Driver {
	case "", "json":
		return NewJSONFile(cfg.Path), nil
	case "sqlite":
		return NewSQLite(cfg.Path)
	case "redis":
		return NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
