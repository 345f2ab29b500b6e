package core

import (
	"context"

	"github.com/pkg/errors"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache is a string key/value store whose entries expire after a fixed TTL.
type Cache interface {
	// Get returns ErrCacheMiss when `key` is absent or expired.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
