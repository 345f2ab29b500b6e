// Package cache implements core.Cache in memory and on Redis.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/trezcool/cshub/core"
)

// LRU is an in-process core.Cache bounded in size, whose entries expire after ttl.
type LRU struct {
	lru *expirable.LRU[string, string]
}

var _ core.Cache = (*LRU)(nil)

func NewLRU(size int, ttl time.Duration) *LRU {
	return &LRU{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

func (c *LRU) Get(_ context.Context, key string) (string, error) {
	if val, ok := c.lru.Get(key); ok {
		return val, nil
	}
	return "", core.ErrCacheMiss
}

func (c *LRU) Set(_ context.Context, key, value string) error {
	c.lru.Add(key, value)
	return nil
}

func (c *LRU) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}
