package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/cshub/core"
)

const redisKeyPrefix = "cshub:"

// Redis is a core.Cache shared by every API instance.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ core.Cache = (*Redis)(nil)

// NewRedisClient connects to Redis and pings it.
func NewRedisClient(conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Cache.RedisAddress,
		Password: conf.Cache.RedisPassword,
		DB:       conf.Cache.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (c *Redis) key(k string) string {
	return redisKeyPrefix + k
}

func (c *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, c.key(key)).Result()
	if err == redis.Nil {
		return "", core.ErrCacheMiss
	}
	if err != nil {
		return "", errors.Wrap(err, "redis get")
	}
	return val, nil
}

func (c *Redis) Set(ctx context.Context, key, value string) error {
	return errors.Wrap(c.client.Set(ctx, c.key(key), value, c.ttl).Err(), "redis set")
}

func (c *Redis) Delete(ctx context.Context, key string) error {
	return errors.Wrap(c.client.Del(ctx, c.key(key)).Err(), "redis del")
}
