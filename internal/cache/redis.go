package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// redisNamespace prefixes every key written to Redis
const redisNamespace = "keygate:"

type redisCache struct {
	client *redis.Client
}

func newRedisCache(options *redis.Options) (*redisCache, error) {
	client := redis.NewClient(options)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, errors.Wrap(err, "could not connect to redis")
	}
	return &redisCache{client: client}, nil
}

func (r *redisCache) get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, redisNamespace+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, errors.WithStack(err)
	}
	return data, true, nil
}

func (r *redisCache) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return errors.WithStack(r.client.Set(ctx, redisNamespace+key, value, ttl).Err())
}

func (r *redisCache) del(ctx context.Context, key string) error {
	return errors.WithStack(r.client.Del(ctx, redisNamespace+key).Err())
}

func (r *redisCache) clear(ctx context.Context, prefix string) error {
	var keys []string
	iter := r.client.Scan(ctx, 0, redisNamespace+prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.WithStack(err)
	}
	if len(keys) == 0 {
		return nil
	}
	return errors.WithStack(r.client.Del(ctx, keys...).Err())
}
