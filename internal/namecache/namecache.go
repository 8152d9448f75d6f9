// Package namecache caches account id to username lookups.
package namecache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

type Cache interface {
	// GetMany returns the cached names for ids; misses are absent from the map.
	GetMany(ctx context.Context, ids []string) (map[string]string, error)
	SetMany(ctx context.Context, names map[string]string) error
	Invalidate(ctx context.Context, ids ...string) error
}

// LRU is an in-process cache with a size bound and per-entry TTL.
type LRU struct {
	entries *expirable.LRU[string, string]
}

func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = 1024
	}
	return &LRU{entries: expirable.NewLRU[string, string](size, nil, ttl)}
}

func (l *LRU) GetMany(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if name, ok := l.entries.Get(id); ok {
			out[id] = name
		}
	}
	return out, nil
}

func (l *LRU) SetMany(ctx context.Context, names map[string]string) error {
	for id, name := range names {
		l.entries.Add(id, name)
	}
	return nil
}

func (l *LRU) Invalidate(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		l.entries.Remove(id)
	}
	return nil
}

// Redis shares the cache between server instances.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: "tunefriends:username:", ttl: ttl}
}

func (r *Redis) key(id string) string {
	return r.prefix + id
}

func (r *Redis) GetMany(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if name, ok := v.(string); ok {
			out[ids[i]] = name
		}
	}
	return out, nil
}

func (r *Redis) SetMany(ctx context.Context, names map[string]string) error {
	if len(names) == 0 {
		return nil
	}
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for id, name := range names {
			pipe.Set(ctx, r.key(id), name, r.ttl)
		}
		return nil
	})
	return err
}

func (r *Redis) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
