package properties

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBacking mirrors the Cache through a shared Redis instance so every
// Gateway process in front of the same World observes identical banners,
// per 1kaius1-MUD-Engine's never-wired RedisEnabled/RedisHost/RedisPort
// config surface (see DESIGN.md) — this repo finishes that roadmap item.
type RedisBacking struct {
	client *redis.Client
	prefix string
}

// NewRedisBacking connects to addr (host:port, db 0) and namespaces keys
// under prefix to avoid collisions with other uses of the same instance.
func NewRedisBacking(addr, prefix string) *RedisBacking {
	return &RedisBacking{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix,
	}
}

func (r *RedisBacking) Get(ctx context.Context, key string) (string, bool) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

func (r *RedisBacking) Set(ctx context.Context, key, value string, ttl time.Duration) {
	r.client.Set(ctx, r.prefix+key, value, ttl)
}

// Close releases the underlying connection pool.
func (r *RedisBacking) Close() error {
	return r.client.Close()
}
