package tagindex

import (
	"context"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps each index as a native Redis set. SADD is atomic, so
// concurrent appends from any number of processes never lose members.
// Requires Redis >= 7.0 for EXPIRE NX/GT.
type Redis struct {
	rdb redis.UniversalClient
}

var _ Store = (*Redis)(nil)

// NewRedis does not take ownership of client; Close leaves it open.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{rdb: client}
}

// Add pipelines SADD with EXPIRE NX (fresh set) and EXPIRE GT (extend only),
// so the index TTL only ever grows.
func (s *Redis) Add(ctx context.Context, indexKey, member string, ttl time.Duration) error {
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, indexKey, member)
		p.ExpireNX(ctx, indexKey, ttl)
		p.ExpireGT(ctx, indexKey, ttl)
		return nil
	})
	return err
}

// Members returns the set sorted; Redis sets carry no insertion order.
func (s *Redis) Members(ctx context.Context, indexKey string) ([]string, error) {
	m, err := s.rdb.SMembers(ctx, indexKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(m)
	return m, nil
}

func (s *Redis) Remove(ctx context.Context, indexKey string) error {
	return s.rdb.Del(ctx, indexKey).Err()
}

func (s *Redis) Close(context.Context) error { return nil }
