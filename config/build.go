package config

import (
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/codec"
	pr "github.com/unkn0wn-root/tagcache/provider"
	"github.com/unkn0wn-root/tagcache/provider/bigcache"
	"github.com/unkn0wn-root/tagcache/provider/file"
	"github.com/unkn0wn-root/tagcache/provider/memory"
	"github.com/unkn0wn-root/tagcache/provider/redis"
	"github.com/unkn0wn-root/tagcache/provider/ristretto"
	"github.com/unkn0wn-root/tagcache/provider/sqlite"
	"github.com/unkn0wn-root/tagcache/tagindex"
)

// Ristretto defaults for a ~64MiB cache.
const (
	defaultNumCounters = 1e6
	defaultMaxCost     = 64 << 20
	defaultBufferItems = 64
)

// Build constructs the provider, the tag index and the service described by
// c. Logger and Hooks are not configurable from files and are passed in.
func (c Config) Build(logger tagcache.Logger, hooks tagcache.Hooks) (*tagcache.Service, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	p, index, err := c.provider()
	if err != nil {
		return nil, err
	}
	svc, err := tagcache.New(tagcache.Options{
		Prefix:       c.Prefix,
		Provider:     p,
		Logger:       logger,
		Hooks:        hooks,
		DefaultTTL:   time.Duration(c.DefaultTTL),
		Disabled:     !c.IsEnabled(),
		TagIndex:     index,
		SingleFlight: c.SingleFlight,
	})
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("cache ready", tagcache.Fields{
			"driver": c.driver(), "prefix": c.Prefix, "enabled": c.IsEnabled(),
		})
	}
	return svc, nil
}

// NewTyped wraps st with the codec named in c.Codec.
func NewTyped[V any](st tagcache.Store, c Config) (*tagcache.Typed[V], error) {
	cd, err := codec.ByName[V](c.Codec)
	if err != nil {
		return nil, err
	}
	return tagcache.NewTyped[V](st, cd), nil
}

// provider returns a nil index unless a non-default one is configured.
func (c Config) provider() (pr.Provider, tagindex.Store, error) {
	switch c.driver() {
	case DriverMemory:
		return memory.New(), nil, nil
	case DriverFile:
		p, err := file.New(file.Config{Dir: c.File.Dir})
		return wrap(p, err)
	case DriverRistretto:
		r := c.Ristretto
		p, err := ristretto.New(ristretto.Config{
			NumCounters: orDefault(r.NumCounters, defaultNumCounters),
			MaxCost:     orDefault(r.MaxCost, defaultMaxCost),
			BufferItems: orDefault(r.BufferItems, defaultBufferItems),
		})
		return wrap(p, err)
	case DriverBigCache:
		p, err := bigcache.New(bigcache.Config{
			LifeWindow:         time.Duration(c.BigCache.LifeWindow),
			Shards:             c.BigCache.Shards,
			HardMaxCacheSizeMB: c.BigCache.HardMaxCacheSizeMB,
		})
		return wrap(p, err)
	case DriverSQLite:
		dsn := c.SQLite.DSN
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		p, err := sqlite.New(sqlite.Config{DSN: dsn})
		return wrap(p, err)
	case DriverRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		p, err := redis.New(redis.Config{
			Client:      client,
			CloseClient: true,
			OwnedPrefix: c.Prefix + ":",
		})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		if c.Redis.NativeTags {
			return p, tagindex.NewRedis(client), nil
		}
		return p, nil, nil
	}
	return nil, nil, fmt.Errorf("config: unknown driver %q", c.Driver)
}

func wrap[P pr.Provider](p P, err error) (pr.Provider, tagindex.Store, error) {
	if err != nil {
		return nil, nil, err
	}
	return p, nil, nil
}

func orDefault(v, def int64) int64 {
	if v <= 0 {
		return def
	}
	return v
}
