package config

import (
	"fmt"
	"strconv"
	"strings"
)

// EnvPrefix starts every variable FromEnv understands.
const EnvPrefix = "TAGCACHE_"

// FromEnv builds a Config from TAGCACHE_* variables, e.g. the map returned by
// godotenv.Read. Unknown TAGCACHE_* variables are an error; other variables
// are ignored.
func FromEnv(env map[string]string) (Config, error) {
	var cfg Config
	for k, v := range env {
		name, ok := strings.CutPrefix(k, EnvPrefix)
		if !ok {
			continue
		}
		if err := cfg.setEnv(name, strings.TrimSpace(v)); err != nil {
			return Config{}, fmt.Errorf("%s: %w", k, err)
		}
	}
	return cfg, nil
}

func (c *Config) setEnv(name, v string) error {
	var err error
	switch name {
	case "ENABLED":
		var b bool
		if b, err = strconv.ParseBool(v); err == nil {
			c.Enabled = &b
		}
	case "PREFIX":
		c.Prefix = v
	case "DEFAULT_TTL":
		err = c.DefaultTTL.UnmarshalText([]byte(v))
	case "SINGLE_FLIGHT":
		c.SingleFlight, err = strconv.ParseBool(v)
	case "DRIVER":
		c.Driver = v
	case "CODEC":
		c.Codec = v
	case "FILE_DIR":
		c.File.Dir = v
	case "RISTRETTO_NUM_COUNTERS":
		c.Ristretto.NumCounters, err = strconv.ParseInt(v, 10, 64)
	case "RISTRETTO_MAX_COST":
		c.Ristretto.MaxCost, err = strconv.ParseInt(v, 10, 64)
	case "RISTRETTO_BUFFER_ITEMS":
		c.Ristretto.BufferItems, err = strconv.ParseInt(v, 10, 64)
	case "BIGCACHE_LIFE_WINDOW":
		err = c.BigCache.LifeWindow.UnmarshalText([]byte(v))
	case "BIGCACHE_SHARDS":
		c.BigCache.Shards, err = strconv.Atoi(v)
	case "BIGCACHE_HARD_MAX_CACHE_SIZE_MB":
		c.BigCache.HardMaxCacheSizeMB, err = strconv.Atoi(v)
	case "REDIS_ADDR":
		c.Redis.Addr = v
	case "REDIS_PASSWORD":
		c.Redis.Password = v
	case "REDIS_DB":
		c.Redis.DB, err = strconv.Atoi(v)
	case "REDIS_NATIVE_TAGS":
		c.Redis.NativeTags, err = strconv.ParseBool(v)
	case "SQLITE_DSN":
		c.SQLite.DSN = v
	default:
		return fmt.Errorf("unknown setting")
	}
	return err
}
