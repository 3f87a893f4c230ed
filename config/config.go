// Package config loads cache settings from YAML, TOML or dotenv files and
// assembles a ready tagcache.Service from them.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Drivers accepted in Config.Driver.
const (
	DriverMemory    = "memory"
	DriverFile      = "file"
	DriverRistretto = "ristretto"
	DriverBigCache  = "bigcache"
	DriverRedis     = "redis"
	DriverSQLite    = "sqlite"
)

// Duration parses Go duration strings ("90s", "1h30m") from any format.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalYAML(n *yaml.Node) error { return d.UnmarshalText([]byte(n.Value)) }

type FileConfig struct {
	Dir string `yaml:"dir" toml:"dir"`
}

type RistrettoConfig struct {
	NumCounters int64 `yaml:"num_counters" toml:"num_counters"`
	MaxCost     int64 `yaml:"max_cost" toml:"max_cost"`
	BufferItems int64 `yaml:"buffer_items" toml:"buffer_items"`
}

type BigCacheConfig struct {
	LifeWindow         Duration `yaml:"life_window" toml:"life_window"`
	Shards             int      `yaml:"shards" toml:"shards"`
	HardMaxCacheSizeMB int      `yaml:"hard_max_cache_size_mb" toml:"hard_max_cache_size_mb"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	// NativeTags keeps tag indices in Redis sets, shared by every process
	// using the same server.
	NativeTags bool `yaml:"native_tags" toml:"native_tags"`
}

type SQLiteConfig struct {
	DSN string `yaml:"dsn" toml:"dsn"`
}

type Config struct {
	// Enabled defaults to true when absent.
	Enabled      *bool    `yaml:"enabled" toml:"enabled"`
	Prefix       string   `yaml:"prefix" toml:"prefix"`
	DefaultTTL   Duration `yaml:"default_ttl" toml:"default_ttl"`
	SingleFlight bool     `yaml:"single_flight" toml:"single_flight"`
	Driver       string   `yaml:"driver" toml:"driver"`
	// Codec names the codec for typed views built with NewTyped.
	Codec string `yaml:"codec" toml:"codec"`

	File      FileConfig      `yaml:"file" toml:"file"`
	Ristretto RistrettoConfig `yaml:"ristretto" toml:"ristretto"`
	BigCache  BigCacheConfig  `yaml:"bigcache" toml:"bigcache"`
	Redis     RedisConfig     `yaml:"redis" toml:"redis"`
	SQLite    SQLiteConfig    `yaml:"sqlite" toml:"sqlite"`
}

// IsEnabled reports the effective enabled flag.
func (c Config) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// Load reads path, choosing the decoder by extension: .yaml/.yml, .toml or
// .env. The result is validated.
func Load(path string) (Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Config{}, errors.New("config: path is required")
	}

	var (
		cfg Config
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = decodeFile(path, func(raw []byte) error { return yaml.Unmarshal(raw, &cfg) })
	case ".toml":
		err = decodeFile(path, func(raw []byte) error { return toml.Unmarshal(raw, &cfg) })
	case ".env":
		var env map[string]string
		if env, err = godotenv.Read(path); err == nil {
			cfg, err = FromEnv(env)
		}
	default:
		return Config{}, fmt.Errorf("config: unsupported file type %q", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, decode func([]byte) error) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return decode(raw)
}

// Validate checks required fields and the driver name. An empty driver
// means memory.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Prefix) == "" {
		return errors.New("config: prefix is required")
	}
	switch c.driver() {
	case DriverMemory, DriverFile, DriverRistretto, DriverBigCache, DriverSQLite:
	case DriverRedis:
		if c.Redis.Addr == "" {
			return errors.New("config: redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("config: unknown driver %q", c.Driver)
	}
	if c.Redis.NativeTags && c.driver() != DriverRedis {
		return errors.New("config: redis.native_tags requires the redis driver")
	}
	if c.DefaultTTL < 0 {
		return errors.New("config: default_ttl must not be negative")
	}
	return nil
}

func (c Config) driver() string {
	d := strings.ToLower(strings.TrimSpace(c.Driver))
	if d == "" {
		return DriverMemory
	}
	return d
}
