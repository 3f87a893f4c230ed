// Package sqlite is a persistent provider storing entries in a SQLite table
// through GORM. Expiry is enforced on read; expired rows stay on disk until
// they are read, overwritten or cleared.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	pr "github.com/unkn0wn-root/tagcache/provider"
)

// Entry is the table row.
type Entry struct {
	Key       string `gorm:"column:cache_key;primaryKey"`
	Value     []byte `gorm:"column:value"`
	ExpiresAt int64  `gorm:"column:expires_at;index"`
}

func (Entry) TableName() string { return "tagcache_entries" }

type Config struct {
	// DB is used as-is when set; the provider never closes it.
	DB *gorm.DB
	// DSN opens a dedicated database when DB is nil, e.g. "cache.db" or
	// "file::memory:?cache=shared".
	DSN string
}

type SQLite struct {
	db     *gorm.DB
	ownsDB bool
	now    func() time.Time
}

var (
	_ pr.Provider   = (*SQLite)(nil)
	_ pr.Enumerable = (*SQLite)(nil)
	_ pr.Named      = (*SQLite)(nil)
)

func New(cfg Config) (*SQLite, error) {
	db, owns := cfg.DB, false
	if db == nil {
		if cfg.DSN == "" {
			return nil, errors.New("sqlite provider: DB or DSN is required")
		}
		var err error
		db, err = gorm.Open(gormsqlite.Open(cfg.DSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("sqlite provider: open: %w", err)
		}
		owns = true
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("sqlite provider: migrate: %w", err)
	}
	return &SQLite{db: db, ownsDB: owns, now: time.Now}, nil
}

func (p *SQLite) Name() string { return "sqlite" }

func (p *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var row Entry
	err := p.db.WithContext(ctx).Where("cache_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if pr.Expired(row.ExpiresAt, p.now()) {
		// only drop the row we saw; a concurrent Set may have refreshed it
		p.db.WithContext(ctx).
			Where("cache_key = ? AND expires_at = ?", key, row.ExpiresAt).
			Delete(&Entry{})
		return nil, false, nil
	}
	if row.Value == nil {
		row.Value = []byte{}
	}
	return row.Value, true, nil
}

func (p *SQLite) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		if err := p.Del(ctx, key); err != nil {
			return false, err
		}
		return true, nil
	}
	row := Entry{Key: key, Value: value, ExpiresAt: p.now().Add(ttl).UnixNano()}
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at"}),
	}).Create(&row).Error
	if err != nil {
		return false, fmt.Errorf("upsert cache key: %w", err)
	}
	return true, nil
}

func (p *SQLite) Del(ctx context.Context, key string) error {
	if err := p.db.WithContext(ctx).Where("cache_key = ?", key).Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("delete cache key: %w", err)
	}
	return nil
}

func (p *SQLite) Exists(ctx context.Context, key string) (bool, error) {
	var n int64
	err := p.db.WithContext(ctx).Model(&Entry{}).
		Where("cache_key = ? AND expires_at > ?", key, p.now().UnixNano()).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *SQLite) Clear(ctx context.Context) error {
	return p.db.WithContext(ctx).Where("1 = 1").Delete(&Entry{}).Error
}

func (p *SQLite) Range(ctx context.Context, fn func(key string) bool) error {
	var live []string
	err := p.db.WithContext(ctx).Model(&Entry{}).
		Where("expires_at > ?", p.now().UnixNano()).
		Pluck("cache_key", &live).Error
	if err != nil {
		return err
	}
	for _, k := range live {
		if !fn(k) {
			return nil
		}
	}
	return nil
}

func (p *SQLite) Close(_ context.Context) error {
	if !p.ownsDB {
		return nil
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
