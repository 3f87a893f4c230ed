package tagcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/tagcache/codec"
	"github.com/unkn0wn-root/tagcache/internal/keys"
)

// Lifetimes of the domain entries.
const (
	QueryTTL          = time.Hour
	PermissionsTTL    = time.Hour
	EntityCountTTL    = 5 * time.Minute
	MenuTTL           = time.Hour
	TranslationsTTL   = 24 * time.Hour
	EntityTTL         = time.Hour
	DashboardStatsTTL = 5 * time.Minute
)

// DashboardStatsKey holds aggregate figures derived from every entity, so
// any entity write invalidates it.
const DashboardStatsKey = "dashboard_stats"

func QueryKey(query string, params ...any) string {
	return "query:" + keys.Query(query, params)
}
func PermissionsKey(userID any) string     { return fmt.Sprintf("user_permissions:%v", userID) }
func EntityCountKey(entity string) string  { return "entity_count:" + entity }
func MenuKey(userID any) string            { return fmt.Sprintf("menu:%v", userID) }
func TranslationsKey(locale string) string { return "translations:" + locale }
func EntityKey(entity string, id any) string {
	return fmt.Sprintf("entity:%s:%v", entity, id)
}

// QueryCache remembers the result of a query keyed by its text and
// parameters. Parameters of different types never share an entry.
func QueryCache[V any](ctx context.Context, s *Service, query string, params []any, fn func(context.Context) (V, error)) (V, error) {
	return remember(ctx, s, codec.Msgpack[V]{}, QueryKey(query, params...), QueryTTL, fn)
}

// MenuCache remembers the rendered menu of one user.
func MenuCache[V any](ctx context.Context, s *Service, userID any, fn func(context.Context) (V, error)) (V, error) {
	return remember(ctx, s, codec.Msgpack[V]{}, MenuKey(userID), MenuTTL, fn)
}

// EntityCache remembers a single entity record.
func EntityCache[V any](ctx context.Context, s *Service, entity string, id any, fn func(context.Context) (V, error)) (V, error) {
	return remember(ctx, s, codec.Msgpack[V]{}, EntityKey(entity, id), EntityTTL, fn)
}

func DashboardStats[V any](ctx context.Context, s *Service, fn func(context.Context) (V, error)) (V, error) {
	return remember(ctx, s, codec.Msgpack[V]{}, DashboardStatsKey, DashboardStatsTTL, fn)
}

func (s *Service) UserPermissions(ctx context.Context, userID any, fn func(context.Context) ([]string, error)) ([]string, error) {
	return remember(ctx, s, codec.Msgpack[[]string]{}, PermissionsKey(userID), PermissionsTTL, fn)
}

func (s *Service) EntityCount(ctx context.Context, entity string, fn func(context.Context) (int64, error)) (int64, error) {
	return remember(ctx, s, codec.Msgpack[int64]{}, EntityCountKey(entity), EntityCountTTL, fn)
}

func (s *Service) Translations(ctx context.Context, locale string, fn func(context.Context) (map[string]string, error)) (map[string]string, error) {
	return remember(ctx, s, codec.Msgpack[map[string]string]{}, TranslationsKey(locale), TranslationsTTL, fn)
}

// InvalidateEntity drops everything derived from entity after a write: its
// count, the given records, the dashboard aggregate and all menus. Menus are
// cleared by pattern and silently skipped on providers that cannot
// enumerate keys; they then age out with MenuTTL.
//
// New keys that depend on entity state must be added here.
func (s *Service) InvalidateEntity(ctx context.Context, entity string, ids ...any) error {
	if !s.enabled {
		return nil
	}
	var errs []error
	if err := s.Delete(ctx, EntityCountKey(entity)); err != nil {
		errs = append(errs, err)
	}
	for _, id := range ids {
		if err := s.Delete(ctx, EntityKey(entity, id)); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.Delete(ctx, DashboardStatsKey); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.ClearPattern(ctx, "menu:*"); err != nil && !errors.Is(err, ErrUnsupported) {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		s.log.Debug("entity invalidated", Fields{"entity": entity, "ids": len(ids)})
	}
	return errors.Join(errs...)
}
