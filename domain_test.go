package tagcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unkn0wn-root/tagcache/codec"
	"github.com/unkn0wn-root/tagcache/provider/memory"
)

type menuItem struct {
	Title string
	Href  string
}

func TestAppPrefixScenario(t *testing.T) {
	ctx := context.Background()
	mp := memory.New()
	s := newTestService(t, mp, nil)
	users := NewTyped[map[string]string](s, codec.JSON[map[string]string]{})

	if err := users.Set(ctx, "user:5", map[string]string{"name": "Ana"}, 60*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ok, _ := mp.Exists(ctx, "app:user:5"); !ok {
		t.Fatalf("provider key app:user:5 missing")
	}
	got, ok, err := users.Get(ctx, "user:5")
	if err != nil || !ok || got["name"] != "Ana" {
		t.Fatalf("Get: %v ok=%v err=%v", got, ok, err)
	}

	_, _ = EntityCache(ctx, s, "user", 5, func(context.Context) (map[string]string, error) {
		return map[string]string{"name": "Ana"}, nil
	})
	_, _ = s.EntityCount(ctx, "user", func(context.Context) (int64, error) { return 1, nil })
	if !s.Exists(ctx, "entity:user:5") || !s.Exists(ctx, "entity_count:user") {
		t.Fatalf("domain entries not cached")
	}

	if err := s.InvalidateEntity(ctx, "user", 5); err != nil {
		t.Fatalf("InvalidateEntity: %v", err)
	}
	if s.Exists(ctx, "entity:user:5") {
		t.Fatalf("entity:user:5 survived")
	}
	if s.Exists(ctx, "entity_count:user") {
		t.Fatalf("entity_count:user survived")
	}
	if !s.Exists(ctx, "user:5") {
		t.Fatalf("user:5 should be unaffected")
	}
}

func TestInvalidateEntityClearsDerivedKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil, nil)

	_, _ = DashboardStats(ctx, s, func(context.Context) (map[string]int64, error) {
		return map[string]int64{"users": 3}, nil
	})
	for _, id := range []int{1, 2} {
		_, _ = MenuCache(ctx, s, id, func(context.Context) ([]menuItem, error) {
			return []menuItem{{Title: "Home", Href: "/"}}, nil
		})
	}
	_, _ = s.Translations(ctx, "en", func(context.Context) (map[string]string, error) {
		return map[string]string{"hi": "Hello"}, nil
	})

	if err := s.InvalidateEntity(ctx, "post"); err != nil {
		t.Fatalf("InvalidateEntity: %v", err)
	}
	for _, k := range []string{DashboardStatsKey, MenuKey(1), MenuKey(2)} {
		if s.Exists(ctx, k) {
			t.Fatalf("%s survived", k)
		}
	}
	if !s.Exists(ctx, TranslationsKey("en")) {
		t.Fatalf("translations are not entity-derived")
	}
}

func TestDomainKeysAndTTLs(t *testing.T) {
	ctx := context.Background()
	var seen []time.Duration
	rec := &ttlRecorder{Provider: memory.New(), seen: &seen}
	s := newTestService(t, rec, nil)

	perms, err := s.UserPermissions(ctx, 9, func(context.Context) ([]string, error) {
		return []string{"read", "write"}, nil
	})
	if err != nil || len(perms) != 2 {
		t.Fatalf("UserPermissions: %v %v", perms, err)
	}
	if !s.Exists(ctx, "user_permissions:9") {
		t.Fatalf("permissions key missing")
	}
	_, _ = s.EntityCount(ctx, "post", func(context.Context) (int64, error) { return 4, nil })
	_, _ = s.Translations(ctx, "de", func(context.Context) (map[string]string, error) { return map[string]string{}, nil })

	want := []time.Duration{PermissionsTTL, EntityCountTTL, TranslationsTTL}
	if len(seen) != len(want) {
		t.Fatalf("ttls: %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("ttl[%d] = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestQueryCacheDistinguishesParams(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil, nil)

	if QueryKey("select * from users where id = ?", 5) == QueryKey("select * from users where id = ?", "5") {
		t.Fatalf("int and string params must not collide")
	}

	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"ana"}, nil
	}
	q := "select name from users where id = ?"
	for i := 0; i < 2; i++ {
		got, err := QueryCache(ctx, s, q, []any{5}, load)
		if err != nil || len(got) != 1 || got[0] != "ana" {
			t.Fatalf("QueryCache: %v %v", got, err)
		}
	}
	_, _ = QueryCache(ctx, s, q, []any{6}, load)
	if calls != 2 {
		t.Fatalf("loader calls = %d, want 2", calls)
	}
}

func TestDomainComputeErrorPropagates(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil, nil)
	_, err := s.EntityCount(ctx, "user", func(context.Context) (int64, error) { return 0, errBoom })
	if !errors.Is(err, errBoom) {
		t.Fatalf("want errBoom, got %v", err)
	}
	if s.Exists(ctx, EntityCountKey("user")) {
		t.Fatalf("failed count cached")
	}
}

func TestCachedZeroCountIsAHit(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil, nil)
	calls := 0
	for i := 0; i < 2; i++ {
		n, err := s.EntityCount(ctx, "empty", func(context.Context) (int64, error) {
			calls++
			return 0, nil
		})
		if err != nil || n != 0 {
			t.Fatalf("EntityCount: %d %v", n, err)
		}
	}
	if calls != 1 {
		t.Fatalf("zero count recomputed: %d calls", calls)
	}
}
