package tagcache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	pr "github.com/unkn0wn-root/tagcache/provider"
)

// ClearPattern deletes every entry of this namespace whose logical key
// matches pattern. '*' matches any run of characters (including none);
// every other character is literal. Returns the number of deleted entries.
//
// Providers that cannot enumerate keys return ErrUnsupported.
func (s *Service) ClearPattern(ctx context.Context, pattern string) (int, error) {
	if !s.enabled {
		return 0, nil
	}
	en, ok := s.provider.(pr.Enumerable)
	if !ok {
		s.hooks.PatternUnsupported(pattern)
		return 0, ErrUnsupported
	}
	g, err := compilePattern(pattern)
	if err != nil {
		return 0, fmt.Errorf("tagcache: pattern %q: %w", pattern, err)
	}

	ns := s.prefix + ":"
	var matched []string
	err = en.Range(ctx, func(raw string) bool {
		if logical, ok := strings.CutPrefix(raw, ns); ok && g.Match(logical) {
			matched = append(matched, raw)
		}
		return true
	})
	if err != nil {
		s.hooks.ProviderError("range", "", err)
		return 0, fmt.Errorf("tagcache: enumerate for %q: %w", pattern, err)
	}

	removed := 0
	var errs []error
	for _, k := range matched {
		if err := s.del(ctx, k); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	s.log.Debug("pattern cleared", Fields{"pattern": pattern, "removed": removed, "failed": len(errs)})
	return removed, errors.Join(errs...)
}

// compilePattern quotes everything but '*' so glob metacharacters in keys
// ('?', '[', '{', '\\') match literally.
func compilePattern(pattern string) (glob.Glob, error) {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = glob.QuoteMeta(p)
	}
	return glob.Compile(strings.Join(parts, "*"))
}
