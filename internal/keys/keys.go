package keys

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Short returns the first 16 hex chars of sha256 over the parts, each
// prefixed with its length so no two part lists share an encoding.
func Short(parts ...string) string {
	h := sha256.New()
	var n [binary.MaxVarintLen64]byte
	for _, p := range parts {
		h.Write(n[:binary.PutUvarint(n[:], uint64(len(p)))])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// Full returns the complete hex sha256 of s.
func Full(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// NormalizeTags trims, drops duplicates and sorts. Blank tags are kept as ""
// so the caller can reject them.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Tagged derives the tag-qualified key. sortedTags must already be normalized.
func Tagged(key string, sortedTags []string) string {
	return key + "#t:" + Short(sortedTags...)
}

// Query derives a stable key suffix for a query signature and its parameters.
func Query(query string, params []any) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, query)
	for _, p := range params {
		parts = append(parts, fmt.Sprintf("%T=%v", p, p))
	}
	return Short(parts...)
}
