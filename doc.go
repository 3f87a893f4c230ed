// Package tagcache implements a namespaced, provider-agnostic cache with TTL
// expiry, get-or-compute semantics and tag-based group invalidation.
//
// Components:
//   - Provider: byte store with per-entry TTL (memory, file, ristretto,
//     bigcache, redis, sqlite). Expiry is lazy: checked on read.
//   - Service: prefixes keys, counts hits/misses/sets, remembers computed
//     values and clears by pattern on providers that can enumerate keys.
//   - TaggedCache: a view bound to a fixed tag set. Writes also record the
//     storage key in each tag's index so Flush can delete the whole group.
//   - Typed[V]: codec-backed typed access over a Service or a TaggedCache.
//
// Keys:
//
//	<prefix>:<key>              - plain entries
//	<prefix>:<key>#t:<hash>     - entries written through a tag set
//	<prefix>:tag:<tag>          - tag index (set of storage keys)
//
// Remember pattern:
//
//	perms, err := svc.UserPermissions(ctx, userID, loadPermissions)
//
// Group invalidation:
//
//	tc, _ := svc.Tags("users", "dashboard")
//	_ = tc.Set(ctx, "active", raw, time.Minute)
//	_ = tc.Flush(ctx) // drops every entry written under "users" or "dashboard"
//
// Entity writes are invalidated by a hand-maintained list (InvalidateEntity):
// any new key derived from entity state must be added there or it goes stale.
package tagcache
