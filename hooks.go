package tagcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The service calls them on hot paths.
type Hooks interface {
	// A stored value failed to decode and was deleted on read.
	// reason ∈ {"decode"}
	SelfHeal(storageKey, reason string)

	// The provider returned an error. Reads degrade to a miss.
	// op ∈ {"get", "set", "del", "exists", "clear", "range"}
	ProviderError(op, storageKey string, err error)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// Reading, appending to or removing a tag index failed.
	TagIndexError(tag string, err error)

	// Flush could not delete `failed` members of tag; its index was kept.
	FlushIncomplete(tag string, failed int)

	// ClearPattern was called against a provider that cannot enumerate keys.
	PatternUnsupported(pattern string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)             {}
func (NopHooks) ProviderError(string, string, error) {}
func (NopHooks) ProviderSetRejected(string)          {}
func (NopHooks) TagIndexError(string, error)         {}
func (NopHooks) FlushIncomplete(string, int)         {}
func (NopHooks) PatternUnsupported(string)           {}
