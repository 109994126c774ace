// Package cache holds in-memory caches for derived map images.
package cache

// Kind selects the value type a cache from New stores.
type Kind int

const (
	KindImage Kind = iota
	KindImageOp
)

// Cache is a concurrency-safe key/value store. Set ignores values of the
// wrong type for the cache's Kind.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Len() int
	Clear()
}

// New returns an empty cache of the given kind.
func New(kind Kind) Cache {
	switch kind {
	case KindImageOp:
		return NewImageOpCache()
	default:
		return NewImageCache()
	}
}
