// Package serializer turns raw response bodies into typed values and reports
// how long each value may be served from a cache.
package serializer

import (
	"time"
)

// Expired is the validity of values that carry no server-declared window.
// It lies before any real clock reading, so such values are always stale.
var Expired = time.Time{}

// Serializer converts response bytes into T and extracts T's validity window.
//
// Contract:
//   - Implementations are pure and stateless; safe for concurrent use.
//   - ValidUntil returns Expired for values that do not declare a window.
type Serializer[T any] interface {
	Deserialize(data []byte) (T, error)
	ValidUntil(v T) time.Time
}

// Expirer is implemented by response envelopes that embed a "cached until"
// instant.
type Expirer interface {
	CachedUntil() time.Time
}

// validUntil applies the Expirer rule shared by the built-in serializers.
func validUntil(v any) time.Time {
	if e, ok := v.(Expirer); ok && !isNilPointer(v) {
		return e.CachedUntil()
	}
	return Expired
}
