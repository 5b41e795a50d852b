package cache

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// HashKey returns a stable, filesystem-safe name for a cache key.
// Resolved URIs contain characters that are unsafe in file names and can exceed
// path length limits, so the BLAKE3 digest is used instead of the key itself.
func HashKey(key string) string {
	sum := blake3.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
