package hash

import "github.com/cespare/xxhash/v2"

// Digest computes the xxHash64 of the given bytes.
//
// Used as the integrity digest of snapshot payloads.
func Digest(data []byte) uint64 {
	return xxhash.Sum64(data)
}
