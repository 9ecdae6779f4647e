// Package util contains internal helpers (hashing, sharding, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import "github.com/cespare/xxhash/v2"

// HashKey hashes raw key bytes for shard routing.
// xxhash is a fast non-cryptographic 64-bit hash with good dispersion over
// short binary keys, so the low bits are safe to use as a shard mask.
// The mapping is deterministic for the lifetime of the process.
func HashKey(key []byte) uint64 {
	return xxhash.Sum64(key)
}
