package pagedb

import "github.com/cespare/xxhash/v2"

// Hasher computes a deterministic, non-cryptographic 64-bit digest of a
// URL byte string. The result must be stable across runs and hosts; it is
// the key under which hash2idx and hash2info are indexed.
//
// Collisions are assumed not to occur within a single store; see the
// collision probe in store.go for the defense actually taken against
// that assumption.
type Hasher func(url []byte) uint64

// DefaultHasher is xxhash64: fast, non-cryptographic, and stable across
// runs. A caller may supply a different Hasher to Open if it needs a
// different collision profile.
func DefaultHasher(url []byte) uint64 {
	return xxhash.Sum64(url)
}
