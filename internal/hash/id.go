// Package hash derives identities for dictionaries and other byte payloads.
package hash

import "github.com/cespare/xxhash/v2"

// ID returns the xxHash64 of data.
func ID(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// Verify reports whether data hashes to id.
func Verify(data []byte, id uint64) bool {
	return ID(data) == id
}
