// Package hashutil wraps github.com/spaolacci/murmur3 with the two hash
// shapes the pool manager needs: a seeded 64-bit hash for consistent-hash
// key mapping, and a 32-bit hash for the short stable upstream uid.
package hashutil

import (
	"encoding/base32"

	"github.com/spaolacci/murmur3"
)

// Hash64 returns a fast, non-cryptographic 64-bit hash of key, seeded by
// the low 32 bits of seed (murmur3 takes a 32-bit seed). Selector.hashed
// uses this as the jump-consistent-hash input.
func Hash64(key []byte, seed uint64) uint64 {
	return murmur3.Sum64WithSeed(key, uint32(seed))
}

var uidEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// UID derives the short, stable, log-correlation tag for an upstream name:
// an 8-character base32 rendering of a 32-bit hash of name, zero-padded to
// 5 bytes before encoding.
func UID(name string) string {
	sum := murmur3.Sum32WithSeed([]byte(name), 0)
	var buf [5]byte
	buf[0] = byte(sum >> 24)
	buf[1] = byte(sum >> 16)
	buf[2] = byte(sum >> 8)
	buf[3] = byte(sum)
	buf[4] = 0
	return uidEncoding.EncodeToString(buf[:])
}
