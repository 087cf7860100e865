package util

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Digest returns the hex SHA-256 of parts joined with NUL, so part boundaries
// cannot be forged from inside a part.
func Digest(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// SetKey returns a deterministic short key for an unordered set of members:
// order and duplicates do not matter.
func SetKey(prefix string, members []string) string {
	s := make([]string, len(members))
	copy(s, members)
	sort.Strings(s)
	u := s[:0]
	for i, m := range s {
		if i == 0 || m != s[i-1] {
			u = append(u, m)
		}
	}
	sum := sha256.Sum256([]byte(strings.Join(u, "\x00")))
	return prefix + ":" + hex.EncodeToString(sum[:8]) // prefix + ":" + first 16 hex chars
}
