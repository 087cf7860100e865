package tplcache

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxPortableKeyLen is the longest key memcached-style backends accept.
const MaxPortableKeyLen = 250

// KeyFunc derives the storage key from a caller key, the cache's key prefix and
// a version. It must be pure: equal inputs always give equal keys.
type KeyFunc func(key, prefix string, version int) string

// DefaultKeyFunc returns prefix + ":" + version + ":" + key, with invalid UTF-8
// in key replaced so the result is always a valid string.
func DefaultKeyFunc(key, prefix string, version int) string {
	if !utf8.ValidString(key) {
		key = strings.ToValidUTF8(key, string(utf8.RuneError))
	}
	var b strings.Builder
	b.Grow(len(prefix) + len(key) + 6)
	b.WriteString(prefix)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(version))
	b.WriteByte(':')
	b.WriteString(key)
	return b.String()
}

// keyWarning returns "" for a portable key, otherwise the reason it is not.
func keyWarning(storageKey string) string {
	if len(storageKey) > MaxPortableKeyLen {
		return "too_long"
	}
	for i := 0; i < len(storageKey); i++ {
		if c := storageKey[i]; c < 33 || c == 127 {
			return "control_char"
		}
	}
	return ""
}
