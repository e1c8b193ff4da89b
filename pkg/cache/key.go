package cache

import (
	"fmt"
	"strings"
)

// KeyPrefix namespaces every key written by the cache.
const KeyPrefix = "pagebatch:extract"

// CacheKey identifies the text of one unit of one document.
type CacheKey struct {
	// Document is a stable document identifier (usually a content hash)
	Document string

	// Unit is the 1-based unit (page) number
	Unit int
}

// String generates a deterministic cache key string.
// Format: pagebatch:extract:<document>:<unit>
//
// Example:
//
//	pagebatch:extract:3f2a9c0d1e4b5a67:12
func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%s:%d", KeyPrefix, sanitize(k.Document), k.Unit)
}

// DocumentPattern returns the SCAN pattern matching every unit of document.
func DocumentPattern(document string) string {
	return fmt.Sprintf("%s:%s:*", KeyPrefix, sanitize(document))
}

// sanitize keeps the key segment free of separators and glob characters.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '*', '?', '[', ']', ' ':
			return '_'
		}
		return r
	}, s)
}
