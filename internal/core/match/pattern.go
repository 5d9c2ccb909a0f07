// Package match decides whether hostnames match domain patterns.
// This is part of the Functional Core - all functions are pure with no I/O.
//
// Two wildcard flavours exist and are intentionally kept apart:
//   - domain-list patterns, where "*" spans any run of characters including "."
//   - protocol-rule patterns, where "*" spans exactly one DNS label
package match

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"
)

// Wildcard is the only special character in a domain pattern.
const Wildcard = "*"

// semantics selects what a "*" expands to when a pattern is compiled.
type semantics string

const (
	multiLabel  semantics = ".*"
	singleLabel semantics = "[^.]+"
)

type cacheKey struct {
	sem     semantics
	pattern string
}

// compiled caches compiled patterns. A nil *regexp.Regexp marks a pattern
// that failed to compile so the failure is only logged once.
var compiled sync.Map // cacheKey -> *regexp.Regexp

// IsWildcard reports whether pattern contains a wildcard.
func IsWildcard(pattern string) bool {
	return strings.Contains(pattern, Wildcard)
}

// MatchesDomain reports whether hostname matches a domain-list pattern.
//
// Without a wildcard the comparison is exact and case-sensitive. With one,
// every "*" matches zero or more characters of any kind, so
// "*.example.com" matches both "dev.example.com" and "a.b.example.com".
func MatchesDomain(hostname, pattern string) bool {
	return matches(hostname, pattern, multiLabel)
}

// MatchesProtocolPattern reports whether hostname matches a protocol-rule
// pattern. Every "*" matches one or more characters excluding ".", so
// "*.example.com" matches "dev.example.com" but not "a.b.example.com".
func MatchesProtocolPattern(hostname, pattern string) bool {
	return matches(hostname, pattern, singleLabel)
}

func matches(hostname, pattern string, sem semantics) bool {
	if !IsWildcard(pattern) {
		return hostname == pattern
	}
	re := compile(pattern, sem)
	if re == nil {
		return false
	}
	return re.MatchString(hostname)
}

// compile returns the anchored regexp for pattern, or nil if it cannot be
// compiled.
func compile(pattern string, sem semantics) *regexp.Regexp {
	key := cacheKey{sem: sem, pattern: pattern}
	if v, ok := compiled.Load(key); ok {
		return v.(*regexp.Regexp)
	}

	re, err := regexp.Compile(toRegex(pattern, sem))
	if err != nil {
		slog.Default().Warn("ignoring malformed domain pattern",
			"pattern", pattern,
			"error", err,
		)
		re = nil
	}
	compiled.Store(key, re)
	return re
}

// toRegex escapes everything but the wildcards and anchors the result.
// "*.dev.example.com" → "^.*\.dev\.example\.com$"
func toRegex(pattern string, sem semantics) string {
	parts := strings.Split(pattern, Wildcard)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return "^" + strings.Join(parts, string(sem)) + "$"
}

// ExtractWildcardPortion returns the part of hostname captured by a leading
// wildcard. It is used to label domains learned through a wildcard match.
//
//	ExtractWildcardPortion("foo-bar.example.com", "*.example.com") // "foo-bar"
//	ExtractWildcardPortion("pr-12-api.test.io", "*-api.test.io")   // "pr-12"
//
// Patterns whose wildcard is not the first character, and hostnames that do
// not end with the pattern's suffix, fall back to the full hostname.
func ExtractWildcardPortion(hostname, pattern string) string {
	if !strings.HasPrefix(pattern, Wildcard) {
		return hostname
	}
	suffix := pattern[len(Wildcard):]
	if !strings.HasSuffix(hostname, suffix) {
		return hostname
	}
	return strings.TrimSuffix(hostname, suffix)
}
