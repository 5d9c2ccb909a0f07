// Package urlbuild builds navigation URLs for a chosen environment.
// This package has no I/O dependencies and is tested with values in/out.
package urlbuild

import (
	"strings"

	"github.com/artpar/envswitch/internal/core/domain"
	"github.com/artpar/envswitch/internal/core/match"
)

// GetForcedProtocol returns the protocol ("https:" or "http:") forced on
// domain by the first matching rule. Malformed rules are skipped.
func GetForcedProtocol(domainName string, rules []string) (string, bool) {
	for _, raw := range rules {
		rule, ok := domain.ParseProtocolRule(raw)
		if !ok {
			continue
		}
		if match.MatchesProtocolPattern(domainName, rule.Pattern) {
			return rule.Protocol + ":", true
		}
	}
	return "", false
}

// NormalizeProtocol returns p with exactly one trailing colon.
// "https" → "https:", "https:" → "https:"
func NormalizeProtocol(p string) string {
	return strings.TrimRight(p, ":") + ":"
}

// BuildURL returns the URL for domain, keeping path verbatim.
//
// path is expected to start with "/" and carry any query and fragment, the
// same way pathname+search+hash does in a browser. A protocol rule matching
// domain overrides requestedProtocol.
func BuildURL(domainName, requestedProtocol, path string, rules []string) string {
	protocol, _ := EffectiveProtocol(domainName, requestedProtocol, rules)
	return protocol + "//" + domainName + path
}

// EffectiveProtocol returns the protocol a navigation to domain will use.
// locked reports that a rule forced it, so a UI should not offer a choice.
func EffectiveProtocol(domainName, requestedProtocol string, rules []string) (protocol string, locked bool) {
	if forced, ok := GetForcedProtocol(domainName, rules); ok {
		return forced, true
	}
	return NormalizeProtocol(requestedProtocol), false
}
