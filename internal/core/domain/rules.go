package domain

import (
	"strings"
)

// RuleSeparator separates the pattern from the protocol in a stored rule.
const RuleSeparator = "|"

// Protocols a rule may force.
const (
	ProtocolHTTP  = "http"
	ProtocolHTTPS = "https"
)

// ProtocolRule forces a protocol for hostnames matching Pattern.
// Stored as "<pattern>|<protocol>", e.g. "*.dev.example.com|https".
type ProtocolRule struct {
	Pattern  string
	Protocol string // "http" or "https", without trailing colon
}

// String returns the stored form of the rule.
func (r ProtocolRule) String() string {
	return r.Pattern + RuleSeparator + r.Protocol
}

// ParseProtocolRule parses a stored rule. Rules without a separator, with an
// empty pattern, or with a protocol other than http/https are rejected.
// A rule with more than one separator keeps only the first two fields.
func ParseProtocolRule(rule string) (ProtocolRule, bool) {
	if !strings.Contains(rule, RuleSeparator) {
		return ProtocolRule{}, false
	}
	parts := strings.Split(rule, RuleSeparator)
	pattern := strings.TrimSpace(parts[0])
	protocol := strings.ToLower(strings.TrimSpace(parts[1]))

	if pattern == "" {
		return ProtocolRule{}, false
	}
	if protocol != ProtocolHTTP && protocol != ProtocolHTTPS {
		return ProtocolRule{}, false
	}
	return ProtocolRule{Pattern: pattern, Protocol: protocol}, true
}

// ParseProtocolRulesText splits an edited block of rules, one per line.
// Blank lines and lines without a separator are dropped; everything else is
// kept verbatim (trimmed) so the user's input survives a round trip.
func ParseProtocolRulesText(text string) []string {
	rules := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, RuleSeparator) {
			continue
		}
		rules = append(rules, line)
	}
	return rules
}

// FormatProtocolRules joins rules one per line for editing.
func FormatProtocolRules(rules []string) string {
	return strings.Join(rules, "\n")
}
