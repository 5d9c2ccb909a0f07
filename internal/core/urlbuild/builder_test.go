package urlbuild

import (
	"testing"

	"github.com/artpar/envswitch/internal/core/domain"
	"github.com/artpar/envswitch/internal/core/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetForcedProtocol(t *testing.T) {
	tests := []struct {
		name   string
		domain string
		rules  []string
		want   string
		wantOK bool
	}{
		{
			name:   "first matching rule wins",
			domain: "stage.example.com",
			rules:  []string{"*.stage.example.com|https", "*.example.com|http"},
			want:   "http:",
			wantOK: true,
		},
		{
			name:   "order matters",
			domain: "a.stage.example.com",
			rules:  []string{"*.stage.example.com|https", "*.*.example.com|http"},
			want:   "https:",
			wantOK: true,
		},
		{
			name:   "single label wildcard does not span",
			domain: "a.b.example.com",
			rules:  []string{"*.example.com|https"},
			wantOK: false,
		},
		{
			name:   "exact rule",
			domain: "legacy.example.com",
			rules:  []string{"legacy.example.com|http"},
			want:   "http:",
			wantOK: true,
		},
		{
			name:   "malformed rules are skipped",
			domain: "dev.example.com",
			rules:  []string{"*.example.com https", "*.example.com|gopher", "*.example.com|https"},
			want:   "https:",
			wantOK: true,
		},
		{
			name:   "no rules",
			domain: "dev.example.com",
			rules:  nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := GetForcedProtocol(tt.domain, tt.rules)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetForcedProtocol_SubdomainOfStage(t *testing.T) {
	got, ok := GetForcedProtocol("x.stage.example.com", []string{"*.stage.example.com|https", "*.example.com|http"})
	require.True(t, ok)
	assert.Equal(t, "https:", got)
}

func TestNormalizeProtocol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https", "https:"},
		{"https:", "https:"},
		{"http", "http:"},
		{"http::", "http:"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeProtocol(tt.in))
		})
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name     string
		domain   string
		protocol string
		path     string
		rules    []string
		want     string
	}{
		{
			name:     "forced protocol overrides requested",
			domain:   "api.dev.example.com",
			protocol: "http:",
			path:     "/p?q=1#h",
			rules:    []string{"*.dev.example.com|https"},
			want:     "https://api.dev.example.com/p?q=1#h",
		},
		{
			name:     "rule for the domain itself",
			domain:   "dev.example.com",
			protocol: "http:",
			path:     "/p?q=1#h",
			rules:    []string{"dev.example.com|https"},
			want:     "https://dev.example.com/p?q=1#h",
		},
		{
			name:     "no rules passes requested through",
			domain:   "www.example.com",
			protocol: "https:",
			path:     "/",
			rules:    []string{},
			want:     "https://www.example.com/",
		},
		{
			name:     "requested protocol without colon",
			domain:   "www.example.com",
			protocol: "http",
			path:     "/a/b",
			want:     "http://www.example.com/a/b",
		},
		{
			name:     "path kept verbatim",
			domain:   "localhost:8080",
			protocol: "http:",
			path:     "/search?q=a%20b&x=1#top",
			want:     "http://localhost:8080/search?q=a%20b&x=1#top",
		},
		{
			name:     "garbage in garbage out",
			domain:   "not a domain",
			protocol: "https",
			path:     "",
			want:     "https://not a domain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildURL(tt.domain, tt.protocol, tt.path, tt.rules))
		})
	}
}

func TestEffectiveProtocol(t *testing.T) {
	rules := []string{"*.dev.example.com|https"}

	p, locked := EffectiveProtocol("x.dev.example.com", "http", rules)
	assert.Equal(t, "https:", p)
	assert.True(t, locked)

	p, locked = EffectiveProtocol("www.example.com", "http", rules)
	assert.Equal(t, "http:", p)
	assert.False(t, locked)
}

func TestBareAndLabeledEntriesBuildIdentically(t *testing.T) {
	rules := []string{"*.example.com|https"}
	bare := []domain.Project{{Name: "P", Domains: []domain.DomainEntry{domain.Bare("a.example.com")}}}
	labeled := []domain.Project{{Name: "P", Domains: []domain.DomainEntry{domain.Labeled("a.example.com", "a.example.com")}}}

	r1 := resolve.Resolve("a.example.com", bare)
	r2 := resolve.Resolve("a.example.com", labeled)
	require.NotNil(t, r1.MatchedDomain)
	require.NotNil(t, r2.MatchedDomain)

	u1 := BuildURL(r1.MatchedDomain.Value(), "http:", "/x", rules)
	u2 := BuildURL(r2.MatchedDomain.Value(), "http:", "/x", rules)
	assert.Equal(t, u1, u2)
	assert.Equal(t, "https://a.example.com/x", u1)
	assert.Equal(t, r1.MatchedDomain.DisplayLabel(), r2.MatchedDomain.DisplayLabel())
}
