package resolve

import (
	"testing"

	"github.com/artpar/envswitch/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveProject_NoProjects(t *testing.T) {
	res := ResolveProject("dev.example.com", nil)
	assert.False(t, res.Found())
	assert.Nil(t, res.LearnedDomain)

	res = ResolveProject("dev.example.com", []domain.Project{})
	assert.False(t, res.Found())
}

func TestResolveProject_SkipsProjectsWithoutDomains(t *testing.T) {
	projects := []domain.Project{
		{Name: "nil domains"},
		{Name: "empty domains", Domains: []domain.DomainEntry{}},
		{Name: "App", Domains: []domain.DomainEntry{domain.Bare("dev.example.com")}},
	}

	res := ResolveProject("dev.example.com", projects)
	require.True(t, res.Found())
	assert.Equal(t, "App", res.Project.Name)
}

func TestResolveProject_ExactMatch(t *testing.T) {
	projects := []domain.Project{
		{Name: "A", Domains: []domain.DomainEntry{domain.Bare("a.example.com")}},
		{Name: "B", Domains: []domain.DomainEntry{domain.Labeled("b.example.com", "Bee")}},
	}

	res := ResolveProject("b.example.com", projects)
	require.True(t, res.Found())
	assert.Equal(t, "B", res.Project.Name)
	assert.Nil(t, res.LearnedDomain)
	assert.Same(t, &projects[1], res.Project)
	assert.Len(t, projects[1].Domains, 1)
}

func TestResolveProject_NoMatch(t *testing.T) {
	projects := []domain.Project{
		{Name: "A", Domains: []domain.DomainEntry{domain.Bare("a.example.com"), domain.Bare("*.a.example.com")}},
	}

	res := ResolveProject("unrelated.io", projects)
	assert.False(t, res.Found())
	assert.Nil(t, res.LearnedDomain)
	assert.Len(t, projects[0].Domains, 2)
}

func TestResolveProject_ExactBeatsWildcardRegardlessOfOrder(t *testing.T) {
	projects := []domain.Project{
		{Name: "A", Domains: []domain.DomainEntry{domain.Bare("*.example.com")}},
		{Name: "B", Domains: []domain.DomainEntry{domain.Bare("dev.example.com")}},
	}

	res := ResolveProject("dev.example.com", projects)
	require.True(t, res.Found())
	assert.Equal(t, "B", res.Project.Name)
	assert.Nil(t, res.LearnedDomain)
	assert.Len(t, projects[0].Domains, 1, "wildcard project must not learn")
}

func TestResolveProject_WildcardLearnsDomain(t *testing.T) {
	projects := []domain.Project{
		{Name: "App", Domains: []domain.DomainEntry{
			domain.Labeled("www.example.com", "Production"),
			domain.Bare("*.preview.example.com"),
		}},
	}

	res := ResolveProject("pr-42.preview.example.com", projects)
	require.True(t, res.Found())
	assert.Equal(t, "App", res.Project.Name)
	require.NotNil(t, res.LearnedDomain)
	assert.Equal(t, domain.Labeled("pr-42.preview.example.com", "pr-42"), *res.LearnedDomain)

	require.Len(t, projects[0].Domains, 3)
	assert.Equal(t, *res.LearnedDomain, projects[0].Domains[2])
}

func TestResolveProject_LearnedLabelFallsBackForMiddleWildcard(t *testing.T) {
	projects := []domain.Project{
		{Name: "App", Domains: []domain.DomainEntry{domain.Bare("api.*.example.com")}},
	}

	res := ResolveProject("api.pr-7.example.com", projects)
	require.NotNil(t, res.LearnedDomain)
	assert.Equal(t, "api.pr-7.example.com", res.LearnedDomain.Label)
}

func TestResolveProject_FirstWildcardProjectWins(t *testing.T) {
	projects := []domain.Project{
		{Name: "First", Domains: []domain.DomainEntry{domain.Bare("*.example.com")}},
		{Name: "Second", Domains: []domain.DomainEntry{domain.Bare("*.dev.example.com")}},
	}

	res := ResolveProject("x.dev.example.com", projects)
	require.True(t, res.Found())
	assert.Equal(t, "First", res.Project.Name)
	assert.Len(t, projects[0].Domains, 2)
	assert.Len(t, projects[1].Domains, 1)
}

func TestResolveProject_Idempotent(t *testing.T) {
	projects := []domain.Project{
		{Name: "App", Domains: []domain.DomainEntry{domain.Bare("*.example.com")}},
	}

	first := ResolveProject("dev.example.com", projects)
	require.NotNil(t, first.LearnedDomain)
	afterFirst := len(projects[0].Domains)

	second := ResolveProject("dev.example.com", projects)
	assert.Equal(t, "App", second.Project.Name)
	assert.Nil(t, second.LearnedDomain)
	afterSecond := len(projects[0].Domains)

	third := ResolveProject("dev.example.com", projects)
	assert.Equal(t, "App", third.Project.Name)
	assert.Nil(t, third.LearnedDomain)

	assert.Equal(t, 2, afterFirst)
	assert.Equal(t, afterFirst, afterSecond)
	assert.Equal(t, afterSecond, len(projects[0].Domains))
}

func TestResolveProject_LearnedDomainOutranksOtherProjectsWildcard(t *testing.T) {
	projects := []domain.Project{
		{Name: "Broad", Domains: []domain.DomainEntry{domain.Bare("*.io")}},
		{Name: "Specific", Domains: []domain.DomainEntry{domain.Bare("*.shop.io")}},
	}

	// Learned by Broad first since it comes first.
	res := ResolveProject("a.shop.io", projects)
	assert.Equal(t, "Broad", res.Project.Name)

	// Moving the learned entry to Specific makes it win via the exact pass.
	projects[0].Domains = projects[0].Domains[:1]
	projects[1].Domains = append(projects[1].Domains, domain.Bare("a.shop.io"))

	res = ResolveProject("a.shop.io", projects)
	assert.Equal(t, "Specific", res.Project.Name)
	assert.Nil(t, res.LearnedDomain)
}

func TestResolveProject_BareAndLabeledResolveIdentically(t *testing.T) {
	bare := []domain.Project{{Name: "P", Domains: []domain.DomainEntry{domain.Bare("a.example.com")}}}
	labeled := []domain.Project{{Name: "P", Domains: []domain.DomainEntry{domain.Labeled("a.example.com", "a.example.com")}}}

	r1 := ResolveProject("a.example.com", bare)
	r2 := ResolveProject("a.example.com", labeled)

	assert.Equal(t, r1.Project.Name, r2.Project.Name)
	assert.Equal(t, r1.LearnedDomain, r2.LearnedDomain)
}

// =============================================================================
// Resolve (context) Tests
// =============================================================================

func TestResolve_Context(t *testing.T) {
	tests := []struct {
		name        string
		hostname    string
		wantProject string
		wantMatched *domain.DomainEntry
		wantLearned bool
	}{
		{
			name:        "exact entry",
			hostname:    "www.example.com",
			wantProject: "App",
			wantMatched: &domain.DomainEntry{Kind: domain.EntryLabeled, Domain: "www.example.com", Label: "Production"},
		},
		{
			name:        "learned through wildcard",
			hostname:    "feat.example.com",
			wantProject: "App",
			wantMatched: &domain.DomainEntry{Kind: domain.EntryLabeled, Domain: "feat.example.com", Label: "feat"},
			wantLearned: true,
		},
		{
			name:     "unmanaged domain",
			hostname: "other.io",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			projects := []domain.Project{
				{Name: "App", Domains: []domain.DomainEntry{
					domain.Labeled("www.example.com", "Production"),
					domain.Bare("*.example.com"),
				}},
			}

			ctx := Resolve(tt.hostname, projects)
			if tt.wantProject == "" {
				assert.Nil(t, ctx.Project)
				assert.Nil(t, ctx.MatchedDomain)
				assert.False(t, ctx.IsNewlyLearned)
				return
			}
			require.NotNil(t, ctx.Project)
			assert.Equal(t, tt.wantProject, ctx.Project.Name)
			assert.Equal(t, tt.wantMatched, ctx.MatchedDomain)
			assert.Equal(t, tt.wantLearned, ctx.IsNewlyLearned)
		})
	}
}
