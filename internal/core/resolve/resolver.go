// Package resolve finds the project that owns a hostname.
// This package has no I/O dependencies and is tested with values in/out.
package resolve

import (
	"github.com/artpar/envswitch/internal/core/domain"
	"github.com/artpar/envswitch/internal/core/match"
)

// Result is the outcome of ResolveProject.
type Result struct {
	// Project points into the slice passed to ResolveProject, nil when no
	// project owns the hostname.
	Project *domain.Project

	// LearnedDomain is set when the hostname was reached through a wildcard
	// and appended to Project.Domains. Callers persist the projects when it
	// is non-nil.
	LearnedDomain *domain.DomainEntry
}

// Found reports whether a project owns the hostname.
func (r Result) Found() bool {
	return r.Project != nil
}

// ResolveProject returns the project owning hostname.
//
// Exact (non-wildcard) entries are checked across all projects first, so an
// explicit or previously learned domain always outranks a wildcard in an
// earlier project. Failing that, the first wildcard entry that matches wins;
// the hostname is then appended to that project as a labeled entry unless it
// is already present. Projects are scanned in order and the first match wins
// in each pass.
//
// ResolveProject mutates projects in place when it learns a domain and must
// not run concurrently on the same slice.
func ResolveProject(hostname string, projects []domain.Project) Result {
	if p := findExact(hostname, projects); p != nil {
		return Result{Project: p}
	}

	for i := range projects {
		p := &projects[i]
		for _, entry := range p.Domains {
			pattern := entry.Value()
			if !match.IsWildcard(pattern) || !match.MatchesDomain(hostname, pattern) {
				continue
			}

			if p.HasDomain(hostname) {
				return Result{Project: p}
			}

			learned := domain.Labeled(hostname, match.ExtractWildcardPortion(hostname, pattern))
			p.Domains = append(p.Domains, learned)
			return Result{Project: p, LearnedDomain: &learned}
		}
	}

	return Result{}
}

func findExact(hostname string, projects []domain.Project) *domain.Project {
	for i := range projects {
		for _, entry := range projects[i].Domains {
			v := entry.Value()
			if !match.IsWildcard(v) && v == hostname {
				return &projects[i]
			}
		}
	}
	return nil
}

// Context is the resolved view of a page, recomputed on every load.
type Context struct {
	Project        *domain.Project
	MatchedDomain  *domain.DomainEntry
	IsNewlyLearned bool
}

// Resolve runs ResolveProject and also reports which entry of the project
// corresponds to hostname. MatchedDomain is the hostname's exact entry when
// one exists, otherwise the wildcard entry that matched it.
func Resolve(hostname string, projects []domain.Project) Context {
	res := ResolveProject(hostname, projects)
	if !res.Found() {
		return Context{}
	}

	ctx := Context{
		Project:        res.Project,
		IsNewlyLearned: res.LearnedDomain != nil,
	}
	if entry, ok := matchedEntry(hostname, res.Project.Domains); ok {
		ctx.MatchedDomain = &entry
	}
	return ctx
}

func matchedEntry(hostname string, entries []domain.DomainEntry) (domain.DomainEntry, bool) {
	for _, e := range entries {
		if !match.IsWildcard(e.Value()) && e.Value() == hostname {
			return e, true
		}
	}
	for _, e := range entries {
		if match.IsWildcard(e.Value()) && match.MatchesDomain(hostname, e.Value()) {
			return e, true
		}
	}
	return domain.DomainEntry{}, false
}
