package domain

import (
	"errors"
	"strings"

	"github.com/samber/lo"
)

// =============================================================================
// Project Errors
// =============================================================================

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrProjectExists   = errors.New("project with this name already exists")
	ErrEmptyName       = errors.New("project name is required")
	ErrDomainExists    = errors.New("domain already exists in project")
	ErrDomainNotFound  = errors.New("domain not found in project")
	ErrEmptyDomain     = errors.New("domain is required")
	ErrEmptyToolURL    = errors.New("tool url is required")
	ErrToolNotFound    = errors.New("tool not found in project")
)

// =============================================================================
// Project Lookup
// =============================================================================

// FindProject returns a pointer into s.Projects for the named project.
func (s *Settings) FindProject(name string) (*Project, error) {
	_, idx, ok := lo.FindIndexOf(s.Projects, func(p Project) bool {
		return p.Name == name
	})
	if !ok {
		return nil, ErrProjectNotFound
	}
	return &s.Projects[idx], nil
}

// ProjectNames returns the project names in order.
func (s Settings) ProjectNames() []string {
	return lo.Map(s.Projects, func(p Project, _ int) string {
		return p.Name
	})
}

// =============================================================================
// Project Editing
// =============================================================================

// AddProject appends an empty project.
func (s *Settings) AddProject(name string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if _, err := s.FindProject(name); err == nil {
		return nil, ErrProjectExists
	}
	s.Projects = append(s.Projects, Project{
		Name:    name,
		Domains: []DomainEntry{},
	})
	return &s.Projects[len(s.Projects)-1], nil
}

// RenameProject changes a project's name, keeping names unique.
func (s *Settings) RenameProject(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrEmptyName
	}
	p, err := s.FindProject(oldName)
	if err != nil {
		return err
	}
	if newName == oldName {
		return nil
	}
	if _, err := s.FindProject(newName); err == nil {
		return ErrProjectExists
	}
	p.Name = newName
	return nil
}

// DeleteProject removes the named project.
func (s *Settings) DeleteProject(name string) error {
	before := len(s.Projects)
	s.Projects = lo.Reject(s.Projects, func(p Project, _ int) bool {
		return p.Name == name
	})
	if len(s.Projects) == before {
		return ErrProjectNotFound
	}
	return nil
}

// SetFloatingEnabled turns the in-page overlay on or off for a project.
func (s *Settings) SetFloatingEnabled(name string, enabled bool) error {
	p, err := s.FindProject(name)
	if err != nil {
		return err
	}
	p.FloatingEnabled = enabled
	return nil
}

// =============================================================================
// Domain Editing
// =============================================================================

// NewDomainEntry trims its inputs and returns a bare entry when the label is
// empty, a labeled one otherwise.
func NewDomainEntry(domain, label string) (DomainEntry, error) {
	domain = strings.TrimSpace(domain)
	label = strings.TrimSpace(label)
	if domain == "" {
		return DomainEntry{}, ErrEmptyDomain
	}
	if label == "" {
		return Bare(domain), nil
	}
	return Labeled(domain, label), nil
}

// AddDomain appends a domain entry to the named project.
func (s *Settings) AddDomain(projectName, domain, label string) error {
	entry, err := NewDomainEntry(domain, label)
	if err != nil {
		return err
	}
	p, err := s.FindProject(projectName)
	if err != nil {
		return err
	}
	if p.HasDomain(entry.Domain) {
		return ErrDomainExists
	}
	p.Domains = append(p.Domains, entry)
	return nil
}

// EditDomain replaces the entry for oldDomain in place, keeping its position.
func (s *Settings) EditDomain(projectName, oldDomain, newDomain, label string) error {
	entry, err := NewDomainEntry(newDomain, label)
	if err != nil {
		return err
	}
	p, err := s.FindProject(projectName)
	if err != nil {
		return err
	}
	idx := p.domainIndex(oldDomain)
	if idx < 0 {
		return ErrDomainNotFound
	}
	if entry.Domain != oldDomain && p.HasDomain(entry.Domain) {
		return ErrDomainExists
	}
	p.Domains[idx] = entry
	return nil
}

// RemoveDomain deletes a domain entry from the named project.
func (s *Settings) RemoveDomain(projectName, domain string) error {
	p, err := s.FindProject(projectName)
	if err != nil {
		return err
	}
	idx := p.domainIndex(domain)
	if idx < 0 {
		return ErrDomainNotFound
	}
	p.Domains = append(p.Domains[:idx], p.Domains[idx+1:]...)
	return nil
}

// =============================================================================
// Tool Editing
// =============================================================================

// AddTool appends a shortcut link to the named project. A tool with the same
// URL is replaced.
func (s *Settings) AddTool(projectName, url, label string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return ErrEmptyToolURL
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = url
	}
	p, err := s.FindProject(projectName)
	if err != nil {
		return err
	}
	tool := Tool{URL: url, Label: label}
	if _, idx, ok := lo.FindIndexOf(p.Tools, func(t Tool) bool { return t.URL == url }); ok {
		p.Tools[idx] = tool
		return nil
	}
	p.Tools = append(p.Tools, tool)
	return nil
}

// RemoveTool deletes the tool with the given URL.
func (s *Settings) RemoveTool(projectName, url string) error {
	p, err := s.FindProject(projectName)
	if err != nil {
		return err
	}
	before := len(p.Tools)
	p.Tools = lo.Reject(p.Tools, func(t Tool, _ int) bool { return t.URL == url })
	if len(p.Tools) == before {
		return ErrToolNotFound
	}
	return nil
}
