package api

import (
	"github.com/artpar/envswitch/internal/core/domain"
	"github.com/artpar/envswitch/internal/core/validation"
)

// =============================================================================
// Request Types
// =============================================================================

// SwitchRequest is the request body for switching environments.
type SwitchRequest struct {
	URL      string `json:"url"`
	Domain   string `json:"domain"`
	Protocol string `json:"protocol,omitempty"`
	DryRun   bool   `json:"dry_run,omitempty"`
}

// CopyRequest is the request body for the copy action.
// What is "path" or "url"; Domain and Protocol only apply to "url".
type CopyRequest struct {
	URL      string `json:"url"`
	What     string `json:"what"`
	Domain   string `json:"domain,omitempty"`
	Protocol string `json:"protocol,omitempty"`
}

// FlagRequest is the request body for setting a boolean setting.
type FlagRequest struct {
	Value *bool `json:"value"`
}

// RulesRequest replaces the protocol rules. Either Rules or Text (one rule
// per line, as typed in an options page) may be given.
type RulesRequest struct {
	Rules []string `json:"rules,omitempty"`
	Text  *string  `json:"text,omitempty"`
}

// CreateProjectRequest is the request body for creating a project.
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// UpdateProjectRequest is the request body for renaming a project or
// toggling its floating overlay. Omitted fields are left unchanged.
type UpdateProjectRequest struct {
	Name            *string `json:"name,omitempty"`
	FloatingEnabled *bool   `json:"floatingEnabled,omitempty"`
}

// DomainRequest is the request body for adding or editing a domain entry.
// An empty label stores the entry as a bare string.
type DomainRequest struct {
	Domain string `json:"domain"`
	Label  string `json:"label,omitempty"`
}

// ToolRequest is the request body for adding a tool link.
type ToolRequest struct {
	URL   string `json:"url"`
	Label string `json:"label,omitempty"`
}

// =============================================================================
// Response Types
// =============================================================================

// CopyResponse is the response for the copy action.
type CopyResponse struct {
	Copied string `json:"copied"`
}

// SettingsResponse is the response for settings writes.
type SettingsResponse struct {
	Settings domain.Settings         `json:"settings"`
	Warnings []validation.FieldError `json:"warnings"`
}

// FlagResponse is the response for a flag write.
type FlagResponse struct {
	Key   domain.SettingKey `json:"key"`
	Value bool              `json:"value"`
}

// ListProjectsResponse is the response for listing projects.
type ListProjectsResponse struct {
	Projects []domain.Project `json:"projects"`
	Total    int              `json:"total"`
}

// RulesResponse lists protocol rules and flags the malformed ones. Text
// holds the same rules one per line, for a textarea.
type RulesResponse struct {
	Rules    []string                `json:"rules"`
	Text     string                  `json:"text"`
	Warnings []validation.FieldError `json:"warnings"`
}

// APIError represents a JSON:API error object.
type APIError struct {
	Status string                  `json:"status"`
	Title  string                  `json:"title"`
	Detail string                  `json:"detail,omitempty"`
	Fields []validation.FieldError `json:"fields,omitempty"`
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Errors []APIError `json:"errors"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}
