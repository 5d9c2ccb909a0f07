package api

import (
	"github.com/artpar/envswitch/internal/core/domain"
	"github.com/artpar/envswitch/internal/shell/api/openapi"
	"github.com/artpar/envswitch/internal/shell/switcher"
	"github.com/getkin/kin-openapi/openapi3"
)

// domainEntrySchema describes DomainEntry's two JSON shapes: a bare string
// or an object with a display label.
func domainEntrySchema() *openapi3.Schema {
	labeled := &openapi3.Schema{
		Type: &openapi3.Types{"object"},
		Properties: openapi3.Schemas{
			"domain": openapi3.NewStringSchema().NewRef(),
			"label":  openapi3.NewStringSchema().NewRef(),
		},
		Required: []string{"domain"},
	}
	return openapi3.NewOneOfSchema(openapi3.NewStringSchema(), labeled)
}

// apiRoutes lists every route Routes mounts under /api/v1, for the OpenAPI
// document.
func apiRoutes() []openapi.Route {
	const (
		tagSwitch   = "Switch"
		tagSettings = "Settings"
		tagProjects = "Projects"
	)
	return []openapi.Route{
		{Method: "GET", Path: "/health", OperationID: "health", Summary: "Health check", Tag: "System", Response: HealthResponse{}},

		// Switcher
		{Method: "GET", Path: "/api/v1/context", OperationID: "getContext", Summary: "Resolve the project and environments for a page", Tag: tagSwitch, Query: []string{"url"}, Response: switcher.View{}},
		{Method: "POST", Path: "/api/v1/switch", OperationID: "switchEnvironment", Summary: "Open the page on another environment", Tag: tagSwitch, Request: SwitchRequest{}, Response: switcher.SwitchResult{}},
		{Method: "POST", Path: "/api/v1/copy", OperationID: "copy", Summary: "Copy a page path or environment URL to the clipboard", Tag: tagSwitch, Request: CopyRequest{}, Response: CopyResponse{}},

		// Settings
		{Method: "GET", Path: "/api/v1/settings", OperationID: "getSettings", Summary: "Get all settings", Tag: tagSettings, Response: domain.Settings{}},
		{Method: "PUT", Path: "/api/v1/settings", OperationID: "replaceSettings", Summary: "Replace all settings", Tag: tagSettings, Request: domain.Settings{}, Response: SettingsResponse{}},
		{Method: "POST", Path: "/api/v1/settings/reset", OperationID: "resetSettings", Summary: "Restore default settings", Tag: tagSettings, Response: domain.Settings{}},
		{Method: "PATCH", Path: "/api/v1/settings/flags/{key}", OperationID: "setFlag", Summary: "Set a boolean setting", Tag: tagSettings, Request: FlagRequest{}, Response: FlagResponse{}},
		{Method: "POST", Path: "/api/v1/settings/collapsed/toggle", OperationID: "toggleCollapsed", Summary: "Flip the overlay's collapsed state", Tag: tagSettings, Response: FlagResponse{}},
		{Method: "GET", Path: "/api/v1/settings/rules", OperationID: "getRules", Summary: "List protocol rules", Tag: tagSettings, Response: RulesResponse{}},
		{Method: "PUT", Path: "/api/v1/settings/rules", OperationID: "setRules", Summary: "Replace protocol rules", Tag: tagSettings, Request: RulesRequest{}, Response: RulesResponse{}},

		// Projects
		{Method: "GET", Path: "/api/v1/projects", OperationID: "listProjects", Summary: "List projects", Tag: tagProjects, Response: ListProjectsResponse{}},
		{Method: "POST", Path: "/api/v1/projects", OperationID: "createProject", Summary: "Create a project", Tag: tagProjects, Request: CreateProjectRequest{}, Response: domain.Project{}, Status: 201},
		{Method: "GET", Path: "/api/v1/projects/{name}", OperationID: "getProject", Summary: "Get a project", Tag: tagProjects, Response: domain.Project{}},
		{Method: "PATCH", Path: "/api/v1/projects/{name}", OperationID: "updateProject", Summary: "Rename a project or toggle its overlay", Tag: tagProjects, Request: UpdateProjectRequest{}, Response: domain.Project{}},
		{Method: "DELETE", Path: "/api/v1/projects/{name}", OperationID: "deleteProject", Summary: "Delete a project", Tag: tagProjects},
		{Method: "POST", Path: "/api/v1/projects/{name}/domains", OperationID: "addDomain", Summary: "Add a domain to a project", Tag: tagProjects, Request: DomainRequest{}, Response: domain.Project{}},
		{Method: "PUT", Path: "/api/v1/projects/{name}/domains/{domain}", OperationID: "editDomain", Summary: "Edit a domain entry", Tag: tagProjects, Request: DomainRequest{}, Response: domain.Project{}},
		{Method: "DELETE", Path: "/api/v1/projects/{name}/domains/{domain}", OperationID: "removeDomain", Summary: "Remove a domain entry", Tag: tagProjects, Response: domain.Project{}},
		{Method: "POST", Path: "/api/v1/projects/{name}/tools", OperationID: "addTool", Summary: "Add a tool link to a project", Tag: tagProjects, Request: ToolRequest{}, Response: domain.Project{}},
		{Method: "DELETE", Path: "/api/v1/projects/{name}/tools", OperationID: "removeTool", Summary: "Remove a tool link", Tag: tagProjects, Query: []string{"url"}, Response: domain.Project{}},
	}
}

func newSpecGenerator(version string) *openapi.Generator {
	g := openapi.NewGenerator(
		openapi.WithVersion(version),
		openapi.WithSchemaOverride(domain.DomainEntry{}, domainEntrySchema()),
	)
	g.RegisterRoutes(apiRoutes()...)
	return g
}
