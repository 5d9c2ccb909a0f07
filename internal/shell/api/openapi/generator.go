// Package openapi builds the OpenAPI 3.0 document for the envswitch API.
// Request and response schemas are derived from the Go types registered with
// each route.
package openapi

import (
	"encoding/json"
	"net/http"
	"path"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// =============================================================================
// Generator
// =============================================================================

// Generator produces OpenAPI 3.0 specifications by reflecting on registered routes.
type Generator struct {
	title       string
	version     string
	description string
	servers     []string
	routes      []Route
	overrides   map[reflect.Type]*openapi3.Schema
	mu          sync.RWMutex
	cachedSpec  *openapi3.T
}

// Route describes one API operation for OpenAPI generation.
type Route struct {
	Method      string   // HTTP method, e.g. "GET"
	Path        string   // chi-style path, e.g. "/api/v1/projects/{name}"
	OperationID string   // Unique operation name
	Summary     string   // One-line description
	Tag         string   // Group shown in docs
	Query       []string // Required query parameters
	Request     any      // Request body model, nil for none
	Response    any      // Response body model, nil for 204 No Content
	Status      int      // Success status, defaults to 200 (or 204 without Response)
}

// Option configures the generator.
type Option func(*Generator)

// WithTitle sets the API title.
func WithTitle(title string) Option {
	return func(g *Generator) {
		g.title = title
	}
}

// WithVersion sets the API version.
func WithVersion(version string) Option {
	return func(g *Generator) {
		g.version = version
	}
}

// WithDescription sets the API description.
func WithDescription(description string) Option {
	return func(g *Generator) {
		g.description = description
	}
}

// WithServer adds a server URL.
func WithServer(url string) Option {
	return func(g *Generator) {
		g.servers = append(g.servers, url)
	}
}

// WithSchemaOverride uses schema for model's type instead of reflecting on
// it. Types with custom JSON encodings need one.
func WithSchemaOverride(model any, schema *openapi3.Schema) Option {
	return func(g *Generator) {
		g.overrides[indirect(reflect.TypeOf(model))] = schema
	}
}

// NewGenerator creates a new OpenAPI generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		title:       "envswitch API",
		version:     "1.0.0",
		description: "Switch a browser page between the environments of a project",
		servers:     []string{"http://127.0.0.1:7878"},
		routes:      make([]Route, 0),
		overrides:   make(map[reflect.Type]*openapi3.Schema),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// RegisterRoutes adds routes to the generator for spec generation.
func (g *Generator) RegisterRoutes(routes ...Route) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes = append(g.routes, routes...)
	g.cachedSpec = nil
}

// Generate produces the complete OpenAPI 3.0 specification.
func (g *Generator) Generate() *openapi3.T {
	g.mu.RLock()
	if g.cachedSpec != nil {
		spec := g.cachedSpec
		g.mu.RUnlock()
		return spec
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	// Another caller may have built it while we waited.
	if g.cachedSpec != nil {
		return g.cachedSpec
	}

	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       g.title,
			Version:     g.version,
			Description: g.description,
		},
		Servers: make(openapi3.Servers, 0, len(g.servers)),
		Paths:   openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: make(openapi3.Schemas),
		},
	}

	// Add servers
	for _, url := range g.servers {
		spec.Servers = append(spec.Servers, &openapi3.Server{URL: url})
	}

	// Add common schemas
	g.addCommonSchemas(spec)

	b := &schemaBuilder{
		overrides: g.overrides,
		schemas:   spec.Components.Schemas,
		names:     make(map[reflect.Type]string),
		taken:     make(map[string]reflect.Type),
	}
	for _, route := range g.routes {
		g.addRouteToSpec(spec, b, route)
	}

	g.cachedSpec = spec
	return spec
}

// Handler returns an HTTP handler that serves the OpenAPI specification.
func (g *Generator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spec := g.Generate()

		w.Header().Set("Content-Type", "application/json")

		if err := json.NewEncoder(w).Encode(spec); err != nil {
			http.Error(w, "failed to encode OpenAPI document", http.StatusInternalServerError)
		}
	}
}

// =============================================================================
// Path Generation
// =============================================================================

var pathParamPattern = regexp.MustCompile(`\{([^}/]+)\}`)

// addRouteToSpec adds the operation for a route, creating its path item on
// first use.
func (g *Generator) addRouteToSpec(spec *openapi3.T, b *schemaBuilder, route Route) {
	item := spec.Paths.Value(route.Path)
	if item == nil {
		item = &openapi3.PathItem{}
		for _, m := range pathParamPattern.FindAllStringSubmatch(route.Path, -1) {
			item.Parameters = append(item.Parameters, &openapi3.ParameterRef{
				Value: openapi3.NewPathParameter(m[1]).WithSchema(openapi3.NewStringSchema()),
			})
		}
		spec.Paths.Set(route.Path, item)
	}

	op := &openapi3.Operation{
		OperationID: route.OperationID,
		Summary:     route.Summary,
		Tags:        []string{route.Tag},
	}

	for _, name := range route.Query {
		p := openapi3.NewQueryParameter(name).WithSchema(openapi3.NewStringSchema())
		p.Required = true
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{Value: p})
	}

	if route.Request != nil {
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().
				WithRequired(true).
				WithJSONSchemaRef(b.schemaFor(reflect.TypeOf(route.Request))),
		}
	}

	status := route.Status
	var success *openapi3.Response
	if route.Response == nil {
		if status == 0 {
			status = http.StatusNoContent
		}
		success = openapi3.NewResponse().WithDescription(http.StatusText(status))
	} else {
		if status == 0 {
			status = http.StatusOK
		}
		success = openapi3.NewResponse().
			WithDescription(http.StatusText(status)).
			WithJSONSchemaRef(b.schemaFor(reflect.TypeOf(route.Response)))
	}

	errResponse := openapi3.NewResponse().
		WithDescription("Error").
		WithJSONSchemaRef(&openapi3.SchemaRef{
			Ref:   "#/components/schemas/Error",
			Value: spec.Components.Schemas["Error"].Value,
		})

	op.Responses = openapi3.NewResponses(
		openapi3.WithStatus(status, &openapi3.ResponseRef{Value: success}),
		openapi3.WithName("default", errResponse),
	)

	item.SetOperation(strings.ToUpper(route.Method), op)
}

// =============================================================================
// Schema Generation
// =============================================================================

// addCommonSchemas adds the JSON:API error schema to the document.
func (g *Generator) addCommonSchemas(spec *openapi3.T) {
	spec.Components.Schemas["Error"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"errors": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"array"},
						Items: &openapi3.SchemaRef{
							Value: &openapi3.Schema{
								Type: &openapi3.Types{"object"},
								Properties: openapi3.Schemas{
									"status": &openapi3.SchemaRef{
										Value: &openapi3.Schema{Type: &openapi3.Types{"string"}},
									},
									"title": &openapi3.SchemaRef{
										Value: &openapi3.Schema{Type: &openapi3.Types{"string"}},
									},
									"detail": &openapi3.SchemaRef{
										Value: &openapi3.Schema{Type: &openapi3.Types{"string"}},
									},
									"fields": &openapi3.SchemaRef{
										Value: &openapi3.Schema{
											Type:  &openapi3.Types{"array"},
											Items: &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}
}

// schemaBuilder registers named struct types as components while reflecting.
type schemaBuilder struct {
	overrides map[reflect.Type]*openapi3.Schema
	schemas   openapi3.Schemas
	names     map[reflect.Type]string
	taken     map[string]reflect.Type
}

// schemaFor returns a reference to the component for a named struct type,
// or an inline schema for anything else.
func (b *schemaBuilder) schemaFor(t reflect.Type) *openapi3.SchemaRef {
	t = indirect(t)
	if t.Kind() != reflect.Struct || t.Name() == "" || t == reflect.TypeOf(time.Time{}) {
		return b.goTypeToSchema(t)
	}

	if name, ok := b.names[t]; ok {
		return &openapi3.SchemaRef{Ref: "#/components/schemas/" + name, Value: b.schemas[name].Value}
	}

	name := b.componentName(t)
	schema := &openapi3.Schema{}
	b.names[t] = name
	b.schemas[name] = &openapi3.SchemaRef{Value: schema}

	if override, ok := b.overrides[t]; ok {
		*schema = *override
	} else {
		*schema = *b.extractSchema(t).Value
	}

	return &openapi3.SchemaRef{Ref: "#/components/schemas/" + name, Value: schema}
}

// componentName picks a unique component name, qualifying it with the
// package name when two packages export the same type name.
func (b *schemaBuilder) componentName(t reflect.Type) string {
	name := t.Name()
	if other, ok := b.taken[name]; ok && other != t {
		name = capitalize(path.Base(t.PkgPath())) + name
	}
	b.taken[name] = t
	return name
}

// extractSchema extracts an OpenAPI schema from a Go struct. Anonymous
// embedded structs without a JSON name are flattened into the parent, as
// encoding/json does.
func (b *schemaBuilder) extractSchema(t reflect.Type) *openapi3.SchemaRef {
	schema := &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: make(openapi3.Schemas),
	}
	b.addFields(schema, t)
	return &openapi3.SchemaRef{Value: schema}
}

func (b *schemaBuilder) addFields(schema *openapi3.Schema, t reflect.Type) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		// An empty tag name keeps the Go field name.
		name := ""
		if jsonTag != "" {
			name = strings.Split(jsonTag, ",")[0]
		}

		if field.Anonymous && name == "" && indirect(field.Type).Kind() == reflect.Struct {
			b.addFields(schema, indirect(field.Type))
			continue
		}

		// Skip unexported fields
		if !field.IsExported() {
			continue
		}
		if name == "" {
			name = field.Name
		}

		propSchema := b.goTypeToSchema(field.Type)
		if propSchema != nil {
			schema.Properties[name] = propSchema
		}
	}
}

// goTypeToSchema converts a Go type to an OpenAPI schema.
func (b *schemaBuilder) goTypeToSchema(t reflect.Type) *openapi3.SchemaRef {
	switch t.Kind() {
	case reflect.String:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}}

	case reflect.Int64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}}

	case reflect.Float32:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}, Format: "float"}}

	case reflect.Float64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}, Format: "double"}}

	case reflect.Bool:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}

	case reflect.Slice, reflect.Array:
		elemSchema := b.schemaFor(t.Elem())
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: elemSchema,
			},
		}

	case reflect.Map:
		valueSchema := b.schemaFor(t.Elem())
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:                 &openapi3.Types{"object"},
				AdditionalProperties: openapi3.AdditionalProperties{Schema: valueSchema},
			},
		}

	case reflect.Ptr:
		schema := b.schemaFor(t.Elem())
		if schema.Ref == "" && schema.Value != nil {
			schema.Value.Nullable = true
		}
		return schema

	case reflect.Struct:
		// time.Time marshals as an RFC 3339 string.
		if t == reflect.TypeOf(time.Time{}) {
			return &openapi3.SchemaRef{
				Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"},
			}
		}
		if t.Name() != "" {
			return b.schemaFor(t)
		}
		return b.extractSchema(t)

	default:
		// Channels, funcs and interfaces.
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
	}
}

// =============================================================================
// Helpers
// =============================================================================

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// capitalize returns the string with the first letter capitalized.
func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
