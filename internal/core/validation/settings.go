package validation

import (
	"fmt"
	"strings"

	"github.com/artpar/envswitch/internal/core/domain"
)

// =============================================================================
// Types
// =============================================================================

// Severity tells whether a problem blocks a save.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// FieldError describes one problem in a settings value.
type FieldError struct {
	// Field is a JSON-path-like location, e.g. "projects[1].domains[0]"
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateSettings returns every problem found in s, in document order.
// Returns an empty slice when s is clean.
func ValidateSettings(s domain.Settings) []FieldError {
	errs := []FieldError{}
	errs = append(errs, ValidateProjects(s.Projects)...)
	errs = append(errs, ValidateProtocolRules(s.ProtocolRules)...)
	return errs
}

// ValidateProjects checks project names and domain entries. Project names
// are identities, so empty or duplicate names are errors; everything else is
// a warning.
func ValidateProjects(projects []domain.Project) []FieldError {
	errs := []FieldError{}
	seen := make(map[string]int, len(projects))

	for i, p := range projects {
		field := fmt.Sprintf("projects[%d]", i)

		name := strings.TrimSpace(p.Name)
		switch {
		case name == "":
			errs = append(errs, fail(field+".name", "name is required"))
		default:
			if first, dup := seen[name]; dup {
				errs = append(errs, fail(field+".name",
					fmt.Sprintf("duplicate project name %q (also projects[%d])", name, first)))
			} else {
				seen[name] = i
			}
		}

		domains := make(map[string]bool, len(p.Domains))
		for j, d := range p.Domains {
			df := fmt.Sprintf("%s.domains[%d]", field, j)
			v := strings.TrimSpace(d.Value())
			if v == "" {
				errs = append(errs, warn(df, "domain is required"))
				continue
			}
			if v != d.Value() {
				errs = append(errs, warn(df, "domain has surrounding whitespace"))
			}
			if domains[v] {
				errs = append(errs, warn(df, fmt.Sprintf("duplicate domain %q", v)))
			}
			domains[v] = true
		}

		for j, tool := range p.Tools {
			if strings.TrimSpace(tool.URL) == "" {
				errs = append(errs, warn(fmt.Sprintf("%s.tools[%d].url", field, j), "url is required"))
			}
		}
	}
	return errs
}

// ValidateProtocolRules flags rules that GetForcedProtocol would skip.
func ValidateProtocolRules(rules []string) []FieldError {
	errs := []FieldError{}
	for i, raw := range rules {
		if _, ok := domain.ParseProtocolRule(raw); !ok {
			errs = append(errs, warn(fmt.Sprintf("protocolRules[%d]", i),
				fmt.Sprintf("%q is not a valid rule (expected <pattern>|http or <pattern>|https)", raw)))
		}
	}
	return errs
}

// ValidateProjectName checks a name for a new or renamed project.
// Returns the field name and error message if validation fails.
// Returns empty strings if the name is valid.
func ValidateProjectName(name string, existing []string, current string) (field, message string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "name", "name is required"
	}
	for _, n := range existing {
		if n == name && n != current {
			return "name", "a project with this name already exists"
		}
	}
	return "", ""
}

// HasErrors reports whether any problem has error severity.
func HasErrors(errs []FieldError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

func fail(field, msg string) FieldError {
	return FieldError{Field: field, Message: msg, Severity: SeverityError}
}

func warn(field, msg string) FieldError {
	return FieldError{Field: field, Message: msg, Severity: SeverityWarning}
}
