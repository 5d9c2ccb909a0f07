// Package domain contains the core settings types and editing logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// =============================================================================
// Errors
// =============================================================================

var (
	ErrInvalidDomainEntry = errors.New("domain entry must be a string or an object with a domain")
	ErrUnknownSettingKey  = errors.New("unknown setting key")
	ErrNotAFlag           = errors.New("setting is not a boolean flag")
)

// =============================================================================
// Domain Entry
// =============================================================================

// EntryKind distinguishes the two stored shapes of a domain entry.
type EntryKind uint8

const (
	// EntryBare is stored as a plain string.
	EntryBare EntryKind = iota
	// EntryLabeled is stored as {"domain": ..., "label": ...}.
	EntryLabeled
)

// DomainEntry is one environment of a project: a hostname or hostname
// wildcard pattern, optionally with a display label.
type DomainEntry struct {
	Kind   EntryKind
	Domain string
	Label  string
}

// Bare returns an unlabeled entry.
func Bare(domain string) DomainEntry {
	return DomainEntry{Kind: EntryBare, Domain: domain}
}

// Labeled returns an entry with a display label.
func Labeled(domain, label string) DomainEntry {
	return DomainEntry{Kind: EntryLabeled, Domain: domain, Label: label}
}

// Value returns the hostname or pattern of the entry.
func (e DomainEntry) Value() string {
	return e.Domain
}

// IsBare reports whether the entry is stored as a plain string.
func (e DomainEntry) IsBare() bool {
	return e.Kind == EntryBare
}

// DisplayLabel returns the label, defaulting to the domain itself.
func (e DomainEntry) DisplayLabel() string {
	if e.Kind == EntryLabeled && e.Label != "" {
		return e.Label
	}
	return e.Domain
}

// MarshalJSON writes bare entries as strings and labeled entries as objects.
func (e DomainEntry) MarshalJSON() ([]byte, error) {
	if e.Kind == EntryBare {
		return json.Marshal(e.Domain)
	}
	return json.Marshal(labeledEntry{Domain: e.Domain, Label: e.Label})
}

// UnmarshalJSON accepts both the string and the object form.
func (e *DomainEntry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*e = Bare(s)
		return nil
	}

	var obj labeledEntry
	if err := json.Unmarshal(data, &obj); err != nil || obj.Domain == "" {
		return fmt.Errorf("%w: %s", ErrInvalidDomainEntry, string(data))
	}
	*e = Labeled(obj.Domain, obj.Label)
	return nil
}

// MarshalYAML mirrors MarshalJSON for exported settings files.
func (e DomainEntry) MarshalYAML() (interface{}, error) {
	if e.Kind == EntryBare {
		return e.Domain, nil
	}
	return labeledEntry{Domain: e.Domain, Label: e.Label}, nil
}

type labeledEntry struct {
	Domain string `json:"domain" yaml:"domain"`
	Label  string `json:"label" yaml:"label"`
}

// =============================================================================
// Project
// =============================================================================

// Tool is a shortcut link shown next to a project's environments.
type Tool struct {
	URL   string `json:"url" yaml:"url"`
	Label string `json:"label" yaml:"label"`
}

// Project is a named group of domains representing the deployment
// environments of one application. Name is the project's identity.
type Project struct {
	Name            string        `json:"name" yaml:"name"`
	Domains         []DomainEntry `json:"domains" yaml:"domains"`
	FloatingEnabled bool          `json:"floatingEnabled" yaml:"floatingEnabled"`
	Tools           []Tool        `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// HasDomain reports whether value is one of the project's domain entries,
// compared exactly (patterns are not expanded).
func (p Project) HasDomain(value string) bool {
	return p.domainIndex(value) >= 0
}

func (p Project) domainIndex(value string) int {
	for i, d := range p.Domains {
		if d.Domain == value {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the project.
func (p Project) Clone() Project {
	c := p
	if p.Domains != nil {
		c.Domains = append(make([]DomainEntry, 0, len(p.Domains)), p.Domains...)
	}
	if p.Tools != nil {
		c.Tools = append(make([]Tool, 0, len(p.Tools)), p.Tools...)
	}
	return c
}

// =============================================================================
// Settings
// =============================================================================

// SettingKey is the persisted key of a top-level setting. The literal values
// are shared with the browser extension's storage and must not change.
type SettingKey string

const (
	KeyProjects       SettingKey = "projects"
	KeyProtocolRules  SettingKey = "protocolRules"
	KeyShowProtocol   SettingKey = "showProtocol"
	KeyAutoCollapse   SettingKey = "autoCollapse"
	KeyAutoRedirect   SettingKey = "autoRedirect"
	KeyNewWindow      SettingKey = "newWindow"
	KeyIncognitoMode  SettingKey = "incognitoMode"
	KeyCollapsedState SettingKey = "collapsedState"
)

// SettingKeys returns every persisted key in canonical order.
func SettingKeys() []SettingKey {
	return []SettingKey{
		KeyProjects,
		KeyProtocolRules,
		KeyShowProtocol,
		KeyAutoCollapse,
		KeyAutoRedirect,
		KeyNewWindow,
		KeyIncognitoMode,
		KeyCollapsedState,
	}
}

// FlagKeys returns the keys holding boolean flags.
func FlagKeys() []SettingKey {
	return SettingKeys()[2:]
}

// ParseSettingKey validates a key name.
func ParseSettingKey(s string) (SettingKey, error) {
	for _, k := range SettingKeys() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSettingKey, s)
}

// IsFlag reports whether the key holds a boolean.
func (k SettingKey) IsFlag() bool {
	return k != KeyProjects && k != KeyProtocolRules
}

// Settings is the root persisted object.
type Settings struct {
	Projects       []Project `json:"projects" yaml:"projects"`
	ProtocolRules  []string  `json:"protocolRules" yaml:"protocolRules"`
	ShowProtocol   bool      `json:"showProtocol" yaml:"showProtocol"`
	AutoCollapse   bool      `json:"autoCollapse" yaml:"autoCollapse"`
	AutoRedirect   bool      `json:"autoRedirect" yaml:"autoRedirect"`
	NewWindow      bool      `json:"newWindow" yaml:"newWindow"`
	IncognitoMode  bool      `json:"incognitoMode" yaml:"incognitoMode"`
	CollapsedState bool      `json:"collapsedState" yaml:"collapsedState"`
}

// DefaultSettings returns the settings written on first run.
func DefaultSettings() Settings {
	return Settings{
		Projects: []Project{
			{
				Name: "Example Project",
				Domains: []DomainEntry{
					Labeled("dev.example.com", "Development"),
					Labeled("stage.example.com", "Staging"),
					Labeled("www.example.com", "Production"),
				},
				FloatingEnabled: false,
			},
		},
		ProtocolRules: []string{
			"*.dev.example.com|https",
			"*.stage.example.com|https",
		},
		ShowProtocol:   true,
		AutoCollapse:   true,
		AutoRedirect:   true,
		NewWindow:      false,
		IncognitoMode:  false,
		CollapsedState: true,
	}
}

// Clone returns a deep copy of the settings.
func (s Settings) Clone() Settings {
	c := s
	if s.Projects != nil {
		c.Projects = make([]Project, len(s.Projects))
		for i, p := range s.Projects {
			c.Projects[i] = p.Clone()
		}
	}
	if s.ProtocolRules != nil {
		c.ProtocolRules = append(make([]string, 0, len(s.ProtocolRules)), s.ProtocolRules...)
	}
	return c
}

// Flag returns the value of a boolean setting.
func (s Settings) Flag(key SettingKey) (bool, error) {
	p, err := s.flagPtr(key)
	if err != nil {
		return false, err
	}
	return *p, nil
}

// SetFlag sets a boolean setting.
func (s *Settings) SetFlag(key SettingKey, value bool) error {
	p, err := s.flagPtr(key)
	if err != nil {
		return err
	}
	*p = value
	return nil
}

func (s *Settings) flagPtr(key SettingKey) (*bool, error) {
	switch key {
	case KeyShowProtocol:
		return &s.ShowProtocol, nil
	case KeyAutoCollapse:
		return &s.AutoCollapse, nil
	case KeyAutoRedirect:
		return &s.AutoRedirect, nil
	case KeyNewWindow:
		return &s.NewWindow, nil
	case KeyIncognitoMode:
		return &s.IncognitoMode, nil
	case KeyCollapsedState:
		return &s.CollapsedState, nil
	case KeyProjects, KeyProtocolRules:
		return nil, fmt.Errorf("%w: %s", ErrNotAFlag, key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSettingKey, string(key))
	}
}

// Value returns the setting stored under key, suitable for persisting.
func (s Settings) Value(key SettingKey) (any, error) {
	switch key {
	case KeyProjects:
		return s.Projects, nil
	case KeyProtocolRules:
		return s.ProtocolRules, nil
	default:
		return s.Flag(key)
	}
}

// Values returns every setting keyed by its persisted name.
func (s Settings) Values() map[SettingKey]any {
	out := make(map[SettingKey]any, len(SettingKeys()))
	for _, k := range SettingKeys() {
		v, _ := s.Value(k)
		out[k] = v
	}
	return out
}

// Apply decodes a persisted JSON value into the setting named by key.
func (s *Settings) Apply(key SettingKey, raw []byte) error {
	switch key {
	case KeyProjects:
		var projects []Project
		if err := json.Unmarshal(raw, &projects); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		s.Projects = projects
		return nil
	case KeyProtocolRules:
		var rules []string
		if err := json.Unmarshal(raw, &rules); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		s.ProtocolRules = rules
		return nil
	default:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		return s.SetFlag(key, v)
	}
}
