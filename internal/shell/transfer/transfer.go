// Package transfer moves settings in and out of files.
//
// Exports are plain settings objects keyed exactly like the browser
// extension's storage, so a JSON export can be pasted into
// chrome.storage.sync.set and a chrome.storage.sync.get(null) dump can be
// imported directly.
package transfer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/artpar/envswitch/internal/core/domain"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Errors
// =============================================================================

var (
	ErrUnknownFormat = errors.New("unknown format (expected yaml or json)")
	ErrNotAnObject   = errors.New("settings document must be an object")
	ErrNoSettings    = errors.New("document contains no known settings")
)

// =============================================================================
// Format
// =============================================================================

// Format is a settings file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name. "yml" is accepted as YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// FormatFromPath guesses the format from a file extension, defaulting to
// JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// =============================================================================
// Export
// =============================================================================

// Export writes every setting to w.
func Export(w io.Writer, s domain.Settings, f Format) error {
	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

// =============================================================================
// Import
// =============================================================================

// Imported is a decoded settings document.
type Imported struct {
	// Settings holds the defaults overlaid with every key in the document.
	Settings domain.Settings
	// Keys lists the settings present in the document, in canonical order.
	Keys []domain.SettingKey
	// Ignored lists top-level keys that are not settings, sorted.
	Ignored []string
}

// Decode reads a settings document. Unknown top-level keys (such as the
// extension's old "detectors" entry) are reported in Ignored and otherwise
// skipped. A document without any known key is rejected.
func Decode(data []byte, f Format) (*Imported, error) {
	var (
		doc []byte
		err error
	)
	switch f {
	case FormatJSON:
		doc = data
	case FormatYAML:
		doc, err = yamlToJSON(data)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}

	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrNotAnObject)
	}
	root := gjson.ParseBytes(doc)
	if !root.IsObject() {
		return nil, ErrNotAnObject
	}

	out := &Imported{
		Settings: domain.DefaultSettings(),
		Keys:     []domain.SettingKey{},
		Ignored:  []string{},
	}

	for _, key := range domain.SettingKeys() {
		value := root.Get(gjson.Escape(string(key)))
		if !value.Exists() || value.Type == gjson.Null {
			continue
		}
		if err := out.Settings.Apply(key, []byte(value.Raw)); err != nil {
			return nil, err
		}
		out.Keys = append(out.Keys, key)
	}

	root.ForEach(func(k, _ gjson.Result) bool {
		if _, err := domain.ParseSettingKey(k.String()); err != nil {
			out.Ignored = append(out.Ignored, k.String())
		}
		return true
	})
	sort.Strings(out.Ignored)

	if len(out.Keys) == 0 {
		return nil, ErrNoSettings
	}
	return out, nil
}

// ApplyTo copies the imported keys onto s, leaving other settings as they
// are.
func (im *Imported) ApplyTo(s *domain.Settings) error {
	for _, key := range im.Keys {
		v, err := im.Settings.Value(key)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		if err := s.Apply(key, raw); err != nil {
			return err
		}
	}
	return nil
}

// yamlToJSON converts a YAML document to JSON so both formats share one
// decoder.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, ErrNotAnObject
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, fmt.Errorf("convert yaml: %w", err)
	}
	return buf.Bytes(), nil
}
