package store

import (
	"context"

	"github.com/artpar/envswitch/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store persists settings one top-level key at a time.
//
// Reads overlay stored values on domain.DefaultSettings, so a key that was
// never written reads as its default. Writes replace the whole value of a
// key; there is no partial update of the projects list.
type Store interface {
	// Get returns the defaults overlaid with the stored values of keys.
	// An empty keys reads every key.
	Get(ctx context.Context, keys []domain.SettingKey) (domain.Settings, error)
	GetAll(ctx context.Context) (domain.Settings, error)

	// Set writes each value under its key. Values must have the type the
	// key holds in domain.Settings ([]Project, []string or bool).
	Set(ctx context.Context, values map[domain.SettingKey]any) error
	SetProjects(ctx context.Context, projects []domain.Project) error

	// Initialize writes the defaults when nothing is stored yet and reports
	// whether it did.
	Initialize(ctx context.Context) (bool, error)

	// Reset overwrites every key with its default.
	Reset(ctx context.Context) error

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}
