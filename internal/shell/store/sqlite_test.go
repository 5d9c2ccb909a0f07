package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/artpar/envswitch/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func testProjects() []domain.Project {
	return []domain.Project{
		{
			Name: "Shop",
			Domains: []domain.DomainEntry{
				domain.Bare("shop.local"),
				domain.Labeled("shop.example.com", "Production"),
				domain.Bare("*.preview.shop.io"),
			},
			FloatingEnabled: true,
		},
	}
}

// =============================================================================
// Get Tests
// =============================================================================

func TestGet_EmptyStoreReturnsDefaults(t *testing.T) {
	store := setupTestStore(t)

	got, err := store.GetAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), got)
}

func TestGet_OverlaysStoredValues(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, map[domain.SettingKey]any{
		domain.KeyNewWindow:    true,
		domain.KeyShowProtocol: false,
	}))

	got, err := store.GetAll(ctx)
	require.NoError(t, err)

	want := domain.DefaultSettings()
	want.NewWindow = true
	want.ShowProtocol = false
	assert.Equal(t, want, got)
}

func TestGet_OnlyRequestedKeysAreRead(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, map[domain.SettingKey]any{
		domain.KeyNewWindow:     true,
		domain.KeyIncognitoMode: true,
	}))

	got, err := store.Get(ctx, []domain.SettingKey{domain.KeyNewWindow})
	require.NoError(t, err)
	assert.True(t, got.NewWindow)
	assert.False(t, got.IncognitoMode, "unrequested key reads as default")
}

func TestGet_UnknownKey(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Get(context.Background(), []domain.SettingKey{"detectors"})
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestGet_CorruptValue(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.db.Exec(`INSERT INTO settings (key, value, updated_at) VALUES ('newWindow', '"yes"', '2024-01-01T00:00:00Z')`)
	require.NoError(t, err)

	_, err = store.GetAll(ctx)
	assert.ErrorIs(t, err, ErrInvalidData)

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "newWindow", se.Key)
}

func TestGet_IgnoresRowsForUnknownKeys(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.db.Exec(`INSERT INTO settings (key, value, updated_at) VALUES ('detectors', '[]', '2024-01-01T00:00:00Z')`)
	require.NoError(t, err)

	got, err := store.GetAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), got)
}

// =============================================================================
// Set Tests
// =============================================================================

func TestSetProjects_RoundTripsBothEntryShapes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetProjects(ctx, testProjects()))

	got, err := store.Get(ctx, []domain.SettingKey{domain.KeyProjects})
	require.NoError(t, err)
	assert.Equal(t, testProjects(), got.Projects)

	var raw string
	require.NoError(t, store.db.Get(&raw, `SELECT value FROM settings WHERE key = 'projects'`))
	assert.Contains(t, raw, `"shop.local"`)
	assert.Contains(t, raw, `{"domain":"shop.example.com","label":"Production"}`)
}

func TestSet_Overwrites(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, map[domain.SettingKey]any{domain.KeyProtocolRules: []string{"a.io|http"}}))
	require.NoError(t, store.Set(ctx, map[domain.SettingKey]any{domain.KeyProtocolRules: []string{"b.io|https"}}))

	got, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.io|https"}, got.ProtocolRules)
}

func TestSet_EmptyListsStayEmpty(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, map[domain.SettingKey]any{
		domain.KeyProjects:      []domain.Project{},
		domain.KeyProtocolRules: []string{},
	}))

	got, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, got.Projects)
	assert.Empty(t, got.Projects)
	assert.NotNil(t, got.ProtocolRules)
	assert.Empty(t, got.ProtocolRules)
}

func TestSet_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		values  map[domain.SettingKey]any
		wantErr error
	}{
		{
			name:    "unknown key",
			values:  map[domain.SettingKey]any{"detectors": []string{}},
			wantErr: ErrUnknownKey,
		},
		{
			name:    "flag with a string",
			values:  map[domain.SettingKey]any{domain.KeyAutoRedirect: "true"},
			wantErr: ErrInvalidData,
		},
		{
			name:    "rules with a bool",
			values:  map[domain.SettingKey]any{domain.KeyProtocolRules: true},
			wantErr: ErrInvalidData,
		},
		{
			name:    "nil projects",
			values:  map[domain.SettingKey]any{domain.KeyProjects: []domain.Project(nil)},
			wantErr: ErrInvalidData,
		},
		{
			name:    "unserializable",
			values:  map[domain.SettingKey]any{domain.KeyNewWindow: make(chan int)},
			wantErr: ErrInvalidData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			err := store.Set(context.Background(), tt.values)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSet_FailedBatchWritesNothing(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.Set(ctx, map[domain.SettingKey]any{
		domain.KeyShowProtocol: false,
		domain.KeyAutoRedirect: "nope",
	})
	require.Error(t, err)

	got, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.True(t, got.ShowProtocol)
}

// =============================================================================
// Initialize / Reset Tests
// =============================================================================

func TestInitialize_OnlyOnFirstRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	did, err := store.Initialize(ctx)
	require.NoError(t, err)
	assert.True(t, did)

	require.NoError(t, store.Set(ctx, map[domain.SettingKey]any{domain.KeyNewWindow: true}))

	did, err = store.Initialize(ctx)
	require.NoError(t, err)
	assert.False(t, did)

	got, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.True(t, got.NewWindow, "second Initialize must not overwrite")

	var count int
	require.NoError(t, store.db.Get(&count, `SELECT COUNT(*) FROM settings`))
	assert.Equal(t, len(domain.SettingKeys()), count)
}

func TestReset(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetProjects(ctx, testProjects()))
	require.NoError(t, store.Set(ctx, map[domain.SettingKey]any{domain.KeyIncognitoMode: true}))

	require.NoError(t, store.Reset(ctx))

	got, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), got)
}

// =============================================================================
// Transaction Tests
// =============================================================================

func TestWithTx_CommitSuccess(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Store) error {
		s, err := tx.GetAll(ctx)
		if err != nil {
			return err
		}
		if _, err := s.AddProject("Docs"); err != nil {
			return err
		}
		return tx.SetProjects(ctx, s.Projects)
	})
	require.NoError(t, err)

	got, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Example Project", "Docs"}, got.ProjectNames())
}

func TestWithTx_RollbackOnError(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Store) error {
		if err := tx.SetProjects(ctx, testProjects()); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	got, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings().Projects, got.Projects)
}

func TestWithTx_Nested(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Store) error {
		return tx.WithTx(ctx, func(inner Store) error {
			return inner.Set(ctx, map[domain.SettingKey]any{domain.KeyNewWindow: true})
		})
	})
	require.NoError(t, err)

	got, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.True(t, got.NewWindow)
}

func TestWithTx_ContextCancelled(t *testing.T) {
	store := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.WithTx(ctx, func(tx Store) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrTxFailed)
}

// =============================================================================
// Metadata Tests
// =============================================================================

func TestUpdatedAt(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	got, err := store.UpdatedAt(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Set(ctx, map[domain.SettingKey]any{domain.KeyNewWindow: true}))

	got, err = store.UpdatedAt(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[domain.KeyNewWindow].IsZero())
}

// =============================================================================
// File-backed Tests
// =============================================================================

func TestNewSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "envswitch.db")
	ctx := context.Background()

	first, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.SetProjects(ctx, testProjects()))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	got, err := second.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, testProjects(), got.Projects)
}

func TestNewSQLiteStore_BadPath(t *testing.T) {
	_, err := NewSQLiteStore(filepath.Join(t.TempDir(), "missing", "dir", "envswitch.db"))
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestNewSQLiteStore_DSNWithQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "envswitch.db")
	ctx := context.Background()

	s, err := NewSQLiteStore("file:" + path + "?mode=rwc")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.SetProjects(ctx, testProjects()))
	got, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, testProjects(), got.Projects)
}

func TestWithDriverParams(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"plain path", "/tmp/envswitch.db", "/tmp/envswitch.db?" + driverParams},
		{"memory", ":memory:", ":memory:?" + driverParams},
		{"existing query", "file:x.db?mode=rwc", "file:x.db?mode=rwc&" + driverParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, withDriverParams(tt.dsn))
		})
	}
}
