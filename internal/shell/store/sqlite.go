package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/envswitch/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Rebind(query string) string
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// driverParams makes writers wait for each other and take the write lock when
// a transaction begins, so a read-modify-write in WithTx is not interleaved
// with another process.
const driverParams = "_busy_timeout=5000&_txlock=immediate"

// withDriverParams appends driverParams to dsn, keeping any query parameters
// it already has.
func withDriverParams(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + driverParams
	}
	return dsn + "?" + driverParams
}

// NewSQLiteStore opens the database at dsn and runs migrations.
// ":memory:" gives a private database for tests.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", withDriverParams(dsn))
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "failed to open database", ErrConnectionFailed)
	}

	// Every connection to :memory: is a separate database.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Settings Operations
// =============================================================================

// settingRow represents a row of the settings table.
type settingRow struct {
	Key       string `db:"key"`
	Value     string `db:"value"`
	UpdatedAt string `db:"updated_at"`
}

func (s *SQLiteStore) Get(ctx context.Context, keys []domain.SettingKey) (domain.Settings, error) {
	return getSettings(ctx, s.db, keys)
}

func (s *SQLiteStore) GetAll(ctx context.Context) (domain.Settings, error) {
	return getSettings(ctx, s.db, nil)
}

func (s *SQLiteStore) Set(ctx context.Context, values map[domain.SettingKey]any) error {
	return s.WithTx(ctx, func(tx Store) error {
		return tx.Set(ctx, values)
	})
}

func (s *SQLiteStore) SetProjects(ctx context.Context, projects []domain.Project) error {
	return setSettings(ctx, s.db, map[domain.SettingKey]any{domain.KeyProjects: projects})
}

func (s *SQLiteStore) Initialize(ctx context.Context) (bool, error) {
	var initialized bool
	err := s.WithTx(ctx, func(tx Store) error {
		var err error
		initialized, err = tx.Initialize(ctx)
		return err
	})
	return initialized, err
}

func (s *SQLiteStore) Reset(ctx context.Context) error {
	return s.WithTx(ctx, func(tx Store) error {
		return tx.Reset(ctx)
	})
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) Get(ctx context.Context, keys []domain.SettingKey) (domain.Settings, error) {
	return getSettings(ctx, s.tx, keys)
}

func (s *txSQLiteStore) GetAll(ctx context.Context) (domain.Settings, error) {
	return getSettings(ctx, s.tx, nil)
}

func (s *txSQLiteStore) Set(ctx context.Context, values map[domain.SettingKey]any) error {
	return setSettings(ctx, s.tx, values)
}

func (s *txSQLiteStore) SetProjects(ctx context.Context, projects []domain.Project) error {
	return setSettings(ctx, s.tx, map[domain.SettingKey]any{domain.KeyProjects: projects})
}

func (s *txSQLiteStore) Initialize(ctx context.Context) (bool, error) {
	return initialize(ctx, s.tx)
}

func (s *txSQLiteStore) Reset(ctx context.Context) error {
	return setSettings(ctx, s.tx, domain.DefaultSettings().Values())
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func getSettings(ctx context.Context, exec executor, keys []domain.SettingKey) (domain.Settings, error) {
	settings := domain.DefaultSettings()

	for _, k := range keys {
		if err := checkKey("Get", k); err != nil {
			return domain.Settings{}, err
		}
	}

	query := `SELECT key, value, updated_at FROM settings`
	var args []any
	if len(keys) > 0 {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = string(k)
		}
		q, a, err := sqlx.In(`SELECT key, value, updated_at FROM settings WHERE key IN (?)`, names)
		if err != nil {
			return domain.Settings{}, NewStoreError("Get", "", err.Error(), err)
		}
		query, args = exec.Rebind(q), a
	}

	var rows []settingRow
	if err := exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return domain.Settings{}, NewStoreError("Get", "", err.Error(), err)
	}

	for _, row := range rows {
		key, err := domain.ParseSettingKey(row.Key)
		if err != nil {
			// Rows written by a newer version are left alone.
			continue
		}
		if err := settings.Apply(key, []byte(row.Value)); err != nil {
			return domain.Settings{}, NewStoreError("Get", row.Key, "stored value does not decode", ErrInvalidData)
		}
	}

	return settings, nil
}

func setSettings(ctx context.Context, exec executor, values map[domain.SettingKey]any) error {
	for key := range values {
		if err := checkKey("Set", key); err != nil {
			return err
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)

	// Iterate in canonical order so writes are deterministic.
	for _, key := range domain.SettingKeys() {
		v, ok := values[key]
		if !ok {
			continue
		}
		raw, err := encodeValue(key, v)
		if err != nil {
			return err
		}

		_, err = exec.ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			string(key), string(raw), now)
		if err != nil {
			return NewStoreError("Set", string(key), err.Error(), err)
		}
	}
	return nil
}

// encodeValue serializes v and checks that it decodes as the key's type.
func encodeValue(key domain.SettingKey, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, NewStoreError("Set", string(key), "failed to serialize value", ErrInvalidData)
	}
	var probe domain.Settings
	if err := probe.Apply(key, raw); err != nil {
		return nil, NewStoreError("Set", string(key), err.Error(), ErrInvalidData)
	}
	if key == domain.KeyProjects && probe.Projects == nil {
		return nil, NewStoreError("Set", string(key), "projects must be a list", ErrInvalidData)
	}
	if key == domain.KeyProtocolRules && probe.ProtocolRules == nil {
		return nil, NewStoreError("Set", string(key), "protocolRules must be a list", ErrInvalidData)
	}
	return raw, nil
}

func initialize(ctx context.Context, exec executor) (bool, error) {
	var count int
	if err := exec.GetContext(ctx, &count, `SELECT COUNT(*) FROM settings`); err != nil {
		return false, NewStoreError("Initialize", "", err.Error(), err)
	}
	if count > 0 {
		return false, nil
	}
	if err := setSettings(ctx, exec, domain.DefaultSettings().Values()); err != nil {
		return false, err
	}
	return true, nil
}

func checkKey(op string, key domain.SettingKey) error {
	if _, err := domain.ParseSettingKey(string(key)); err != nil {
		return NewStoreError(op, string(key), "unknown setting key", ErrUnknownKey)
	}
	return nil
}

// =============================================================================
// Metadata
// =============================================================================

// UpdatedAt returns when each stored key was last written. Keys that still
// read as their default are absent.
func (s *SQLiteStore) UpdatedAt(ctx context.Context) (map[domain.SettingKey]time.Time, error) {
	var rows []settingRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT key, value, updated_at FROM settings ORDER BY key`); err != nil {
		return nil, NewStoreError("UpdatedAt", "", err.Error(), err)
	}

	out := make(map[domain.SettingKey]time.Time, len(rows))
	for _, row := range rows {
		t, err := time.Parse(time.RFC3339, row.UpdatedAt)
		if err != nil {
			return nil, NewStoreError("UpdatedAt", row.Key, "invalid timestamp", ErrInvalidData)
		}
		out[domain.SettingKey(row.Key)] = t
	}
	return out, nil
}
