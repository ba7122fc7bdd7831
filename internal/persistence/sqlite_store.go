package persistence

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/live-sub-translator/internal/settings"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore persists flat key/value settings per profile. Values are stored
// as JSON exactly as the settings reducer accepts them.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// ListSettings returns the stored rows of a profile ordered by key. Keys that
// were never written are absent.
func (s *SQLiteStore) ListSettings(ctx context.Context, profile string) ([]SettingRow, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT profile, key, value_json, updated_at
		 FROM settings
		 WHERE profile = ?
		 ORDER BY key ASC`,
		normalizeProfile(profile),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]SettingRow, 0)
	for rows.Next() {
		var (
			row   SettingRow
			value string
		)
		if err := rows.Scan(&row.Profile, &row.Key, &value, &row.UpdatedAt); err != nil {
			return nil, err
		}
		row.Value = json.RawMessage(value)
		ret = append(ret, row)
	}
	return ret, rows.Err()
}

// LoadSettings returns the profile's settings layered over the defaults.
func (s *SQLiteStore) LoadSettings(ctx context.Context, profile string) (settings.Settings, error) {
	rows, err := s.ListSettings(ctx, profile)
	if err != nil {
		return settings.Default(), fmt.Errorf("load settings: %w", err)
	}
	values := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}
	loaded, err := settings.FromValues(values)
	if err != nil {
		return settings.Default(), fmt.Errorf("load settings for %s: %w", normalizeProfile(profile), err)
	}
	return loaded, nil
}

// PutSetting validates and stores a single key and returns the resulting
// settings. Nothing is written when the value is rejected.
func (s *SQLiteStore) PutSetting(ctx context.Context, profile string, key string, value json.RawMessage) (settings.Settings, error) {
	current, err := s.LoadSettings(ctx, profile)
	if err != nil {
		return current, err
	}
	next, err := settings.ApplyChange(current, key, value)
	if err != nil {
		return current, err
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, value); err != nil {
		return current, fmt.Errorf("compact %s: %w", key, err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO settings (profile, key, value_json, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(profile, key) DO UPDATE SET
			value_json=excluded.value_json,
			updated_at=excluded.updated_at`,
		normalizeProfile(profile),
		key,
		compact.String(),
		time.Now().UTC(),
	)
	if err != nil {
		return current, fmt.Errorf("store %s: %w", key, err)
	}
	return next, nil
}

// ResetSettings drops every stored key of a profile so it falls back to the
// defaults.
func (s *SQLiteStore) ResetSettings(ctx context.Context, profile string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE profile = ?`, normalizeProfile(profile))
	return err
}

func (s *SQLiteStore) ListProfiles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT profile FROM settings ORDER BY profile ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]string, 0)
	for rows.Next() {
		var profile string
		if err := rows.Scan(&profile); err != nil {
			return nil, err
		}
		ret = append(ret, profile)
	}
	return ret, rows.Err()
}

func normalizeProfile(profile string) string {
	if p := strings.TrimSpace(profile); p != "" {
		return p
	}
	return DefaultProfile
}
