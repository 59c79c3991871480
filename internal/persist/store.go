package persist

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"
)

const (
	keyPreferences   = "preferences"
	keyLastSelection = "last_selection"
)

// Preferences are the persisted user settings.
type Preferences struct {
	RememberSelection   bool     `json:"remember_selection"`
	AutoCollapse        bool     `json:"auto_collapse"`
	DefaultEnvironments []string `json:"default_environments,omitempty"`
	DefaultDataTypes    []string `json:"default_data_types,omitempty"`
}

// DefaultPreferences returns the preferences used when none are stored.
func DefaultPreferences() Preferences {
	return Preferences{RememberSelection: true}
}

// LocalStore is the sqlite-backed session store, the server-side stand-in
// for browser local storage. All reads and writes are best effort: failures
// are logged by callers and never fatal.
type LocalStore struct {
	sql    *sql.DB
	logger *slog.Logger

	mu    sync.Mutex
	prefs Preferences
}

// OpenLocalStore opens (and if needed bootstraps) the session store at path.
func OpenLocalStore(path string, logger *slog.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS session_state (
  key        TEXT PRIMARY KEY,
  value      TEXT NOT NULL,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
	`); err != nil {
		db.Close()
		return nil, err
	}

	s := &LocalStore{sql: db, logger: logger, prefs: DefaultPreferences()}
	if prefs, err := s.readPreferences(); err == nil {
		s.prefs = prefs
	} else if !errors.Is(err, sql.ErrNoRows) {
		logger.Warn("reading stored preferences failed, using defaults", "err", err)
	}
	return s, nil
}

func (s *LocalStore) Close() error {
	if s == nil || s.sql == nil {
		return nil
	}
	return s.sql.Close()
}

// Preferences returns the current user preferences.
func (s *LocalStore) Preferences() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// SavePreferences stores prefs and makes them current.
func (s *LocalStore) SavePreferences(prefs Preferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	if err := s.put(keyPreferences, string(raw)); err != nil {
		return err
	}
	s.mu.Lock()
	s.prefs = prefs
	s.mu.Unlock()
	return nil
}

// SaveSelection stores the selected environment list when the
// remember-selection preference is enabled. Implements state.Persister.
func (s *LocalStore) SaveSelection(ids []string) error {
	if !s.Preferences().RememberSelection {
		return nil
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return s.put(keyLastSelection, string(raw))
}

// LoadSelection returns the last persisted selection, or nil when absent
// or unreadable.
func (s *LocalStore) LoadSelection() []string {
	value, err := s.get(keyLastSelection)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("reading stored selection failed", "err", err)
		}
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(value), &ids); err != nil {
		s.logger.Warn("stored selection is malformed, ignoring", "err", err)
		return nil
	}
	return ids
}

func (s *LocalStore) readPreferences() (Preferences, error) {
	value, err := s.get(keyPreferences)
	if err != nil {
		return Preferences{}, err
	}
	prefs := DefaultPreferences()
	if err := json.Unmarshal([]byte(value), &prefs); err != nil {
		return Preferences{}, err
	}
	return prefs, nil
}

func (s *LocalStore) put(key, value string) error {
	_, err := s.sql.Exec(`
INSERT INTO session_state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

func (s *LocalStore) get(key string) (string, error) {
	var value string
	err := s.sql.QueryRow(`SELECT value FROM session_state WHERE key = ?`, key).Scan(&value)
	return value, err
}
