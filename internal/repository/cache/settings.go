package cache

import (
	"database/sql"
	"fmt"
)

// Settings keys used by other components. Each is one record.
const (
	SettingEncryptOptIn = "encryption.opt_in"
	SettingClientID     = "identity.client_id"
)

// GetSetting reads a settings record. The second return is false when
// the key has never been written.
func (s *Store) GetSetting(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read setting %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) PutSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("write setting %q: %w", key, err)
	}
	return nil
}

func (s *Store) DeleteSetting(key string) error {
	if _, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete setting %q: %w", key, err)
	}
	return nil
}

// EncryptionOptIn reads the user's encryption preference, defaulting to
// enabled when the record is absent.
func (s *Store) EncryptionOptIn() (bool, error) {
	value, ok, err := s.GetSetting(SettingEncryptOptIn)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return value == "true", nil
}

func (s *Store) SetEncryptionOptIn(enabled bool) error {
	value := "false"
	if enabled {
		value = "true"
	}
	return s.PutSetting(SettingEncryptOptIn, value)
}
