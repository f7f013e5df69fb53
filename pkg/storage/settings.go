package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// GetSettings loads settings for the provided keys.
func (s *Store) GetSettings(ctx context.Context, keys []string) (map[string]string, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	result := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	query := "SELECT key, value FROM settings WHERE key IN (?" + strings.Repeat(",?", len(keys)-1) + ")"
	args := make([]any, len(keys))
	for i, key := range keys {
		args[i] = key
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		result[key] = value
	}
	return result, rows.Err()
}

// SetSetting upserts a setting value. Empty value deletes the row. A busy
// database is retried briefly.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	value = strings.TrimSpace(value)

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if value == "" {
			_, err = s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
		} else {
			_, err = s.db.ExecContext(ctx, `
				INSERT INTO settings (key, value, updated_at)
				VALUES (?, ?, CURRENT_TIMESTAMP)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
			`, key, value)
		}
		if !isBusyError(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 50 * time.Millisecond):
		}
	}
	return err
}

// LastSessionKey holds the most recent URL and device selection.
const LastSessionKey = "last-session"

// Selection is the operator's last launcher input.
type Selection struct {
	URL     string   `json:"url"`
	Devices []string `json:"devices"`
}

// ErrNotFound is returned when a stored value is absent.
var ErrNotFound = errors.New("storage: not found")

// LastSelection returns the stored launcher selection.
func (s *Store) LastSelection(ctx context.Context) (Selection, error) {
	values, err := s.GetSettings(ctx, []string{LastSessionKey})
	if err != nil {
		return Selection{}, err
	}
	raw, ok := values[LastSessionKey]
	if !ok {
		return Selection{}, ErrNotFound
	}
	var sel Selection
	if err := json.Unmarshal([]byte(raw), &sel); err != nil {
		return Selection{}, fmt.Errorf("decode %s: %w", LastSessionKey, err)
	}
	return sel, nil
}

// SaveSelection stores the launcher selection.
func (s *Store) SaveSelection(ctx context.Context, sel Selection) error {
	data, err := json.Marshal(sel)
	if err != nil {
		return err
	}
	return s.SetSetting(ctx, LastSessionKey, string(data))
}
