package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// SchemaVersion is recorded in the meta table on every open.
const SchemaVersion = "1"

// Meta keys.
const (
	MetaLastReindex = "last_reindex_time"
)

// GetMeta returns a meta value and whether it was set.
func (db *DB) GetMeta(key string) (string, bool, error) {
	var v string
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get meta %s: %w", key, err)
	}
	return v, true, nil
}

// SetMeta upserts a meta value.
func (db *DB) SetMeta(key, value string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.conn.Exec(
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}
