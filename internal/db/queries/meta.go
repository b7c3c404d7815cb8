package queries

import (
	"database/sql"
	"errors"
)

// GetMeta reads an app_meta value; empty string when unset.
func GetMeta(d *sql.DB, key string) (string, error) {
	var v string
	err := d.QueryRow("SELECT value FROM app_meta WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func SetMeta(d *sql.DB, key, value string) error {
	_, err := d.Exec(`INSERT INTO app_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}
