// Package localstore mirrors entity store caches to a durable local
// key-value store backed by sqlite.
package localstore

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/KeviinDCV/NotionK4S/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS mirrors (
	name       TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// SQLiteMirror stores one JSON snapshot per store name.
type SQLiteMirror struct {
	db *sql.DB
}

var _ core.Mirror = (*SQLiteMirror)(nil)

func Open(path string) (*SQLiteMirror, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "opening local mirror")
	}
	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "migrating local mirror")
	}
	return &SQLiteMirror{db: db}, nil
}

func (m *SQLiteMirror) Save(name string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshaling %q snapshot", name)
	}
	_, err = m.db.Exec(
		`INSERT INTO mirrors (name, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		name, string(payload), time.Now().UTC().UnixMilli(),
	)
	return errors.Wrapf(err, "saving %q snapshot", name)
}

func (m *SQLiteMirror) Load(name string, into interface{}) (bool, error) {
	var payload string
	err := m.db.QueryRow(`SELECT payload FROM mirrors WHERE name = ?`, name).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "loading %q snapshot", name)
	}
	if err = json.Unmarshal([]byte(payload), into); err != nil {
		return false, errors.Wrapf(err, "unmarshaling %q snapshot", name)
	}
	return true, nil
}

func (m *SQLiteMirror) Close() error {
	return m.db.Close()
}
