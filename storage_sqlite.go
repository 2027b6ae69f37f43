package pkstore

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// BLOB keys compare with memcmp, which is the order Storage requires.
const sqliteSchema = `CREATE TABLE IF NOT EXISTS entries (
	k BLOB NOT NULL PRIMARY KEY,
	v BLOB NOT NULL
) WITHOUT ROWID`

type sqliteStorage struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a SQLite database at path. Use
// ":memory:" for a transient database.
func OpenSQLite(path string) (Storage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}
	// SQLite only supports one writer at a time; a single connection also
	// keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, stmt := range append(pragmas, sqliteSchema) {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: failed to execute %q: %w", stmt, err)
		}
	}
	return &sqliteStorage{db: db}, nil
}

func (s *sqliteStorage) Get(key []byte) ([]byte, error) {
	var v []byte
	err := s.db.QueryRow(`SELECT v FROM entries WHERE k = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *sqliteStorage) Put(key, value []byte) error {
	_, err := s.db.Exec(`INSERT INTO entries (k, v) VALUES (?, ?) ON CONFLICT (k) DO UPDATE SET v = excluded.v`, key, value)
	return err
}

func (s *sqliteStorage) Delete(key []byte) error {
	_, err := s.db.Exec(`DELETE FROM entries WHERE k = ?`, key)
	return err
}

func (s *sqliteStorage) Scan(after []byte, limit int, fn func(k, v []byte) error) error {
	var rows *sql.Rows
	var err error
	if after == nil {
		rows, err = s.db.Query(`SELECT k, v FROM entries ORDER BY k LIMIT ?`, limit)
	} else {
		rows, err = s.db.Query(`SELECT k, v FROM entries WHERE k > ? ORDER BY k LIMIT ?`, after, limit)
	}
	if err != nil {
		return err
	}

	// Drain the page first: with a single connection, fn could not read the
	// database while rows are open.
	var page []memKV
	for rows.Next() {
		var kv memKV
		if err := rows.Scan(&kv.key, &kv.value); err != nil {
			rows.Close()
			return err
		}
		page = append(page, kv)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, kv := range page {
		if err := fn(kv.key, kv.value); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStorage) Close() error {
	return s.db.Close()
}
