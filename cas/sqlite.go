package cas

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dgryski/go-farm"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS objects (
	hash INTEGER PRIMARY KEY,
	data BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS names (
	name TEXT PRIMARY KEY,
	hash INTEGER NOT NULL REFERENCES objects(hash)
);
`

// SQLiteCAS persists objects in a SQLite database file.
type SQLiteCAS struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path and applies the schema.
// It is safe to call on an existing database.
func OpenSQLite(path string) (*SQLiteCAS, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteCAS{db: db}, nil
}

func (s *SQLiteCAS) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteCAS) Put(item Hashable) (Hash, error) {
	data, err := encode(item)
	if err != nil {
		return 0, err
	}
	h := Hash(farm.Hash64(data))
	_, err = s.db.Exec(`INSERT OR IGNORE INTO objects (hash, data) VALUES (?, ?)`, int64(h), data)
	if err != nil {
		return 0, fmt.Errorf("storing object %s: %w", h, err)
	}
	return h, nil
}

func (s *SQLiteCAS) Has(hash Hash) bool {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM objects WHERE hash = ?`, int64(hash)).Scan(&n)
	return err == nil && n > 0
}

func (s *SQLiteCAS) getValue(h Hash) (bool, []byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM objects WHERE hash = ?`, int64(h)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("reading object %s: %w", h, err)
	}
	return true, data, nil
}

func (s *SQLiteCAS) Bind(name string, hash Hash) error {
	_, err := s.db.Exec(`INSERT INTO names (name, hash) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET hash = excluded.hash`, name, int64(hash))
	if err != nil {
		return fmt.Errorf("binding %q: %w", name, err)
	}
	return nil
}

func (s *SQLiteCAS) Lookup(name string) (Hash, bool, error) {
	var h int64
	err := s.db.QueryRow(`SELECT hash FROM names WHERE name = ?`, name).Scan(&h)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("looking up %q: %w", name, err)
	}
	return Hash(uint64(h)), true, nil
}
