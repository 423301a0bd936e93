package index

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nbed-digital/continuum/api"
	_ "modernc.org/sqlite"
)

// The SQLite artifact format: one row per index entry (JSON blob keyed by
// ordinal), the count map as a single JSON blob, and a meta table carrying
// the continuum version. Written once at build time, opened read-only.

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	ord INTEGER PRIMARY KEY,
	id TEXT UNIQUE NOT NULL,
	record JSON NOT NULL
);
CREATE TABLE IF NOT EXISTS counts (
	record JSON NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// WriteSQLite persists the artifacts to a SQLite file, replacing any
// previous contents. The whole write happens in one transaction.
func WriteSQLite(dbPath string, entries []api.IndexEntry, counts *api.CountMap) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	// Bulk-write tuning; the artifact is rebuilt from scratch on every build.
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		return err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin artifact write: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op if committed

	for _, table := range []string{"entries", "counts", "meta"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	stmt, err := tx.Prepare("INSERT INTO entries (ord, id, record) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare entry insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, e := range entries {
		blob, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal entry %s: %w", e.ID, err)
		}
		if _, err := stmt.Exec(i, e.ID, blob); err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ID, err)
		}
	}

	if counts == nil {
		counts = api.NewCountMap()
	}
	countBlob, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("marshal count map: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO counts (record) VALUES (?)", countBlob); err != nil {
		return fmt.Errorf("insert count map: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO meta (key, value) VALUES ('continuum_version', ?)", counts.Version); err != nil {
		return fmt.Errorf("insert version: %w", err)
	}

	return tx.Commit()
}

// OpenSQLite loads the artifacts from a SQLite file into a MemoryStore.
// The source file is opened read-only and closed before returning.
func OpenSQLite(dbPath string) (*MemoryStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.Query("SELECT record FROM entries ORDER BY ord")
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []api.IndexEntry
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		var e api.IndexEntry
		if err := json.Unmarshal(blob, &e); err != nil {
			return nil, fmt.Errorf("unmarshal entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}

	counts := api.NewCountMap()
	var countBlob []byte
	err = db.QueryRow("SELECT record FROM counts").Scan(&countBlob)
	switch {
	case err == sql.ErrNoRows:
		// Artifact predates the counts table; serve an empty map.
	case err != nil:
		return nil, fmt.Errorf("query count map: %w", err)
	default:
		if err := json.Unmarshal(countBlob, counts); err != nil {
			return nil, fmt.Errorf("unmarshal count map: %w", err)
		}
	}

	return NewMemoryStoreWith(entries, counts), nil
}
