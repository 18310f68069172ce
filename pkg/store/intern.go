package store

import (
	"database/sql"
	"fmt"
)

// internerTables lists every table eligible for idFor, so callers can't
// typo a table name that skips the uniqueness constraint entirely.
var internerTables = map[string]bool{
	"streams": true, "descs": true, "exception_types": true,
	"exception_subtypes": true, "classifications": true,
	"hash_strings": true, "result_strings": true, "functions": true,
}

// idFor is the get-or-insert helper every interning table shares:
// INSERT ... ON CONFLICT DO NOTHING, then SELECT, so concurrent callers
// racing to intern the same string converge on one id without either
// side observing a unique-constraint error.
func idFor(q querier, table, value string) (int64, error) {
	if !internerTables[table] {
		return 0, fmt.Errorf("store: %q is not an interning table", table)
	}
	if _, err := q.Exec(
		fmt.Sprintf(`INSERT INTO %s (value) VALUES (?) ON CONFLICT (value) DO NOTHING`, table),
		value,
	); err != nil {
		return 0, fmt.Errorf("store: intern into %s: %w", table, err)
	}
	var id int64
	err := q.QueryRow(
		fmt.Sprintf(`SELECT id FROM %s WHERE value = ?`, table), value,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: lookup interned %s: %w", table, err)
	}
	return id, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx, so idFor works
// identically inside and outside a transaction.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// idForModule deduplicates modules by (name, checksum), matching the
// Result Store's module dedup contract, which is not a plain interner
// since it carries size/timestamp/version alongside name.
func idForModule(q querier, name, checksum, size, timestamp, version string) (int64, error) {
	if _, err := q.Exec(
		`INSERT INTO modules (name, checksum, size, timestamp, version)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (name, checksum) DO NOTHING`,
		name, checksum, size, timestamp, version,
	); err != nil {
		return 0, fmt.Errorf("store: intern module: %w", err)
	}
	var id int64
	err := q.QueryRow(
		`SELECT id FROM modules WHERE name = ? AND checksum = ?`, name, checksum,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: lookup module: %w", err)
	}
	return id, nil
}
