/*
Package store implements the Result Store: a content-addressed mixed
store over a relational database (crash/result metadata, string
interning tables) plus three on-disk directories holding the opaque
bytes those rows reference. The sqlite backend and migration wiring
follow the pragma-tuned, golang-migrate-driven pattern this project's
storage layer is built on.
*/
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type pragmaOption struct {
	name, value string
}

var defaultPragmas = []pragmaOption{
	{"foreign_keys", "on"},
	{"journal_mode", "WAL"},
	{"busy_timeout", "5000"},
	{"synchronous", "full"},
	{"fullfsync", "true"},
	{"auto_vacuum", "incremental"},
}

// Store owns the sqlite connection and the three content-addressed
// directories (crashfiles, crashdata, templates) the schema's raw
// columns reference by id.
type Store struct {
	db   *sql.DB
	root string // directory holding crashfiles/, crashdata/, templates/
}

// Open opens (creating if absent) a sqlite database at dbPath, applies
// pending migrations, and ensures the three content-addressed
// directories exist under root.
func Open(dbPath, root string) (*Store, error) {
	opts := make(url.Values)
	for _, p := range defaultPragmas {
		opts.Add("_pragma", fmt.Sprintf("%s=%s", p.name, p.value))
	}
	dsn := fmt.Sprintf("%s?%s&_txlock=immediate", dbPath, opts.Encode())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dbPath, err)
	}

	for _, dir := range []string{"crashfiles", "crashdata", "templates"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: mkdir %s: %w", dir, err)
		}
	}

	s := &Store{db: db, root: root}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	srcDriver, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: migration source: %w", err)
	}
	dbDriver, err := sqlitemigrate.WithInstance(s.db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("store: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", srcDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("store: migrate init: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("store: migrate up: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) crashFilePath(crashID int64) string {
	return filepath.Join(s.root, "crashfiles", fmt.Sprintf("%d.raw", crashID))
}

func (s *Store) crashDataPath(crashID int64) string {
	return filepath.Join(s.root, "crashdata", fmt.Sprintf("%d.txt", crashID))
}

func (s *Store) templatePath(templateID int64) string {
	return filepath.Join(s.root, "templates", fmt.Sprintf("%d.raw", templateID))
}
