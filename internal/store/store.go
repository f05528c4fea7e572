package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// dsnParams are applied by the driver to every connection it opens.
const dsnParams = "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"

// ledgerMigrations[i] upgrades a ledger at user_version i to i+1.
// Append only; never edit a released entry.
var ledgerMigrations = []string{
	// 1: inspect looks runs up by tag name.
	`CREATE INDEX IF NOT EXISTS idx_runs_tag ON runs(tag)`,
}

// Store is the run ledger.
type Store struct {
	db *sql.DB
}

// Open opens the ledger at path, creating the file, its parent directory
// and the runs table as needed, and upgrades older ledgers in place.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// One writer per run; a single connection keeps inserts ordered.
	db.SetMaxOpenConns(1)

	if err := initLedger(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the ledger.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// initLedger creates the runs table and applies pending migrations in one
// transaction, so a half-upgraded ledger is never left behind.
func initLedger(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}

	var version int
	if err := tx.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read ledger version: %w", err)
	}
	if version > len(ledgerMigrations) {
		return fmt.Errorf("ledger version %d is newer than this govtag (%d)", version, len(ledgerMigrations))
	}
	for v := version; v < len(ledgerMigrations); v++ {
		if _, err := tx.Exec(ledgerMigrations[v]); err != nil {
			return fmt.Errorf("migrate ledger to v%d: %w", v+1, err)
		}
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(ledgerMigrations))); err != nil {
		return fmt.Errorf("set ledger version: %w", err)
	}
	return tx.Commit()
}

// pragma reads a connection setting; tests use it to check the DSN.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("query %s: %w", name, err)
	}
	return value, nil
}
