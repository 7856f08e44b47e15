// Package programstore persists BASIC programs in SQLite.
package programstore

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/antibyte/retrobasic/pkg/logger"
	"github.com/antibyte/retrobasic/pkg/tinybasic"
	_ "modernc.org/sqlite"
)

// SchemaVersion of the program database
const SchemaVersion = "1"

// DB is a SQLite database holding the programs of all owners.
type DB struct {
	conn *sql.DB
}

// Open initializes the SQLite database and ensures the tables exist.
func Open(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite erlaubt nur einen Schreiber gleichzeitig
	conn.SetMaxOpenConns(1)

	// Ensure the database is accessible
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, err
	}
	logger.Info(logger.AreaDatabase, "program database ready at %s", dbPath)
	return db, nil
}

// createTables ensures all required tables exist in the database.
func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS program_lines (
			owner TEXT NOT NULL,
			line INTEGER NOT NULL,
			text TEXT NOT NULL,
			PRIMARY KEY (owner, line)
		)`,
		`CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	var version string
	err := db.conn.QueryRow(`SELECT value FROM metadata WHERE key = 'schema_version'`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		_, err = db.conn.Exec(`INSERT INTO metadata (key, value) VALUES ('schema_version', ?)`, SchemaVersion)
		return err
	case err != nil:
		return err
	case version != SchemaVersion:
		return fmt.Errorf("unsupported schema version: %s (expected %s)", version, SchemaVersion)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Owners lists every owner with at least one stored line.
func (db *DB) Owners() ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT owner FROM program_lines ORDER BY owner`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

// Store returns the program of one owner.
func (db *DB) Store(owner string) *Store {
	return &Store{db: db.conn, owner: owner}
}

// Store is a tinybasic.ProgramStore backed by the program_lines table.
type Store struct {
	db    *sql.DB
	owner string
}

var _ tinybasic.ProgramStore = (*Store)(nil)

// SetLine implements tinybasic.ProgramStore.
func (s *Store) SetLine(number int, text string) error {
	if number <= 0 {
		return tinybasic.ErrInvalidLineNumber
	}
	if strings.TrimSpace(text) == "" {
		if _, err := s.db.Exec(`DELETE FROM program_lines WHERE owner = ? AND line = ?`, s.owner, number); err != nil {
			return fmt.Errorf("delete line %d: %w", number, err)
		}
		return nil
	}
	_, err := s.db.Exec(`INSERT INTO program_lines (owner, line, text) VALUES (?, ?, ?)
		ON CONFLICT(owner, line) DO UPDATE SET text = excluded.text`, s.owner, number, text)
	if err != nil {
		return fmt.Errorf("store line %d: %w", number, err)
	}
	return nil
}

// Snapshot implements tinybasic.ProgramStore.
func (s *Store) Snapshot() ([]tinybasic.ProgramLine, error) {
	rows, err := s.db.Query(`SELECT line, text FROM program_lines WHERE owner = ? ORDER BY line`, s.owner)
	if err != nil {
		return nil, fmt.Errorf("load program: %w", err)
	}
	defer rows.Close()

	var lines []tinybasic.ProgramLine
	for rows.Next() {
		var line tinybasic.ProgramLine
		if err := rows.Scan(&line.Number, &line.Text); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Clear implements tinybasic.ProgramStore.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM program_lines WHERE owner = ?`, s.owner); err != nil {
		return fmt.Errorf("clear program: %w", err)
	}
	return nil
}

// Len implements tinybasic.ProgramStore. Query errors count as an empty program.
func (s *Store) Len() int {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM program_lines WHERE owner = ?`, s.owner).Scan(&n); err != nil {
		logger.Error(logger.AreaDatabase, "counting lines for %s failed: %v", s.owner, err)
		return 0
	}
	return n
}
