// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "modernc.org/sqlite"

	"github.com/tomtom215/fieldsync/internal/logging"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_duckdb.sql
var duckdbSchema string

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverDuckDB = "duckdb"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("record not found")

	// ErrStorageFault marks a failed durable write or read. It is fatal to a submission.
	ErrStorageFault = errors.New("storage fault")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("record store is closed")
)

// Store persists composite survey records.
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time

	// writeMu serializes write transactions across both drivers.
	writeMu sync.Mutex
	closed  bool
	mu      sync.RWMutex
}

// Open creates or opens a record store at path using driver.
// Pragmas and schema are applied on every open; both are idempotent.
func Open(driver, path string) (*Store, error) {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = sqliteSchema
	case DriverDuckDB:
		schema = duckdbSchema
	default:
		return nil, fmt.Errorf("unsupported record store driver %q", driver)
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// One connection: SQLite allows a single writer and this keeps
		// read-after-write trivially consistent.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	if err := applySchema(db, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logging.Info().
		Str("driver", driver).
		Str("path", path).
		Msg("Record store opened")

	return &Store{db: db, driver: driver, now: time.Now}, nil
}

// Close closes the database. Further calls return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping reports whether the database is reachable, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Driver returns the backend name.
func (s *Store) Driver() string { return s.driver }

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB, schema string) error {
	for _, stmt := range splitStatements(schema) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// splitStatements splits a schema file on ';'. Schema files must not put ';'
// inside comments or string literals.
func splitStatements(schema string) []string {
	parts := strings.Split(schema, ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if isBlankSQL(p) {
			continue
		}
		stmts = append(stmts, strings.TrimSpace(p))
	}
	return stmts
}

func isBlankSQL(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}

func storageFault(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageFault, op, err)
}
