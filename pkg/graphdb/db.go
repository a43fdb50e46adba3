// Package graphdb persists named flow graphs and per-node run caches in
// SQLite. The run cache feeds plan building: outputs stored here are the
// candidates for reuse on the next run.
package graphdb

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a named graph does not exist.
var ErrNotFound = errors.New("graphdb: not found")

// DB wraps a SQLite database connection.
type DB struct {
	conn *sql.DB
	Path string
}

// Open opens the database at path with WAL mode and foreign keys enabled,
// creating the schema if needed. Use ":memory:" for an ephemeral store.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL for concurrent reads
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn, Path: path}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying sql.DB for custom queries.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

func migrate(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS graphs (
			name TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			graph_name TEXT NOT NULL,
			chat_id TEXT,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS node_cache (
			graph_name TEXT NOT NULL,
			node_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			outputs TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (graph_name, node_id)
		);
		CREATE INDEX IF NOT EXISTS idx_runs_graph ON runs(graph_name, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
