package directory

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/NicolasHaas/staffchat/pkg/model"
)

// SQLiteStore is a UserStore backed by a SQLite database. It keeps the same
// load-all/save-all contract as FileStore: a save replaces the full user set
// in one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("directory: open db: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("directory: set WAL: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("directory: set busy_timeout: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		username      TEXT NOT NULL PRIMARY KEY CHECK(length(username) > 0 AND length(username) <= 32),
		password_hash TEXT NOT NULL,
		full_name     TEXT NOT NULL DEFAULT '',
		department    TEXT NOT NULL DEFAULT '',
		position      TEXT NOT NULL DEFAULT ''
	);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("directory: migrate: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LoadAll() ([]model.UserRecord, error) {
	rows, err := s.db.Query(
		`SELECT username, password_hash, full_name, department, position FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("directory: load users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []model.UserRecord
	for rows.Next() {
		var u model.UserRecord
		if err := rows.Scan(&u.Username, &u.PasswordHash, &u.FullName, &u.Department, &u.Position); err != nil {
			return nil, fmt.Errorf("directory: scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: load users: %w", err)
	}
	return users, nil
}

func (s *SQLiteStore) SaveAll(users []model.UserRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("directory: begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM users`); err != nil {
		return fmt.Errorf("directory: clear users: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO users (username, password_hash, full_name, department, position) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("directory: prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, u := range users {
		if _, err := stmt.Exec(u.Username, u.PasswordHash, u.FullName, u.Department, u.Position); err != nil {
			return fmt.Errorf("directory: insert user %q: %w", u.Username, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("directory: commit save: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
