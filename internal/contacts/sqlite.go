package contacts

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteRepository persists contacts in an SQLite database file.
type SQLiteRepository struct {
	runLock
	db *sql.DB
}

// NewSQLiteRepository creates an SQLite-backed repository at the DSN file
// path, creating the directory and schema as needed.
func NewSQLiteRepository(opts ...Option) (*SQLiteRepository, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("SQLiteRepository DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dsn", cfg.DSN)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteRepository ready", "path", cfg.DSN)

	return &SQLiteRepository{db: db}, nil
}

// LoadAll returns every contact in stored order.
func (r *SQLiteRepository) LoadAll(ctx context.Context) ([]models.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT phone, follow_up_count, last_follow_up_date, status FROM contacts ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	var list []models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contact rows: %w", err)
	}
	return list, nil
}

// SaveAll replaces the stored list inside one transaction.
func (r *SQLiteRepository) SaveAll(ctx context.Context, list []models.Contact) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM contacts`); err != nil {
		return fmt.Errorf("failed to clear contacts: %w", err)
	}
	for i, c := range list {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO contacts (phone, follow_up_count, last_follow_up_date, status, position) VALUES (?, ?, ?, ?, ?)`,
			c.Phone, c.FollowUpCount, nullableTime(c.LastFollowUpDate), c.Status, i)
		if err != nil {
			return fmt.Errorf("failed to insert contact %s: %w", c.Phone, err)
		}
	}
	return tx.Commit()
}

// Get returns one contact by phone.
func (r *SQLiteRepository) Get(ctx context.Context, phone string) (models.Contact, error) {
	row := r.db.QueryRowContext(ctx, `SELECT phone, follow_up_count, last_follow_up_date, status FROM contacts WHERE phone = ?`, phone)
	return scanContactRow(row)
}

// Upsert inserts or replaces one contact, keeping its position.
func (r *SQLiteRepository) Upsert(ctx context.Context, contact models.Contact) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts (phone, follow_up_count, last_follow_up_date, status, position)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(position) + 1, 0) FROM contacts))
		ON CONFLICT(phone) DO UPDATE SET
			follow_up_count = excluded.follow_up_count,
			last_follow_up_date = excluded.last_follow_up_date,
			status = excluded.status`,
		contact.Phone, contact.FollowUpCount, nullableTime(contact.LastFollowUpDate), contact.Status)
	if err != nil {
		return fmt.Errorf("failed to upsert contact %s: %w", contact.Phone, err)
	}
	return nil
}

// Delete removes one contact; unknown phones are a no-op.
func (r *SQLiteRepository) Delete(ctx context.Context, phone string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE phone = ?`, phone); err != nil {
		return fmt.Errorf("failed to delete contact %s: %w", phone, err)
	}
	return nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
