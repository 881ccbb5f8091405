package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/models"
	_ "github.com/lib/pq"
)

// Connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the maximum number of open connections.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the maximum number of idle connections.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the maximum lifetime of a connection.
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresRepository persists contacts in PostgreSQL, for deployments where
// multiple instances share the contact list.
type PostgresRepository struct {
	runLock
	db *sql.DB
}

// NewPostgresRepository creates a Postgres-backed repository from the DSN.
func NewPostgresRepository(opts ...Option) (*PostgresRepository, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("PostgresRepository DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresRepository ready")

	return &PostgresRepository{db: db}, nil
}

// LoadAll returns every contact in stored order.
func (r *PostgresRepository) LoadAll(ctx context.Context) ([]models.Contact, error) {
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
func (r *PostgresRepository) SaveAll(ctx context.Context, list []models.Contact) error {
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
			`INSERT INTO contacts (phone, follow_up_count, last_follow_up_date, status, position) VALUES ($1, $2, $3, $4, $5)`,
			c.Phone, c.FollowUpCount, nullableTime(c.LastFollowUpDate), c.Status, i)
		if err != nil {
			return fmt.Errorf("failed to insert contact %s: %w", c.Phone, err)
		}
	}
	return tx.Commit()
}

// Get returns one contact by phone.
func (r *PostgresRepository) Get(ctx context.Context, phone string) (models.Contact, error) {
	row := r.db.QueryRowContext(ctx, `SELECT phone, follow_up_count, last_follow_up_date, status FROM contacts WHERE phone = $1`, phone)
	return scanContactRow(row)
}

// Upsert inserts or replaces one contact, keeping its position.
func (r *PostgresRepository) Upsert(ctx context.Context, contact models.Contact) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts (phone, follow_up_count, last_follow_up_date, status, position)
		VALUES ($1, $2, $3, $4, (SELECT COALESCE(MAX(position) + 1, 0) FROM contacts))
		ON CONFLICT (phone) DO UPDATE SET
			follow_up_count = EXCLUDED.follow_up_count,
			last_follow_up_date = EXCLUDED.last_follow_up_date,
			status = EXCLUDED.status`,
		contact.Phone, contact.FollowUpCount, nullableTime(contact.LastFollowUpDate), contact.Status)
	if err != nil {
		return fmt.Errorf("failed to upsert contact %s: %w", contact.Phone, err)
	}
	return nil
}

// Delete removes one contact; unknown phones are a no-op.
func (r *PostgresRepository) Delete(ctx context.Context, phone string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE phone = $1`, phone); err != nil {
		return fmt.Errorf("failed to delete contact %s: %w", phone, err)
	}
	return nil
}

// Close closes the database connection.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// nullableTime maps an optional timestamp to its nullable SQL value.
func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// scanContact scans a contact from sql.Rows.
func scanContact(rows *sql.Rows) (models.Contact, error) {
	var c models.Contact
	var last sql.NullTime
	if err := rows.Scan(&c.Phone, &c.FollowUpCount, &last, &c.Status); err != nil {
		return c, fmt.Errorf("scan contact failed: %w", err)
	}
	if last.Valid {
		t := last.Time
		c.LastFollowUpDate = &t
	}
	return c, nil
}

// scanContactRow scans a contact from a single sql.Row, mapping sql.ErrNoRows
// to models.ErrContactNotFound.
func scanContactRow(row *sql.Row) (models.Contact, error) {
	var c models.Contact
	var last sql.NullTime
	err := row.Scan(&c.Phone, &c.FollowUpCount, &last, &c.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Contact{}, models.ErrContactNotFound
	}
	if err != nil {
		return models.Contact{}, fmt.Errorf("scan contact failed: %w", err)
	}
	if last.Valid {
		t := last.Time
		c.LastFollowUpDate = &t
	}
	return c, nil
}
