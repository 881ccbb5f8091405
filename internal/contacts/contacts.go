// Package contacts provides storage backends for the persisted contact list.
//
// The list is read and rewritten wholesale: the follow-up runner loads every
// contact, mutates the eligible ones, and persists the full set back in one
// batch. Backends: a JSON file (the legacy contacts.json layout), SQLite,
// PostgreSQL, and an in-memory store for tests.
package contacts

import (
	"context"
	"strings"
	"sync"

	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/models"
)

// Repository is the contact persistence abstraction.
type Repository interface {
	// LoadAll returns every contact.
	LoadAll(ctx context.Context) ([]models.Contact, error)
	// SaveAll replaces the stored contact list with the given set.
	SaveAll(ctx context.Context, list []models.Contact) error
	// Get returns the contact with the given phone number, or
	// models.ErrContactNotFound.
	Get(ctx context.Context, phone string) (models.Contact, error)
	// Upsert inserts or replaces one contact.
	Upsert(ctx context.Context, contact models.Contact) error
	// Delete removes the contact entirely. Deleting an unknown phone is not
	// an error.
	Delete(ctx context.Context, phone string) error
	// Acquire takes the run-level lock that serializes whole
	// read-modify-write passes over the list against concurrent contact
	// mutations. The follow-up runner holds it for an entire pass; the
	// unsubscribe and contact-tracking paths contend on it, so a deletion
	// can never be resurrected by a batch SaveAll that loaded before it.
	// The returned release function must be called when the pass is done.
	Acquire() (release func())
	// Close releases backend resources.
	Close() error
}

// runLock is the run-level lock shared by every backend. It is distinct from
// the backends' internal per-call mutexes, which only make individual
// operations atomic.
type runLock struct {
	runMu sync.Mutex
}

// Acquire locks whole-pass access to the contact list and returns the
// release.
func (l *runLock) Acquire() func() {
	l.runMu.Lock()
	return l.runMu.Unlock
}

// Opts holds configuration options for contact repositories.
type Opts struct {
	DSN string
}

// Option defines a configuration option for contact repositories.
type Option func(*Opts)

// WithDSN sets the backend DSN: a Postgres URL, an SQLite file path, or a
// .json file path.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres", "jsonfile", or "sqlite".
func DetectDSNType(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"),
		strings.HasPrefix(dsn, "postgresql://"),
		strings.Contains(dsn, "host="):
		return "postgres"
	case strings.HasSuffix(dsn, ".json"):
		return "jsonfile"
	default:
		return "sqlite"
	}
}
