package contacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/models"
)

// JSONFileRepository persists the contact list as a single pretty-printed
// JSON array, preserving the legacy contacts.json deployment shape.
//
// Every operation is a wholesale read or rewrite of the file under an
// exclusive in-process lock; cross-process exclusivity comes from the state
// directory flock held by main.
type JSONFileRepository struct {
	runLock
	mu   sync.Mutex
	path string
}

// NewJSONFileRepository creates a repository backed by the file at the DSN
// path. The parent directory is created if needed; a missing file reads as
// an empty list.
func NewJSONFileRepository(opts ...Option) (*JSONFileRepository, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("contacts file path not set")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create contacts directory: %w", err)
	}
	slog.Debug("JSONFileRepository created", "path", cfg.DSN)
	return &JSONFileRepository{path: cfg.DSN}, nil
}

func (r *JSONFileRepository) read() ([]models.Contact, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read contacts file: %w", err)
	}

	var list []models.Contact
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("invalid contacts file %s: %w", r.path, err)
	}
	return list, nil
}

// write replaces the file atomically via a temp file and rename so a crash
// mid-write never truncates the list.
func (r *JSONFileRepository) write(list []models.Contact) error {
	if list == nil {
		list = []models.Contact{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal contacts: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write contacts file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace contacts file: %w", err)
	}
	return nil
}

// LoadAll returns every contact in file order.
func (r *JSONFileRepository) LoadAll(ctx context.Context) ([]models.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

// SaveAll rewrites the full contact list in one batch.
func (r *JSONFileRepository) SaveAll(ctx context.Context, list []models.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.write(list); err != nil {
		slog.Error("JSONFileRepository SaveAll failed", "error", err, "path", r.path)
		return err
	}
	slog.Debug("JSONFileRepository SaveAll succeeded", "count", len(list))
	return nil
}

// Get returns one contact by phone.
func (r *JSONFileRepository) Get(ctx context.Context, phone string) (models.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, err := r.read()
	if err != nil {
		return models.Contact{}, err
	}
	for _, c := range list {
		if c.Phone == phone {
			return c, nil
		}
	}
	return models.Contact{}, models.ErrContactNotFound
}

// Upsert inserts or replaces one contact, rewriting the file.
func (r *JSONFileRepository) Upsert(ctx context.Context, contact models.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, err := r.read()
	if err != nil {
		return err
	}
	replaced := false
	for i, c := range list {
		if c.Phone == contact.Phone {
			list[i] = contact
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, contact)
	}
	return r.write(list)
}

// Delete removes one contact, rewriting the file. Unknown phones are a
// no-op.
func (r *JSONFileRepository) Delete(ctx context.Context, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, err := r.read()
	if err != nil {
		return err
	}
	kept := list[:0]
	for _, c := range list {
		if c.Phone != phone {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(list) {
		return nil
	}
	slog.Info("JSONFileRepository contact removed", "phone", phone)
	return r.write(kept)
}

// Close is a no-op for the file backend.
func (r *JSONFileRepository) Close() error { return nil }
