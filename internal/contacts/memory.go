package contacts

import (
	"context"
	"sync"

	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/models"
)

// InMemoryRepository is a map-backed Repository used in tests and when no
// DSN is configured.
type InMemoryRepository struct {
	runLock
	mu    sync.Mutex
	byKey map[string]models.Contact
	order []string
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{byKey: make(map[string]models.Contact)}
}

// LoadAll returns every contact in insertion order.
func (r *InMemoryRepository) LoadAll(ctx context.Context) ([]models.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Contact, 0, len(r.order))
	for _, phone := range r.order {
		out = append(out, r.byKey[phone])
	}
	return out, nil
}

// SaveAll replaces the stored list.
func (r *InMemoryRepository) SaveAll(ctx context.Context, list []models.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey = make(map[string]models.Contact, len(list))
	r.order = r.order[:0]
	for _, c := range list {
		if _, seen := r.byKey[c.Phone]; !seen {
			r.order = append(r.order, c.Phone)
		}
		r.byKey[c.Phone] = c
	}
	return nil
}

// Get returns one contact by phone.
func (r *InMemoryRepository) Get(ctx context.Context, phone string) (models.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byKey[phone]
	if !ok {
		return models.Contact{}, models.ErrContactNotFound
	}
	return c, nil
}

// Upsert inserts or replaces one contact.
func (r *InMemoryRepository) Upsert(ctx context.Context, contact models.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.byKey[contact.Phone]; !seen {
		r.order = append(r.order, contact.Phone)
	}
	r.byKey[contact.Phone] = contact
	return nil
}

// Delete removes one contact; unknown phones are a no-op.
func (r *InMemoryRepository) Delete(ctx context.Context, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byKey[phone]; !ok {
		return nil
	}
	delete(r.byKey, phone)
	for i, p := range r.order {
		if p == phone {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Close is a no-op.
func (r *InMemoryRepository) Close() error { return nil }
