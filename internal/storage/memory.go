// Package storage contains the in-memory complaint store used in demo mode
// and in tests.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/dharsanguruparan/jansevak/internal/model"
)

// MemoryStore keeps complaints in a map guarded by an RWMutex. order records
// insertion so listings come back in creation order.
type MemoryStore struct {
	mu         sync.RWMutex
	complaints map[string]*model.Complaint
	order      []string
	now        func() time.Time
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		complaints: make(map[string]*model.Complaint),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a fully formed complaint. The duplicate check and the insert
// happen under one write lock, so concurrent creates with the same id cannot
// both succeed.
func (m *MemoryStore) Create(ctx context.Context, c *model.Complaint) (*model.Complaint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.complaints[c.ID]; exists {
		return nil, model.ErrDuplicateID
	}
	rec := c.Clone()
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	m.complaints[rec.ID] = rec
	m.order = append(m.order, rec.ID)
	return rec.Clone(), nil
}

// All returns every complaint in creation order.
func (m *MemoryStore) All(ctx context.Context) ([]model.Complaint, error) {
	return m.filter(ctx, func(*model.Complaint) bool { return true })
}

// ByUser returns the complaints owned by userID in creation order.
func (m *MemoryStore) ByUser(ctx context.Context, userID string) ([]model.Complaint, error) {
	return m.filter(ctx, func(c *model.Complaint) bool { return c.UserID == userID })
}

func (m *MemoryStore) filter(ctx context.Context, keep func(*model.Complaint) bool) ([]model.Complaint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Complaint, 0, len(m.order))
	for _, id := range m.order {
		rec := m.complaints[id]
		if keep(rec) {
			out = append(out, *rec.Clone())
		}
	}
	return out, nil
}

// Get returns a copy of one complaint.
func (m *MemoryStore) Get(ctx context.Context, id string) (*model.Complaint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.complaints[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return rec.Clone(), nil
}

// UpdateStatus sets the status of an existing complaint. Concurrent updates
// are last-write-wins.
func (m *MemoryStore) UpdateStatus(ctx context.Context, id string, status model.Status) (*model.Complaint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.complaints[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	rec.Status = status
	rec.UpdatedAt = m.now()
	return rec.Clone(), nil
}

// SetAttachmentText stores the extracted attachment preview.
func (m *MemoryStore) SetAttachmentText(ctx context.Context, id, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.complaints[id]
	if !ok {
		return model.ErrNotFound
	}
	rec.AttachmentText = text
	return nil
}

// Len reports how many complaints are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}
