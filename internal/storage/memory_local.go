package storage

import (
	"context"
	"sync"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
)

// MemoryLocalStore keeps guest documents in process memory.
type MemoryLocalStore struct {
	mu   sync.RWMutex
	docs map[string]guestDocument
}

func NewMemoryLocalStore() *MemoryLocalStore {
	return &MemoryLocalStore{docs: make(map[string]guestDocument)}
}

func (m *MemoryLocalStore) LoadCart(_ context.Context, guestID string) ([]domain.LocalCartEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[guestID]
	if !ok {
		return []domain.LocalCartEntry{}, nil
	}
	return copyEntries(doc.Cart), nil
}

func (m *MemoryLocalStore) SaveCart(_ context.Context, guestID string, entries []domain.LocalCartEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.docs[guestID]
	doc.GuestID = guestID
	doc.SchemaVersion = SchemaVersion
	doc.Cart = NormalizeEntries(entries)
	doc.UpdatedAt = time.Now()
	m.docs[guestID] = doc
	return nil
}

func (m *MemoryLocalStore) LoadGuestAddress(_ context.Context, guestID string) (*domain.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[guestID]
	if !ok || doc.Address == nil {
		return nil, nil
	}
	addr := *doc.Address
	return &addr, nil
}

func (m *MemoryLocalStore) SaveGuestAddress(_ context.Context, guestID string, addr domain.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.docs[guestID]
	doc.GuestID = guestID
	doc.SchemaVersion = SchemaVersion
	doc.Address = &addr
	doc.UpdatedAt = time.Now()
	m.docs[guestID] = doc
	return nil
}

func (m *MemoryLocalStore) AddEntry(_ context.Context, guestID string, variantID int64, quantity, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.touch(guestID)
	if i := indexOf(doc.Cart, variantID); i >= 0 {
		doc.Cart[i].Quantity = min(doc.Cart[i].Quantity+quantity, limit)
	} else {
		doc.Cart = append(doc.Cart, domain.LocalCartEntry{VariantID: variantID, Quantity: min(quantity, limit)})
	}
	m.docs[guestID] = doc
	return nil
}

func (m *MemoryLocalStore) StepEntry(_ context.Context, guestID string, variantID int64, delta, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[guestID]
	if !ok {
		return ErrEntryNotFound
	}
	i := indexOf(doc.Cart, variantID)
	if i < 0 {
		return ErrEntryNotFound
	}
	doc = m.touch(guestID)
	doc.Cart[i].Quantity = domain.ClampQuantity(doc.Cart[i].Quantity, max(-1, min(delta, 1)), max(limit, 1))
	m.docs[guestID] = doc
	return nil
}

func (m *MemoryLocalStore) RemoveEntries(_ context.Context, guestID string, variantIDs ...int64) error {
	if len(variantIDs) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[guestID]; !ok {
		return nil
	}
	doc := m.touch(guestID)
	drop := make(map[int64]struct{}, len(variantIDs))
	for _, id := range variantIDs {
		drop[id] = struct{}{}
	}
	kept := make([]domain.LocalCartEntry, 0, len(doc.Cart))
	for _, e := range doc.Cart {
		if _, ok := drop[e.VariantID]; !ok {
			kept = append(kept, e)
		}
	}
	doc.Cart = kept
	m.docs[guestID] = doc
	return nil
}

// touch returns guestID's document stamped for a write. The caller holds mu.
func (m *MemoryLocalStore) touch(guestID string) guestDocument {
	doc := m.docs[guestID]
	doc.GuestID = guestID
	doc.SchemaVersion = SchemaVersion
	doc.UpdatedAt = time.Now()
	return doc
}

func indexOf(entries []domain.LocalCartEntry, variantID int64) int {
	for i, e := range entries {
		if e.VariantID == variantID {
			return i
		}
	}
	return -1
}
