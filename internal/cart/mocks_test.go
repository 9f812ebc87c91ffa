package cart

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/backend"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/storage"
)

// MockBackend implements Backend with an in-memory catalog and server cart
type MockBackend struct {
	m        sync.RWMutex
	variants map[int64]domain.Variant
	items    []domain.RemoteCartItem

	UpdateErr   error
	RemoveErr   error
	AddErr      error
	AddFailFrom int64 // AddToCart fails for this variant id
	OnUpdate    func()
	GetCalls    int
	LookupCalls int
}

func newMockBackend(variants ...domain.Variant) *MockBackend {
	m := &MockBackend{variants: make(map[int64]domain.Variant)}
	for _, v := range variants {
		m.variants[v.ID] = v
	}
	return m
}

func (m *MockBackend) GetCart(context.Context) ([]domain.RemoteCart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.GetCalls++
	if m.items == nil {
		return nil, nil
	}
	items := make([]domain.RemoteCartItem, len(m.items))
	copy(items, m.items)
	return []domain.RemoteCart{{ID: 1, UserID: 1, Items: items}}, nil
}

func (m *MockBackend) AddToCart(_ context.Context, variantID int64, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.AddErr != nil {
		return m.AddErr
	}
	if m.AddFailFrom != 0 && variantID == m.AddFailFrom {
		return &backend.Error{Status: http.StatusBadGateway, Message: "upstream"}
	}
	v, ok := m.variants[variantID]
	if !ok {
		return &backend.Error{Status: http.StatusNotFound, Message: "variant not found"}
	}
	for i := range m.items {
		if m.items[i].Variant.ID == variantID {
			m.items[i].Quantity += quantity
			return nil
		}
	}
	m.items = append(m.items, domain.RemoteCartItem{ID: int64(len(m.items) + 1), Price: v.Price, Quantity: quantity, Variant: v})
	return nil
}

func (m *MockBackend) UpdateCartItemQuantity(_ context.Context, variantID int64, quantity int) error {
	if m.OnUpdate != nil {
		m.OnUpdate()
	}
	m.m.Lock()
	defer m.m.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	for i := range m.items {
		if m.items[i].Variant.ID == variantID {
			m.items[i].Quantity = quantity
			return nil
		}
	}
	return &backend.Error{Status: http.StatusNotFound, Message: "item not found"}
}

func (m *MockBackend) RemoveCartItem(_ context.Context, variantID int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	for i := range m.items {
		if m.items[i].Variant.ID == variantID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return &backend.Error{Status: http.StatusNotFound, Message: "item not found"}
}

func (m *MockBackend) VariantsByIDs(_ context.Context, ids []int64) ([]domain.Variant, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.LookupCalls++
	var out []domain.Variant
	for _, id := range ids {
		if v, ok := m.variants[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *MockBackend) deleteVariant(id int64) {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.variants, id)
}

// countingStore wraps a LocalStore and counts cart writes
type countingStore struct {
	storage.LocalStore
	m       sync.Mutex
	saves   int
	saveErr error
}

// write counts one cart write and reports the injected failure, if any
func (c *countingStore) write() error {
	c.m.Lock()
	defer c.m.Unlock()
	c.saves++
	return c.saveErr
}

func (c *countingStore) SaveCart(ctx context.Context, guestID string, entries []domain.LocalCartEntry) error {
	if err := c.write(); err != nil {
		return err
	}
	return c.LocalStore.SaveCart(ctx, guestID, entries)
}

func (c *countingStore) AddEntry(ctx context.Context, guestID string, variantID int64, quantity, limit int) error {
	if err := c.write(); err != nil {
		return err
	}
	return c.LocalStore.AddEntry(ctx, guestID, variantID, quantity, limit)
}

func (c *countingStore) StepEntry(ctx context.Context, guestID string, variantID int64, delta, limit int) error {
	if err := c.write(); err != nil {
		return err
	}
	return c.LocalStore.StepEntry(ctx, guestID, variantID, delta, limit)
}

func (c *countingStore) RemoveEntries(ctx context.Context, guestID string, variantIDs ...int64) error {
	if err := c.write(); err != nil {
		return err
	}
	return c.LocalStore.RemoveEntries(ctx, guestID, variantIDs...)
}

// rendezvousStore holds the first n LoadCart callers until all of them have
// read, so every caller works from the same snapshot
type rendezvousStore struct {
	storage.LocalStore
	loads   atomic.Int32
	n       int32
	arrived sync.WaitGroup
}

func newRendezvousStore(inner storage.LocalStore, n int) *rendezvousStore {
	r := &rendezvousStore{LocalStore: inner, n: int32(n)}
	r.arrived.Add(n)
	return r
}

func (r *rendezvousStore) LoadCart(ctx context.Context, guestID string) ([]domain.LocalCartEntry, error) {
	entries, err := r.LocalStore.LoadCart(ctx, guestID)
	if r.loads.Add(1) <= r.n {
		r.arrived.Done()
		r.arrived.Wait()
	}
	return entries, err
}

func (c *countingStore) Saves() int {
	c.m.Lock()
	defer c.m.Unlock()
	return c.saves
}
