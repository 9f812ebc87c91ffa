package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/backend"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/cart"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/events"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/identity"
	"github.com/shopspring/decimal"
)

// MockCarts serves cart lines from a map
type MockCarts struct {
	mu          sync.Mutex
	lines       map[int64]domain.CartLine
	pruned      map[string][]int64
	invalidated []int64
}

func newMockCarts(lines ...domain.CartLine) *MockCarts {
	m := &MockCarts{lines: make(map[int64]domain.CartLine), pruned: make(map[string][]int64)}
	for _, l := range lines {
		m.lines[l.VariantID] = l
	}
	return m
}

func (m *MockCarts) Lines(_ context.Context, _ identity.Caller, ids []int64) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.CartLine, 0, len(ids))
	for _, id := range ids {
		l, ok := m.lines[id]
		if !ok {
			return nil, fmt.Errorf("%w: variant %d", cart.ErrItemNotFound, id)
		}
		out = append(out, l)
	}
	return out, nil
}

func (m *MockCarts) setInventory(variantID int64, inventory int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.lines[variantID]
	l.InventoryAvailable = inventory
	m.lines[variantID] = l
}

func (m *MockCarts) PruneGuest(_ context.Context, guestID string, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned[guestID] = append(m.pruned[guestID], ids...)
	return nil
}

func (m *MockCarts) InvalidateUser(_ context.Context, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, userID)
}

type MockAddresses struct {
	mu         sync.Mutex
	def        *domain.Address
	err        error
	remembered []domain.Address
}

func (m *MockAddresses) DefaultFor(context.Context, identity.Caller) (*domain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.def == nil {
		return nil, m.err
	}
	a := *m.def
	return &a, m.err
}

func (m *MockAddresses) Remember(_ context.Context, caller identity.Caller, a domain.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller.Guest() {
		m.remembered = append(m.remembered, a)
	}
	return nil
}

// MockVouchers checks codes against a fixed set at a fixed time
type MockVouchers struct {
	vouchers map[string]domain.Voucher
	now      time.Time
}

func (m *MockVouchers) Check(_ context.Context, code string, subtotal decimal.Decimal) (*domain.Voucher, error) {
	v, ok := m.vouchers[code]
	if !ok {
		return nil, &backend.Error{Status: 404, Message: "voucher not found"}
	}
	if err := v.CheckEligibility(subtotal, m.now); err != nil {
		return nil, err
	}
	return &v, nil
}

func (m *MockVouchers) Apply(v domain.Voucher, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if err := v.CheckEligibility(subtotal, m.now); err != nil {
		return decimal.Zero, err
	}
	return v.Discount(subtotal), nil
}

// MockOrders records created orders and replays payment statuses in order
type MockOrders struct {
	mu          sync.Mutex
	created     []domain.OrderRequest
	result      domain.OrderResult
	createErr   error
	statuses    []domain.PaymentStatus
	confirmErr  error
	confirmHits int
	verify      *backend.OrderVerification
	verifyErr   error
}

func (m *MockOrders) CreateOrder(_ context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, req)
	if m.createErr != nil {
		return nil, m.createErr
	}
	res := m.result
	return &res, nil
}

func (m *MockOrders) createdCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

func (m *MockOrders) ConfirmPayment(_ context.Context, orderID int64) (*domain.PaymentConfirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmHits++
	if m.confirmErr != nil {
		return nil, m.confirmErr
	}
	status := domain.PaymentPending
	if len(m.statuses) > 0 {
		status = m.statuses[0]
		if len(m.statuses) > 1 {
			m.statuses = m.statuses[1:]
		}
	}
	return &domain.PaymentConfirmation{OrderID: orderID, OrderCode: "ORD-1", Status: status}, nil
}

func (m *MockOrders) VerifyOrder(context.Context, string) (*backend.OrderVerification, error) {
	return m.verify, m.verifyErr
}

type MockPricing struct {
	mu    sync.Mutex
	fee   decimal.Decimal
	fees  map[string]decimal.Decimal
	err   error
	calls int
	// blockFirst, when set, holds the first call until it is closed
	blockFirst chan struct{}
}

func (m *MockPricing) CalculateShipping(_ context.Context, _ decimal.Decimal, province string) (decimal.Decimal, error) {
	m.mu.Lock()
	m.calls++
	n, fee, err := m.calls, m.fee, m.err
	if f, ok := m.fees[province]; ok {
		fee = f
	}
	block := m.blockFirst
	m.mu.Unlock()
	if block != nil && n == 1 {
		<-block
	}
	return fee, err
}

func (m *MockPricing) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}
