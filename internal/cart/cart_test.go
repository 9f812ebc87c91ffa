package cart

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/backend"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/cache"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/identity"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var guest = identity.Caller{GuestID: "guest-1"}

func variant(id int64, price int64, inventory int) domain.Variant {
	return domain.Variant{
		ID:        id,
		Price:     decimal.NewFromInt(price),
		Inventory: inventory,
		Product:   domain.ProductRef{ID: id * 10, Name: "Áo thun"},
	}
}

type fixture struct {
	svc     *Service
	backend *MockBackend
	store   *countingStore
	queries *cache.Queries
}

func newFixture(variants ...domain.Variant) *fixture {
	log := slog.New(slog.DiscardHandler)
	b := newMockBackend(variants...)
	store := &countingStore{LocalStore: storage.NewMemoryLocalStore()}
	q := cache.NewQueries(cache.NewMemoryCache(time.Minute), cache.NewMemoryBus(), log)
	return &fixture{svc: NewService(b, store, q, log), backend: b, store: store, queries: q}
}

func (f *fixture) seedGuest(t *testing.T, entries ...domain.LocalCartEntry) {
	require.NoError(t, f.store.LocalStore.SaveCart(context.Background(), guest.GuestID, entries))
}

func (f *fixture) persisted(t *testing.T) []domain.LocalCartEntry {
	entries, err := f.store.LoadCart(context.Background(), guest.GuestID)
	require.NoError(t, err)
	return entries
}

func TestGuest_EmptyCart(t *testing.T) {
	f := newFixture()
	view, err := f.svc.For(guest).Items(context.Background())
	require.NoError(t, err)
	assert.True(t, view.Guest)
	assert.Empty(t, view.Lines)
	assert.Equal(t, 0, view.Count)
	assert.Equal(t, 0, f.backend.LookupCalls, "empty cart needs no variant lookup")
}

func TestGuest_AddItemSurvivesReload(t *testing.T) {
	f := newFixture(variant(1, 150000, 10))
	ctx := context.Background()

	_, err := f.svc.For(guest).AddItem(ctx, 1, 2)
	require.NoError(t, err)

	// a fresh service over the same store stands in for a page reload
	log := slog.New(slog.DiscardHandler)
	reloaded := NewService(f.backend, f.store, cache.NewQueries(cache.NewMemoryCache(time.Minute), cache.NewMemoryBus(), log), log)
	view, err := reloaded.For(guest).Items(ctx)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, int64(1), view.Lines[0].VariantID)
	assert.Equal(t, 2, view.Lines[0].Quantity)
	assert.True(t, view.Subtotal.Equal(decimal.NewFromInt(300000)))
}

func TestGuest_AddItemMergesExisting(t *testing.T) {
	f := newFixture(variant(1, 100, 10), variant(2, 200, 10))
	ctx := context.Background()
	p := f.svc.For(guest)

	_, err := p.AddItem(ctx, 1, 2)
	require.NoError(t, err)
	_, err = p.AddItem(ctx, 2, 1)
	require.NoError(t, err)
	view, err := p.AddItem(ctx, 1, 3)
	require.NoError(t, err)

	assert.Equal(t, []domain.LocalCartEntry{{VariantID: 1, Quantity: 5}, {VariantID: 2, Quantity: 1}}, f.persisted(t))
	assert.Equal(t, 6, view.Count)
}

func TestGuest_AddItemCappedByInventory(t *testing.T) {
	f := newFixture(variant(1, 100, 3), variant(2, 100, 0))
	ctx := context.Background()
	p := f.svc.For(guest)

	view, err := p.AddItem(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Count)

	_, err = p.AddItem(ctx, 2, 1)
	assert.ErrorIs(t, err, ErrOutOfStock)

	_, err = p.AddItem(ctx, 99, 1)
	assert.ErrorIs(t, err, ErrVariantNotFound)

	_, err = p.AddItem(ctx, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestGuest_UnresolvableVariantDroppedFromViewOnly(t *testing.T) {
	f := newFixture(variant(1, 100, 5), variant(2, 100, 5))
	f.seedGuest(t, domain.LocalCartEntry{VariantID: 1, Quantity: 1}, domain.LocalCartEntry{VariantID: 2, Quantity: 2})
	f.backend.deleteVariant(2)

	view, err := f.svc.For(guest).Items(context.Background())
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, int64(1), view.Lines[0].VariantID)
	assert.Len(t, f.persisted(t), 2)
	assert.Equal(t, 0, f.store.Saves())
}

func TestGuest_ChangeQuantityClamps(t *testing.T) {
	f := newFixture(variant(1, 100, 3))
	f.seedGuest(t, domain.LocalCartEntry{VariantID: 1, Quantity: 1})
	ctx := context.Background()
	p := f.svc.For(guest)

	view, err := p.ChangeQuantity(ctx, 1, domain.Decrement)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Lines[0].Quantity)

	for i := 0; i < 5; i++ {
		view, err = p.ChangeQuantity(ctx, 1, domain.Increment)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, view.Lines[0].Quantity)
	assert.Equal(t, []domain.LocalCartEntry{{VariantID: 1, Quantity: 3}}, f.persisted(t))

	_, err = p.ChangeQuantity(ctx, 1, "sideways")
	assert.ErrorIs(t, err, ErrInvalidDirection)

	_, err = p.ChangeQuantity(ctx, 42, domain.Increment)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestGuest_ConcurrentIncrementsStayWithinInventory(t *testing.T) {
	f := newFixture(variant(1, 100, 4))
	f.seedGuest(t, domain.LocalCartEntry{VariantID: 1, Quantity: 1})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.For(guest).ChangeQuantity(ctx, 1, domain.Increment)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, []domain.LocalCartEntry{{VariantID: 1, Quantity: 4}}, f.persisted(t))
}

func TestGuest_RemoveMissingIsNoop(t *testing.T) {
	f := newFixture(variant(1, 100, 5))
	f.seedGuest(t, domain.LocalCartEntry{VariantID: 1, Quantity: 2})

	view, err := f.svc.For(guest).RemoveItem(context.Background(), 77)
	require.NoError(t, err)
	assert.Len(t, view.Lines, 1)
	assert.Equal(t, 0, f.store.Saves())
	assert.Equal(t, []domain.LocalCartEntry{{VariantID: 1, Quantity: 2}}, f.persisted(t))
}

func TestGuest_TwoConcurrentRemovers(t *testing.T) {
	f := newFixture(variant(1, 100, 5), variant(2, 100, 5), variant(3, 100, 5))
	f.seedGuest(t,
		domain.LocalCartEntry{VariantID: 1, Quantity: 1},
		domain.LocalCartEntry{VariantID: 2, Quantity: 1},
		domain.LocalCartEntry{VariantID: 3, Quantity: 1},
	)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range []int64{1, 3} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := f.svc.For(guest).RemoveItem(ctx, id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, []domain.LocalCartEntry{{VariantID: 2, Quantity: 1}}, f.persisted(t))
	view, err := f.svc.For(guest).Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Count)
}

func TestGuest_RemoversOnTwoInstancesKeepEachOthersEdits(t *testing.T) {
	f := newFixture(variant(1, 100, 5), variant(2, 100, 5), variant(3, 100, 5))
	f.seedGuest(t,
		domain.LocalCartEntry{VariantID: 1, Quantity: 1},
		domain.LocalCartEntry{VariantID: 2, Quantity: 1},
		domain.LocalCartEntry{VariantID: 3, Quantity: 1},
	)
	ctx := context.Background()

	// two instances share the guest store but not their locks or caches
	shared := newRendezvousStore(f.store.LocalStore, 2)
	log := slog.New(slog.DiscardHandler)
	instances := make([]*Service, 2)
	for i := range instances {
		q := cache.NewQueries(cache.NewMemoryCache(time.Minute), cache.NewMemoryBus(), log)
		instances[i] = NewService(f.backend, shared, q, log)
	}

	var wg sync.WaitGroup
	for i, id := range []int64{1, 3} {
		wg.Add(1)
		go func(svc *Service, id int64) {
			defer wg.Done()
			_, err := svc.For(guest).RemoveItem(ctx, id)
			assert.NoError(t, err)
		}(instances[i], id)
	}
	wg.Wait()

	assert.Equal(t, []domain.LocalCartEntry{{VariantID: 2, Quantity: 1}}, f.persisted(t))
}

func TestGuest_AddsOnTwoInstancesBothLand(t *testing.T) {
	f := newFixture(variant(1, 100, 9), variant(2, 100, 9))
	f.seedGuest(t, domain.LocalCartEntry{VariantID: 1, Quantity: 1})
	ctx := context.Background()

	shared := newRendezvousStore(f.store.LocalStore, 2)
	log := slog.New(slog.DiscardHandler)
	var wg sync.WaitGroup
	for _, id := range []int64{1, 2} {
		q := cache.NewQueries(cache.NewMemoryCache(time.Minute), cache.NewMemoryBus(), log)
		svc := NewService(f.backend, shared, q, log)
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := svc.For(guest).AddItem(ctx, id, 2)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, []domain.LocalCartEntry{{VariantID: 1, Quantity: 3}, {VariantID: 2, Quantity: 2}}, f.persisted(t))
}

func TestGuest_BadgeCountMatchesPersistedQuantities(t *testing.T) {
	f := newFixture(variant(1, 100, 9), variant(2, 100, 9))
	ctx := context.Background()
	p := f.svc.For(guest)

	_, err := p.AddItem(ctx, 1, 2)
	require.NoError(t, err)
	_, err = p.AddItem(ctx, 2, 3)
	require.NoError(t, err)
	_, err = p.ChangeQuantity(ctx, 2, domain.Decrement)
	require.NoError(t, err)
	_, err = p.RemoveItem(ctx, 1)
	require.NoError(t, err)

	sum := 0
	for _, e := range f.persisted(t) {
		sum += e.Quantity
	}
	count, err := f.svc.Count(ctx, guest)
	require.NoError(t, err)
	assert.Equal(t, sum, count)
	assert.Equal(t, 2, count)
}

func TestGuest_MutationBroadcastsInvalidation(t *testing.T) {
	f := newFixture(variant(1, 100, 9))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := f.queries.Subscribe(ctx)
	require.NoError(t, err)

	_, err = f.svc.For(guest).AddItem(ctx, 1, 1)
	require.NoError(t, err)

	select {
	case k := <-sub:
		assert.Equal(t, cache.GuestCartKey(guest.GuestID), k)
	case <-time.After(time.Second):
		t.Fatal("no invalidation after guest mutation")
	}
}

func TestGuest_FailedSaveRollsBack(t *testing.T) {
	f := newFixture(variant(1, 100, 9))
	f.seedGuest(t, domain.LocalCartEntry{VariantID: 1, Quantity: 2})
	ctx := context.Background()
	p := f.svc.For(guest)

	_, err := p.Items(ctx)
	require.NoError(t, err)

	f.store.saveErr = errors.New("disk full")
	_, err = p.ChangeQuantity(ctx, 1, domain.Increment)
	require.Error(t, err)

	view, err := p.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Lines[0].Quantity)
}

var user = identity.Caller{User: &domain.User{ID: 1}}

func TestServer_ItemsUseCartItemPrice(t *testing.T) {
	f := newFixture(variant(5, 200000, 8))
	f.backend.items = []domain.RemoteCartItem{
		{ID: 1, Price: decimal.NewFromInt(180000), Quantity: 2, Variant: variant(5, 200000, 8)},
	}

	view, err := f.svc.For(user).Items(context.Background())
	require.NoError(t, err)
	assert.False(t, view.Guest)
	require.Len(t, view.Lines, 1)
	assert.True(t, view.Lines[0].UnitPrice.Equal(decimal.NewFromInt(180000)))
	assert.True(t, view.Subtotal.Equal(decimal.NewFromInt(360000)))
}

func TestServer_ItemsCached(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.svc.For(user).Items(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.backend.GetCalls)
}

func TestServer_ChangeQuantityOptimisticThenRollback(t *testing.T) {
	f := newFixture(variant(5, 100, 8))
	f.backend.items = []domain.RemoteCartItem{{ID: 1, Price: decimal.NewFromInt(100), Quantity: 2, Variant: variant(5, 100, 8)}}
	ctx := context.Background()
	p := f.svc.For(user)

	var during int
	f.backend.OnUpdate = func() {
		v, err := p.Items(ctx)
		if assert.NoError(t, err) {
			during = v.Lines[0].Quantity
		}
	}
	f.backend.UpdateErr = &backend.Error{Status: http.StatusBadGateway, Message: "down"}

	_, err := p.ChangeQuantity(ctx, 5, domain.Increment)
	require.Error(t, err)
	assert.Equal(t, 3, during, "optimistic value visible while persisting")

	view, err := p.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Lines[0].Quantity, "rolled back after failure")
}

func TestServer_ChangeQuantityPersists(t *testing.T) {
	f := newFixture(variant(5, 100, 8))
	f.backend.items = []domain.RemoteCartItem{{ID: 1, Price: decimal.NewFromInt(100), Quantity: 2, Variant: variant(5, 100, 8)}}
	ctx := context.Background()

	view, err := f.svc.For(user).ChangeQuantity(ctx, 5, domain.Decrement)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Lines[0].Quantity)

	view, err = f.svc.For(user).Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Lines[0].Quantity)
	assert.Equal(t, 2, f.backend.GetCalls, "invalidated after success")
}

func TestServer_RemoveAlreadyGoneIsSuccess(t *testing.T) {
	f := newFixture(variant(5, 100, 8))
	f.backend.items = []domain.RemoteCartItem{{ID: 1, Price: decimal.NewFromInt(100), Quantity: 2, Variant: variant(5, 100, 8)}}
	ctx := context.Background()
	p := f.svc.For(user)

	_, err := p.Items(ctx)
	require.NoError(t, err)
	f.backend.RemoveErr = &backend.Error{Status: http.StatusNotFound, Message: "gone"}

	view, err := p.RemoveItem(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)

	view, err = p.RemoveItem(ctx, 6)
	require.NoError(t, err)
	assert.NotNil(t, view)
}

func TestServer_AddItemErrors(t *testing.T) {
	f := newFixture(variant(5, 100, 8))
	ctx := context.Background()
	p := f.svc.For(user)

	view, err := p.AddItem(ctx, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Count)

	_, err = p.AddItem(ctx, 99, 1)
	assert.ErrorIs(t, err, ErrVariantNotFound)

	f.backend.AddErr = &backend.Error{Status: http.StatusUnprocessableEntity, Message: "not enough stock"}
	_, err = p.AddItem(ctx, 5, 100)
	assert.ErrorIs(t, err, ErrOutOfStock)
}

func TestMerge_MovesGuestEntries(t *testing.T) {
	f := newFixture(variant(1, 100, 9), variant(2, 100, 9))
	f.seedGuest(t, domain.LocalCartEntry{VariantID: 1, Quantity: 2}, domain.LocalCartEntry{VariantID: 2, Quantity: 1})
	ctx := context.Background()

	view, err := f.svc.Merge(ctx, guest.GuestID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Count)
	assert.Empty(t, f.persisted(t))
}

func TestMerge_PartialFailureKeepsRemainder(t *testing.T) {
	f := newFixture(variant(1, 100, 9), variant(2, 100, 9))
	f.seedGuest(t, domain.LocalCartEntry{VariantID: 1, Quantity: 2}, domain.LocalCartEntry{VariantID: 2, Quantity: 1})
	f.backend.AddFailFrom = 2

	_, err := f.svc.Merge(context.Background(), guest.GuestID, 1)
	require.Error(t, err)
	assert.Equal(t, []domain.LocalCartEntry{{VariantID: 2, Quantity: 1}}, f.persisted(t))
}

func TestPruneGuest(t *testing.T) {
	f := newFixture(variant(1, 100, 9), variant(2, 100, 9))
	f.seedGuest(t, domain.LocalCartEntry{VariantID: 1, Quantity: 2}, domain.LocalCartEntry{VariantID: 2, Quantity: 1})
	ctx := context.Background()

	require.NoError(t, f.svc.PruneGuest(ctx, guest.GuestID, []int64{1}))
	assert.Equal(t, []domain.LocalCartEntry{{VariantID: 2, Quantity: 1}}, f.persisted(t))

	saves := f.store.Saves()
	require.NoError(t, f.svc.PruneGuest(ctx, guest.GuestID, []int64{42}))
	assert.Equal(t, saves, f.store.Saves(), "nothing purchased, nothing written")
}

func TestLines_OrderAndMissing(t *testing.T) {
	f := newFixture(variant(1, 100, 9), variant(2, 100, 9))
	f.seedGuest(t, domain.LocalCartEntry{VariantID: 1, Quantity: 2}, domain.LocalCartEntry{VariantID: 2, Quantity: 1})
	ctx := context.Background()

	lines, err := f.svc.Lines(ctx, guest, []int64{2, 1})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, int64(2), lines[0].VariantID)

	_, err = f.svc.Lines(ctx, guest, []int64{3})
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestMutationsReleaseLocks(t *testing.T) {
	f := newFixture(variant(1, 100, 9))
	_, err := f.svc.For(guest).AddItem(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, f.svc.locks.Len())
}
