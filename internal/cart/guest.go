package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/cache"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/storage"
)

// guestProvider serves a cart persisted in the LocalStore as a cached query
// over that store.
type guestProvider struct {
	svc     *Service
	guestID string
}

func (g *guestProvider) key() cache.Key { return cache.GuestCartKey(g.guestID) }

func (g *guestProvider) lockKey() string { return "guest:" + g.guestID }

func (g *guestProvider) Items(ctx context.Context) (*domain.CartView, error) {
	return cache.Fetch(ctx, g.svc.queries, g.key(), g.load)
}

// load hydrates the stored entries with one batch variant lookup. Entries whose
// variant no longer resolves are left out of the view but kept in storage.
func (g *guestProvider) load(ctx context.Context) (*domain.CartView, error) {
	entries, err := g.svc.local.LoadCart(ctx, g.guestID)
	if err != nil {
		return nil, fmt.Errorf("load guest cart: %w", err)
	}
	if len(entries) == 0 {
		return domain.NewCartView(true, nil), nil
	}

	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.VariantID
	}
	variants, err := g.svc.backend.VariantsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate guest cart: %w", err)
	}
	byID := make(map[int64]domain.Variant, len(variants))
	for _, v := range variants {
		byID[v.ID] = v
	}

	lines := make([]domain.CartLine, 0, len(entries))
	for _, e := range entries {
		v, ok := byID[e.VariantID]
		if !ok {
			g.svc.log.DebugContext(ctx, "dropping unresolvable guest cart entry", "guest_id", g.guestID, "variant_id", e.VariantID)
			continue
		}
		lines = append(lines, domain.LineFromVariant(v, e.Quantity))
	}
	return domain.NewCartView(true, lines), nil
}

func (g *guestProvider) ChangeQuantity(ctx context.Context, variantID int64, direction domain.Direction) (*domain.CartView, error) {
	delta, ok := direction.Delta()
	if !ok {
		return nil, ErrInvalidDirection
	}
	unlock := g.svc.locks.Lock(g.lockKey())
	defer unlock()

	view, err := g.Items(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := g.svc.local.LoadCart(ctx, g.guestID)
	if err != nil {
		return nil, fmt.Errorf("load guest cart: %w", err)
	}
	line, ok := view.Line(variantID)
	idx := entryIndex(entries, variantID)
	if !ok || idx < 0 {
		return nil, fmt.Errorf("%w: variant %d", ErrItemNotFound, variantID)
	}

	qty := domain.ClampQuantity(entries[idx].Quantity, delta, line.InventoryAvailable)
	if qty == entries[idx].Quantity && qty == line.Quantity {
		return view, nil
	}

	next := withQuantity(view, variantID, qty)
	return g.svc.apply(ctx, g.key(), view, next, func(ctx context.Context) error {
		err := g.svc.local.StepEntry(ctx, g.guestID, variantID, delta, line.InventoryAvailable)
		if errors.Is(err, storage.ErrEntryNotFound) {
			return fmt.Errorf("%w: variant %d", ErrItemNotFound, variantID)
		}
		return wrapSave(err)
	})
}

// RemoveItem of a variant that is not in the cart leaves storage untouched.
func (g *guestProvider) RemoveItem(ctx context.Context, variantID int64) (*domain.CartView, error) {
	unlock := g.svc.locks.Lock(g.lockKey())
	defer unlock()

	entries, err := g.svc.local.LoadCart(ctx, g.guestID)
	if err != nil {
		return nil, fmt.Errorf("load guest cart: %w", err)
	}
	view, err := g.Items(ctx)
	if err != nil {
		return nil, err
	}
	if entryIndex(entries, variantID) < 0 {
		return view, nil
	}

	return g.svc.apply(ctx, g.key(), view, without(view, variantID), func(ctx context.Context) error {
		return wrapSave(g.svc.local.RemoveEntries(ctx, g.guestID, variantID))
	})
}

// AddItem merges into an existing entry or appends a new one. The resulting
// quantity never exceeds the variant inventory.
func (g *guestProvider) AddItem(ctx context.Context, variantID int64, quantity int) (*domain.CartView, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	unlock := g.svc.locks.Lock(g.lockKey())
	defer unlock()

	variants, err := g.svc.backend.VariantsByIDs(ctx, []int64{variantID})
	if err != nil {
		return nil, fmt.Errorf("lookup variant: %w", err)
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrVariantNotFound, variantID)
	}
	variant := variants[0]
	if variant.Inventory <= 0 {
		return nil, fmt.Errorf("%w: variant %d", ErrOutOfStock, variantID)
	}

	entries, err := g.svc.local.LoadCart(ctx, g.guestID)
	if err != nil {
		return nil, fmt.Errorf("load guest cart: %w", err)
	}
	view, err := g.Items(ctx)
	if err != nil {
		return nil, err
	}

	var next *domain.CartView
	if idx := entryIndex(entries, variantID); idx >= 0 {
		qty := min(entries[idx].Quantity+quantity, variant.Inventory)
		if _, ok := view.Line(variantID); ok {
			next = withQuantity(view, variantID, qty)
		} else {
			next = domain.NewCartView(true, append(view.Clone().Lines, domain.LineFromVariant(variant, qty)))
		}
	} else {
		qty := min(quantity, variant.Inventory)
		next = domain.NewCartView(true, append(view.Clone().Lines, domain.LineFromVariant(variant, qty)))
	}

	return g.svc.apply(ctx, g.key(), view, next, func(ctx context.Context) error {
		return wrapSave(g.svc.local.AddEntry(ctx, g.guestID, variantID, quantity, variant.Inventory))
	})
}

func wrapSave(err error) error {
	if err != nil {
		return fmt.Errorf("save guest cart: %w", err)
	}
	return nil
}

func entryIndex(entries []domain.LocalCartEntry, variantID int64) int {
	for i, e := range entries {
		if e.VariantID == variantID {
			return i
		}
	}
	return -1
}
