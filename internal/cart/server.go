package cart

import (
	"context"
	"fmt"
	"net/http"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/backend"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/cache"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
)

// serverProvider writes every mutation through to the backend cart.
type serverProvider struct {
	svc    *Service
	userID int64
}

func (p *serverProvider) key() cache.Key { return cache.UserCartKey(p.userID) }

func (p *serverProvider) lockKey() string { return fmt.Sprintf("user:%d", p.userID) }

func (p *serverProvider) Items(ctx context.Context) (*domain.CartView, error) {
	return cache.Fetch(ctx, p.svc.queries, p.key(), p.load)
}

// load reads the user's single active cart. Lines keep the price recorded on
// the cart item rather than the current variant price.
func (p *serverProvider) load(ctx context.Context) (*domain.CartView, error) {
	carts, err := p.svc.backend.GetCart(ctx)
	if err != nil {
		return nil, fmt.Errorf("get server cart: %w", err)
	}
	if len(carts) == 0 {
		return domain.NewCartView(false, nil), nil
	}

	items := carts[0].Items
	lines := make([]domain.CartLine, 0, len(items))
	for _, it := range items {
		line := domain.LineFromVariant(it.Variant, it.Quantity)
		line.UnitPrice = it.Price
		lines = append(lines, line)
	}
	return domain.NewCartView(false, lines), nil
}

func (p *serverProvider) ChangeQuantity(ctx context.Context, variantID int64, direction domain.Direction) (*domain.CartView, error) {
	delta, ok := direction.Delta()
	if !ok {
		return nil, ErrInvalidDirection
	}
	unlock := p.svc.locks.Lock(p.lockKey())
	defer unlock()

	view, err := p.Items(ctx)
	if err != nil {
		return nil, err
	}
	line, ok := view.Line(variantID)
	if !ok {
		return nil, fmt.Errorf("%w: variant %d", ErrItemNotFound, variantID)
	}
	qty := domain.ClampQuantity(line.Quantity, delta, line.InventoryAvailable)
	if qty == line.Quantity {
		return view, nil
	}

	return p.svc.apply(ctx, p.key(), view, withQuantity(view, variantID, qty), func(ctx context.Context) error {
		if err := p.svc.backend.UpdateCartItemQuantity(ctx, variantID, qty); err != nil {
			return fmt.Errorf("update cart item quantity: %w", err)
		}
		return nil
	})
}

// RemoveItem treats a variant already gone on the server as removed.
func (p *serverProvider) RemoveItem(ctx context.Context, variantID int64) (*domain.CartView, error) {
	unlock := p.svc.locks.Lock(p.lockKey())
	defer unlock()

	view, err := p.Items(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := view.Line(variantID); !ok {
		return view, nil
	}

	return p.svc.apply(ctx, p.key(), view, without(view, variantID), func(ctx context.Context) error {
		if err := p.svc.backend.RemoveCartItem(ctx, variantID); err != nil && !backend.IsNotFound(err) {
			return fmt.Errorf("remove cart item: %w", err)
		}
		return nil
	})
}

func (p *serverProvider) AddItem(ctx context.Context, variantID int64, quantity int) (*domain.CartView, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	unlock := p.svc.locks.Lock(p.lockKey())
	defer unlock()

	if err := p.svc.backend.AddToCart(ctx, variantID, quantity); err != nil {
		if be, ok := backend.AsError(err); ok && be.Status == http.StatusUnprocessableEntity {
			return nil, fmt.Errorf("%w: %s", ErrOutOfStock, be.Message)
		}
		if backend.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %d", ErrVariantNotFound, variantID)
		}
		return nil, fmt.Errorf("add to cart: %w", err)
	}
	p.svc.queries.Invalidate(ctx, p.key())
	return p.Items(ctx)
}
