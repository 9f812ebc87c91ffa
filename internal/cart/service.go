// Package cart reconciles the two cart modes behind one Provider: a guest cart
// persisted in the LocalStore and the authenticated user's server cart.
package cart

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/cache"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/identity"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/keylock"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/storage"
)

// Provider is the cart capability every consumer uses regardless of auth state.
type Provider interface {
	Items(ctx context.Context) (*domain.CartView, error)
	ChangeQuantity(ctx context.Context, variantID int64, direction domain.Direction) (*domain.CartView, error)
	RemoveItem(ctx context.Context, variantID int64) (*domain.CartView, error)
	AddItem(ctx context.Context, variantID int64, quantity int) (*domain.CartView, error)
}

// Backend is the subset of the retail API the cart needs.
type Backend interface {
	GetCart(ctx context.Context) ([]domain.RemoteCart, error)
	AddToCart(ctx context.Context, variantID int64, quantity int) error
	UpdateCartItemQuantity(ctx context.Context, variantID int64, quantity int) error
	RemoveCartItem(ctx context.Context, variantID int64) error
	VariantsByIDs(ctx context.Context, ids []int64) ([]domain.Variant, error)
}

type Service struct {
	backend Backend
	local   storage.LocalStore
	queries *cache.Queries
	locks   *keylock.Map
	log     *slog.Logger
}

func NewService(b Backend, local storage.LocalStore, queries *cache.Queries, log *slog.Logger) *Service {
	return &Service{
		backend: b,
		local:   local,
		queries: queries,
		locks:   keylock.New(),
		log:     log,
	}
}

// For selects the Provider for caller. Backend credentials travel in ctx.
func (s *Service) For(caller identity.Caller) Provider {
	if caller.Guest() {
		return &guestProvider{svc: s, guestID: caller.GuestID}
	}
	return &serverProvider{svc: s, userID: caller.User.ID}
}

// Key is the cache key of caller's cart view.
func Key(caller identity.Caller) cache.Key {
	if caller.Guest() {
		return cache.GuestCartKey(caller.GuestID)
	}
	return cache.UserCartKey(caller.User.ID)
}

// Count is the badge number: the sum of quantities in caller's cart.
func (s *Service) Count(ctx context.Context, caller identity.Caller) (int, error) {
	view, err := s.For(caller).Items(ctx)
	if err != nil {
		return 0, err
	}
	return view.Count, nil
}

// Lines returns the lines of caller's cart for the given variants, in the
// order requested. Unknown variants are reported as ErrItemNotFound.
func (s *Service) Lines(ctx context.Context, caller identity.Caller, variantIDs []int64) ([]domain.CartLine, error) {
	view, err := s.For(caller).Items(ctx)
	if err != nil {
		return nil, err
	}
	lines := make([]domain.CartLine, 0, len(variantIDs))
	for _, id := range variantIDs {
		l, ok := view.Line(id)
		if !ok {
			return nil, fmt.Errorf("%w: variant %d", ErrItemNotFound, id)
		}
		lines = append(lines, l)
	}
	return lines, nil
}

// Merge moves a guest cart into the server cart of the user now logged in.
// Entries that could not be added stay in the guest cart.
func (s *Service) Merge(ctx context.Context, guestID string, userID int64) (*domain.CartView, error) {
	unlockGuest := s.locks.Lock("guest:" + guestID)
	defer unlockGuest()

	entries, err := s.local.LoadCart(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("load guest cart: %w", err)
	}
	server := &serverProvider{svc: s, userID: userID}
	if len(entries) == 0 {
		return server.Items(ctx)
	}

	unlockUser := s.locks.Lock(fmt.Sprintf("user:%d", userID))
	var mergeErr error
	merged := 0
	for _, e := range entries {
		if err := s.backend.AddToCart(ctx, e.VariantID, e.Quantity); err != nil {
			mergeErr = fmt.Errorf("merge variant %d: %w", e.VariantID, err)
			break
		}
		merged++
	}
	unlockUser()

	moved := make([]int64, merged)
	for i, e := range entries[:merged] {
		moved[i] = e.VariantID
	}
	if err := s.local.RemoveEntries(ctx, guestID, moved...); err != nil {
		s.log.ErrorContext(ctx, "removing merged guest cart entries", "guest_id", guestID, "error", err)
	}
	s.queries.Invalidate(ctx, cache.GuestCartKey(guestID), cache.UserCartKey(userID))
	if mergeErr != nil {
		return nil, mergeErr
	}
	return server.Items(ctx)
}

// PruneGuest removes purchased variants from a guest cart.
func (s *Service) PruneGuest(ctx context.Context, guestID string, variantIDs []int64) error {
	unlock := s.locks.Lock("guest:" + guestID)
	defer unlock()

	entries, err := s.local.LoadCart(ctx, guestID)
	if err != nil {
		return fmt.Errorf("load guest cart: %w", err)
	}
	purchased := make(map[int64]struct{}, len(variantIDs))
	for _, id := range variantIDs {
		purchased[id] = struct{}{}
	}
	var drop []int64
	for _, e := range entries {
		if _, ok := purchased[e.VariantID]; ok {
			drop = append(drop, e.VariantID)
		}
	}
	if len(drop) == 0 {
		return nil
	}
	if err := s.local.RemoveEntries(ctx, guestID, drop...); err != nil {
		return fmt.Errorf("save guest cart: %w", err)
	}
	s.queries.Invalidate(ctx, cache.GuestCartKey(guestID))
	return nil
}

// InvalidateUser drops the cached server cart after the backend changed it,
// e.g. when an order consumed it.
func (s *Service) InvalidateUser(ctx context.Context, userID int64) {
	s.queries.Invalidate(ctx, cache.UserCartKey(userID))
}

// apply publishes next as the cart view before persist runs and restores
// current when persist fails. On success the key is invalidated so every
// subscriber rereads the persisted state.
func (s *Service) apply(ctx context.Context, key cache.Key, current, next *domain.CartView, persist func(ctx context.Context) error) (*domain.CartView, error) {
	cache.Put(ctx, s.queries, key, next)
	if err := persist(ctx); err != nil {
		cache.Put(ctx, s.queries, key, current)
		s.log.WarnContext(ctx, "cart mutation rolled back", "key", key, "error", err)
		return nil, err
	}
	s.queries.Invalidate(ctx, key)
	return next, nil
}

func withQuantity(view *domain.CartView, variantID int64, quantity int) *domain.CartView {
	next := view.Clone()
	for i := range next.Lines {
		if next.Lines[i].VariantID == variantID {
			next.Lines[i].Quantity = quantity
		}
	}
	return domain.NewCartView(next.Guest, next.Lines)
}

func without(view *domain.CartView, variantID int64) *domain.CartView {
	lines := make([]domain.CartLine, 0, len(view.Lines))
	for _, l := range view.Lines {
		if l.VariantID != variantID {
			lines = append(lines, l)
		}
	}
	return domain.NewCartView(view.Guest, lines)
}
