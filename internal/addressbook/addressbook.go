// Package addressbook selects shipping addresses: the address book of an
// authenticated user, or the single most recent address of a guest.
package addressbook

import (
	"context"
	"errors"
	"fmt"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/backend"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/cache"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/identity"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/storage"
)

var ErrAddressNotFound = errors.New("address not found")

type Backend interface {
	ListAddresses(ctx context.Context) ([]domain.Address, error)
	CreateAddress(ctx context.Context, a domain.Address) (*domain.Address, error)
	UpdateAddress(ctx context.Context, id int64, a domain.Address) (*domain.Address, error)
	DeleteAddress(ctx context.Context, id int64) error
	SetDefaultAddress(ctx context.Context, id int64) error
}

type Service struct {
	backend Backend
	local   storage.LocalStore
	queries *cache.Queries
}

func NewService(b Backend, local storage.LocalStore, queries *cache.Queries) *Service {
	return &Service{backend: b, local: local, queries: queries}
}

// List returns the user's addresses with at most one marked default.
func (s *Service) List(ctx context.Context, userID int64) ([]domain.Address, error) {
	return cache.Fetch(ctx, s.queries, cache.AddressesKey(userID), func(ctx context.Context) ([]domain.Address, error) {
		list, err := s.backend.ListAddresses(ctx)
		if err != nil {
			return nil, fmt.Errorf("list addresses: %w", err)
		}
		return singleDefault(list), nil
	})
}

func (s *Service) Create(ctx context.Context, userID int64, a domain.Address) (*domain.Address, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	created, err := s.backend.CreateAddress(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("create address: %w", err)
	}
	s.queries.Invalidate(ctx, cache.AddressesKey(userID))
	return created, nil
}

func (s *Service) Update(ctx context.Context, userID, id int64, a domain.Address) (*domain.Address, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	updated, err := s.backend.UpdateAddress(ctx, id, a)
	if err != nil {
		return nil, notFound(err, "update address")
	}
	s.queries.Invalidate(ctx, cache.AddressesKey(userID))
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if err := s.backend.DeleteAddress(ctx, id); err != nil {
		return notFound(err, "delete address")
	}
	s.queries.Invalidate(ctx, cache.AddressesKey(userID))
	return nil
}

func (s *Service) SetDefault(ctx context.Context, userID, id int64) error {
	if err := s.backend.SetDefaultAddress(ctx, id); err != nil {
		return notFound(err, "set default address")
	}
	s.queries.Invalidate(ctx, cache.AddressesKey(userID))
	return nil
}

func (s *Service) GuestAddress(ctx context.Context, guestID string) (*domain.Address, error) {
	addr, err := cache.Fetch(ctx, s.queries, cache.GuestAddressKey(guestID), func(ctx context.Context) (*domain.Address, error) {
		return s.local.LoadGuestAddress(ctx, guestID)
	})
	if err != nil {
		return nil, fmt.Errorf("load guest address: %w", err)
	}
	return addr, nil
}

// SaveGuestAddress replaces the guest's most recent address.
func (s *Service) SaveGuestAddress(ctx context.Context, guestID string, a domain.Address) error {
	if err := a.Validate(); err != nil {
		return err
	}
	a.ID = 0
	a.IsDefault = false
	if err := s.local.SaveGuestAddress(ctx, guestID, a); err != nil {
		return fmt.Errorf("save guest address: %w", err)
	}
	s.queries.Invalidate(ctx, cache.GuestAddressKey(guestID))
	return nil
}

// DefaultFor is the address checkout starts from: the user's default address,
// or the guest's most recent one. It returns nil when there is none.
func (s *Service) DefaultFor(ctx context.Context, caller identity.Caller) (*domain.Address, error) {
	if caller.Guest() {
		return s.GuestAddress(ctx, caller.GuestID)
	}
	list, err := s.List(ctx, caller.User.ID)
	if err != nil {
		return nil, err
	}
	if a, ok := domain.DefaultAddress(list); ok {
		return &a, nil
	}
	return nil, nil
}

// Remember records a checkout address chosen by a guest. Users keep their
// address book as is.
func (s *Service) Remember(ctx context.Context, caller identity.Caller, a domain.Address) error {
	if !caller.Guest() {
		return nil
	}
	return s.SaveGuestAddress(ctx, caller.GuestID, a)
}

func singleDefault(list []domain.Address) []domain.Address {
	seen := false
	for i := range list {
		if list[i].IsDefault {
			if seen {
				list[i].IsDefault = false
			}
			seen = true
		}
	}
	return list
}

func notFound(err error, op string) error {
	if backend.IsNotFound(err) {
		return fmt.Errorf("%s: %w", op, ErrAddressNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
