// Package voucher lists, checks and saves vouchers and computes the discount
// shown before the server settles the order total.
package voucher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/backend"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/cache"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrNotQualified = domain.ErrVoucherBelowMinimum
	ErrExpired      = domain.ErrVoucherExpired
	ErrNotFound     = errors.New("voucher not found")
	ErrRejected     = errors.New("voucher rejected")
	ErrAlreadySaved = errors.New("voucher already saved")
	ErrEmptyCode    = errors.New("voucher code is required")
)

type Backend interface {
	SavedVouchers(ctx context.Context) ([]domain.Voucher, error)
	CheckVoucher(ctx context.Context, code string, subtotal decimal.Decimal) (*domain.Voucher, error)
	SaveVoucher(ctx context.Context, voucherID int64) error
}

// Option is a saved voucher annotated for a given subtotal.
type Option struct {
	domain.Voucher
	Qualified bool            `json:"qualified"`
	Discount  decimal.Decimal `json:"discount"`
}

type Service struct {
	backend Backend
	queries *cache.Queries
	now     func() time.Time
}

func NewService(b Backend, queries *cache.Queries) *Service {
	return &Service{backend: b, queries: queries, now: time.Now}
}

// Saved lists the user's saved vouchers; each is marked qualified iff it can
// be applied to subtotal right now.
func (s *Service) Saved(ctx context.Context, userID int64, subtotal decimal.Decimal) ([]Option, error) {
	vouchers, err := cache.Fetch(ctx, s.queries, cache.SavedVouchersKey(userID), func(ctx context.Context) ([]domain.Voucher, error) {
		list, err := s.backend.SavedVouchers(ctx)
		if err != nil {
			return nil, fmt.Errorf("list saved vouchers: %w", err)
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]Option, 0, len(vouchers))
	for _, v := range vouchers {
		opt := Option{Voucher: v, Discount: decimal.Zero}
		if v.Qualified(subtotal, now) {
			opt.Qualified = true
			opt.Discount = v.Discount(subtotal)
		}
		out = append(out, opt)
	}
	return out, nil
}

// Check looks code up and rejects it unless it can be applied to subtotal.
func (s *Service) Check(ctx context.Context, code string, subtotal decimal.Decimal) (*domain.Voucher, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyCode
	}
	v, err := s.backend.CheckVoucher(ctx, code, subtotal)
	if err != nil {
		if backend.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		if be, ok := backend.AsError(err); ok && (be.Status == http.StatusBadRequest || be.Status == http.StatusUnprocessableEntity) {
			return nil, fmt.Errorf("%w: %s", ErrRejected, be.Message)
		}
		return nil, fmt.Errorf("check voucher: %w", err)
	}
	if err := v.CheckEligibility(subtotal, s.now()); err != nil {
		return nil, err
	}
	return v, nil
}

// Save adds a voucher to the user's wallet.
func (s *Service) Save(ctx context.Context, userID, voucherID int64) error {
	if err := s.backend.SaveVoucher(ctx, voucherID); err != nil {
		switch {
		case backend.IsConflict(err):
			return ErrAlreadySaved
		case backend.IsNotFound(err):
			return ErrNotFound
		}
		return fmt.Errorf("save voucher: %w", err)
	}
	s.queries.Invalidate(ctx, cache.SavedVouchersKey(userID))
	return nil
}

// Apply returns the display discount of v on subtotal, or the reason it
// cannot be applied.
func (s *Service) Apply(v domain.Voucher, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if err := v.CheckEligibility(subtotal, s.now()); err != nil {
		return decimal.Zero, err
	}
	return v.Discount(subtotal), nil
}
