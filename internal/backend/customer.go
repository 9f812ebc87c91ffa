package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/shopspring/decimal"
)

func (c *Client) Profile(ctx context.Context) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, http.MethodGet, "/auth/profile", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) ListAddresses(ctx context.Context) ([]domain.Address, error) {
	var out []domain.Address
	if err := c.do(ctx, http.MethodGet, "/addresses", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateAddress(ctx context.Context, a domain.Address) (*domain.Address, error) {
	var out domain.Address
	if err := c.do(ctx, http.MethodPost, "/addresses", a, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateAddress(ctx context.Context, id int64, a domain.Address) (*domain.Address, error) {
	var out domain.Address
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/addresses/%d", id), a, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteAddress(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/addresses/%d", id), nil, nil)
}

func (c *Client) SetDefaultAddress(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/addresses/%d/default", id), nil, nil)
}

func (c *Client) SavedVouchers(ctx context.Context) ([]domain.Voucher, error) {
	var out []domain.Voucher
	if err := c.do(ctx, http.MethodGet, "/vouchers/saved", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type checkVoucherRequest struct {
	Code     string          `json:"code"`
	SubTotal decimal.Decimal `json:"subTotal"`
}

// CheckVoucher looks a code up; the backend answers 404 for unknown codes.
func (c *Client) CheckVoucher(ctx context.Context, code string, subtotal decimal.Decimal) (*domain.Voucher, error) {
	var out domain.Voucher
	if err := c.do(ctx, http.MethodPost, "/vouchers/check", checkVoucherRequest{Code: code, SubTotal: subtotal}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SaveVoucher(ctx context.Context, voucherID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/vouchers/%d/save", voucherID), nil, nil)
}
