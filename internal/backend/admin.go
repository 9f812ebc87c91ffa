package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
)

func (c *Client) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	var out []domain.Collection
	if err := c.do(ctx, http.MethodGet, "/collections", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCollection(ctx context.Context, col domain.Collection) (*domain.Collection, error) {
	var out domain.Collection
	if err := c.do(ctx, http.MethodPost, "/collections", col, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCollection(ctx context.Context, id int64, col domain.Collection) (*domain.Collection, error) {
	var out domain.Collection
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/collections/%d", id), col, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCollection(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/collections/%d", id), nil, nil)
}

func (c *Client) ListVouchers(ctx context.Context) ([]domain.Voucher, error) {
	var out []domain.Voucher
	if err := c.do(ctx, http.MethodGet, "/vouchers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateVoucher(ctx context.Context, v domain.Voucher) (*domain.Voucher, error) {
	var out domain.Voucher
	if err := c.do(ctx, http.MethodPost, "/vouchers", v, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateVoucher(ctx context.Context, id int64, v domain.Voucher) (*domain.Voucher, error) {
	var out domain.Voucher
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/vouchers/%d", id), v, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteVoucher(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/vouchers/%d", id), nil, nil)
}

func (c *Client) ListStaff(ctx context.Context) ([]domain.Staff, error) {
	var out []domain.Staff
	if err := c.do(ctx, http.MethodGet, "/staff", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type CreateStaffRequest struct {
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Phone    string      `json:"phone,omitempty"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

func (c *Client) CreateStaff(ctx context.Context, req CreateStaffRequest) (*domain.Staff, error) {
	var out domain.Staff
	if err := c.do(ctx, http.MethodPost, "/staff", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateStaff(ctx context.Context, id int64, s domain.Staff) (*domain.Staff, error) {
	var out domain.Staff
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/staff/%d", id), s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CustomerStatistics(ctx context.Context, r domain.StatisticsRange) (*domain.CustomerStatistics, error) {
	q := url.Values{}
	if !r.From.IsZero() {
		q.Set("from", r.From.Format(time.DateOnly))
	}
	if !r.To.IsZero() {
		q.Set("to", r.To.Format(time.DateOnly))
	}
	path := "/statistics/customers"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out domain.CustomerStatistics
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
