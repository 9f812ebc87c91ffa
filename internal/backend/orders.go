package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/shopspring/decimal"
)

type shippingRequest struct {
	SubTotal         decimal.Decimal `json:"subTotal"`
	CustomerProvince string          `json:"customerProvince"`
}

type shippingResponse struct {
	ShippingFee decimal.Decimal `json:"shippingFee"`
}

func (c *Client) CalculateShipping(ctx context.Context, subtotal decimal.Decimal, province string) (decimal.Decimal, error) {
	var resp shippingResponse
	err := c.do(ctx, http.MethodPost, "/orders/calculate-shipping", shippingRequest{SubTotal: subtotal, CustomerProvince: province}, &resp)
	if err != nil {
		return decimal.Zero, err
	}
	return resp.ShippingFee, nil
}

// CreateOrder submits an order; the idempotency key is also sent as a header so
// the backend can deduplicate retries.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	var res domain.OrderResult
	err := c.do(ctx, http.MethodPost, "/orders/create", req, &res, withHeader("Idempotency-Key", req.IdempotencyKey))
	if err != nil {
		return nil, err
	}
	if res.PaymentMethod == "" {
		res.PaymentMethod = req.PaymentMethod
	}
	return &res, nil
}

type OrderVerification struct {
	OrderCode     string               `json:"orderCode"`
	Status        string               `json:"status"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	PaymentStatus domain.PaymentStatus `json:"paymentStatus"`
	TotalAmount   decimal.Decimal      `json:"totalAmount"`
}

func (c *Client) VerifyOrder(ctx context.Context, orderCode string) (*OrderVerification, error) {
	var res OrderVerification
	if err := c.do(ctx, http.MethodGet, "/orders/verify/"+url.PathEscape(orderCode), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ConfirmPayment(ctx context.Context, orderID int64) (*domain.PaymentConfirmation, error) {
	var res domain.PaymentConfirmation
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/confirm-payment/%d", orderID), nil, &res); err != nil {
		return nil, err
	}
	if res.OrderID == 0 {
		res.OrderID = orderID
	}
	return &res, nil
}
