package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Origin string

const (
	OriginGuest         Origin = "guest"
	OriginAuthenticated Origin = "authenticated"
)

// CheckoutSession is the per-tab snapshot of selected lines driving the checkout page.
type CheckoutSession struct {
	ID               string          `json:"id"`
	Origin           Origin          `json:"origin"`
	OwnerID          string          `json:"ownerId"`
	Items            []CartLine      `json:"items"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Total            decimal.Decimal `json:"total"`
	CreatedAt        time.Time       `json:"createdAt"`
	IdempotencyKey   string          `json:"idempotencyKey"`
	Address          *Address        `json:"address,omitempty"`
	ShippingFee      decimal.Decimal `json:"shippingFee"`
	ShippingFallback bool            `json:"shippingFallback"`
	ShippingProvince string          `json:"shippingProvince,omitempty"`
	Voucher          *Voucher        `json:"voucher,omitempty"`
	Discount         decimal.Decimal `json:"discount"`
}

// Recalculate refreshes the subtotal and total from items, shipping and discount.
func (s *CheckoutSession) Recalculate() {
	sub := decimal.Zero
	for _, l := range s.Items {
		sub = sub.Add(l.Subtotal())
	}
	s.Subtotal = sub
	total := sub.Add(s.ShippingFee).Sub(s.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	s.Total = total
}

func (s *CheckoutSession) VariantIDs() []int64 {
	ids := make([]int64, len(s.Items))
	for i, l := range s.Items {
		ids[i] = l.VariantID
	}
	return ids
}

type PaymentMethod string

const (
	PaymentCOD   PaymentMethod = "COD"
	PaymentVNPay PaymentMethod = "VNPAY"
	PaymentMoMo  PaymentMethod = "MOMO"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCOD, PaymentVNPay, PaymentMoMo:
		return true
	}
	return false
}

func (m PaymentMethod) Online() bool {
	return m != PaymentCOD
}

type OrderItem struct {
	VariantID int64           `json:"variantId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderRequest is the payload accepted by the order-creation endpoint.
type OrderRequest struct {
	RecipientName  string          `json:"recipientName"`
	Email          string          `json:"email,omitempty"`
	Phone          string          `json:"phone"`
	Province       string          `json:"province"`
	District       string          `json:"district"`
	Ward           string          `json:"ward"`
	AddressDetail  string          `json:"addressDetail"`
	Note           string          `json:"note,omitempty"`
	Items          []OrderItem     `json:"items"`
	ShippingFee    decimal.Decimal `json:"shippingFee"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	PaymentMethod  PaymentMethod   `json:"paymentMethod"`
	VoucherCode    string          `json:"voucherCode,omitempty"`
	Discount       decimal.Decimal `json:"discount"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

// OrderResult is what the client holds right after creation.
type OrderResult struct {
	OrderID       int64           `json:"orderId"`
	OrderCode     string          `json:"orderCode"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	PaymentURL    string          `json:"paymentUrl,omitempty"`
}

type NextStepKind string

const (
	NextConfirmation NextStepKind = "confirmation"
	NextRedirect     NextStepKind = "redirect"
)

// NextStep tells the client where to go after a successful submission.
type NextStep struct {
	Kind      NextStepKind `json:"kind"`
	OrderCode string       `json:"orderCode"`
	URL       string       `json:"url"`
}

func NextStepFor(res OrderResult) NextStep {
	if res.PaymentMethod.Online() && res.PaymentURL != "" {
		return NextStep{Kind: NextRedirect, OrderCode: res.OrderCode, URL: res.PaymentURL}
	}
	return NextStep{Kind: NextConfirmation, OrderCode: res.OrderCode, URL: "/order-confirmation/" + res.OrderCode}
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentPaid || s == PaymentFailed || s == PaymentCancelled
}

func (s PaymentStatus) String() string {
	return string(s)
}

type PaymentConfirmation struct {
	OrderID   int64         `json:"orderId"`
	OrderCode string        `json:"orderCode"`
	Status    PaymentStatus `json:"status"`
}
