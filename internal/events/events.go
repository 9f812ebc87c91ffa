// Package events publishes order lifecycle events for downstream consumers and
// reacts to them across storefront instances.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	OrderCreated          Type = "order.created"
	OrderPaymentConfirmed Type = "order.payment_confirmed"
	OrderPaymentFailed    Type = "order.payment_failed"
)

type Event struct {
	Type          Type            `json:"type"`
	OrderID       int64           `json:"orderId"`
	OrderCode     string          `json:"orderCode"`
	UserID        int64           `json:"userId,omitempty"`
	GuestID       string          `json:"guestId,omitempty"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	VariantIDs    []int64         `json:"variantIds,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}
