package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

// Pricing is the backend shipping fee endpoint.
type Pricing interface {
	CalculateShipping(ctx context.Context, subtotal decimal.Decimal, province string) (decimal.Decimal, error)
}

// Quote is a shipping fee. Fallback marks a fee computed from the local rule
// instead of the pricing service.
type Quote struct {
	Fee      decimal.Decimal
	Fallback bool
}

// ShippingQuoter asks the pricing service for a fee and falls back to the
// shared shipping rule when it fails or its breaker is open.
type ShippingQuoter struct {
	pricing Pricing
	rule    domain.ShippingRule
	cb      *gobreaker.CircuitBreaker[decimal.Decimal]
	log     *slog.Logger
}

func NewShippingQuoter(pricing Pricing, rule domain.ShippingRule, log *slog.Logger) *ShippingQuoter {
	settings := gobreaker.Settings{
		Name:        "pricing",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// the caller went away; says nothing about the pricing service
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return &ShippingQuoter{
		pricing: pricing,
		rule:    rule,
		cb:      gobreaker.NewCircuitBreaker[decimal.Decimal](settings),
		log:     log,
	}
}

// Quote never fails: without a province, or when pricing is unavailable, the
// fee comes from the local rule.
func (q *ShippingQuoter) Quote(ctx context.Context, subtotal decimal.Decimal, province string) Quote {
	province = strings.TrimSpace(province)
	if province == "" {
		return q.fallback(subtotal)
	}

	fee, err := q.cb.Execute(func() (decimal.Decimal, error) {
		fee, err := q.pricing.CalculateShipping(ctx, subtotal, province)
		if err != nil {
			return decimal.Zero, err
		}
		if fee.IsNegative() {
			return decimal.Zero, fmt.Errorf("negative shipping fee %s", fee)
		}
		return fee, nil
	})
	if err != nil {
		q.log.WarnContext(ctx, "shipping quote failed, using fallback rule",
			"province", province, "subtotal", subtotal.String(), "error", err)
		return q.fallback(subtotal)
	}
	return Quote{Fee: fee}
}

func (q *ShippingQuoter) fallback(subtotal decimal.Decimal) Quote {
	return Quote{Fee: q.rule.Fee(subtotal), Fallback: true}
}
