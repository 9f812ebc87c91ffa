package domain

import "github.com/shopspring/decimal"

// ShippingRule is the fallback fee rule shared with the backend pricing service.
type ShippingRule struct {
	FreeThreshold decimal.Decimal
	FlatFee       decimal.Decimal
}

func DefaultShippingRule() ShippingRule {
	return ShippingRule{
		FreeThreshold: decimal.NewFromInt(500000),
		FlatFee:       decimal.NewFromInt(35000),
	}
}

func (r ShippingRule) Fee(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(r.FreeThreshold) {
		return decimal.Zero
	}
	return r.FlatFee
}
