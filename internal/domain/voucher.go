package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type VoucherKind string

const (
	VoucherPercent VoucherKind = "PERCENT"
	VoucherFixed   VoucherKind = "FIXED"
)

type VoucherStatus string

const (
	VoucherActive   VoucherStatus = "ACTIVE"
	VoucherInactive VoucherStatus = "INACTIVE"
)

var (
	ErrVoucherBelowMinimum = errors.New("order subtotal is below the voucher minimum")
	ErrVoucherExpired      = errors.New("voucher has expired")
)

type Voucher struct {
	ID            int64            `json:"id"`
	Code          string           `json:"code"`
	Name          string           `json:"name"`
	Kind          VoucherKind      `json:"kind"`
	Value         decimal.Decimal  `json:"value"`
	MaxDiscount   *decimal.Decimal `json:"maxDiscount,omitempty"`
	MinOrderValue decimal.Decimal  `json:"minOrderValue"`
	StartDate     time.Time        `json:"startDate"`
	EndDate       time.Time        `json:"endDate"`
	UsageLimit    int              `json:"usageLimit"`
	UsedCount     int              `json:"usedCount"`
	Status        VoucherStatus    `json:"status"`
}

// CheckEligibility returns nil iff subtotal reaches the minimum and now is not past the end date.
func (v Voucher) CheckEligibility(subtotal decimal.Decimal, now time.Time) error {
	if subtotal.LessThan(v.MinOrderValue) {
		return ErrVoucherBelowMinimum
	}
	if now.After(v.EndDate) {
		return ErrVoucherExpired
	}
	return nil
}

func (v Voucher) Qualified(subtotal decimal.Decimal, now time.Time) bool {
	return v.CheckEligibility(subtotal, now) == nil
}

// Discount is the display discount for subtotal. It never exceeds the subtotal.
func (v Voucher) Discount(subtotal decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch v.Kind {
	case VoucherPercent:
		d = subtotal.Mul(v.Value).Div(decimal.NewFromInt(100))
		if v.MaxDiscount != nil && d.GreaterThan(*v.MaxDiscount) {
			d = *v.MaxDiscount
		}
	case VoucherFixed:
		d = v.Value
	default:
		return decimal.Zero
	}
	if d.GreaterThan(subtotal) {
		d = subtotal
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
