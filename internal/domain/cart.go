package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductRef is the parent product summary shown next to a cart line.
type ProductRef struct {
	ID    int64  `json:"id" bson:"id"`
	Name  string `json:"name" bson:"name"`
	Image string `json:"image" bson:"image"`
	Slug  string `json:"slug" bson:"slug"`
}

// Variant is a purchasable SKU as returned by the catalog.
type Variant struct {
	ID        int64           `json:"id"`
	Price     decimal.Decimal `json:"price"`
	Inventory int             `json:"inventory"`
	Size      *Label          `json:"size,omitempty"`
	Color     *Label          `json:"color,omitempty"`
	Product   ProductRef      `json:"product"`
}

type Label struct {
	Name string `json:"name"`
}

func (v Variant) SizeLabel() string {
	if v.Size == nil {
		return ""
	}
	return v.Size.Name
}

func (v Variant) ColorLabel() string {
	if v.Color == nil {
		return ""
	}
	return v.Color.Name
}

type CartLine struct {
	VariantID          int64           `json:"variantId"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unitPrice"`
	InventoryAvailable int             `json:"inventoryAvailable"`
	Product            ProductRef      `json:"product"`
	SizeLabel          string          `json:"sizeLabel"`
	ColorLabel         string          `json:"colorLabel"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Validate reports whether the line can be displayed as purchasable or submitted.
func (l CartLine) Validate() error {
	if l.Quantity <= 0 || l.Quantity > l.InventoryAvailable {
		return &ValidationError{
			Field:   "quantity",
			Message: "quantity must be between 1 and the available inventory",
		}
	}
	return nil
}

// LocalCartEntry is the guest persistence unit.
type LocalCartEntry struct {
	VariantID int64 `json:"variantId" bson:"variant_id"`
	Quantity  int   `json:"quantity" bson:"quantity"`
}

// RemoteCart is the single active server-side cart of an authenticated user.
type RemoteCart struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"userId"`
	Items     []RemoteCartItem `json:"items"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// RemoteCartItem carries the price negotiated when the item was added.
type RemoteCartItem struct {
	ID       int64           `json:"id"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Variant  Variant         `json:"variant"`
}

// CartView is the unified cart presented to every consumer regardless of auth state.
type CartView struct {
	Guest    bool            `json:"guest"`
	Lines    []CartLine      `json:"lines"`
	Count    int             `json:"count"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// NewCartView computes the derived totals of lines.
func NewCartView(guest bool, lines []CartLine) *CartView {
	if lines == nil {
		lines = []CartLine{}
	}
	v := &CartView{Guest: guest, Lines: lines, Subtotal: decimal.Zero}
	for _, l := range lines {
		v.Count += l.Quantity
		v.Subtotal = v.Subtotal.Add(l.Subtotal())
	}
	return v
}

// Line returns the line for variantID, if present.
func (v *CartView) Line(variantID int64) (CartLine, bool) {
	for _, l := range v.Lines {
		if l.VariantID == variantID {
			return l, true
		}
	}
	return CartLine{}, false
}

// Clone returns a deep copy safe to mutate.
func (v *CartView) Clone() *CartView {
	lines := make([]CartLine, len(v.Lines))
	copy(lines, v.Lines)
	return NewCartView(v.Guest, lines)
}

type Direction string

const (
	Increment Direction = "inc"
	Decrement Direction = "dec"
)

func (d Direction) Delta() (int, bool) {
	switch d {
	case Increment:
		return 1, true
	case Decrement:
		return -1, true
	default:
		return 0, false
	}
}

// ClampQuantity applies delta and keeps the result within [1, inventory].
// A variant with no inventory still clamps to 1; checkout rejects such lines.
func ClampQuantity(current, delta, inventory int) int {
	n := current + delta
	if n > inventory {
		n = inventory
	}
	if n < 1 {
		n = 1
	}
	return n
}

func LineFromVariant(v Variant, quantity int) CartLine {
	return CartLine{
		VariantID:          v.ID,
		Quantity:           quantity,
		UnitPrice:          v.Price,
		InventoryAvailable: v.Inventory,
		Product:            v.Product,
		SizeLabel:          v.SizeLabel(),
		ColorLabel:         v.ColorLabel(),
	}
}
