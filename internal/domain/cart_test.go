package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestClampQuantity(t *testing.T) {
	tests := []struct {
		name                      string
		current, delta, inventory int
		want                      int
	}{
		{"increment", 2, 1, 5, 3},
		{"increment at inventory", 5, 1, 5, 5},
		{"decrement", 3, -1, 5, 2},
		{"decrement at one", 1, -1, 5, 1},
		{"inventory shrank below quantity", 4, -1, 2, 2},
		{"no inventory", 1, 1, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampQuantity(tt.current, tt.delta, tt.inventory))
		})
	}
}

func TestDirection_Delta(t *testing.T) {
	d, ok := Increment.Delta()
	assert.True(t, ok)
	assert.Equal(t, 1, d)

	d, ok = Decrement.Delta()
	assert.True(t, ok)
	assert.Equal(t, -1, d)

	_, ok = Direction("up").Delta()
	assert.False(t, ok)
}

func TestCartLine_Validate(t *testing.T) {
	line := CartLine{VariantID: 1, Quantity: 2, InventoryAvailable: 2}
	assert.NoError(t, line.Validate())

	line.Quantity = 3
	err := line.Validate()
	v, ok := AsValidation(err)
	assert.True(t, ok)
	assert.Equal(t, "quantity", v.Field)

	line.Quantity = 0
	assert.Error(t, line.Validate())
}

func TestNewCartView_Totals(t *testing.T) {
	view := NewCartView(true, []CartLine{
		{VariantID: 1, Quantity: 3, UnitPrice: decimal.NewFromInt(150000)},
		{VariantID: 2, Quantity: 1, UnitPrice: decimal.NewFromInt(100000)},
	})

	assert.Equal(t, 4, view.Count)
	assert.True(t, view.Subtotal.Equal(decimal.NewFromInt(550000)))

	empty := NewCartView(false, nil)
	assert.NotNil(t, empty.Lines)
	assert.Zero(t, empty.Count)
}

func TestCartView_CloneIsIndependent(t *testing.T) {
	view := NewCartView(true, []CartLine{{VariantID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(10)}})

	clone := view.Clone()
	clone.Lines[0].Quantity = 9

	assert.Equal(t, 1, view.Lines[0].Quantity)
}

func TestLineFromVariant(t *testing.T) {
	v := Variant{
		ID: 4, Price: decimal.NewFromInt(99000), Inventory: 7,
		Size: &Label{Name: "M"}, Product: ProductRef{ID: 1, Name: "Tee"},
	}

	line := LineFromVariant(v, 2)

	assert.Equal(t, int64(4), line.VariantID)
	assert.Equal(t, 7, line.InventoryAvailable)
	assert.Equal(t, "M", line.SizeLabel)
	assert.Empty(t, line.ColorLabel)
	assert.True(t, line.Subtotal().Equal(decimal.NewFromInt(198000)))
}
