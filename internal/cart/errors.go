package cart

import "errors"

var (
	ErrOutOfStock       = errors.New("variant is out of stock")
	ErrVariantNotFound  = errors.New("variant not found")
	ErrItemNotFound     = errors.New("item not found in cart")
	ErrInvalidDirection = errors.New("direction must be inc or dec")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
)
