package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
)

// GetCart returns the zero-or-one active cart of the authenticated caller.
func (c *Client) GetCart(ctx context.Context) ([]domain.RemoteCart, error) {
	var carts []domain.RemoteCart
	if err := c.do(ctx, http.MethodGet, "/cart", nil, &carts); err != nil {
		return nil, err
	}
	return carts, nil
}

type cartItemRequest struct {
	VariantID int64 `json:"variantId"`
	Quantity  int   `json:"quantity"`
}

func (c *Client) AddToCart(ctx context.Context, variantID int64, quantity int) error {
	return c.do(ctx, http.MethodPost, "/cart-items/add", cartItemRequest{VariantID: variantID, Quantity: quantity}, nil)
}

func (c *Client) UpdateCartItemQuantity(ctx context.Context, variantID int64, quantity int) error {
	return c.do(ctx, http.MethodPatch, "/cart-items/update-quantity", cartItemRequest{VariantID: variantID, Quantity: quantity}, nil)
}

func (c *Client) RemoveCartItem(ctx context.Context, variantID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/cart-items/%d", variantID), nil, nil)
}

type variantsByIDsRequest struct {
	VariantIDs []int64 `json:"variantIds"`
}

// VariantsByIDs batch-fetches catalog variants; unknown ids are simply absent.
func (c *Client) VariantsByIDs(ctx context.Context, ids []int64) ([]domain.Variant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var variants []domain.Variant
	if err := c.do(ctx, http.MethodPost, "/variant/variant-by-ids", variantsByIDsRequest{VariantIDs: ids}, &variants); err != nil {
		return nil, err
	}
	return variants, nil
}
