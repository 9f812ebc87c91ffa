package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// fakeRetail is an in-memory retail REST backend
type fakeRetail struct {
	mu             sync.Mutex
	variants       map[int64]domain.Variant
	users          map[string]domain.User
	carts          map[int64][]domain.RemoteCartItem
	addresses      map[int64][]domain.Address
	collections    []domain.Collection
	existingEmails map[string]bool
	pricingDown    bool
	orders         []domain.OrderRequest
}

func newFakeRetail(t *testing.T) (*fakeRetail, *httptest.Server) {
	f := &fakeRetail{
		variants: map[int64]domain.Variant{
			1: {ID: 1, Price: decimal.NewFromInt(150000), Inventory: 5, Product: domain.ProductRef{ID: 10, Name: "Linen shirt"}},
			2: {ID: 2, Price: decimal.NewFromInt(100000), Inventory: 2, Product: domain.ProductRef{ID: 11, Name: "Canvas tote"}},
			3: {ID: 3, Price: decimal.NewFromInt(90000), Inventory: 0, Product: domain.ProductRef{ID: 12, Name: "Sold out cap"}},
		},
		users:          make(map[string]domain.User),
		carts:          make(map[int64][]domain.RemoteCartItem),
		addresses:      make(map[int64][]domain.Address),
		existingEmails: make(map[string]bool),
	}

	r := chi.NewRouter()
	r.Get("/auth/profile", f.withUser(func(w http.ResponseWriter, _ *http.Request, u domain.User) {
		writeJSON(w, http.StatusOK, u)
	}))
	r.Post("/variant/variant-by-ids", f.variantsByIDs)
	r.Get("/cart", f.withUser(f.getCart))
	r.Post("/cart-items/add", f.withUser(f.addToCart))
	r.Patch("/cart-items/update-quantity", f.withUser(f.updateQuantity))
	r.Delete("/cart-items/{id}", f.withUser(f.removeItem))
	r.Get("/addresses", f.withUser(func(w http.ResponseWriter, _ *http.Request, u domain.User) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"data": f.addresses[u.ID]})
	}))
	r.Post("/orders/calculate-shipping", f.calculateShipping)
	r.Post("/orders/create", f.createOrder)
	r.Get("/orders/confirm-payment/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		writeJSON(w, http.StatusOK, domain.PaymentConfirmation{OrderID: id, OrderCode: fmt.Sprintf("ORD-%d", id), Status: domain.PaymentPaid})
	})
	r.Get("/collections", f.withUser(func(w http.ResponseWriter, _ *http.Request, _ domain.User) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, f.collections)
	}))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return f, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeRetail) addUser(token string, u domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[token] = u
}

func (f *fakeRetail) setPricingDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pricingDown = down
}

func (f *fakeRetail) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func (f *fakeRetail) withUser(h func(http.ResponseWriter, *http.Request, domain.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		u, ok := f.users[token]
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		h(w, r, u)
	}
}

func (f *fakeRetail) variantsByIDs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VariantIDs []int64 `json:"variantIds"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Variant{}
	for _, id := range req.VariantIDs {
		if v, ok := f.variants[id]; ok {
			out = append(out, v)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *fakeRetail) getCart(w http.ResponseWriter, _ *http.Request, u domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, ok := f.carts[u.ID]
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"statusCode": http.StatusOK, "data": nil})
		return
	}
	writeJSON(w, http.StatusOK, []domain.RemoteCart{{ID: 1, UserID: u.ID, Items: items, UpdatedAt: time.Now()}})
}

type fakeCartItem struct {
	VariantID int64 `json:"variantId"`
	Quantity  int   `json:"quantity"`
}

func (f *fakeRetail) addToCart(w http.ResponseWriter, r *http.Request, u domain.User) {
	var req fakeCartItem
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.variants[req.VariantID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "variant not found"})
		return
	}
	if v.Inventory == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "out of stock"})
		return
	}
	items := f.carts[u.ID]
	for i := range items {
		if items[i].Variant.ID == req.VariantID {
			items[i].Quantity = min(items[i].Quantity+req.Quantity, v.Inventory)
			w.WriteHeader(http.StatusCreated)
			return
		}
	}
	f.carts[u.ID] = append(items, domain.RemoteCartItem{
		ID: int64(len(items) + 1), Price: v.Price, Quantity: min(req.Quantity, v.Inventory), Variant: v,
	})
	w.WriteHeader(http.StatusCreated)
}

func (f *fakeRetail) updateQuantity(w http.ResponseWriter, r *http.Request, u domain.User) {
	var req fakeCartItem
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, it := range f.carts[u.ID] {
		if it.Variant.ID == req.VariantID {
			f.carts[u.ID][i].Quantity = req.Quantity
			w.WriteHeader(http.StatusOK)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "cart item not found"})
}

func (f *fakeRetail) removeItem(w http.ResponseWriter, r *http.Request, u domain.User) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.carts[u.ID]
	for i, it := range items {
		if it.Variant.ID == id {
			f.carts[u.ID] = append(items[:i], items[i+1:]...)
			w.WriteHeader(http.StatusOK)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "cart item not found"})
}

func (f *fakeRetail) calculateShipping(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	down := f.pricingDown
	f.mu.Unlock()
	if down {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "pricing unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shippingFee": 30000})
}

func (f *fakeRetail) createOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Header.Get("Authorization") == "" && f.existingEmails[req.Email] {
		writeJSON(w, http.StatusConflict, map[string]string{"code": "EMAIL_EXISTS", "message": "email belongs to an account"})
		return
	}
	f.orders = append(f.orders, req)
	id := int64(len(f.orders))
	res := domain.OrderResult{
		OrderID:       id,
		OrderCode:     fmt.Sprintf("ORD-%d", id),
		TotalAmount:   req.TotalAmount,
		PaymentMethod: req.PaymentMethod,
	}
	if req.PaymentMethod.Online() {
		res.PaymentURL = fmt.Sprintf("https://pay.example/%d", id)
	}
	writeJSON(w, http.StatusCreated, res)
}
