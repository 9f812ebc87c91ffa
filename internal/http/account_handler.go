package http

import (
	"context"
	"net/http"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/identity"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/voucher"
	"github.com/shopspring/decimal"
)

type AddressService interface {
	List(ctx context.Context, userID int64) ([]domain.Address, error)
	Create(ctx context.Context, userID int64, a domain.Address) (*domain.Address, error)
	Update(ctx context.Context, userID, id int64, a domain.Address) (*domain.Address, error)
	Delete(ctx context.Context, userID, id int64) error
	SetDefault(ctx context.Context, userID, id int64) error
	GuestAddress(ctx context.Context, guestID string) (*domain.Address, error)
	SaveGuestAddress(ctx context.Context, guestID string, a domain.Address) error
}

type VoucherService interface {
	Saved(ctx context.Context, userID int64, subtotal decimal.Decimal) ([]voucher.Option, error)
	Check(ctx context.Context, code string, subtotal decimal.Decimal) (*domain.Voucher, error)
	Save(ctx context.Context, userID, voucherID int64) error
}

// AccountHandler serves identity, address and voucher endpoints.
type AccountHandler struct {
	identity  IdentityService
	addresses AddressService
	vouchers  VoucherService
	timeout   time.Duration
}

func NewAccountHandler(ids IdentityService, addresses AddressService, vouchers VoucherService, timeout time.Duration) *AccountHandler {
	return &AccountHandler{identity: ids, addresses: addresses, vouchers: vouchers, timeout: timeout}
}

type CheckVoucherRequestDTO struct {
	Code     string          `json:"code"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// GET /api/v1/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, identity.CallerFromContext(r.Context()).User)
}

// POST /api/v1/me/refresh
func (h *AccountHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, err := h.identity.Refresh(ctx, identity.CallerFromContext(ctx).Token)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// POST /api/v1/logout
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	caller := identity.CallerFromContext(r.Context())
	if !caller.Guest() {
		h.identity.Clear(r.Context(), caller.User.ID)
	}
	http.SetCookie(w, &http.Cookie{Name: TokenCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/addresses
func (h *AccountHandler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.addresses.List(ctx, identity.CallerFromContext(ctx).User.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// POST /api/v1/addresses
func (h *AccountHandler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var a domain.Address
	if !decodeJSON(w, r, &a) {
		return
	}
	created, err := h.addresses.Create(ctx, identity.CallerFromContext(ctx).User.ID, a)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// PUT /api/v1/addresses/{id}
func (h *AccountHandler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := pathID(w, r, "id", "address_id")
	if !ok {
		return
	}
	var a domain.Address
	if !decodeJSON(w, r, &a) {
		return
	}
	updated, err := h.addresses.Update(ctx, identity.CallerFromContext(ctx).User.ID, id, a)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// DELETE /api/v1/addresses/{id}
func (h *AccountHandler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := pathID(w, r, "id", "address_id")
	if !ok {
		return
	}
	if err := h.addresses.Delete(ctx, identity.CallerFromContext(ctx).User.ID, id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/addresses/{id}/default
func (h *AccountHandler) SetDefaultAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := pathID(w, r, "id", "address_id")
	if !ok {
		return
	}
	if err := h.addresses.SetDefault(ctx, identity.CallerFromContext(ctx).User.ID, id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/guest/address
func (h *AccountHandler) GuestAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	a, err := h.addresses.GuestAddress(ctx, identity.CallerFromContext(ctx).GuestID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// PUT /api/v1/guest/address
func (h *AccountHandler) SaveGuestAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var a domain.Address
	if !decodeJSON(w, r, &a) {
		return
	}
	if err := h.addresses.SaveGuestAddress(ctx, identity.CallerFromContext(ctx).GuestID, a); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/vouchers/saved?subtotal=
func (h *AccountHandler) SavedVouchers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	subtotal := decimal.Zero
	if raw := r.URL.Query().Get("subtotal"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			respondError(w, http.StatusBadRequest, "invalid_subtotal", "subtotal must be a non-negative number")
			return
		}
		subtotal = d
	}
	opts, err := h.vouchers.Saved(ctx, identity.CallerFromContext(ctx).User.ID, subtotal)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, opts)
}

// POST /api/v1/vouchers/check
func (h *AccountHandler) CheckVoucher(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CheckVoucherRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := h.vouchers.Check(ctx, req.Code, req.Subtotal)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// POST /api/v1/vouchers/{id}/save
func (h *AccountHandler) SaveVoucher(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := pathID(w, r, "id", "voucher_id")
	if !ok {
		return
	}
	if err := h.vouchers.Save(ctx, identity.CallerFromContext(ctx).User.ID, id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
