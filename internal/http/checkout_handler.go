package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/backend"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/checkout"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/identity"
	"github.com/go-chi/chi/v5"
)

type CheckoutService interface {
	Start(ctx context.Context, caller identity.Caller, tabID string, variantIDs []int64) (*domain.CheckoutSession, error)
	Load(ctx context.Context, caller identity.Caller, tabID string) (*domain.CheckoutSession, error)
	SetAddress(ctx context.Context, caller identity.Caller, tabID string, addr domain.Address) (*domain.CheckoutSession, error)
	ApplyVoucher(ctx context.Context, caller identity.Caller, tabID, code string) (*domain.CheckoutSession, error)
	RemoveVoucher(ctx context.Context, caller identity.Caller, tabID string) (*domain.CheckoutSession, error)
	Submit(ctx context.Context, caller identity.Caller, tabID string, req checkout.SubmitRequest) (*checkout.SubmitResult, error)
	WatchPayment(ctx context.Context, orderID int64) (*domain.PaymentConfirmation, error)
	VerifyOrder(ctx context.Context, orderCode string) (*backend.OrderVerification, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	timeout  time.Duration
}

func NewCheckoutHandler(svc CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{checkout: svc, timeout: timeout}
}

type StartCheckoutRequestDTO struct {
	VariantIDs []int64 `json:"variant_ids"`
}

type ApplyVoucherRequestDTO struct {
	Code string `json:"code"`
}

type SubmitOrderRequestDTO struct {
	PaymentMethod  domain.PaymentMethod `json:"payment_method"`
	Email          string               `json:"email"`
	Note           string               `json:"note"`
	IdempotencyKey string               `json:"idempotency_key"`
}

type PaymentStatusResponseDTO struct {
	OrderID   int64                `json:"orderId"`
	OrderCode string               `json:"orderCode,omitempty"`
	Status    domain.PaymentStatus `json:"status"`
	Final     bool                 `json:"final"`
}

// POST /api/v1/checkout/session
func (h *CheckoutHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req StartCheckoutRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.checkout.Start(ctx, identity.CallerFromContext(ctx), tabID(r), req.VariantIDs)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, sess)
}

// GET /api/v1/checkout
func (h *CheckoutHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, err := h.checkout.Load(ctx, identity.CallerFromContext(ctx), tabID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

// POST /api/v1/checkout/address
func (h *CheckoutHandler) SetAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var addr domain.Address
	if !decodeJSON(w, r, &addr) {
		return
	}
	sess, err := h.checkout.SetAddress(ctx, identity.CallerFromContext(ctx), tabID(r), addr)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

// POST /api/v1/checkout/voucher
func (h *CheckoutHandler) ApplyVoucher(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ApplyVoucherRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.checkout.ApplyVoucher(ctx, identity.CallerFromContext(ctx), tabID(r), req.Code)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

// DELETE /api/v1/checkout/voucher
func (h *CheckoutHandler) RemoveVoucher(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, err := h.checkout.RemoveVoucher(ctx, identity.CallerFromContext(ctx), tabID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

// POST /api/v1/checkout/submit
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SubmitOrderRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	}

	res, err := h.checkout.Submit(ctx, identity.CallerFromContext(ctx), tabID(r), checkout.SubmitRequest{
		PaymentMethod:  domain.PaymentMethod(strings.ToUpper(string(req.PaymentMethod))),
		Email:          req.Email,
		Note:           req.Note,
		IdempotencyKey: key,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	respondJSON(w, status, res)
}

// GET /api/v1/orders/{order}/verify with the order code
func (h *CheckoutHandler) VerifyOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	v, err := h.checkout.VerifyOrder(ctx, chi.URLParam(r, "order"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// GET /api/v1/orders/{order}/payment with the order id. The request is held
// until the payment is final; one still pending when the watch ends answers 202.
func (h *CheckoutHandler) WatchPayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "order", "order_id")
	if !ok {
		return
	}

	conf, err := h.checkout.WatchPayment(r.Context(), orderID)
	if errors.Is(err, checkout.ErrPaymentTimeout) {
		resp := PaymentStatusResponseDTO{OrderID: orderID, Status: domain.PaymentPending}
		if conf != nil {
			resp.OrderCode, resp.Status = conf.OrderCode, conf.Status
		}
		respondJSON(w, http.StatusAccepted, resp)
		return
	}
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, PaymentStatusResponseDTO{
		OrderID:   conf.OrderID,
		OrderCode: conf.OrderCode,
		Status:    conf.Status,
		Final:     true,
	})
}
