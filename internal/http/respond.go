package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/addressbook"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/admin"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/backend"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/cart"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/checkout"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/idempotency"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/voucher"
)

type ErrorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Details  string `json:"details,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

const cartPath = "/cart"

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
		case errors.Is(err, io.EOF):
			respondError(w, http.StatusBadRequest, "invalid_request", "request body is required")
		default:
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		}
		return false
	}
	return true
}

type errorMapping struct {
	target   error
	status   int
	code     string
	redirect string
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{checkout.ErrNoSession, http.StatusConflict, "no_checkout_session", cartPath},
	{checkout.ErrSessionExpired, http.StatusConflict, "session_expired", cartPath},
	{checkout.ErrMissingTab, http.StatusBadRequest, "missing_tab_id", ""},
	{checkout.ErrEmptySelection, http.StatusBadRequest, "empty_selection", ""},
	{checkout.ErrQuantityOutOfRange, http.StatusConflict, "quantity_out_of_range", ""},
	{checkout.ErrMissingAddress, http.StatusBadRequest, "missing_address", ""},
	{checkout.ErrInvalidPaymentMethod, http.StatusBadRequest, "invalid_payment_method", ""},
	{checkout.ErrExistingAccount, http.StatusConflict, "existing_account", "/login"},
	{checkout.ErrSubmissionInProgress, http.StatusConflict, "submission_in_progress", ""},
	{checkout.ErrOrderNotFound, http.StatusNotFound, "order_not_found", ""},
	{idempotency.ErrOwnerMismatch, http.StatusConflict, "idempotency_key_conflict", ""},

	{cart.ErrOutOfStock, http.StatusConflict, "out_of_stock", ""},
	{cart.ErrVariantNotFound, http.StatusNotFound, "variant_not_found", ""},
	{cart.ErrItemNotFound, http.StatusNotFound, "item_not_found", ""},
	{cart.ErrInvalidDirection, http.StatusBadRequest, "invalid_direction", ""},
	{cart.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity", ""},

	{voucher.ErrNotQualified, http.StatusUnprocessableEntity, "voucher_not_qualified", ""},
	{voucher.ErrExpired, http.StatusUnprocessableEntity, "voucher_expired", ""},
	{voucher.ErrRejected, http.StatusUnprocessableEntity, "voucher_rejected", ""},
	{voucher.ErrNotFound, http.StatusNotFound, "voucher_not_found", ""},
	{voucher.ErrAlreadySaved, http.StatusConflict, "voucher_already_saved", ""},
	{voucher.ErrEmptyCode, http.StatusBadRequest, "invalid_code", ""},

	{addressbook.ErrAddressNotFound, http.StatusNotFound, "address_not_found", ""},

	{admin.ErrNotFound, http.StatusNotFound, "not_found", ""},
	{admin.ErrConflict, http.StatusConflict, "conflict", ""},
	{admin.ErrForbidden, http.StatusForbidden, "forbidden", ""},
}

// handleError writes the response for err. Business rejections get their
// own code; anything unknown is logged and reported as internal.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	if v, ok := domain.AsValidation(err); ok {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   v.Message,
			Code:    "invalid_" + v.Field,
			Details: v.Field,
		})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			respondJSON(w, m.status, ErrorResponse{
				Error:    m.target.Error(),
				Code:     m.code,
				Details:  detailsOf(err, m.target),
				Redirect: m.redirect,
			})
			return
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
		return
	case errors.Is(err, context.Canceled):
		// client went away, nobody reads the response
		return
	}

	if be, ok := backend.AsError(err); ok {
		if be.Status == http.StatusUnauthorized || be.Status == http.StatusForbidden {
			respondJSON(w, be.Status, ErrorResponse{Error: be.Message, Code: "unauthorized"})
			return
		}
		slog.WarnContext(r.Context(), "backend request failed", "path", r.URL.Path, "status", be.Status, "error", be.Message)
		respondJSON(w, http.StatusBadGateway, ErrorResponse{Error: "backend request failed", Code: "backend_error", Details: be.Message})
		return
	}

	slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func detailsOf(err, target error) string {
	if msg := err.Error(); msg != target.Error() {
		return msg
	}
	return ""
}
