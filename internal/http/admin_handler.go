package http

import (
	"context"
	"net/http"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/backend"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
)

type AdminService interface {
	Collections(ctx context.Context) ([]domain.Collection, error)
	CreateCollection(ctx context.Context, c domain.Collection) (*domain.Collection, error)
	UpdateCollection(ctx context.Context, id int64, c domain.Collection) (*domain.Collection, error)
	DeleteCollection(ctx context.Context, id int64) error
	Vouchers(ctx context.Context) ([]domain.Voucher, error)
	CreateVoucher(ctx context.Context, v domain.Voucher) (*domain.Voucher, error)
	UpdateVoucher(ctx context.Context, id int64, v domain.Voucher) (*domain.Voucher, error)
	DeleteVoucher(ctx context.Context, id int64) error
	Staff(ctx context.Context) ([]domain.Staff, error)
	CreateStaff(ctx context.Context, req backend.CreateStaffRequest) (*domain.Staff, error)
	UpdateStaff(ctx context.Context, id int64, s domain.Staff) (*domain.Staff, error)
	Statistics(ctx context.Context, r domain.StatisticsRange) (*domain.CustomerStatistics, error)
}

type AdminHandler struct {
	admin   AdminService
	timeout time.Duration
}

func NewAdminHandler(svc AdminService, timeout time.Duration) *AdminHandler {
	return &AdminHandler{admin: svc, timeout: timeout}
}

func (h *AdminHandler) ListCollections(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.admin.Collections(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *AdminHandler) CreateCollection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var c domain.Collection
	if !decodeJSON(w, r, &c) {
		return
	}
	created, err := h.admin.CreateCollection(ctx, c)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *AdminHandler) UpdateCollection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := pathID(w, r, "id", "collection_id")
	if !ok {
		return
	}
	var c domain.Collection
	if !decodeJSON(w, r, &c) {
		return
	}
	updated, err := h.admin.UpdateCollection(ctx, id, c)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := pathID(w, r, "id", "collection_id")
	if !ok {
		return
	}
	if err := h.admin.DeleteCollection(ctx, id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.admin.Vouchers(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *AdminHandler) CreateVoucher(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var v domain.Voucher
	if !decodeJSON(w, r, &v) {
		return
	}
	created, err := h.admin.CreateVoucher(ctx, v)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *AdminHandler) UpdateVoucher(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := pathID(w, r, "id", "voucher_id")
	if !ok {
		return
	}
	var v domain.Voucher
	if !decodeJSON(w, r, &v) {
		return
	}
	updated, err := h.admin.UpdateVoucher(ctx, id, v)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) DeleteVoucher(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := pathID(w, r, "id", "voucher_id")
	if !ok {
		return
	}
	if err := h.admin.DeleteVoucher(ctx, id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListStaff(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.admin.Staff(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *AdminHandler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req backend.CreateStaffRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := h.admin.CreateStaff(ctx, req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *AdminHandler) UpdateStaff(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := pathID(w, r, "id", "staff_id")
	if !ok {
		return
	}
	var s domain.Staff
	if !decodeJSON(w, r, &s) {
		return
	}
	updated, err := h.admin.UpdateStaff(ctx, id, s)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// GET /api/v1/admin/statistics?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *AdminHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var rng domain.StatisticsRange
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &rng.From}, {"to", &rng.To}} {
		raw := r.URL.Query().Get(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_"+p.name, p.name+" must be YYYY-MM-DD")
			return
		}
		*p.dst = t
	}

	stats, err := h.admin.Statistics(ctx, rng)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
