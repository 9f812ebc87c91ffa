// Package admin backs the dashboard: collections, vouchers, staff and
// customer statistics. Lists are cached and every write invalidates them.
package admin

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/backend"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/cache"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("admin resource not found")
	ErrConflict  = errors.New("admin resource already exists")
	ErrForbidden = errors.New("admin role required")
)

type Backend interface {
	ListCollections(ctx context.Context) ([]domain.Collection, error)
	CreateCollection(ctx context.Context, c domain.Collection) (*domain.Collection, error)
	UpdateCollection(ctx context.Context, id int64, c domain.Collection) (*domain.Collection, error)
	DeleteCollection(ctx context.Context, id int64) error

	ListVouchers(ctx context.Context) ([]domain.Voucher, error)
	CreateVoucher(ctx context.Context, v domain.Voucher) (*domain.Voucher, error)
	UpdateVoucher(ctx context.Context, id int64, v domain.Voucher) (*domain.Voucher, error)
	DeleteVoucher(ctx context.Context, id int64) error

	ListStaff(ctx context.Context) ([]domain.Staff, error)
	CreateStaff(ctx context.Context, req backend.CreateStaffRequest) (*domain.Staff, error)
	UpdateStaff(ctx context.Context, id int64, s domain.Staff) (*domain.Staff, error)

	CustomerStatistics(ctx context.Context, r domain.StatisticsRange) (*domain.CustomerStatistics, error)
}

type Service struct {
	backend Backend
	queries *cache.Queries
	now     func() time.Time
}

func NewService(b Backend, queries *cache.Queries) *Service {
	return &Service{backend: b, queries: queries, now: time.Now}
}

func (s *Service) Collections(ctx context.Context) ([]domain.Collection, error) {
	return cache.Fetch(ctx, s.queries, cache.CollectionsKey, func(ctx context.Context) ([]domain.Collection, error) {
		list, err := s.backend.ListCollections(ctx)
		if err != nil {
			return nil, fmt.Errorf("list collections: %w", err)
		}
		return list, nil
	})
}

func (s *Service) CreateCollection(ctx context.Context, c domain.Collection) (*domain.Collection, error) {
	if err := normalizeCollection(&c); err != nil {
		return nil, err
	}
	created, err := s.backend.CreateCollection(ctx, c)
	if err != nil {
		return nil, mapError(err, "create collection")
	}
	s.queries.Invalidate(ctx, cache.CollectionsKey)
	return created, nil
}

func (s *Service) UpdateCollection(ctx context.Context, id int64, c domain.Collection) (*domain.Collection, error) {
	if err := normalizeCollection(&c); err != nil {
		return nil, err
	}
	updated, err := s.backend.UpdateCollection(ctx, id, c)
	if err != nil {
		return nil, mapError(err, "update collection")
	}
	s.queries.Invalidate(ctx, cache.CollectionsKey)
	return updated, nil
}

func (s *Service) DeleteCollection(ctx context.Context, id int64) error {
	if err := s.backend.DeleteCollection(ctx, id); err != nil {
		return mapError(err, "delete collection")
	}
	s.queries.Invalidate(ctx, cache.CollectionsKey)
	return nil
}

func (s *Service) Vouchers(ctx context.Context) ([]domain.Voucher, error) {
	return cache.Fetch(ctx, s.queries, cache.AdminVouchersKey, func(ctx context.Context) ([]domain.Voucher, error) {
		list, err := s.backend.ListVouchers(ctx)
		if err != nil {
			return nil, fmt.Errorf("list vouchers: %w", err)
		}
		return list, nil
	})
}

func (s *Service) CreateVoucher(ctx context.Context, v domain.Voucher) (*domain.Voucher, error) {
	if err := normalizeVoucher(&v); err != nil {
		return nil, err
	}
	created, err := s.backend.CreateVoucher(ctx, v)
	if err != nil {
		return nil, mapError(err, "create voucher")
	}
	s.queries.Invalidate(ctx, cache.AdminVouchersKey)
	return created, nil
}

func (s *Service) UpdateVoucher(ctx context.Context, id int64, v domain.Voucher) (*domain.Voucher, error) {
	if err := normalizeVoucher(&v); err != nil {
		return nil, err
	}
	updated, err := s.backend.UpdateVoucher(ctx, id, v)
	if err != nil {
		return nil, mapError(err, "update voucher")
	}
	s.queries.Invalidate(ctx, cache.AdminVouchersKey)
	return updated, nil
}

func (s *Service) DeleteVoucher(ctx context.Context, id int64) error {
	if err := s.backend.DeleteVoucher(ctx, id); err != nil {
		return mapError(err, "delete voucher")
	}
	s.queries.Invalidate(ctx, cache.AdminVouchersKey)
	return nil
}

func (s *Service) Staff(ctx context.Context) ([]domain.Staff, error) {
	return cache.Fetch(ctx, s.queries, cache.StaffKey, func(ctx context.Context) ([]domain.Staff, error) {
		list, err := s.backend.ListStaff(ctx)
		if err != nil {
			return nil, fmt.Errorf("list staff: %w", err)
		}
		return list, nil
	})
}

func (s *Service) CreateStaff(ctx context.Context, req backend.CreateStaffRequest) (*domain.Staff, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	switch {
	case !emailPattern.MatchString(req.Email):
		return nil, domain.NewValidationError("email", "a valid email is required")
	case req.Name == "":
		return nil, domain.NewValidationError("name", "name is required")
	case len(req.Password) < 8:
		return nil, domain.NewValidationError("password", "password must have at least 8 characters")
	}
	if req.Role == "" {
		req.Role = domain.RoleStaff
	}
	if err := checkStaffRole(req.Role); err != nil {
		return nil, err
	}
	created, err := s.backend.CreateStaff(ctx, req)
	if err != nil {
		return nil, mapError(err, "create staff")
	}
	s.queries.Invalidate(ctx, cache.StaffKey)
	return created, nil
}

func (s *Service) UpdateStaff(ctx context.Context, id int64, st domain.Staff) (*domain.Staff, error) {
	if st.Role != "" {
		if err := checkStaffRole(st.Role); err != nil {
			return nil, err
		}
	}
	updated, err := s.backend.UpdateStaff(ctx, id, st)
	if err != nil {
		return nil, mapError(err, "update staff")
	}
	s.queries.Invalidate(ctx, cache.StaffKey)
	return updated, nil
}

// Statistics defaults to the last 30 days when r is open on either side.
func (s *Service) Statistics(ctx context.Context, r domain.StatisticsRange) (*domain.CustomerStatistics, error) {
	if r.To.IsZero() {
		r.To = s.now()
	}
	if r.From.IsZero() {
		r.From = r.To.AddDate(0, 0, -30)
	}
	if r.From.After(r.To) {
		return nil, domain.NewValidationError("from", "from must not be after to")
	}
	return cache.Fetch(ctx, s.queries, cache.StatisticsKey(r.From, r.To), func(ctx context.Context) (*domain.CustomerStatistics, error) {
		stats, err := s.backend.CustomerStatistics(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("customer statistics: %w", err)
		}
		return stats, nil
	})
}

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	slugUnsafe   = regexp.MustCompile(`[^a-z0-9]+`)
)

func normalizeCollection(c *domain.Collection) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return domain.NewValidationError("name", "name is required")
	}
	c.Slug = strings.TrimSpace(c.Slug)
	if c.Slug == "" {
		c.Slug = slugify(c.Name)
	}
	return nil
}

func slugify(name string) string {
	return strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

func normalizeVoucher(v *domain.Voucher) error {
	v.Code = strings.ToUpper(strings.TrimSpace(v.Code))
	switch {
	case v.Code == "":
		return domain.NewValidationError("code", "code is required")
	case v.Kind != domain.VoucherPercent && v.Kind != domain.VoucherFixed:
		return domain.NewValidationError("kind", "kind must be PERCENT or FIXED")
	case !v.Value.IsPositive():
		return domain.NewValidationError("value", "value must be positive")
	case v.Kind == domain.VoucherPercent && v.Value.GreaterThan(decimal.NewFromInt(100)):
		return domain.NewValidationError("value", "percent value must not exceed 100")
	case v.MinOrderValue.IsNegative():
		return domain.NewValidationError("min_order_value", "minimum order value must not be negative")
	case v.EndDate.IsZero() || (!v.StartDate.IsZero() && !v.EndDate.After(v.StartDate)):
		return domain.NewValidationError("end_date", "end date must be after start date")
	case v.UsageLimit < 0:
		return domain.NewValidationError("usage_limit", "usage limit must not be negative")
	}
	if v.Status == "" {
		v.Status = domain.VoucherActive
	}
	return nil
}

func checkStaffRole(r domain.Role) error {
	if r != domain.RoleStaff && r != domain.RoleAdmin {
		return domain.NewValidationError("role", "role must be STAFF or ADMIN")
	}
	return nil
}

func mapError(err error, op string) error {
	switch {
	case backend.IsNotFound(err):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case backend.IsConflict(err):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
