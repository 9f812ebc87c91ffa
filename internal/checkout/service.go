// Package checkout turns selected cart lines into an order: it keeps the
// per-tab checkout session, prices shipping and vouchers, submits the order
// exactly once and follows online payments to a final state.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/backend"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/events"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/idempotency"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/identity"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/keylock"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Carts interface {
	Lines(ctx context.Context, caller identity.Caller, variantIDs []int64) ([]domain.CartLine, error)
	PruneGuest(ctx context.Context, guestID string, variantIDs []int64) error
	InvalidateUser(ctx context.Context, userID int64)
}

type Addresses interface {
	DefaultFor(ctx context.Context, caller identity.Caller) (*domain.Address, error)
	Remember(ctx context.Context, caller identity.Caller, a domain.Address) error
}

type Vouchers interface {
	Check(ctx context.Context, code string, subtotal decimal.Decimal) (*domain.Voucher, error)
	Apply(v domain.Voucher, subtotal decimal.Decimal) (decimal.Decimal, error)
}

type Orders interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error)
	ConfirmPayment(ctx context.Context, orderID int64) (*domain.PaymentConfirmation, error)
	VerifyOrder(ctx context.Context, orderCode string) (*backend.OrderVerification, error)
}

// Ledger records order submissions by idempotency key and the order events
// already published.
type Ledger interface {
	Acquire(ctx context.Context, key, owner string) (*idempotency.Record, bool, error)
	Complete(ctx context.Context, key string, result domain.OrderResult) error
	Fail(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (*idempotency.Record, error)
	ClaimEvent(ctx context.Context, key string) (bool, error)
}

type Deps struct {
	Sessions  storage.SessionStore
	Carts     Carts
	Addresses Addresses
	Vouchers  Vouchers
	Orders    Orders
	Ledger    Ledger
	Quoter    *ShippingQuoter
	Events    events.Publisher
}

type Config struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
}

type Service struct {
	sessions  storage.SessionStore
	carts     Carts
	addresses Addresses
	vouchers  Vouchers
	orders    Orders
	ledger    Ledger
	quoter    *ShippingQuoter
	events    events.Publisher
	cfg       Config
	locks     *keylock.Map
	log       *slog.Logger
	now       func() time.Time
}

func NewService(deps Deps, cfg Config, log *slog.Logger) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Minute
	}
	return &Service{
		sessions:  deps.Sessions,
		carts:     deps.Carts,
		addresses: deps.Addresses,
		vouchers:  deps.Vouchers,
		orders:    deps.Orders,
		ledger:    deps.Ledger,
		quoter:    deps.Quoter,
		events:    deps.Events,
		cfg:       cfg,
		locks:     keylock.New(),
		log:       log,
		now:       time.Now,
	}
}

// SubmitRequest carries what the checkout form adds to the session.
type SubmitRequest struct {
	PaymentMethod  domain.PaymentMethod
	Email          string
	Note           string
	IdempotencyKey string
}

type SubmitResult struct {
	Order    domain.OrderResult `json:"order"`
	Next     domain.NextStep    `json:"next"`
	Replayed bool               `json:"replayed"`
}

func sessionKey(caller identity.Caller, tabID string) (storage.SessionKey, error) {
	tabID = strings.TrimSpace(tabID)
	if tabID == "" {
		return storage.SessionKey{}, ErrMissingTab
	}
	if caller.GuestID == "" {
		return storage.SessionKey{}, ErrNoSession
	}
	return storage.SessionKey{Owner: caller.GuestID, TabID: tabID}, nil
}

// Start snapshots the selected cart lines into a new session for the tab,
// replacing any previous one.
func (s *Service) Start(ctx context.Context, caller identity.Caller, tabID string, variantIDs []int64) (*domain.CheckoutSession, error) {
	key, err := sessionKey(caller, tabID)
	if err != nil {
		return nil, err
	}
	ids := uniqueIDs(variantIDs)
	if len(ids) == 0 {
		return nil, ErrEmptySelection
	}

	lines, err := s.carts.Lines(ctx, caller, ids)
	if err != nil {
		return nil, fmt.Errorf("load selected lines: %w", err)
	}
	for _, l := range lines {
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("%w: variant %d", ErrQuantityOutOfRange, l.VariantID)
		}
	}

	origin := domain.OriginGuest
	if !caller.Guest() {
		origin = domain.OriginAuthenticated
	}
	sess := domain.CheckoutSession{
		ID:             uuid.NewString(),
		Origin:         origin,
		OwnerID:        caller.Owner(),
		Items:          lines,
		CreatedAt:      s.now(),
		IdempotencyKey: uuid.NewString(),
		Discount:       decimal.Zero,
	}
	sess.Recalculate()

	addr, err := s.addresses.DefaultFor(ctx, caller)
	if err != nil {
		s.log.WarnContext(ctx, "resolving default address", "owner", caller.Owner(), "error", err)
	}
	sess.Address = addr
	s.applyQuote(&sess, s.quoteFor(ctx, &sess))

	unlock := s.locks.Lock(key.String())
	defer unlock()
	if err := s.sessions.Put(ctx, key, sess); err != nil {
		return nil, fmt.Errorf("save checkout session: %w", err)
	}
	return &sess, nil
}

// Load returns the tab's session if the caller may still use it.
func (s *Service) Load(ctx context.Context, caller identity.Caller, tabID string) (*domain.CheckoutSession, error) {
	key, err := sessionKey(caller, tabID)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, caller, key)
}

func (s *Service) load(ctx context.Context, caller identity.Caller, key storage.SessionKey) (*domain.CheckoutSession, error) {
	sess, err := s.sessions.Get(ctx, key)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("load checkout session: %w", err)
	}

	switch {
	case sess.Origin == domain.OriginAuthenticated && sess.OwnerID != caller.Owner(),
		sess.Origin == domain.OriginGuest && !caller.Guest():
		s.log.InfoContext(ctx, "checkout session no longer matches caller",
			"session_id", sess.ID, "origin", sess.Origin, "owner", caller.Owner())
		if err := s.sessions.Delete(ctx, key); err != nil {
			s.log.WarnContext(ctx, "deleting expired checkout session", "session_id", sess.ID, "error", err)
		}
		return nil, ErrSessionExpired
	}
	return sess, nil
}

// update runs fn on the tab's session under its lock and saves the result.
func (s *Service) update(ctx context.Context, caller identity.Caller, tabID string, fn func(sess *domain.CheckoutSession) error) (*domain.CheckoutSession, error) {
	key, err := sessionKey(caller, tabID)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(key.String())
	defer unlock()

	sess, err := s.load(ctx, caller, key)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	sess.Recalculate()
	if err := s.sessions.Put(ctx, key, *sess); err != nil {
		return nil, fmt.Errorf("save checkout session: %w", err)
	}
	return sess, nil
}

// SetAddress overrides the shipping address and reprices shipping for its
// province. A quote is dropped if the address changed again while it was in
// flight.
func (s *Service) SetAddress(ctx context.Context, caller identity.Caller, tabID string, addr domain.Address) (*domain.CheckoutSession, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	sess, err := s.update(ctx, caller, tabID, func(sess *domain.CheckoutSession) error {
		a := addr
		sess.Address = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.addresses.Remember(ctx, caller, addr); err != nil {
		s.log.WarnContext(ctx, "remembering guest address", "guest_id", caller.GuestID, "error", err)
	}

	quote := s.quoteFor(ctx, sess)
	return s.update(ctx, caller, tabID, func(cur *domain.CheckoutSession) error {
		if cur.Address == nil || cur.Address.Province != addr.Province || !cur.Subtotal.Equal(sess.Subtotal) {
			return nil
		}
		s.applyQuote(cur, quote)
		return nil
	})
}

// ApplyVoucher attaches a voucher and its display discount. The backend
// settles the real discount when the order is created.
func (s *Service) ApplyVoucher(ctx context.Context, caller identity.Caller, tabID, code string) (*domain.CheckoutSession, error) {
	return s.update(ctx, caller, tabID, func(sess *domain.CheckoutSession) error {
		v, err := s.vouchers.Check(ctx, code, sess.Subtotal)
		if err != nil {
			return err
		}
		discount, err := s.vouchers.Apply(*v, sess.Subtotal)
		if err != nil {
			return err
		}
		sess.Voucher = v
		sess.Discount = discount
		return nil
	})
}

func (s *Service) RemoveVoucher(ctx context.Context, caller identity.Caller, tabID string) (*domain.CheckoutSession, error) {
	return s.update(ctx, caller, tabID, func(sess *domain.CheckoutSession) error {
		sess.Voucher = nil
		sess.Discount = decimal.Zero
		return nil
	})
}

// Submit creates the order for the tab's session. A retry with the same
// idempotency key returns the recorded order instead of creating another.
func (s *Service) Submit(ctx context.Context, caller identity.Caller, tabID string, req SubmitRequest) (*SubmitResult, error) {
	key, err := sessionKey(caller, tabID)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(key.String())
	defer unlock()

	sess, err := s.load(ctx, caller, key)
	if errors.Is(err, ErrNoSession) && req.IdempotencyKey != "" {
		return s.replay(ctx, caller, req.IdempotencyKey)
	}
	if err != nil {
		return nil, err
	}

	order, err := s.prepare(ctx, caller, sess, req)
	if err != nil {
		return nil, err
	}

	rec, acquired, err := s.ledger.Acquire(ctx, sess.IdempotencyKey, caller.Owner())
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if !acquired {
		if rec.Status == idempotency.StatusCompleted && rec.Result != nil {
			s.finish(ctx, caller, key, sess, *rec.Result, false)
			return &SubmitResult{Order: *rec.Result, Next: domain.NextStepFor(*rec.Result), Replayed: true}, nil
		}
		return nil, ErrSubmissionInProgress
	}

	res, err := s.orders.CreateOrder(ctx, order)
	if err != nil {
		if errFail := s.ledger.Fail(context.WithoutCancel(ctx), sess.IdempotencyKey); errFail != nil {
			s.log.ErrorContext(ctx, "releasing idempotency key", "idempotency_key", sess.IdempotencyKey, "error", errFail)
		}
		if backend.IsEmailExists(err) {
			return nil, ErrExistingAccount
		}
		return nil, fmt.Errorf("create order: %w", err)
	}
	if res.PaymentMethod == "" {
		res.PaymentMethod = order.PaymentMethod
	}

	// the order exists from here on; failures below are logged, not returned
	if err := s.ledger.Complete(context.WithoutCancel(ctx), sess.IdempotencyKey, *res); err != nil {
		s.log.ErrorContext(ctx, "recording order submission",
			"idempotency_key", sess.IdempotencyKey, "order_code", res.OrderCode, "error", err)
	}
	s.finish(ctx, caller, key, sess, *res, true)

	s.log.InfoContext(ctx, "order created",
		"order_code", res.OrderCode, "owner", caller.Owner(), "payment_method", res.PaymentMethod)
	return &SubmitResult{Order: *res, Next: domain.NextStepFor(*res)}, nil
}

// prepare validates the session against the form and current inventory and
// assembles the order payload.
func (s *Service) prepare(ctx context.Context, caller identity.Caller, sess *domain.CheckoutSession, req SubmitRequest) (domain.OrderRequest, error) {
	if !req.PaymentMethod.Valid() {
		return domain.OrderRequest{}, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, req.PaymentMethod)
	}
	if sess.Address == nil {
		return domain.OrderRequest{}, ErrMissingAddress
	}
	if err := sess.Address.Validate(); err != nil {
		return domain.OrderRequest{}, err
	}
	email := strings.TrimSpace(req.Email)
	if caller.Guest() {
		if !validEmail(email) {
			return domain.OrderRequest{}, domain.NewValidationError("email", "a valid email is required")
		}
	} else if email == "" {
		email = caller.User.Email
	}

	current, err := s.carts.Lines(ctx, caller, sess.VariantIDs())
	if err != nil {
		return domain.OrderRequest{}, fmt.Errorf("reload selected lines: %w", err)
	}
	for i, l := range sess.Items {
		if l.Quantity > current[i].InventoryAvailable {
			return domain.OrderRequest{}, fmt.Errorf("%w: variant %d has %d left",
				ErrQuantityOutOfRange, l.VariantID, current[i].InventoryAvailable)
		}
	}

	if sess.ShippingProvince != sess.Address.Province {
		s.applyQuote(sess, s.quoteFor(ctx, sess))
	}
	if sess.Voucher != nil {
		discount, err := s.vouchers.Apply(*sess.Voucher, sess.Subtotal)
		if err != nil {
			return domain.OrderRequest{}, err
		}
		sess.Discount = discount
	}
	sess.Recalculate()

	items := make([]domain.OrderItem, len(sess.Items))
	for i, l := range sess.Items {
		items[i] = domain.OrderItem{VariantID: l.VariantID, Quantity: l.Quantity, Price: l.UnitPrice}
	}
	order := domain.OrderRequest{
		RecipientName:  sess.Address.RecipientName,
		Email:          email,
		Phone:          sess.Address.Phone,
		Province:       sess.Address.Province,
		District:       sess.Address.District,
		Ward:           sess.Address.Ward,
		AddressDetail:  sess.Address.AddressDetail,
		Note:           strings.TrimSpace(req.Note),
		Items:          items,
		ShippingFee:    sess.ShippingFee,
		TotalAmount:    sess.Total,
		PaymentMethod:  req.PaymentMethod,
		Discount:       sess.Discount,
		IdempotencyKey: sess.IdempotencyKey,
	}
	if sess.Voucher != nil {
		order.VoucherCode = sess.Voucher.Code
	}
	return order, nil
}

// replay answers a retry whose session is already gone.
func (s *Service) replay(ctx context.Context, caller identity.Caller, idempotencyKey string) (*SubmitResult, error) {
	rec, err := s.ledger.Get(ctx, idempotencyKey)
	if errors.Is(err, idempotency.ErrKeyNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("look up idempotency key: %w", err)
	}
	if rec.Owner != caller.Owner() {
		return nil, ErrNoSession
	}
	switch rec.Status {
	case idempotency.StatusCompleted:
		return &SubmitResult{Order: *rec.Result, Next: domain.NextStepFor(*rec.Result), Replayed: true}, nil
	case idempotency.StatusPending:
		return nil, ErrSubmissionInProgress
	}
	return nil, ErrNoSession
}

// finish clears the session and the purchased cart lines. created is false
// when the order was found in the ledger rather than created now.
func (s *Service) finish(ctx context.Context, caller identity.Caller, key storage.SessionKey, sess *domain.CheckoutSession, res domain.OrderResult, created bool) {
	ctx = context.WithoutCancel(ctx)
	if err := s.sessions.Delete(ctx, key); err != nil {
		s.log.ErrorContext(ctx, "deleting checkout session", "session_id", sess.ID, "error", err)
	}

	variantIDs := sess.VariantIDs()
	if caller.Guest() {
		if err := s.carts.PruneGuest(ctx, caller.GuestID, variantIDs); err != nil {
			s.log.ErrorContext(ctx, "pruning purchased guest lines", "guest_id", caller.GuestID, "error", err)
		}
	} else {
		s.carts.InvalidateUser(ctx, caller.User.ID)
	}
	if !created {
		return
	}

	e := events.Event{
		Type:          events.OrderCreated,
		OrderID:       res.OrderID,
		OrderCode:     res.OrderCode,
		TotalAmount:   res.TotalAmount,
		PaymentMethod: string(res.PaymentMethod),
		VariantIDs:    variantIDs,
		OccurredAt:    s.now(),
	}
	if caller.Guest() {
		e.GuestID = caller.GuestID
	} else {
		e.UserID = caller.User.ID
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.ErrorContext(ctx, "publishing order event", "order_code", res.OrderCode, "error", err)
	}
}

type provinceQuote struct {
	Quote
	province string
}

func (s *Service) quoteFor(ctx context.Context, sess *domain.CheckoutSession) provinceQuote {
	province := ""
	if sess.Address != nil {
		province = sess.Address.Province
	}
	return provinceQuote{Quote: s.quoter.Quote(ctx, sess.Subtotal, province), province: province}
}

func (s *Service) applyQuote(sess *domain.CheckoutSession, q provinceQuote) {
	sess.ShippingFee = q.Fee
	sess.ShippingFallback = q.Fallback
	sess.ShippingProvince = q.province
	sess.Recalculate()
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}
