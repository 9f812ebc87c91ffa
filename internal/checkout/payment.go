package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/backend"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/events"
)

var ErrOrderNotFound = errors.New("order not found")

// WatchPayment polls the payment confirmation of an order until it is paid,
// failed or cancelled. It gives up with ErrPaymentTimeout, returning the last
// status seen.
func (s *Service) WatchPayment(ctx context.Context, orderID int64) (*domain.PaymentConfirmation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PollTimeout)
	defer cancel()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	var last *domain.PaymentConfirmation
	for {
		conf, err := s.orders.ConfirmPayment(ctx, orderID)
		switch {
		case backend.IsNotFound(err):
			return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
		case err != nil:
			if ctx.Err() == nil {
				s.log.WarnContext(ctx, "polling payment status", "order_id", orderID, "error", err)
			}
		case conf.Status.IsTerminal():
			s.publishPayment(ctx, *conf)
			return conf, nil
		default:
			last = conf
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return last, ErrPaymentTimeout
			}
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

// publishPayment emits the event of a terminal status once per order, however
// many watchers see it. If the ledger is unreachable the event is still sent.
func (s *Service) publishPayment(ctx context.Context, conf domain.PaymentConfirmation) {
	typ := events.OrderPaymentFailed
	if conf.Status == domain.PaymentPaid {
		typ = events.OrderPaymentConfirmed
	}
	key := fmt.Sprintf("payment:%d:%s", conf.OrderID, conf.Status)
	claimed, err := s.ledger.ClaimEvent(ctx, key)
	if err != nil {
		s.log.WarnContext(ctx, "claiming payment event", "order_id", conf.OrderID, "error", err)
	} else if !claimed {
		return
	}
	e := events.Event{
		Type:       typ,
		OrderID:    conf.OrderID,
		OrderCode:  conf.OrderCode,
		OccurredAt: s.now(),
	}
	if err := s.events.Publish(context.WithoutCancel(ctx), e); err != nil {
		s.log.ErrorContext(ctx, "publishing payment event", "order_id", conf.OrderID, "error", err)
	}
}

// VerifyOrder backs the confirmation page of an order code.
func (s *Service) VerifyOrder(ctx context.Context, orderCode string) (*backend.OrderVerification, error) {
	orderCode = strings.TrimSpace(orderCode)
	if orderCode == "" {
		return nil, domain.NewValidationError("order_code", "order code is required")
	}
	v, err := s.orders.VerifyOrder(ctx, orderCode)
	if backend.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderCode)
	}
	if err != nil {
		return nil, fmt.Errorf("verify order: %w", err)
	}
	return v, nil
}
