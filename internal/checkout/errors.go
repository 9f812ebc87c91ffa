package checkout

import "errors"

var (
	ErrNoSession            = errors.New("no checkout session for this tab")
	ErrSessionExpired       = errors.New("checkout session expired, sign in again")
	ErrMissingTab           = errors.New("tab id is required")
	ErrEmptySelection       = errors.New("no cart lines selected")
	ErrQuantityOutOfRange   = errors.New("quantity exceeds available inventory")
	ErrMissingAddress       = errors.New("shipping address is required")
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")
	ErrExistingAccount      = errors.New("email belongs to an existing account")
	ErrSubmissionInProgress = errors.New("order submission already in progress")
	ErrPaymentTimeout       = errors.New("payment did not reach a final state in time")
)
