package custodial

import (
	"errors"
	"fmt"

	"github.com/amirasaad/giftfund/pkg/domain"
)

// ValidationError is a caller-correctable input problem tied to one field.
type ValidationError struct {
	Code    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Code)
}

func (e *ValidationError) Is(target error) bool {
	return target == domain.ErrValidation
}

// PreconditionError is returned when operations are called out of order or
// redundantly. Compare against the exported sentinels with errors.Is.
type PreconditionError struct {
	Code    string
	Message string
}

func (e *PreconditionError) Error() string {
	return e.Message
}

func (e *PreconditionError) Is(target error) bool {
	if target == domain.ErrPrecondition {
		return true
	}
	var other *PreconditionError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

var (
	ErrNoAccount = &PreconditionError{
		Code:    "no_account",
		Message: "no custodial account exists for this user, create one first",
	}
	ErrCardExists = &PreconditionError{
		Code:    "card_exists",
		Message: "a virtual card has already been issued for this account",
	}
	ErrCardholderRequired = &PreconditionError{
		Code:    "cardholder_required",
		Message: "must create cardholder first",
	}
	ErrInsufficientFunds = &PreconditionError{
		Code:    "insufficient_funds",
		Message: "issuing balance must be positive before creating a card",
	}
	ErrNoCard = &PreconditionError{
		Code:    "no_card",
		Message: "no virtual card exists for this account",
	}
	ErrTestModeOnly = &PreconditionError{
		Code:    "test_mode_only",
		Message: "operation is only available in test mode",
	}
)

// ErrBusy is returned when another request for the same user holds the lock.
var ErrBusy = errors.New("another operation is in progress for this user")

// ErrPlatformUnavailable is a retryable failure: timeout, open circuit or a
// transient platform outage.
var ErrPlatformUnavailable = errors.New("payments platform temporarily unavailable")

// PlatformError is a definitive rejection by the payments platform.
type PlatformError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *PlatformError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, msg, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}
