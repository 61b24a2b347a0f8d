package escrow

import (
	"errors"

	"stream-escrow-go/internal/auth"
	"stream-escrow-go/internal/store"
)

// Code is the stable numeric identifier of an engine error.
type Code int

const (
	CodeInvalidParameters           Code = 2
	CodeContractInsufficientBalance Code = 3
	CodeStreamNotFound              Code = 4
	CodeStreamInactive              Code = 5
	CodeNothingToWithdraw           Code = 6
	CodeSubscriptionNotFound        Code = 7
	CodeSubscriptionInactive        Code = 8
	CodeNotDueYet                   Code = 9
	CodeInsufficientContractBalance Code = 10
	CodeUnauthorized                Code = 12
)

// Kind groups errors by how a caller should react to them.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindState             Kind = "state"
	KindAuthorization     Kind = "authorization"
	KindValidation        Kind = "validation"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindNotDue            Kind = "not_due"
	KindNothingToWithdraw Kind = "nothing_to_withdraw"
	KindInternal          Kind = "internal"
)

// Error is a sentinel engine error. Operations wrap these with context;
// match them with errors.Is.
type Error struct {
	Code Code
	Kind Kind
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

var (
	ErrInvalidParameters    = &Error{CodeInvalidParameters, KindValidation, "invalid parameters"}
	ErrRateTooLow           = &Error{CodeInvalidParameters, KindValidation, "rate truncates to zero"}
	ErrDuplicateRecipient   = &Error{CodeInvalidParameters, KindValidation, "duplicate recipient"}
	ErrNotRecipient         = &Error{CodeInvalidParameters, KindValidation, "not a recipient of this stream"}
	ErrUnsupportedAsset     = &Error{CodeInvalidParameters, KindValidation, "unsupported asset"}
	ErrScheduleOverflow     = &Error{CodeInvalidParameters, KindValidation, "payment schedule overflows"}
	ErrInsufficientFunds    = &Error{CodeContractInsufficientBalance, KindInsufficientFunds, "insufficient funds"}
	ErrStreamNotFound       = &Error{CodeStreamNotFound, KindNotFound, "stream not found"}
	ErrStreamInactive       = &Error{CodeStreamInactive, KindState, "stream inactive"}
	ErrNothingToWithdraw    = &Error{CodeNothingToWithdraw, KindNothingToWithdraw, "nothing to withdraw"}
	ErrSubscriptionNotFound = &Error{CodeSubscriptionNotFound, KindNotFound, "subscription not found"}
	ErrSubscriptionInactive = &Error{CodeSubscriptionInactive, KindState, "subscription inactive"}
	ErrNotDueYet            = &Error{CodeNotDueYet, KindNotDue, "payment not due yet"}
	ErrInsufficientEscrow   = &Error{CodeInsufficientContractBalance, KindInsufficientFunds, "insufficient subscription balance"}
	ErrUnauthorized         = &Error{CodeUnauthorized, KindAuthorization, "unauthorized"}
)

// KindOf classifies err, looking through wrapping. Store and auth sentinels
// are recognised too; anything else is KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	switch {
	case errors.Is(err, store.ErrStreamNotFound), errors.Is(err, store.ErrSubscriptionNotFound):
		return KindNotFound
	case errors.Is(err, store.ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, store.ErrDuplicateTransaction):
		return KindState
	case errors.Is(err, auth.ErrUnauthorized):
		return KindAuthorization
	}
	return KindInternal
}

// CodeOf returns the numeric code of err, or 0 when it carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}
