// Package fault holds the error instances returned by the token ledger.
//
// Each error is a single comparable value, so callers can match it with
// errors.Is after it has been wrapped with context.
package fault

import "errors"

// error base
type GenericError string

// classes of errors, used by transports to pick a status code
type PermissionError GenericError
type ExistsError GenericError
type NotFoundError GenericError
type PaymentError GenericError
type StateError GenericError
type InvalidError GenericError

// ledger errors - keep grouped by class
var (
	ErrUnauthorized    = PermissionError("Only an admin can execute this")
	ErrNotOwnerOrAdmin = PermissionError("You can only burn your own tokens")
	ErrNotWhitelisted  = PermissionError("Address is not whitelisted")

	ErrAlreadyAdmin = ExistsError("Address is already an admin")

	ErrNotAdmin    = NotFoundError("Address is not an admin")
	ErrPriceNotSet = NotFoundError("Token price not set")

	ErrIncorrectPayment    = PaymentError("Incorrect ETH sent")
	ErrInsufficientPayment = PaymentError("Insufficient payment")

	ErrInsufficientSupply  = StateError("Not enough supply available")
	ErrInsufficientBalance = StateError("Insufficient balance")
	ErrNotLaunchedYet      = StateError("MZCAL token not launched yet")
	ErrNoBalanceToConvert  = StateError("No PRESALE_TOKEN to convert")
	ErrOverflow            = StateError("amount overflows 256 bits")

	ErrInvalidAddress    = InvalidError("address is invalid")
	ErrInvalidAmount     = InvalidError("amount is invalid")
	ErrMissingCaller     = InvalidError("caller is required")
	ErrMissingRequestID  = InvalidError("request id is required")
	ErrUnknownCommand    = InvalidError("unknown command type")
	ErrUnknownBook       = InvalidError("unknown ledger book")
	ErrPayloadParseFail  = InvalidError("payload could not be parsed")
	ErrBasketEntryAmount = InvalidError("basket entry amount is invalid")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e PermissionError) Error() string { return string(e) }
func (e ExistsError) Error() string     { return string(e) }
func (e NotFoundError) Error() string   { return string(e) }
func (e PaymentError) Error() string    { return string(e) }
func (e StateError) Error() string      { return string(e) }
func (e InvalidError) Error() string    { return string(e) }

// determine the class of an error
func IsErrPermission(e error) bool { var t PermissionError; return errors.As(e, &t) }
func IsErrExists(e error) bool     { var t ExistsError; return errors.As(e, &t) }
func IsErrNotFound(e error) bool   { var t NotFoundError; return errors.As(e, &t) }
func IsErrPayment(e error) bool    { var t PaymentError; return errors.As(e, &t) }
func IsErrState(e error) bool      { var t StateError; return errors.As(e, &t) }
func IsErrInvalid(e error) bool    { var t InvalidError; return errors.As(e, &t) }

// IsDomain reports whether err is one of the ledger's own rejections, as
// opposed to an infrastructure failure.
func IsDomain(e error) bool {
	return IsErrPermission(e) || IsErrExists(e) || IsErrNotFound(e) ||
		IsErrPayment(e) || IsErrState(e) || IsErrInvalid(e)
}

var codes = []struct {
	err  error
	code string
}{
	{ErrUnauthorized, "unauthorized"},
	{ErrNotOwnerOrAdmin, "not_owner_or_admin"},
	{ErrNotWhitelisted, "not_whitelisted"},
	{ErrAlreadyAdmin, "already_admin"},
	{ErrNotAdmin, "not_admin"},
	{ErrPriceNotSet, "price_not_set"},
	{ErrIncorrectPayment, "incorrect_payment"},
	{ErrInsufficientPayment, "insufficient_payment"},
	{ErrInsufficientSupply, "insufficient_supply"},
	{ErrInsufficientBalance, "insufficient_balance"},
	{ErrNotLaunchedYet, "not_launched_yet"},
	{ErrNoBalanceToConvert, "no_balance_to_convert"},
	{ErrOverflow, "overflow"},
}

// Code returns a short stable label for err, suitable for metrics and
// API error bodies.
func Code(e error) string {
	if e == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(e, c.err) {
			return c.code
		}
	}
	if IsErrInvalid(e) {
		return "invalid_argument"
	}
	return "internal"
}
