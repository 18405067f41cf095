package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrStockExceeded          = errors.New("stock exceeded")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrEmptyCart              = errors.New("cart is empty")
	ErrMissingCustomerDetails = errors.New("customer name and phone are required for credit sales")
	ErrBackendUnavailable     = errors.New("backend unavailable")

	ErrInvalidInput       = errors.New("invalid input")
	ErrNotPending         = errors.New("bill is not pending")
	ErrCheckoutInProgress = errors.New("checkout in progress")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
)

// ErrorCode returns the stable machine-readable code for err.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrStockExceeded):
		return "STOCK_EXCEEDED"
	case errors.Is(err, ErrInvalidQuantity):
		return "INVALID_QUANTITY"
	case errors.Is(err, ErrEmptyCart):
		return "EMPTY_CART"
	case errors.Is(err, ErrMissingCustomerDetails):
		return "MISSING_CUSTOMER_DETAILS"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, ErrNotPending):
		return "NOT_PENDING"
	case errors.Is(err, ErrCheckoutInProgress):
		return "CHECKOUT_IN_PROGRESS"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	default:
		return "BACKEND_UNAVAILABLE"
	}
}
