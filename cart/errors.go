package cart

import "errors"

var (
	// ErrProductUnavailable wraps a failed catalog lookup during an add. The
	// cart is left unchanged.
	ErrProductUnavailable = errors.New("product unavailable")
	// ErrItemNotFound is returned when a quantity change targets a product
	// that is not in the cart.
	ErrItemNotFound = errors.New("item not found in cart")
	// ErrPersistenceFailure means the in-memory change was applied but the
	// snapshot write failed. Callers should warn, not roll back.
	ErrPersistenceFailure = errors.New("cart persistence failed")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	// ErrQuantityLimit is returned when a line item would exceed MaxQuantity.
	// The cart is left unchanged.
	ErrQuantityLimit = errors.New("quantity exceeds limit")
)
