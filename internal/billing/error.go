package billing

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")

	// ErrAlreadyCredited means a balance entry for the gateway payment
	// already exists.
	ErrAlreadyCredited = errors.New("payment already credited")
)
