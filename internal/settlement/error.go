package settlement

import "errors"

var (
	// ErrAlreadySettled means the gateway payment is already credited.
	// Callers treat it as a successful no-op.
	ErrAlreadySettled = errors.New("payment already settled")

	// ErrInProgress means another transaction holds a live claim on the
	// payment and has not credited it yet.
	ErrInProgress = errors.New("payment settlement in progress")

	ErrGuardClosed = errors.New("settlement guard closed")
)
