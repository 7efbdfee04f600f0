package reconcile

import (
	"errors"
	"fmt"
)

// ErrInvalidSignature is returned when the callback fails verification. The
// transaction has already been stored with status error.
var ErrInvalidSignature = errors.New("Invalid signature")

const processingErrorPrefix = "There was an error when processing the Razorpay transaction: "

// ProcessingError wraps any failure after signature verification. The
// transaction has already been stored with status error and the cause's
// message.
type ProcessingError struct {
	Err error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s%v", processingErrorPrefix, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}
