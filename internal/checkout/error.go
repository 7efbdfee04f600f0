package checkout

import "errors"

var (
	ErrInvalidAmount   = errors.New("invoice total must be greater than zero")
	ErrGatewayDisabled = errors.New("razorpay gateway is not enabled")
)
