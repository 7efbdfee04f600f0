package razorpay

import "errors"

var (
	ErrConfiguration      = errors.New("razorpay configuration error")
	ErrSignatureInvalid   = errors.New("razorpay signature invalid")
	ErrGatewayUnavailable = errors.New("razorpay gateway unavailable")
	ErrGatewayRejected    = errors.New("razorpay rejected the request")
	ErrPaymentNotFound    = errors.New("razorpay payment not found")
)
