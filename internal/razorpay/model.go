package razorpay

// Payment statuses reported by the gateway.
const (
	StatusCreated    = "created"
	StatusAuthorized = "authorized"
	StatusCaptured   = "captured"
	StatusFailed     = "failed"
	StatusRefunded   = "refunded"
)

// Config holds both credential pairs; TestMode picks the one in use.
type Config struct {
	KeyID         string
	KeySecret     string
	TestKeyID     string
	TestKeySecret string
	TestMode      bool
}

type Order struct {
	ID       string `json:"id"`
	Receipt  string `json:"receipt"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type Payment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Method   string `json:"method"`
	Email    string `json:"email"`
}

// Callback is what the hosted checkout posts back through the payer's browser.
// None of it is trusted until the signature has been verified.
type Callback struct {
	OrderID   string
	PaymentID string
	Signature string
}

// Form field names used by checkout.js.
const (
	FieldOrderID   = "razorpay_order_id"
	FieldPaymentID = "razorpay_payment_id"
	FieldSignature = "razorpay_signature"
)

// CallbackFromForm extracts the callback fields; missing ones are left empty
// so verification rejects them.
func CallbackFromForm(post map[string]string) Callback {
	return Callback{
		OrderID:   post[FieldOrderID],
		PaymentID: post[FieldPaymentID],
		Signature: post[FieldSignature],
	}
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
		Field       string `json:"field"`
	} `json:"error"`
}
