package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Verifier checks checkout callback signatures: a hex HMAC-SHA256 of
// "<order id>|<payment id>" keyed with the API key secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns the signature the gateway would send for the pair.
func (v *Verifier) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *Verifier) Verify(orderID, paymentID, signature string) error {
	switch {
	case len(v.secret) == 0:
		return fmt.Errorf("%w: no key secret configured", ErrSignatureInvalid)
	case orderID == "":
		return fmt.Errorf("%w: missing order id", ErrSignatureInvalid)
	case paymentID == "":
		return fmt.Errorf("%w: missing payment id", ErrSignatureInvalid)
	case signature == "":
		return fmt.Errorf("%w: missing signature", ErrSignatureInvalid)
	}

	got, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: malformed signature", ErrSignatureInvalid)
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	if !hmac.Equal(mac.Sum(nil), got) {
		return fmt.Errorf("%w: signature mismatch", ErrSignatureInvalid)
	}
	return nil
}
