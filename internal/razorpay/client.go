package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"razorpay-be/internal/logger"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.razorpay.com/v1"

type Client struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
	verifier   *Verifier
}

// ----------------- Constructor -----------------

// NewClient selects the live or test key pair once. The pair chosen by
// TestMode must be complete; the other pair is ignored for the lifetime of
// the client.
func NewClient(cfg Config) (*Client, error) {
	keyID, keySecret := cfg.KeyID, cfg.KeySecret
	mode := "live"
	if cfg.TestMode {
		keyID, keySecret = cfg.TestKeyID, cfg.TestKeySecret
		mode = "test"
	}

	if strings.TrimSpace(keyID) == "" || strings.TrimSpace(keySecret) == "" {
		return nil, fmt.Errorf("%w: %s mode keys are missing", ErrConfiguration, mode)
	}

	logger.L().Info("razorpay client configured",
		zap.String("mode", mode),
		zap.String("key_id", keyID),
	)

	return &Client{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		verifier: NewVerifier(keySecret),
	}, nil
}

// KeyID is the public key id handed to checkout.js.
func (c *Client) KeyID() string {
	return c.keyID
}

// ----------------- CreateOrder -----------------

func (c *Client) CreateOrder(ctx context.Context, receipt string, amount int64, currency string) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("receipt", receipt),
		zap.Int64("amount", amount),
		zap.String("currency", currency),
	)

	if amount < 0 {
		return nil, fmt.Errorf("%w: negative amount %d", ErrGatewayRejected, amount)
	}

	body := map[string]interface{}{
		"receipt":         receipt,
		"amount":          amount,
		"currency":        currency,
		"payment_capture": 1,
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		log.Error("failed to marshal order request", zap.Error(err))
		return nil, err
	}

	log.Info("sending order request to razorpay")

	status, respBody, err := c.do(ctx, http.MethodPost, "/orders", jsonBody)
	if err != nil {
		log.Error("razorpay order request failed", zap.Error(err))
		return nil, err
	}

	if status != http.StatusOK && status != http.StatusCreated {
		log.Error("razorpay returned non-success status",
			zap.Int("status", status),
			zap.ByteString("response", respBody),
		)
		return nil, statusError(status, respBody)
	}

	var order Order
	if err := json.Unmarshal(respBody, &order); err != nil {
		log.Error("failed decoding razorpay order", zap.Error(err))
		return nil, fmt.Errorf("%w: decode order: %v", ErrGatewayUnavailable, err)
	}

	log.Info("razorpay order created",
		zap.String("order_id", order.ID),
		zap.String("status", order.Status),
	)
	return &order, nil
}

// ----------------- FetchPayment -----------------

func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	log := logger.FromCtx(ctx).With(zap.String("payment_id", paymentID))

	if paymentID == "" {
		return nil, fmt.Errorf("%w: empty payment id", ErrPaymentNotFound)
	}

	status, respBody, err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		log.Error("razorpay payment fetch failed", zap.Error(err))
		return nil, err
	}

	if status != http.StatusOK {
		log.Error("razorpay returned error",
			zap.Int("http_status", status),
			zap.ByteString("response", respBody),
		)
		if isNotFound(status, respBody) {
			return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
		}
		return nil, statusError(status, respBody)
	}

	var payment Payment
	if err := json.Unmarshal(respBody, &payment); err != nil {
		log.Error("failed decoding razorpay payment", zap.Error(err))
		return nil, fmt.Errorf("%w: decode payment: %v", ErrGatewayUnavailable, err)
	}

	log.Info("razorpay payment fetched",
		zap.String("status", payment.Status),
		zap.Int64("amount", payment.Amount),
		zap.String("currency", payment.Currency),
	)
	return &payment, nil
}

// ----------------- Verify Signature -----------------

func (c *Client) VerifySignature(orderID, paymentID, signature string) error {
	return c.verifier.Verify(orderID, paymentID, signature)
}

// ----------------- transport -----------------

func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: build request: %v", ErrGatewayUnavailable, err)
	}

	req.SetBasicAuth(c.keyID, c.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read razorpay response: %v", ErrGatewayUnavailable, err)
	}

	return resp.StatusCode, respBody, nil
}

func statusError(status int, body []byte) error {
	desc := strings.TrimSpace(string(body))
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Description != "" {
		desc = apiErr.Error.Description
	}

	if status >= 500 {
		return fmt.Errorf("%w: razorpay error (%d): %s", ErrGatewayUnavailable, status, desc)
	}
	return fmt.Errorf("%w: razorpay error (%d): %s", ErrGatewayRejected, status, desc)
}

func isNotFound(status int, body []byte) bool {
	if status == http.StatusNotFound {
		return true
	}
	if status != http.StatusBadRequest {
		return false
	}
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(apiErr.Error.Description), "does not exist")
}

// IsRetryable reports whether err is a transport-level gateway failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}
