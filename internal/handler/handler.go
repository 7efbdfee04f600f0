package handler

import (
	"context"
	"errors"
	"net/http"

	"razorpay-be/internal/billing"
	"razorpay-be/internal/checkout"
	"razorpay-be/internal/logger"
	"razorpay-be/internal/metrics"
	"razorpay-be/internal/razorpay"
	"razorpay-be/internal/reconcile"
	"razorpay-be/internal/utils"

	"go.uber.org/zap"
)

type Processor interface {
	ProcessTransaction(ctx context.Context, txID int64, data reconcile.CallbackData) error
}

// Handler serves the checkout form, the gateway callback and the
// reconciliation counters.
type Handler struct {
	repo       billing.Repository
	checkout   checkout.Service
	reconciler Processor
	stats      *metrics.Reconciliation
	appURL     string
}

func NewHandler(repo billing.Repository, checkoutSvc checkout.Service, reconciler Processor, stats *metrics.Reconciliation, appURL string) *Handler {
	return &Handler{
		repo:       repo,
		checkout:   checkoutSvc,
		reconciler: reconciler,
		stats:      stats,
		appURL:     appURL,
	}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /invoice/{id}/checkout", h.CheckoutHandler)
	mux.HandleFunc("POST /payment/callback/{gateway_id}", h.CallbackHandler)
	mux.HandleFunc("GET /metrics", h.MetricsHandler)
}

func (h *Handler) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, h.stats.Snapshot(), http.StatusOK)
}

// retryAfterSeconds is sent when the gateway itself was unreachable.
const retryAfterSeconds = "30"

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var perr *reconcile.ProcessingError
	switch {
	case errors.As(err, &perr):
		return http.StatusBadGateway
	case errors.Is(err, reconcile.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, billing.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, checkout.ErrGatewayDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, razorpay.ErrGatewayUnavailable), errors.Is(err, razorpay.ErrGatewayRejected):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if razorpay.IsRetryable(err) {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	if code == http.StatusInternalServerError {
		logger.FromCtx(r.Context()).Error("request failed", zap.Error(err))
		msg = http.StatusText(code)
	}
	utils.WriteJSONError(w, msg, code)
}
