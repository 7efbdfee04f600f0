package handler

import (
	"fmt"
	"io"
	"net/http"

	"razorpay-be/internal/billing"
	"razorpay-be/internal/logger"
	"razorpay-be/internal/middleware"
	"razorpay-be/internal/utils"

	"go.uber.org/zap"
)

// CheckoutHandler renders the payment form for an invoice owned by the
// authenticated client.
func (h *Handler) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clientID, ok := middleware.ClientIDFromContext(ctx)
	if !ok {
		utils.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	invoiceID, err := utils.ParseInt64(r.PathValue("id"))
	if err != nil {
		utils.WriteJSONError(w, "invalid invoice id", http.StatusBadRequest)
		return
	}

	invoice, err := h.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Someone else's invoice is reported as missing.
	if invoice.ClientID != clientID {
		logger.FromCtx(ctx).Warn("checkout for foreign invoice",
			zap.Int64("client_id", clientID),
			zap.Int64("invoice_id", invoiceID),
		)
		writeError(w, r, fmt.Errorf("invoice %d: %w", invoiceID, billing.ErrNotFound))
		return
	}

	form, err := h.checkout.Render(ctx, invoice.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, form)
}
