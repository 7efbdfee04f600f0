package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"razorpay-be/internal/billing"
	"razorpay-be/internal/logger"
	"razorpay-be/internal/razorpay"
	"razorpay-be/internal/reconcile"
	"razorpay-be/internal/utils"

	"go.uber.org/zap"
)

const maxCallbackBody = 64 << 10

// Audit outcomes recorded for a callback.
const (
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeNotFound         = "not_found"
	OutcomeFailed           = "failed"
)

type callbackResponse struct {
	TransactionID int64  `json:"transaction_id"`
	Status        string `json:"status"`
	TxnStatus     string `json:"txn_status,omitempty"`
}

// CallbackHandler receives the checkout form post. Every callback gets its
// own pending transaction, which the reconciler then moves to processed or
// error.
func (h *Handler) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx).With(zap.String("layer", "callback"))

	gatewayID, err := utils.ParseInt64(r.PathValue("gateway_id"))
	if err != nil {
		utils.WriteJSONError(w, "invalid gateway id", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBody)
	if err := r.ParseForm(); err != nil {
		utils.WriteJSONError(w, "invalid form body", http.StatusBadRequest)
		return
	}
	post := utils.FlattenForm(r.PostForm)
	query := utils.FlattenForm(r.URL.Query())

	invoiceID, err := utils.ParseInt64(r.FormValue("invoice_id"))
	if err != nil {
		writeError(w, r, fmt.Errorf("invoice: %w", billing.ErrNotFound))
		return
	}

	gateway, err := h.repo.GetGateway(ctx, gatewayID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ipn, err := json.Marshal(map[string]map[string]string{
		"get":  query,
		"post": post,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Resolve the invoice before any transaction row is written.
	invoice, err := h.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			log.Warn("callback for unknown invoice", zap.Int64("invoice_id", invoiceID))
			h.audit(ctx, log, gateway, 0, invoiceID, post, ipn, false, OutcomeNotFound)
		}
		writeError(w, r, err)
		return
	}

	tx := &billing.Transaction{
		InvoiceID: invoice.ID,
		GatewayID: gateway.ID,
		IPN:       ipn,
	}
	if err := h.repo.CreateTransaction(ctx, tx); err != nil {
		log.Error("failed to create transaction", zap.Error(err))
		writeError(w, r, err)
		return
	}

	ctx = logger.WithTransaction(ctx, tx.ID, invoice.ID)
	log = logger.FromCtx(ctx).With(zap.String("layer", "callback"))
	log.Info("callback received", zap.String("gateway", gateway.Gateway))

	procErr := h.reconciler.ProcessTransaction(ctx, tx.ID, reconcile.CallbackData{
		InvoiceID: invoice.ID,
		Post:      post,
	})

	resp := callbackResponse{TransactionID: tx.ID}
	outcome := outcomeFor(procErr)
	if procErr == nil {
		if stored, err := h.repo.GetTransaction(ctx, tx.ID); err == nil {
			resp.Status = string(stored.Status)
			resp.TxnStatus = stored.TxnStatus
			outcome = string(stored.Status)
		}
	}

	h.audit(ctx, log, gateway, tx.ID, invoice.ID, post, ipn, signatureAccepted(procErr), outcome)

	if procErr != nil {
		log.Warn("callback processing failed", zap.Error(procErr))
		writeError(w, r.WithContext(ctx), procErr)
		return
	}

	if query["redirect"] == "1" && query["invoice_hash"] != "" {
		http.Redirect(w, r, h.invoiceURL(query["invoice_hash"]), http.StatusSeeOther)
		return
	}

	utils.WriteJSON(w, resp, http.StatusOK)
}

// audit records the callback; a failure is logged and never fails the request.
func (h *Handler) audit(ctx context.Context, log *zap.Logger, gateway *billing.PayGateway, txID, invoiceID int64, post map[string]string, ipn []byte, signatureValid bool, outcome string) {
	cb := razorpay.CallbackFromForm(post)
	entry := &billing.CallbackLog{
		Gateway:        gateway.Gateway,
		TransactionID:  txID,
		InvoiceID:      invoiceID,
		OrderID:        cb.OrderID,
		PaymentID:      cb.PaymentID,
		SignatureValid: signatureValid,
		Outcome:        outcome,
		Payload:        ipn,
	}
	if _, err := h.repo.SaveCallback(ctx, entry); err != nil {
		log.Error("failed to record callback", zap.Error(err))
	}
}

func (h *Handler) invoiceURL(hash string) string {
	return h.appURL + "/invoice/" + url.PathEscape(hash)
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return string(billing.TransactionProcessed)
	case errors.Is(err, reconcile.ErrInvalidSignature):
		return OutcomeInvalidSignature
	case errors.Is(err, billing.ErrNotFound) && !isProcessingError(err):
		return OutcomeNotFound
	default:
		return OutcomeFailed
	}
}

// signatureAccepted reports whether the reconciler got past verification.
func signatureAccepted(err error) bool {
	return err == nil || isProcessingError(err)
}

func isProcessingError(err error) bool {
	var perr *reconcile.ProcessingError
	return errors.As(err, &perr)
}
