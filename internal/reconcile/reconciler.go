// Package reconcile drives a gateway callback through signature
// verification, the authoritative payment fetch and settlement.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"razorpay-be/internal/billing"
	"razorpay-be/internal/logger"
	"razorpay-be/internal/metrics"
	"razorpay-be/internal/money"
	"razorpay-be/internal/razorpay"
	"razorpay-be/internal/settlement"

	"go.uber.org/zap"
)

// Gateway is the part of the razorpay client the reconciler needs.
type Gateway interface {
	VerifySignature(orderID, paymentID, signature string) error
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error)
}

type Settler interface {
	Settle(ctx context.Context, tx *billing.Transaction, invoice *billing.Invoice) error
}

// CallbackData is the inbound callback: the invoice it belongs to and the
// raw posted fields.
type CallbackData struct {
	InvoiceID int64
	Post      map[string]string
}

type Reconciler struct {
	transactions billing.TransactionRepository
	invoices     billing.InvoiceRepository
	gateway      Gateway
	settler      Settler
	stats        *metrics.Reconciliation
	now          func() time.Time
}

func NewReconciler(
	transactions billing.TransactionRepository,
	invoices billing.InvoiceRepository,
	gateway Gateway,
	settler Settler,
	stats *metrics.Reconciliation,
) *Reconciler {
	if stats == nil {
		stats = &metrics.Reconciliation{}
	}
	return &Reconciler{
		transactions: transactions,
		invoices:     invoices,
		gateway:      gateway,
		settler:      settler,
		stats:        stats,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (r *Reconciler) Stats() *metrics.Reconciliation {
	return r.stats
}

// ProcessTransaction reconciles transaction txID against the callback.
//
// A missing transaction or invoice is returned as is and nothing is written.
// Every other path stores the transaction before returning. A failed
// signature check returns ErrInvalidSignature; any later failure returns a
// *ProcessingError. A payment the gateway reports as anything but captured
// is recorded with status error and is not an error for the caller.
func (r *Reconciler) ProcessTransaction(ctx context.Context, txID int64, data CallbackData) error {
	timer := metrics.StartTimer()
	defer func() { r.stats.Observe(timer.Duration()) }()
	r.stats.Callbacks.Inc()

	tx, err := r.transactions.GetTransaction(ctx, txID)
	if err != nil {
		return err
	}
	invoice, err := r.invoices.GetInvoice(ctx, data.InvoiceID)
	if err != nil {
		return err
	}

	ctx = logger.WithTransaction(ctx, tx.ID, invoice.ID)
	log := logger.FromCtx(ctx).With(zap.String("layer", "reconcile"))

	tx.InvoiceID = invoice.ID
	wasProcessed := tx.Status == billing.TransactionProcessed

	cb := razorpay.CallbackFromForm(data.Post)
	if err := r.gateway.VerifySignature(cb.OrderID, cb.PaymentID, cb.Signature); err != nil {
		r.stats.SignatureFailures.Inc()
		log.Warn("callback signature rejected",
			zap.String("order_id", cb.OrderID),
			zap.String("payment_id", cb.PaymentID),
			zap.Error(err),
		)

		tx.Status = billing.TransactionError
		tx.Error = "Signature verification failed: " + signatureDetail(err)
		if perr := r.save(ctx, tx); perr != nil {
			return errors.Join(ErrInvalidSignature, perr)
		}
		return ErrInvalidSignature
	}

	if err := r.apply(ctx, log, tx, invoice, cb, wasProcessed); err != nil {
		r.stats.Failures.Inc()
		log.Error("transaction processing failed", zap.Error(err))

		tx.Status = billing.TransactionError
		tx.Error = err.Error()
		perr := &ProcessingError{Err: err}
		if serr := r.save(ctx, tx); serr != nil {
			return errors.Join(perr, serr)
		}
		return perr
	}
	return nil
}

func (r *Reconciler) apply(ctx context.Context, log *zap.Logger, tx *billing.Transaction, invoice *billing.Invoice, cb razorpay.Callback, wasProcessed bool) error {
	payment, err := r.gateway.FetchPayment(ctx, cb.PaymentID)
	if err != nil {
		return err
	}
	if payment.OrderID != "" && payment.OrderID != cb.OrderID {
		return fmt.Errorf("payment %s belongs to order %s, not %s", payment.ID, payment.OrderID, cb.OrderID)
	}

	tx.TxnID = payment.ID
	tx.Amount = money.ToMajorUnits(payment.Amount)
	tx.Currency = payment.Currency
	tx.TxnStatus = payment.Status
	tx.Error = ""
	if payment.Status == razorpay.StatusCaptured {
		tx.Status = billing.TransactionProcessed
	} else {
		tx.Status = billing.TransactionError
	}

	if err := r.save(ctx, tx); err != nil {
		return err
	}

	log = log.With(
		zap.String("txn_id", tx.TxnID),
		zap.String("txn_status", tx.TxnStatus),
		zap.String("amount", tx.Amount.String()),
	)

	if payment.Status != razorpay.StatusCaptured {
		r.stats.NotCaptured.Inc()
		log.Warn("payment not captured")
		return nil
	}
	r.stats.Captured.Inc()

	if wasProcessed {
		log.Info("transaction already processed, skipping settlement")
		return nil
	}

	err = r.settler.Settle(ctx, tx, invoice)
	if errors.Is(err, settlement.ErrAlreadySettled) {
		r.stats.DuplicateSettles.Inc()
		return nil
	}
	if err != nil {
		return err
	}

	r.stats.Settled.Inc()
	log.Info("transaction settled")
	return nil
}

func (r *Reconciler) save(ctx context.Context, tx *billing.Transaction) error {
	tx.UpdatedAt = r.now()
	if err := r.transactions.SaveTransaction(ctx, tx); err != nil {
		logger.FromCtx(ctx).Error("failed to persist transaction",
			zap.String("status", string(tx.Status)),
			zap.Error(err),
		)
		return fmt.Errorf("persist transaction %d: %w", tx.ID, err)
	}
	return nil
}

func signatureDetail(err error) string {
	return strings.TrimPrefix(err.Error(), razorpay.ErrSignatureInvalid.Error()+": ")
}
