// Package settlement credits a captured gateway payment to the client's
// balance and applies the credit to the invoice.
package settlement

import (
	"context"
	"errors"
	"fmt"

	"razorpay-be/internal/billing"
	"razorpay-be/internal/logger"

	"go.uber.org/zap"
)

type Settler struct {
	guard    Guard
	clients  billing.ClientRepository
	ledger   billing.Ledger
	invoices billing.InvoiceService
}

func NewSettler(guard Guard, clients billing.ClientRepository, ledger billing.Ledger, invoices billing.InvoiceService) *Settler {
	return &Settler{
		guard:    guard,
		clients:  clients,
		ledger:   ledger,
		invoices: invoices,
	}
}

// Description is the ledger text for a credited gateway payment.
func Description(txnID string) string {
	return "Razorpay transaction " + txnID
}

// Settle adds tx.Amount to the invoice owner's balance, pays the invoice from
// it, then pays any other unpaid invoices the remaining balance covers.
//
// The gateway payment id is claimed first. When the payment turns out to be
// credited already, either because the claim is held or because the ledger
// rejects a second credit, the invoices are paid again (paying is
// idempotent) and ErrAlreadySettled is returned. A live claim on a payment
// that is not credited yet returns ErrInProgress. A failed credit releases
// the claim.
func (s *Settler) Settle(ctx context.Context, tx *billing.Transaction, invoice *billing.Invoice) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "settlement"),
		zap.String("txn_id", tx.TxnID),
		zap.Int64("client_id", invoice.ClientID),
	)

	if tx.TxnID == "" {
		return errors.New("settle: transaction has no gateway payment id")
	}

	claimed, err := s.guard.Claim(ctx, tx.TxnID, tx.ID)
	if err != nil {
		log.Error("failed to claim settlement", zap.Error(err))
		return fmt.Errorf("claim settlement: %w", err)
	}
	if !claimed {
		credited, err := s.ledger.Credited(ctx, tx.TxnID)
		if err != nil {
			return err
		}
		if !credited {
			log.Warn("payment claimed by another transaction, not credited yet")
			return ErrInProgress
		}
		log.Info("payment already credited, skipping credit")
		return s.alreadySettled(ctx, log, invoice)
	}

	client, err := s.clients.GetClient(ctx, invoice.ClientID)
	if err != nil {
		s.release(ctx, log, tx.TxnID)
		return err
	}

	description := Description(tx.TxnID)
	meta := billing.FundsMeta{
		Amount:      tx.Amount,
		Description: description,
		Type:        billing.BalanceTypeTransaction,
		RelID:       tx.ID,
		TxnID:       tx.TxnID,
	}
	err = s.ledger.AddFunds(ctx, client, tx.Amount, description, meta)
	if errors.Is(err, billing.ErrAlreadyCredited) {
		log.Info("payment credited by an earlier claim, skipping credit")
		return s.alreadySettled(ctx, log, invoice)
	}
	if err != nil {
		log.Error("failed to add funds", zap.Error(err))
		s.release(ctx, log, tx.TxnID)
		return err
	}

	log.Info("funds credited", zap.String("amount", tx.Amount.String()))

	return s.payInvoices(ctx, log, invoice)
}

func (s *Settler) alreadySettled(ctx context.Context, log *zap.Logger, invoice *billing.Invoice) error {
	if err := s.payInvoices(ctx, log, invoice); err != nil {
		return err
	}
	return ErrAlreadySettled
}

func (s *Settler) payInvoices(ctx context.Context, log *zap.Logger, invoice *billing.Invoice) error {
	if err := s.invoices.PayInvoiceWithCredits(ctx, invoice); err != nil {
		log.Error("failed to pay invoice with credits", zap.Error(err))
		return err
	}

	if err := s.invoices.BatchPayWithCredits(ctx, invoice.ClientID); err != nil {
		log.Error("batch pay failed", zap.Error(err))
		return err
	}
	return nil
}

// release runs on a context detached from the caller's cancellation so a
// cancelled request still frees its claim.
func (s *Settler) release(ctx context.Context, log *zap.Logger, paymentID string) {
	if err := s.guard.Release(context.WithoutCancel(ctx), paymentID); err != nil {
		log.Error("failed to release settlement claim", zap.Error(err))
	}
}
