package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"razorpay-be/internal/logger"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	BalanceTypeTransaction = "transaction"
	BalanceTypeInvoice     = "invoice"
)

type ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) Ledger {
	return &ledger{db: db}
}

// AddFunds writes a balance entry and raises the client's balance in one
// database transaction. The entry carries meta.TxnID, which a unique index
// keeps to one credit per gateway payment.
func (l *ledger) AddFunds(ctx context.Context, client *Client, amount decimal.Decimal, description string, meta FundsMeta) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "ledger"),
		zap.Int64("client_id", client.ID),
		zap.String("amount", amount.String()),
		zap.Int64("rel_id", meta.RelID),
		zap.String("txn_id", meta.TxnID),
	)

	if !amount.IsPositive() {
		return fmt.Errorf("add funds: %w", ErrInvalidAmount)
	}
	if description == "" {
		return errors.New("add funds: description is required")
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("add funds: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO client_balance (client_id, type, rel_id, txn_id, amount, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, client.ID, meta.Type, meta.RelID, nullString(meta.TxnID), amount, description)
	if err != nil {
		if isUniqueViolation(err) {
			log.Warn("payment already credited")
			return fmt.Errorf("add funds %s: %w", meta.TxnID, ErrAlreadyCredited)
		}
		log.Error("failed to insert balance entry", zap.Error(err))
		return fmt.Errorf("add funds: %w", err)
	}

	var balance decimal.Decimal
	err = tx.QueryRowContext(ctx, `
		UPDATE clients SET balance = balance + $1 WHERE id = $2 RETURNING balance
	`, amount, client.ID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("client %d: %w", client.ID, ErrNotFound)
		}
		log.Error("failed to update client balance", zap.Error(err))
		return fmt.Errorf("add funds: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("add funds: %w", err)
	}

	client.Balance = balance
	log.Info("funds added", zap.String("balance", balance.String()))
	return nil
}

// Credited reports whether a balance entry exists for the gateway payment.
func (l *ledger) Credited(ctx context.Context, txnID string) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM client_balance WHERE txn_id = $1)
	`, txnID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("credited %s: %w", txnID, err)
	}
	return exists, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type invoiceService struct {
	db *sql.DB
}

func NewInvoiceService(db *sql.DB) InvoiceService {
	return &invoiceService{db: db}
}

func (s *invoiceService) GetTotalWithTax(invoice *Invoice) decimal.Decimal {
	return invoice.Subtotal.Add(invoice.Tax)
}

// PayInvoiceWithCredits settles the invoice from the client's balance. An
// already paid invoice is left alone; a balance that does not cover the total
// leaves the credit on the account.
func (s *invoiceService) PayInvoiceWithCredits(ctx context.Context, invoice *Invoice) error {
	err := s.payWithCredits(ctx, invoice)
	if errors.Is(err, ErrInsufficientCredits) {
		logger.FromCtx(ctx).Warn("invoice left unpaid, credits do not cover total",
			zap.Int64("invoice_id", invoice.ID),
			zap.Int64("client_id", invoice.ClientID),
		)
		return nil
	}
	return err
}

// BatchPayWithCredits pays the client's remaining unpaid invoices, oldest
// first, for as long as the balance allows.
func (s *invoiceService) BatchPayWithCredits(ctx context.Context, clientID int64) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "invoice"),
		zap.Int64("client_id", clientID),
	)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE client_id = $1 AND status = $2
		ORDER BY created_at, id
	`, clientID, InvoiceUnpaid)
	if err != nil {
		return fmt.Errorf("batch pay: %w", err)
	}

	var unpaid []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return fmt.Errorf("batch pay: %w", err)
		}
		unpaid = append(unpaid, inv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("batch pay: %w", err)
	}

	paid := 0
	for _, inv := range unpaid {
		err := s.payWithCredits(ctx, inv)
		if errors.Is(err, ErrInsufficientCredits) {
			continue
		}
		if err != nil {
			return err
		}
		paid++
	}

	log.Info("batch pay finished", zap.Int("unpaid", len(unpaid)), zap.Int("paid", paid))
	return nil
}

func (s *invoiceService) payWithCredits(ctx context.Context, invoice *Invoice) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "invoice"),
		zap.Int64("invoice_id", invoice.ID),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pay invoice %d: %w", invoice.ID, err)
	}
	defer tx.Rollback()

	var status InvoiceStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM invoices WHERE id = $1 FOR UPDATE`, invoice.ID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("invoice %d: %w", invoice.ID, ErrNotFound)
		}
		return fmt.Errorf("pay invoice %d: %w", invoice.ID, err)
	}
	if status == InvoicePaid {
		log.Info("invoice already paid")
		invoice.Status = InvoicePaid
		return nil
	}

	var balance decimal.Decimal
	err = tx.QueryRowContext(ctx, `SELECT balance FROM clients WHERE id = $1 FOR UPDATE`, invoice.ClientID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("client %d: %w", invoice.ClientID, ErrNotFound)
		}
		return fmt.Errorf("pay invoice %d: %w", invoice.ID, err)
	}

	total := s.GetTotalWithTax(invoice)
	if balance.LessThan(total) {
		return ErrInsufficientCredits
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO client_balance (client_id, type, rel_id, amount, description)
		VALUES ($1, $2, $3, $4, $5)
	`, invoice.ClientID, BalanceTypeInvoice, invoice.ID, total.Neg(), fmt.Sprintf("Invoice #%d payment", invoice.ID))
	if err != nil {
		return fmt.Errorf("pay invoice %d: %w", invoice.ID, err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE clients SET balance = balance - $1 WHERE id = $2`, total, invoice.ClientID)
	if err != nil {
		return fmt.Errorf("pay invoice %d: %w", invoice.ID, err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE invoices SET status = $1, paid_at = now() WHERE id = $2`, InvoicePaid, invoice.ID)
	if err != nil {
		return fmt.Errorf("pay invoice %d: %w", invoice.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pay invoice %d: %w", invoice.ID, err)
	}

	invoice.Status = InvoicePaid
	log.Info("invoice paid with credits", zap.String("total", total.String()))
	return nil
}

type payGatewayService struct {
	appURL string
}

func NewPayGatewayService(appURL string) PayGatewayService {
	return &payGatewayService{appURL: appURL}
}

func (s *payGatewayService) CallbackURL(gateway *PayGateway, invoice *Invoice) string {
	return fmt.Sprintf("%s/payment/callback/%d?invoice_id=%d", s.appURL, gateway.ID, invoice.ID)
}
