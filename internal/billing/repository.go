package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// ----------------- Transactions -----------------

func (r *repository) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, invoice_id, gateway_id, txn_id, amount, currency, txn_status,
		       status, error, ipn, created_at, updated_at
		FROM transactions WHERE id = $1
	`, id)

	var (
		t         Transaction
		invoiceID sql.NullInt64
		ipn       []byte
	)
	err := row.Scan(
		&t.ID, &invoiceID, &t.GatewayID, &t.TxnID, &t.Amount, &t.Currency, &t.TxnStatus,
		&t.Status, &t.Error, &ipn, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
		}
		return nil, err
	}

	t.InvoiceID = invoiceID.Int64
	if len(ipn) > 0 {
		t.IPN = json.RawMessage(ipn)
	}
	return &t, nil
}

func (r *repository) CreateTransaction(ctx context.Context, t *Transaction) error {
	if t.Status == "" {
		t.Status = TransactionPending
	}
	now := time.Now().UTC()

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO transactions (invoice_id, gateway_id, status, ipn, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id
	`, nullInt64(t.InvoiceID), t.GatewayID, t.Status, nullJSON(t.IPN), now).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

func (r *repository) SaveTransaction(ctx context.Context, t *Transaction) error {
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET invoice_id = $1, txn_id = $2, amount = $3, currency = $4,
		    txn_status = $5, status = $6, error = $7, updated_at = $8
		WHERE id = $9
	`,
		nullInt64(t.InvoiceID), t.TxnID, t.Amount, t.Currency,
		t.TxnStatus, t.Status, t.Error, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("save transaction %d: %w", t.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save transaction %d: %w", t.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d: %w", t.ID, ErrNotFound)
	}
	return nil
}

// ----------------- Invoices & clients -----------------

const invoiceColumns = `id, client_id, hash, currency, buyer_first_name, buyer_last_name,
		       buyer_email, subtotal, tax, status, paid_at`

func scanInvoice(row interface{ Scan(...any) error }) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.ClientID, &inv.Hash, &inv.Currency, &inv.BuyerFirstName, &inv.BuyerLastName,
		&inv.BuyerEmail, &inv.Subtotal, &inv.Tax, &inv.Status, &inv.PaidAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)

	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return inv, nil
}

func (r *repository) GetClient(ctx context.Context, id int64) (*Client, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, currency, balance FROM clients WHERE id = $1
	`, id)

	var c Client
	if err := row.Scan(&c.ID, &c.Email, &c.Currency, &c.Balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("client %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &c, nil
}

// ----------------- Gateways -----------------

func (r *repository) GetGateway(ctx context.Context, id int64) (*PayGateway, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, gateway, enabled, test_mode FROM pay_gateways WHERE id = $1
	`, id)
	return scanGateway(row, fmt.Sprintf("gateway %d", id))
}

func (r *repository) GetGatewayByName(ctx context.Context, name string) (*PayGateway, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, gateway, enabled, test_mode FROM pay_gateways WHERE gateway = $1
	`, name)
	return scanGateway(row, "gateway "+name)
}

func scanGateway(row *sql.Row, what string) (*PayGateway, error) {
	var g PayGateway
	if err := row.Scan(&g.ID, &g.Gateway, &g.Enabled, &g.TestMode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
		}
		return nil, err
	}
	return &g, nil
}

// ----------------- Callback audit -----------------

func (r *repository) SaveCallback(ctx context.Context, c *CallbackLog) (int64, error) {
	const q = `
	INSERT INTO payment_callbacks (
		gateway,
		transaction_id,
		invoice_id,
		order_id,
		payment_id,
		signature_valid,
		outcome,
		payload
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id;
	`

	var id int64
	err := r.db.QueryRowContext(
		ctx,
		q,
		c.Gateway,
		nullInt64(c.TransactionID),
		nullInt64(c.InvoiceID),
		c.OrderID,
		c.PaymentID,
		c.SignatureValid,
		c.Outcome,
		nullJSON(c.Payload),
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	c.ID = id
	return id, nil
}

// ----------------- Settlement claims -----------------

// ClaimSettlement reports whether this call took ownership of crediting the
// payment. A live claim held by another transaction returns false; one older
// than staleAfter is taken over.
func (r *repository) ClaimSettlement(ctx context.Context, paymentID string, transactionID int64, staleAfter time.Duration) (bool, error) {
	const q = `
	INSERT INTO settlements (payment_id, transaction_id)
	VALUES ($1, $2)
	ON CONFLICT (payment_id)
	DO UPDATE SET transaction_id = EXCLUDED.transaction_id, claimed_at = now()
	WHERE settlements.claimed_at < now() - make_interval(secs => $3)
	RETURNING payment_id;
	`

	var claimed string
	err := r.db.QueryRowContext(ctx, q, paymentID, transactionID, staleAfter.Seconds()).Scan(&claimed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repository) ReleaseSettlement(ctx context.Context, paymentID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM settlements WHERE payment_id = $1`, paymentID)
	return err
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
