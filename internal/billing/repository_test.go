package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transactionColumns = []string{
	"id", "invoice_id", "gateway_id", "txn_id", "amount", "currency", "txn_status",
	"status", "error", "ipn", "created_at", "updated_at",
}

var invoiceRowColumns = []string{
	"id", "client_id", "hash", "currency", "buyer_first_name", "buyer_last_name",
	"buyer_email", "subtotal", "tax", "status", "paid_at",
}

func TestRepository_GetTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows(transactionColumns).AddRow(
			5, nil, 1, "", "0", "", "", "pending", "", []byte(`{"invoice_id":"10"}`), now, now,
		)
		mock.ExpectQuery(`SELECT .* FROM transactions WHERE id = \$1`).
			WithArgs(int64(5)).
			WillReturnRows(rows)

		tx, err := repo.GetTransaction(context.Background(), 5)
		require.NoError(t, err)
		assert.Equal(t, int64(5), tx.ID)
		assert.Equal(t, int64(0), tx.InvoiceID)
		assert.Equal(t, int64(1), tx.GatewayID)
		assert.Equal(t, TransactionPending, tx.Status)
		assert.JSONEq(t, `{"invoice_id":"10"}`, string(tx.IPN))
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM transactions`).
			WithArgs(int64(6)).
			WillReturnError(sql.ErrNoRows)

		tx, err := repo.GetTransaction(context.Background(), 6)
		assert.Nil(t, tx)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM transactions`).
			WillReturnError(errors.New("connection refused"))

		_, err := repo.GetTransaction(context.Background(), 7)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CreateTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ipn := json.RawMessage(`{"razorpay_payment_id":"pay_1"}`)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO transactions`).
			WithArgs(sql.NullInt64{Int64: 10, Valid: true}, int64(1), TransactionPending, []byte(ipn), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(99))

		tx := &Transaction{InvoiceID: 10, GatewayID: 1, IPN: ipn}
		err := repo.CreateTransaction(context.Background(), tx)
		require.NoError(t, err)
		assert.Equal(t, int64(99), tx.ID)
		assert.Equal(t, TransactionPending, tx.Status)
		assert.False(t, tx.CreatedAt.IsZero())
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO transactions`).
			WillReturnError(errors.New("database error"))

		err := repo.CreateTransaction(context.Background(), &Transaction{GatewayID: 1})
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SaveTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	updated := time.Now().UTC()
	tx := &Transaction{
		ID:        5,
		InvoiceID: 10,
		TxnID:     "pay_1",
		Amount:    decimal.RequireFromString("500.00"),
		Currency:  "INR",
		TxnStatus: "captured",
		Status:    TransactionProcessed,
		UpdatedAt: updated,
	}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE transactions`).
			WithArgs(sql.NullInt64{Int64: 10, Valid: true}, "pay_1", tx.Amount, "INR", "captured", TransactionProcessed, "", updated, int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.SaveTransaction(context.Background(), tx))
	})

	t.Run("Missing", func(t *testing.T) {
		mock.ExpectExec(`UPDATE transactions`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.SaveTransaction(context.Background(), tx)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectExec(`UPDATE transactions`).
			WillReturnError(errors.New("db error"))

		err := repo.SaveTransaction(context.Background(), tx)
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetInvoice(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows(invoiceRowColumns).AddRow(
			10, 3, "hash-10", "INR", "Asha", "Rao", "asha@example.com", "450.00", "50.00", "unpaid", nil,
		)
		mock.ExpectQuery(`SELECT .* FROM invoices WHERE id = \$1`).
			WithArgs(int64(10)).
			WillReturnRows(rows)

		inv, err := repo.GetInvoice(context.Background(), 10)
		require.NoError(t, err)
		assert.Equal(t, int64(3), inv.ClientID)
		assert.Equal(t, "Asha Rao", inv.BuyerName())
		assert.True(t, decimal.RequireFromString("450").Equal(inv.Subtotal))
		assert.Equal(t, InvoiceUnpaid, inv.Status)
		assert.Nil(t, inv.PaidAt)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM invoices`).
			WithArgs(int64(11)).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetInvoice(context.Background(), 11)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Contains(t, err.Error(), "invoice 11")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetClient(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, email, currency, balance FROM clients WHERE id = \$1`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "currency", "balance"}).
				AddRow(3, "asha@example.com", "INR", "12.50"))

		c, err := repo.GetClient(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, "asha@example.com", c.Email)
		assert.Equal(t, "12.50", c.Balance.StringFixed(2))
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, email, currency, balance FROM clients`).
			WithArgs(int64(4)).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetClient(context.Background(), 4)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Gateways(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	cols := []string{"id", "gateway", "enabled", "test_mode"}

	t.Run("ByName", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM pay_gateways WHERE gateway = \$1`).
			WithArgs("Razorpay").
			WillReturnRows(sqlmock.NewRows(cols).AddRow(2, "Razorpay", true, false))

		gw, err := repo.GetGatewayByName(context.Background(), "Razorpay")
		require.NoError(t, err)
		assert.Equal(t, int64(2), gw.ID)
		assert.True(t, gw.Enabled)
	})

	t.Run("ByIDNotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM pay_gateways WHERE id = \$1`).
			WithArgs(int64(9)).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetGateway(context.Background(), 9)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SaveCallback(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	payload := json.RawMessage(`{}`)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payment_callbacks`).
			WithArgs("Razorpay", sql.NullInt64{Int64: 5, Valid: true}, sql.NullInt64{Int64: 10, Valid: true},
				"order_1", "pay_1", true, "processed", []byte(payload)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(44))

		c := &CallbackLog{
			Gateway: "Razorpay", TransactionID: 5, InvoiceID: 10,
			OrderID: "order_1", PaymentID: "pay_1", SignatureValid: true,
			Outcome: "processed", Payload: payload,
		}
		id, err := repo.SaveCallback(context.Background(), c)
		require.NoError(t, err)
		assert.Equal(t, int64(44), id)
		assert.Equal(t, int64(44), c.ID)
	})

	t.Run("Error", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payment_callbacks`).
			WillReturnError(errors.New("db error"))

		_, err := repo.SaveCallback(context.Background(), &CallbackLog{Gateway: "Razorpay"})
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Settlements(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	t.Run("FirstClaim", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO settlements`).
			WithArgs("pay_1", int64(5), float64(300)).
			WillReturnRows(sqlmock.NewRows([]string{"payment_id"}).AddRow("pay_1"))

		ok, err := repo.ClaimSettlement(ctx, "pay_1", 5, 5*time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Duplicate", func(t *testing.T) {
		// a live claim fails the DO UPDATE condition, so no row comes back
		mock.ExpectQuery(`INSERT INTO settlements`).
			WithArgs("pay_1", int64(6), float64(300)).
			WillReturnError(sql.ErrNoRows)

		ok, err := repo.ClaimSettlement(ctx, "pay_1", 6, 5*time.Minute)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Error", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO settlements`).
			WillReturnError(errors.New("db error"))

		_, err := repo.ClaimSettlement(ctx, "pay_2", 7, time.Minute)
		assert.Error(t, err)
	})

	t.Run("StaleClaimTakenOver", func(t *testing.T) {
		mock.ExpectQuery(`ON CONFLICT \(payment_id\)\s+DO UPDATE SET transaction_id = EXCLUDED.transaction_id`).
			WithArgs("pay_3", int64(8), float64(60)).
			WillReturnRows(sqlmock.NewRows([]string{"payment_id"}).AddRow("pay_3"))

		ok, err := repo.ClaimSettlement(ctx, "pay_3", 8, time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Release", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM settlements WHERE payment_id = \$1`).
			WithArgs("pay_1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.ReleaseSettlement(ctx, "pay_1"))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
