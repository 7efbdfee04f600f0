package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionRepository interface {
	GetTransaction(ctx context.Context, id int64) (*Transaction, error)
	CreateTransaction(ctx context.Context, tx *Transaction) error
	SaveTransaction(ctx context.Context, tx *Transaction) error
}

type InvoiceRepository interface {
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
}

type ClientRepository interface {
	GetClient(ctx context.Context, id int64) (*Client, error)
}

type GatewayRepository interface {
	GetGateway(ctx context.Context, id int64) (*PayGateway, error)
	GetGatewayByName(ctx context.Context, name string) (*PayGateway, error)
}

type CallbackRepository interface {
	SaveCallback(ctx context.Context, c *CallbackLog) (int64, error)
}

// SettlementRepository holds short-lived claims on gateway payments while
// they are being credited. A claim older than staleAfter can be taken over.
type SettlementRepository interface {
	ClaimSettlement(ctx context.Context, paymentID string, transactionID int64, staleAfter time.Duration) (bool, error)
	ReleaseSettlement(ctx context.Context, paymentID string) error
}

type Repository interface {
	TransactionRepository
	InvoiceRepository
	ClientRepository
	GatewayRepository
	CallbackRepository
	SettlementRepository
}

// Ledger credits a client's balance. A second credit for the same gateway
// payment fails with ErrAlreadyCredited.
type Ledger interface {
	AddFunds(ctx context.Context, client *Client, amount decimal.Decimal, description string, meta FundsMeta) error
	Credited(ctx context.Context, txnID string) (bool, error)
}

type InvoiceService interface {
	GetTotalWithTax(invoice *Invoice) decimal.Decimal
	PayInvoiceWithCredits(ctx context.Context, invoice *Invoice) error
	BatchPayWithCredits(ctx context.Context, clientID int64) error
}

type PayGatewayService interface {
	CallbackURL(gateway *PayGateway, invoice *Invoice) string
}
