package billing

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionProcessed TransactionStatus = "processed"
	TransactionError     TransactionStatus = "error"
)

type InvoiceStatus string

const (
	InvoiceUnpaid InvoiceStatus = "unpaid"
	InvoicePaid   InvoiceStatus = "paid"
)

// Transaction is one inbound gateway notification. InvoiceID is zero until
// the notification has been bound to an invoice.
type Transaction struct {
	ID        int64
	InvoiceID int64
	GatewayID int64
	TxnID     string
	Amount    decimal.Decimal
	Currency  string
	TxnStatus string
	Status    TransactionStatus
	Error     string
	IPN       json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Invoice struct {
	ID             int64
	ClientID       int64
	Hash           string
	Currency       string
	BuyerFirstName string
	BuyerLastName  string
	BuyerEmail     string
	Subtotal       decimal.Decimal
	Tax            decimal.Decimal
	Status         InvoiceStatus
	PaidAt         *time.Time
}

func (i *Invoice) BuyerName() string {
	return strings.TrimSpace(i.BuyerFirstName + " " + i.BuyerLastName)
}

type Client struct {
	ID       int64
	Email    string
	Currency string
	Balance  decimal.Decimal
}

type PayGateway struct {
	ID       int64
	Gateway  string
	Enabled  bool
	TestMode bool
}

// FundsMeta describes a balance entry; RelID points at the transaction that
// produced it. TxnID is the gateway payment id and is unique across credits.
type FundsMeta struct {
	Amount      decimal.Decimal
	Description string
	Type        string
	RelID       int64
	TxnID       string
}

// CallbackLog is the audit record of one gateway callback.
type CallbackLog struct {
	ID             int64
	Gateway        string
	TransactionID  int64
	InvoiceID      int64
	OrderID        string
	PaymentID      string
	SignatureValid bool
	Outcome        string
	Payload        json.RawMessage
}
