// Package checkout creates the gateway order for an invoice and renders the
// form that opens the hosted checkout.
package checkout

import (
	"context"
	"fmt"

	"razorpay-be/internal/billing"
	"razorpay-be/internal/logger"
	"razorpay-be/internal/money"
	"razorpay-be/internal/razorpay"
	"razorpay-be/internal/utils"

	"go.uber.org/zap"
)

// GatewayName is the pay_gateways row the callback URL is built from.
const GatewayName = "Razorpay"

type OrderCreator interface {
	KeyID() string
	CreateOrder(ctx context.Context, receipt string, amount int64, currency string) (*razorpay.Order, error)
}

type Service interface {
	Prepare(ctx context.Context, invoiceID int64) (*FormData, error)
	Render(ctx context.Context, invoiceID int64) (string, error)
}

type service struct {
	invoices    billing.InvoiceRepository
	gateways    billing.GatewayRepository
	invoiceSvc  billing.InvoiceService
	payGateways billing.PayGatewayService
	orders      OrderCreator
}

func NewService(
	invoices billing.InvoiceRepository,
	gateways billing.GatewayRepository,
	invoiceSvc billing.InvoiceService,
	payGateways billing.PayGatewayService,
	orders OrderCreator,
) Service {
	return &service{
		invoices:    invoices,
		gateways:    gateways,
		invoiceSvc:  invoiceSvc,
		payGateways: payGateways,
		orders:      orders,
	}
}

// Prepare creates a gateway order for the invoice total and collects the
// form bindings. A fresh order is created on every call.
func (s *service) Prepare(ctx context.Context, invoiceID int64) (*FormData, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "checkout"),
		zap.Int64("invoice_id", invoiceID),
	)

	invoice, err := s.invoices.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	total := s.invoiceSvc.GetTotalWithTax(invoice)
	amount := money.ToMinorUnits(total)
	if !total.IsPositive() || amount <= 0 {
		log.Warn("refusing checkout for non-positive total", zap.String("total", total.String()))
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, total.String())
	}

	gateway, err := s.gateways.GetGatewayByName(ctx, GatewayName)
	if err != nil {
		return nil, err
	}
	if !gateway.Enabled {
		return nil, ErrGatewayDisabled
	}

	order, err := s.orders.CreateOrder(ctx, utils.Receipt(invoice.ID), amount, invoice.Currency)
	if err != nil {
		log.Error("failed to create razorpay order", zap.Error(err))
		return nil, err
	}

	log.Info("checkout prepared",
		zap.String("order_id", order.ID),
		zap.Int64("amount", amount),
	)

	return &FormData{
		CallbackURL: s.payGateways.CallbackURL(gateway, invoice),
		InvoiceID:   invoice.ID,
		InvoiceHash: invoice.Hash,
		KeyID:       s.orders.KeyID(),
		OrderID:     order.ID,
		Amount:      amount,
		Currency:    invoice.Currency,
		BuyerName:   invoice.BuyerName(),
		BuyerEmail:  invoice.BuyerEmail,
	}, nil
}

func (s *service) Render(ctx context.Context, invoiceID int64) (string, error) {
	data, err := s.Prepare(ctx, invoiceID)
	if err != nil {
		return "", err
	}
	return RenderForm(*data)
}
