package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const (
	requestIDKey     ctxKey = "request_id"
	transactionIDKey ctxKey = "transaction_id"
	invoiceIDKey     ctxKey = "invoice_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithTransaction tags every log line written through FromCtx with the
// billing transaction and invoice being processed.
func WithTransaction(ctx context.Context, transactionID, invoiceID int64) context.Context {
	ctx = context.WithValue(ctx, transactionIDKey, transactionID)
	return context.WithValue(ctx, invoiceIDKey, invoiceID)
}

// FromCtx returns the global logger enriched with whatever request-scoped
// identifiers the context carries.
func FromCtx(ctx context.Context) *zap.Logger {
	l := L()
	if reqID := RequestIDFrom(ctx); reqID != "" {
		l = l.With(zap.String("request_id", reqID))
	}
	if txID, ok := ctx.Value(transactionIDKey).(int64); ok {
		l = l.With(zap.Int64("transaction_id", txID))
	}
	if invID, ok := ctx.Value(invoiceIDKey).(int64); ok && invID != 0 {
		l = l.With(zap.Int64("invoice_id", invID))
	}
	return l
}
