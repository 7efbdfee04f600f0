package settlement

import (
	"context"
	"time"

	"razorpay-be/internal/billing"
)

// ClaimTTL is how long a claim blocks other transactions. A claim left behind
// by a crashed process can be taken over once it is this old.
const ClaimTTL = 5 * time.Minute

// Guard serialises settlement of a gateway payment. Claim returns true only
// for the first caller of a payment id until the claim is released or goes
// stale. The ledger's unique credit per payment is the durable record.
type Guard interface {
	Claim(ctx context.Context, paymentID string, transactionID int64) (bool, error)
	Release(ctx context.Context, paymentID string) error
}

type postgresGuard struct {
	repo billing.SettlementRepository
	ttl  time.Duration
}

// NewPostgresGuard keeps claims in the settlements table, shared by every
// instance pointed at the same database.
func NewPostgresGuard(repo billing.SettlementRepository) Guard {
	return &postgresGuard{repo: repo, ttl: ClaimTTL}
}

func (g *postgresGuard) Claim(ctx context.Context, paymentID string, transactionID int64) (bool, error) {
	return g.repo.ClaimSettlement(ctx, paymentID, transactionID, g.ttl)
}

func (g *postgresGuard) Release(ctx context.Context, paymentID string) error {
	return g.repo.ReleaseSettlement(ctx, paymentID)
}
