package settlement

import (
	"context"
	"encoding/json"
	"time"

	bolt "github.com/boltdb/bolt"
)

const bucketName = "settlements"

type claimRecord struct {
	TransactionID int64     `json:"transaction_id"`
	ClaimedAt     time.Time `json:"claimed_at"`
}

// BoltGuard keeps claims in a local BoltDB file. Only suitable when a single
// process serves callbacks.
type BoltGuard struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

// NewBoltGuard opens (or creates) the database at path and ensures the
// settlements bucket exists.
func NewBoltGuard(path string) (*BoltGuard, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltGuard{
		db:  db,
		ttl: ClaimTTL,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (g *BoltGuard) Close() error {
	return g.db.Close()
}

// Claim writes the payment id unless a claim younger than the TTL is already
// present. Bolt serialises Update transactions, so two concurrent claims
// cannot both win.
func (g *BoltGuard) Claim(ctx context.Context, paymentID string, transactionID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	claimed := false
	err := g.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return ErrGuardClosed
		}

		now := g.now()
		if v := b.Get([]byte(paymentID)); v != nil {
			var rec claimRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if now.Sub(rec.ClaimedAt) < g.ttl {
				return nil
			}
		}

		data, err := json.Marshal(claimRecord{
			TransactionID: transactionID,
			ClaimedAt:     now,
		})
		if err != nil {
			return err
		}

		claimed = true
		return b.Put([]byte(paymentID), data)
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

// Release is a no-op for unknown payment ids.
func (g *BoltGuard) Release(ctx context.Context, paymentID string) error {
	return g.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return ErrGuardClosed
		}
		return b.Delete([]byte(paymentID))
	})
}
