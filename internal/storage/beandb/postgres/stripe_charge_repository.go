package postgres

import (
	"context"
	"database/sql"

	"github.com/paidmsg/beancounter/internal/storage/beandb"
)

// StripeChargeRepository implements beandb.StripeChargeRepository for
// PostgreSQL.
type StripeChargeRepository struct {
	db *sql.DB
	tx *sql.Tx // Optional transaction context
}

// NewStripeChargeRepository creates a new PostgreSQL stripe charge repository
func NewStripeChargeRepository(db *sql.DB) *StripeChargeRepository {
	return &StripeChargeRepository{db: db}
}

// NewStripeChargeRepositoryWithTx creates a new PostgreSQL stripe charge repository within a transaction
func NewStripeChargeRepositoryWithTx(tx *sql.Tx) *StripeChargeRepository {
	return &StripeChargeRepository{tx: tx}
}

func (r *StripeChargeRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *StripeChargeRepository) Insert(ctx context.Context, charge beandb.NewStripeCharge) (*beandb.StripeCharge, error) {
	query := `INSERT INTO stripe_charges (client_id, charge)
			  VALUES ($1, $2)
			  RETURNING id, created_at`

	result := beandb.StripeCharge{
		ClientID: charge.ClientID,
		Charge:   charge.Charge,
	}

	err := r.getExecutor().QueryRowContext(ctx, query,
		charge.ClientID.String(), charge.Charge).
		Scan(&result.ID, &result.CreatedAt)
	if err != nil {
		return nil, beandb.NewQueryError("insert_stripe_charge", "failed to insert stripe charge", err)
	}

	return &result, nil
}
