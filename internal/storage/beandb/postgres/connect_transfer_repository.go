package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/paidmsg/beancounter/internal/storage/beandb"
)

// ConnectTransferRepository implements beandb.ConnectTransferRepository
// for PostgreSQL.
type ConnectTransferRepository struct {
	db *sql.DB
	tx *sql.Tx // Optional transaction context
}

// NewConnectTransferRepository creates a new PostgreSQL connect transfer repository
func NewConnectTransferRepository(db *sql.DB) *ConnectTransferRepository {
	return &ConnectTransferRepository{db: db}
}

// NewConnectTransferRepositoryWithTx creates a new PostgreSQL connect transfer repository within a transaction
func NewConnectTransferRepositoryWithTx(tx *sql.Tx) *ConnectTransferRepository {
	return &ConnectTransferRepository{tx: tx}
}

func (r *ConnectTransferRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *ConnectTransferRepository) Insert(ctx context.Context, transfer beandb.NewConnectTransfer) (*beandb.ConnectTransfer, error) {
	query := `INSERT INTO stripe_connect_transfers (client_id, stripe_user_id, transfer, amount_cents)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id, created_at`

	result := beandb.ConnectTransfer{
		ClientID:     transfer.ClientID,
		StripeUserID: transfer.StripeUserID,
		Transfer:     transfer.Transfer,
		AmountCents:  transfer.AmountCents,
	}

	err := r.getExecutor().QueryRowContext(ctx, query,
		transfer.ClientID.String(), transfer.StripeUserID, transfer.Transfer, transfer.AmountCents).
		Scan(&result.ID, &result.CreatedAt)
	if err != nil {
		return nil, beandb.NewQueryError("insert_connect_transfer", "failed to insert connect transfer", err)
	}

	return &result, nil
}

// ListPayoutCandidates joins balances against connect accounts and
// excludes clients with a transfer inside the 24 hour lookback, so the
// sweep pays each client out at most once a day.
func (r *ConnectTransferRepository) ListPayoutCandidates(ctx context.Context) ([]beandb.PayoutCandidate, error) {
	query := `
		SELECT
			b.client_id,
			b.withdrawable_cents,
			a.enable_automatic_payouts,
			a.automatic_payout_threshold_cents,
			a.stripe_user_id
		FROM
			balances AS b
			INNER JOIN stripe_connect_accounts AS a ON b.client_id = a.client_id
		WHERE
			b.withdrawable_cents >= a.automatic_payout_threshold_cents
			AND a.enable_automatic_payouts = TRUE
			AND NOT EXISTS (
				SELECT 1
				FROM stripe_connect_transfers AS t
				WHERE
					t.created_at >= NOW() - interval '24 hours'
					AND b.client_id = t.client_id)`

	rows, err := r.getExecutor().QueryContext(ctx, query)
	if err != nil {
		return nil, beandb.NewQueryError("list_payout_candidates", "failed to query payout candidates", err)
	}
	defer rows.Close()

	var results []beandb.PayoutCandidate
	for rows.Next() {
		var candidate beandb.PayoutCandidate
		var clientID string
		var stripeUserID sql.NullString

		if err := rows.Scan(&clientID, &candidate.WithdrawableCents,
			&candidate.EnableAutomaticPayouts, &candidate.ThresholdCents, &stripeUserID); err != nil {
			return nil, beandb.NewQueryError("list_payout_candidates", "failed to scan candidate row", err)
		}

		id, err := uuid.Parse(clientID)
		if err != nil {
			return nil, beandb.NewQueryError("list_payout_candidates", "invalid client id in candidate row", err)
		}
		candidate.ClientID = id

		if stripeUserID.Valid {
			candidate.StripeUserID = &stripeUserID.String
		}

		results = append(results, candidate)
	}

	if err := rows.Err(); err != nil {
		return nil, beandb.NewQueryError("list_payout_candidates", "error iterating rows", err)
	}

	return results, nil
}
