package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/paidmsg/beancounter/internal/storage/beandb"
)

// ConnectAccountRepository implements beandb.ConnectAccountRepository for
// PostgreSQL.
type ConnectAccountRepository struct {
	db *sql.DB
	tx *sql.Tx // Optional transaction context
}

// NewConnectAccountRepository creates a new PostgreSQL connect account repository
func NewConnectAccountRepository(db *sql.DB) *ConnectAccountRepository {
	return &ConnectAccountRepository{db: db}
}

// NewConnectAccountRepositoryWithTx creates a new PostgreSQL connect account repository within a transaction
func NewConnectAccountRepositoryWithTx(tx *sql.Tx) *ConnectAccountRepository {
	return &ConnectAccountRepository{tx: tx}
}

func (r *ConnectAccountRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const connectAccountColumns = `id, created_at, updated_at, client_id, oauth_state, stripe_user_id,
	credentials, account_details, enable_automatic_payouts, automatic_payout_threshold_cents`

func (r *ConnectAccountRepository) Get(ctx context.Context, client uuid.UUID) (*beandb.ConnectAccount, error) {
	query := `SELECT ` + connectAccountColumns + ` FROM stripe_connect_accounts WHERE client_id = $1`

	row := r.getExecutor().QueryRowContext(ctx, query, client.String())
	account, err := scanConnectAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, beandb.ErrAccountNotFound
	}
	if err != nil {
		return nil, beandb.NewQueryError("get_connect_account", "failed to query connect account", err)
	}

	return account, nil
}

func (r *ConnectAccountRepository) Create(ctx context.Context, client, oauthState uuid.UUID) (*beandb.ConnectAccount, error) {
	query := `INSERT INTO stripe_connect_accounts (client_id, oauth_state)
			  VALUES ($1, $2)
			  RETURNING ` + connectAccountColumns

	row := r.getExecutor().QueryRowContext(ctx, query, client.String(), oauthState.String())
	account, err := scanConnectAccount(row)
	if err != nil {
		return nil, beandb.NewQueryError("create_connect_account", "failed to insert connect account", err)
	}

	return account, nil
}

func (r *ConnectAccountRepository) SetCredentials(ctx context.Context, client uuid.UUID, stripeUserID string, credentials, accountDetails []byte) (*beandb.ConnectAccount, error) {
	query := `UPDATE stripe_connect_accounts SET
			  stripe_user_id = $2,
			  credentials = $3,
			  account_details = $4,
			  updated_at = NOW()
			  WHERE client_id = $1
			  RETURNING ` + connectAccountColumns

	row := r.getExecutor().QueryRowContext(ctx, query,
		client.String(), stripeUserID, credentials, accountDetails)
	account, err := scanConnectAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, beandb.ErrAccountNotFound
	}
	if err != nil {
		return nil, beandb.NewQueryError("set_connect_credentials", "failed to update connect account", err)
	}

	return account, nil
}

func (r *ConnectAccountRepository) SetPreferences(ctx context.Context, client uuid.UUID, enableAutomaticPayouts bool, thresholdCents int64) (*beandb.ConnectAccount, error) {
	query := `UPDATE stripe_connect_accounts SET
			  enable_automatic_payouts = $2,
			  automatic_payout_threshold_cents = $3,
			  updated_at = NOW()
			  WHERE client_id = $1
			  RETURNING ` + connectAccountColumns

	row := r.getExecutor().QueryRowContext(ctx, query,
		client.String(), enableAutomaticPayouts, thresholdCents)
	account, err := scanConnectAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, beandb.ErrAccountNotFound
	}
	if err != nil {
		return nil, beandb.NewQueryError("set_connect_preferences", "failed to update connect account", err)
	}

	return account, nil
}

func scanConnectAccount(row rowScanner) (*beandb.ConnectAccount, error) {
	var account beandb.ConnectAccount
	var clientID, oauthState string
	var stripeUserID sql.NullString
	var credentials, accountDetails []byte

	err := row.Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt,
		&clientID, &oauthState, &stripeUserID, &credentials, &accountDetails,
		&account.EnableAutomaticPayouts, &account.AutomaticPayoutThresholdCents)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(clientID)
	if err != nil {
		return nil, err
	}
	account.ClientID = id

	state, err := uuid.Parse(oauthState)
	if err != nil {
		return nil, err
	}
	account.OAuthState = state

	if stripeUserID.Valid {
		account.StripeUserID = &stripeUserID.String
	}
	account.Credentials = credentials
	account.AccountDetails = accountDetails

	return &account, nil
}
