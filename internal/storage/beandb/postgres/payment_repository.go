package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/paidmsg/beancounter/internal/storage/beandb"
)

// PaymentRepository implements beandb.PaymentRepository for PostgreSQL.
type PaymentRepository struct {
	db *sql.DB
	tx *sql.Tx // Optional transaction context
}

// NewPaymentRepository creates a new PostgreSQL payment repository
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// NewPaymentRepositoryWithTx creates a new PostgreSQL payment repository within a transaction
func NewPaymentRepositoryWithTx(tx *sql.Tx) *PaymentRepository {
	return &PaymentRepository{tx: tx}
}

func (r *PaymentRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const paymentColumns = `id, created_at, updated_at, client_id_from, client_id_to, payment_cents, message_hash`

func (r *PaymentRepository) Insert(ctx context.Context, payment beandb.NewPayment) (*beandb.Payment, error) {
	query := `INSERT INTO payments (client_id_from, client_id_to, payment_cents, message_hash)
			  VALUES ($1, $2, $3, $4)
			  RETURNING ` + paymentColumns

	row := r.getExecutor().QueryRowContext(ctx, query,
		payment.ClientIDFrom.String(), payment.ClientIDTo.String(),
		payment.PaymentCents, payment.MessageHash)

	result, err := scanPayment(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, beandb.ErrDuplicatePayment
		}
		return nil, beandb.NewQueryError("insert_payment", "failed to insert payment", err)
	}

	return result, nil
}

func (r *PaymentRepository) GetByRecipientAndHash(ctx context.Context, recipient uuid.UUID, messageHash string) (*beandb.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
			  WHERE client_id_to = $1 AND message_hash = $2`

	row := r.getExecutor().QueryRowContext(ctx, query, recipient.String(), messageHash)
	payment, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, beandb.ErrPaymentNotFound
	}
	if err != nil {
		return nil, beandb.NewQueryError("get_payment", "failed to query payment", err)
	}

	return payment, nil
}

func (r *PaymentRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.getExecutor().ExecContext(ctx, "DELETE FROM payments WHERE id = $1", id)
	if err != nil {
		return beandb.NewQueryError("delete_payment", "failed to delete payment", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return beandb.NewQueryError("delete_payment", "failed to read rows affected", err)
	}
	if affected == 0 {
		return beandb.ErrPaymentNotFound
	}

	return nil
}

func (r *PaymentRepository) ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]beandb.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
			  WHERE created_at < $1
			  ORDER BY id`

	rows, err := r.getExecutor().QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, beandb.NewQueryError("list_expired_payments", "failed to query expired payments", err)
	}
	defer rows.Close()

	var results []beandb.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, beandb.NewQueryError("list_expired_payments", "failed to scan payment row", err)
		}
		results = append(results, *payment)
	}

	if err := rows.Err(); err != nil {
		return nil, beandb.NewQueryError("list_expired_payments", "error iterating rows", err)
	}

	return results, nil
}

func scanPayment(row rowScanner) (*beandb.Payment, error) {
	var payment beandb.Payment
	var from, to string

	err := row.Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt,
		&from, &to, &payment.PaymentCents, &payment.MessageHash)
	if err != nil {
		return nil, err
	}

	fromID, err := uuid.Parse(from)
	if err != nil {
		return nil, err
	}
	toID, err := uuid.Parse(to)
	if err != nil {
		return nil, err
	}
	payment.ClientIDFrom = fromID
	payment.ClientIDTo = toID

	return &payment, nil
}
