package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/movie-booking-core/internal/model"
)

// TransactionRepo provides access to the append-only transactions
// table.  Rows are inserted once per gateway attempt or outcome and
// never updated or deleted; the table is the audit trail that lets
// support reconcile disputes against the raw gateway payloads.
type TransactionRepo struct {
	db *sql.DB
}

// NewTransactionRepo returns a new TransactionRepo bound to the given database.
func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// Create inserts a transaction row.  The transaction_id column carries
// a unique index, so recording the same gateway payment twice (webhook
// redelivery racing a browser callback) fails on the second insert;
// callers treat a duplicate-key error from here as already-recorded.
func (r *TransactionRepo) Create(ctx context.Context, t *model.Transaction) error {
	const q = `INSERT INTO transactions
		(booking_id, transaction_id, amount_cents, status, gateway, gateway_response)
		VALUES (?, ?, ?, ?, ?, ?)`
	raw := t.GatewayResponse
	if len(raw) == 0 {
		raw = []byte(`{}`)
	}
	res, err := r.db.ExecContext(ctx, q,
		t.BookingID, t.TransactionID, t.AmountCents, t.Status, t.Gateway, raw)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// ListByBooking returns all transactions recorded for a booking,
// oldest first, for display and audit.
func (r *TransactionRepo) ListByBooking(ctx context.Context, bookingID uint64) ([]*model.Transaction, error) {
	const q = `SELECT id, booking_id, transaction_id, amount_cents, status, gateway, gateway_response, created_at
			   FROM transactions WHERE booking_id = ? ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.BookingID, &t.TransactionID, &t.AmountCents,
			&t.Status, &t.Gateway, &t.GatewayResponse, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountByBookingAndStatus returns how many transactions with the given
// status exist for a booking.  Tests and reconciliation use this to
// assert the exactly-one-SUCCESS-row property.
func (r *TransactionRepo) CountByBookingAndStatus(ctx context.Context, bookingID uint64, status string) (int, error) {
	const q = `SELECT COUNT(*) FROM transactions WHERE booking_id = ? AND status = ?`
	var n int
	err := r.db.QueryRowContext(ctx, q, bookingID, status).Scan(&n)
	return n, err
}
