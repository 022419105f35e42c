package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/movie-booking-core/internal/model"
)

// BookingRepo provides data access to the bookings table.  Status
// transitions run inside caller-owned transactions so that the service
// layer can combine a SELECT ... FOR UPDATE read with the subsequent
// write; a transition is therefore all-or-nothing.  All timestamps are
// stored and compared in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle so callers can begin transactions
// spanning several repositories.
func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingColumns = `id, booking_number, user_id, showtime_id, seats, total_seats,
	base_price_cents, convenience_fee_cents, tax_cents, total_cents,
	status, payment_method, payment_id, order_id,
	payment_initiated_at, payment_received_at,
	confirmation_notified, failure_notified, refund_notified,
	created_at, confirmed_at, expires_at`

// NewBookingNumber builds a unique, human-displayable booking number of
// the form BOOK-YYYYMMDD-NNNNN.  The numeric suffix comes from a random
// UUID so collisions within a day are practically impossible; the
// unique index on booking_number catches the rest.
func NewBookingNumber(now time.Time) string {
	suffix := fmt.Sprintf("%05d", uuid.New().ID()%100000)
	return fmt.Sprintf("BOOK-%s-%s", now.UTC().Format("20060102"), suffix)
}

// CreateTx inserts a new PENDING booking within the provided
// transaction and populates the generated ID on the record.  The seat
// list is stored as a JSON array.  ExpiresAt must already be stamped by
// the caller; it is written exactly once here and no update statement
// in this repository ever touches it or the price columns again.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	seats, err := json.Marshal(b.Seats)
	if err != nil {
		return err
	}
	const q = `INSERT INTO bookings
		(booking_number, user_id, showtime_id, seats, total_seats,
		 base_price_cents, convenience_fee_cents, tax_cents, total_cents,
		 status, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		b.BookingNumber, b.UserID, b.ShowtimeID, seats, b.TotalSeats,
		b.BasePriceCents, b.ConvenienceFeeCents, b.TaxCents, b.TotalCents,
		b.Status, b.ExpiresAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetByID loads a booking by primary key.  Returns ErrBookingNotFound
// when no row exists.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	return scanBooking(r.db.QueryRowContext(ctx, q, id))
}

// GetByIDForUpdateTx loads a booking by primary key with a row lock
// (SELECT ... FOR UPDATE) inside the provided transaction.  Two paths
// racing on the same booking id (a browser callback and a webhook, or
// the reaper and a late confirmation) serialize here and must re-check
// the status they observe before mutating.
func (r *BookingRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? FOR UPDATE`
	return scanBooking(tx.QueryRowContext(ctx, q, id))
}

// GetByOrderID loads a booking via its gateway order id.  Webhook
// deliveries identify bookings this way.  Returns ErrBookingNotFound
// for unknown orders.
func (r *BookingRepo) GetByOrderID(ctx context.Context, orderID string) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE order_id = ?`
	return scanBooking(r.db.QueryRowContext(ctx, q, orderID))
}

// SetOrder records the gateway order id and payment-initiated timestamp
// on a PENDING booking.  The WHERE clause guards against overwriting an
// order id that was set concurrently; the first writer wins and
// subsequent calls find the column already populated.
func (r *BookingRepo) SetOrder(ctx context.Context, id uint64, orderID string, initiatedAt time.Time) error {
	const q = `UPDATE bookings SET order_id = ?, payment_initiated_at = ?
			   WHERE id = ? AND order_id IS NULL AND status = 'PENDING'`
	_, err := r.db.ExecContext(ctx, q, orderID, initiatedAt.UTC().Format("2006-01-02 15:04:05"), id)
	return err
}

// UpdateStatusTx moves a booking to the given status within the
// provided transaction.  It intentionally updates nothing else; richer
// transitions use the dedicated methods below.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	_, err := tx.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ?`, status, id)
	return err
}

// MarkConfirmedTx stamps the CONFIRMED state together with the payment
// linkage.  payment_received_at is only written when currently NULL so
// the field is effectively write-once even if two confirmations race
// past the row lock in separate transactions.
func (r *BookingRepo) MarkConfirmedTx(ctx context.Context, tx *sql.Tx, id uint64, paymentID, method string, at time.Time) error {
	ts := at.UTC().Format("2006-01-02 15:04:05")
	const q = `UPDATE bookings
			   SET status = 'CONFIRMED', payment_id = ?, payment_method = ?,
				   confirmed_at = ?,
				   payment_received_at = COALESCE(payment_received_at, ?)
			   WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, paymentID, method, ts, ts, id)
	return err
}

// MarkFailedTx stamps the FAILED state.  When receivedAt is non-nil the
// payment did arrive (late payment case) and payment_received_at is
// recorded, again only if not already set.  A nil receivedAt leaves the
// column untouched, which is how seat-theft failures are told apart
// from late payments afterwards.
func (r *BookingRepo) MarkFailedTx(ctx context.Context, tx *sql.Tx, id uint64, paymentID string, receivedAt *time.Time) error {
	var ts interface{}
	if receivedAt != nil {
		ts = receivedAt.UTC().Format("2006-01-02 15:04:05")
	}
	const q = `UPDATE bookings
			   SET status = 'FAILED', payment_id = ?,
				   payment_received_at = COALESCE(payment_received_at, ?)
			   WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, paymentID, ts, id)
	return err
}

// Notification latches.  Each update flips a flag from 0 to 1 and
// reports whether this call won the flip.  Callers send the external
// notification only on true, which makes every notification exactly-once
// across replicas and webhook retries.

// ClaimConfirmationNotice attempts to claim the confirmation
// notification for a booking.
func (r *BookingRepo) ClaimConfirmationNotice(ctx context.Context, id uint64) (bool, error) {
	return r.claimFlag(ctx, "confirmation_notified", id)
}

// ClaimFailureNotice attempts to claim the payment-failure notification.
func (r *BookingRepo) ClaimFailureNotice(ctx context.Context, id uint64) (bool, error) {
	return r.claimFlag(ctx, "failure_notified", id)
}

// ClaimRefundNotice attempts to claim the late-payment refund
// notification.
func (r *BookingRepo) ClaimRefundNotice(ctx context.Context, id uint64) (bool, error) {
	return r.claimFlag(ctx, "refund_notified", id)
}

func (r *BookingRepo) claimFlag(ctx context.Context, column string, id uint64) (bool, error) {
	// column is one of three fixed names above, never user input.
	q := `UPDATE bookings SET ` + column + ` = 1 WHERE id = ? AND ` + column + ` = 0`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListExpiredPending returns PENDING bookings whose payment window has
// closed, oldest first.  The reaper drives each of them through the
// expiry transition; limit bounds one sweep's batch.
func (r *BookingRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
			   WHERE status = 'PENDING' AND expires_at < ?
			   ORDER BY expires_at ASC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, now.UTC().Format("2006-01-02 15:04:05"), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

// ListPendingByUserAndShowtimeTx returns the other PENDING bookings a
// user holds for the same showtime, excluding excludeID.  Force-expiry
// uses this to clean up duplicate booking attempts in one pass.
func (r *BookingRepo) ListPendingByUserAndShowtimeTx(ctx context.Context, tx *sql.Tx, userID, showtimeID, excludeID uint64) ([]*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
			   WHERE user_id = ? AND showtime_id = ? AND status = 'PENDING' AND id <> ?
			   FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, userID, showtimeID, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

// ListByUser returns all bookings belonging to a user, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
			   WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

// UnavailableSeats computes the two seat sets that availability must
// subtract from the layout: seats of CONFIRMED bookings (permanently
// booked) and seats of PENDING bookings whose window is still open
// (reserved).  A seat never appears in both slices.
func (r *BookingRepo) UnavailableSeats(ctx context.Context, showtimeID uint64, now time.Time) (booked, reserved []string, err error) {
	const q = `SELECT status, seats FROM bookings
			   WHERE showtime_id = ?
				 AND (status = 'CONFIRMED'
					  OR (status = 'PENDING' AND expires_at > ?))`
	rows, err := r.db.QueryContext(ctx, q, showtimeID, now.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	seen := make(map[string]struct{})
	for rows.Next() {
		var status string
		var raw []byte
		if err := rows.Scan(&status, &raw); err != nil {
			return nil, nil, err
		}
		var seats []string
		if err := json.Unmarshal(raw, &seats); err != nil {
			return nil, nil, err
		}
		for _, s := range seats {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			if status == model.BookingConfirmed {
				booked = append(booked, s)
			} else {
				reserved = append(reserved, s)
			}
		}
	}
	return booked, reserved, rows.Err()
}

// SeatsConfirmedByOthersTx reports which of the given seats already
// belong to a CONFIRMED booking of a different user for the showtime.
// This is the seat-theft guard consulted inside the confirmation
// transaction: a rival may have confirmed during the payment
// round-trip, and their claim wins.
func (r *BookingRepo) SeatsConfirmedByOthersTx(ctx context.Context, tx *sql.Tx, showtimeID, userID uint64, seatIDs []string) ([]string, error) {
	const q = `SELECT seats FROM bookings
			   WHERE showtime_id = ? AND status = 'CONFIRMED' AND user_id <> ?`
	rows, err := tx.QueryContext(ctx, q, showtimeID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	taken := make(map[string]struct{})
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var seats []string
		if err := json.Unmarshal(raw, &seats); err != nil {
			return nil, err
		}
		for _, s := range seats {
			taken[s] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var stolen []string
	for _, s := range seatIDs {
		if _, ok := taken[s]; ok {
			stolen = append(stolen, s)
		}
	}
	return stolen, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for the shared scan code.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var b model.Booking
	var seats []byte
	var method, paymentID sql.NullString
	var orderID sql.NullString
	var initAt, recvAt, confAt sql.NullTime
	err := row.Scan(
		&b.ID, &b.BookingNumber, &b.UserID, &b.ShowtimeID, &seats, &b.TotalSeats,
		&b.BasePriceCents, &b.ConvenienceFeeCents, &b.TaxCents, &b.TotalCents,
		&b.Status, &method, &paymentID, &orderID,
		&initAt, &recvAt,
		&b.ConfirmationNotified, &b.FailureNotified, &b.RefundNotified,
		&b.CreatedAt, &confAt, &b.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(seats, &b.Seats); err != nil {
		return nil, err
	}
	b.PaymentMethod = method.String
	b.PaymentID = paymentID.String
	if orderID.Valid {
		v := orderID.String
		b.OrderID = &v
	}
	if initAt.Valid {
		t := initAt.Time.UTC()
		b.PaymentInitiatedAt = &t
	}
	if recvAt.Valid {
		t := recvAt.Time.UTC()
		b.PaymentReceivedAt = &t
	}
	if confAt.Valid {
		t := confAt.Time.UTC()
		b.ConfirmedAt = &t
	}
	return &b, nil
}

func scanBookings(rows *sql.Rows) ([]*model.Booking, error) {
	var out []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
