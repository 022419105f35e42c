package service

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/iliyamo/movie-booking-core/internal/gateway"
	"github.com/iliyamo/movie-booking-core/internal/model"
	"github.com/iliyamo/movie-booking-core/internal/repository"
)

// Service-level sentinels.  Handlers map these onto HTTP statuses.
var (
	// ErrSeatsNotHeld means booking creation was attempted without the
	// user holding live seat locks covering the requested seats.
	ErrSeatsNotHeld = errors.New("seats not held by user")

	// ErrInvalidTransition means the booking's current status does not
	// admit the requested operation (e.g. cancelling a CONFIRMED
	// booking, paying a CANCELLED one).
	ErrInvalidTransition = errors.New("invalid booking state for operation")

	// ErrSignatureInvalid means the payment signature did not verify.
	// The booking is left untouched and stays PENDING.
	ErrSignatureInvalid = errors.New("payment signature invalid")

	// ErrLatePayment means a verified payment arrived after the booking
	// deadline.  The booking is FAILED and a refund is owed.
	ErrLatePayment = errors.New("payment received after booking expired")

	// ErrSeatsTaken means a rival confirmed one of the booking's seats
	// during the payment round-trip.  The booking is FAILED and a
	// refund is owed.
	ErrSeatsTaken = errors.New("seats confirmed by another booking")
)

// EventPublisher receives lifecycle events after a transition commits.
// Implementations must tolerate being called at-most-once per booking
// per event kind; the notification latches upstream guarantee it.
type EventPublisher interface {
	BookingConfirmed(ctx context.Context, b *model.Booking) error
	PaymentFailed(ctx context.Context, b *model.Booking, reason string) error
	RefundDue(ctx context.Context, b *model.Booking, reason string) error
}

// BookingService drives the booking state machine.  All transitions out
// of PENDING run inside a database transaction holding the booking's
// row lock, so concurrent callbacks, webhooks and reaper sweeps
// serialize per booking and at most one of them wins each transition.
type BookingService struct {
	bookings  *repository.BookingRepo
	txns      *repository.TransactionRepo
	showtimes *repository.ShowtimeRepo
	locks     *repository.SeatLockRepo
	avail     *repository.AvailabilityRepo
	gw        gateway.Gateway
	events    EventPublisher
	window    time.Duration

	now func() time.Time // injectable clock
}

// NewBookingService wires the service.  window is the payment window; it
// must equal the seat-lock TTL so a booking's deadline and its seat
// holds expire together.
func NewBookingService(
	bookings *repository.BookingRepo,
	txns *repository.TransactionRepo,
	showtimes *repository.ShowtimeRepo,
	locks *repository.SeatLockRepo,
	avail *repository.AvailabilityRepo,
	gw gateway.Gateway,
	events EventPublisher,
	window time.Duration,
) *BookingService {
	return &BookingService{
		bookings:  bookings,
		txns:      txns,
		showtimes: showtimes,
		locks:     locks,
		avail:     avail,
		gw:        gw,
		events:    events,
		window:    window,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateBooking turns a live seat reservation into a PENDING booking
// with a frozen price snapshot.  The user must already hold locks
// covering every requested seat; creation never acquires locks itself,
// so the reserve step and the booking step stay separate API calls.
// expires_at is stamped from the same window as the lock TTL.
func (s *BookingService) CreateBooking(ctx context.Context, userID, showtimeID uint64, seatIDs []string) (*model.Booking, error) {
	st, err := s.showtimes.GetByID(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	held, err := s.locks.HeldBy(ctx, showtimeID, userID)
	if err != nil {
		return nil, err
	}
	heldSet := toSet(held)
	if len(seatIDs) == 0 {
		return nil, ErrSeatsNotHeld
	}
	for _, seat := range seatIDs {
		if !member(heldSet, seat) {
			return nil, ErrSeatsNotHeld
		}
	}

	now := s.now()
	q := QuoteFor(st, len(seatIDs))
	b := &model.Booking{
		BookingNumber:       repository.NewBookingNumber(now),
		UserID:              userID,
		ShowtimeID:          showtimeID,
		Seats:               seatIDs,
		TotalSeats:          len(seatIDs),
		BasePriceCents:      q.BaseCents,
		ConvenienceFeeCents: q.FeeCents,
		TaxCents:            q.TaxCents,
		TotalCents:          q.TotalCents,
		Status:              model.BookingPending,
		CreatedAt:           now,
		ExpiresAt:           now.Add(s.window),
	}

	tx, err := s.bookings.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if err := s.bookings.CreateTx(ctx, tx, b); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if err := s.avail.Invalidate(ctx, showtimeID); err != nil {
		log.Printf("[BOOKING] availability invalidate failed for showtime %d: %v", showtimeID, err)
	}
	return b, nil
}

// GetOrCreateOrder returns the gateway order for a PENDING booking,
// creating one on first call.  Repeated calls return the stored order
// id rather than opening a second order; the guarded UPDATE in SetOrder
// makes the first writer win under concurrency.
func (s *BookingService) GetOrCreateOrder(ctx context.Context, userID, bookingID uint64) (*model.Booking, string, error) {
	b, err := s.ownedBooking(ctx, userID, bookingID)
	if err != nil {
		return nil, "", err
	}
	if b.Status != model.BookingPending {
		return nil, "", ErrInvalidTransition
	}
	if b.IsExpired(s.now()) {
		return nil, "", ErrLatePayment
	}
	if b.OrderID != nil {
		return b, *b.OrderID, nil
	}

	order, err := s.gw.CreateOrder(ctx, b.TotalCents, "INR", b.BookingNumber, map[string]string{
		"booking_id":     strconv.FormatUint(b.ID, 10),
		"booking_number": b.BookingNumber,
	})
	if err != nil {
		return nil, "", err
	}
	if err := s.bookings.SetOrder(ctx, b.ID, order.ID, s.now()); err != nil {
		return nil, "", err
	}
	// Re-read: a concurrent call may have won the guarded update.
	b, err = s.bookings.GetByID(ctx, b.ID)
	if err != nil {
		return nil, "", err
	}
	if b.OrderID == nil {
		return nil, "", ErrInvalidTransition
	}
	s.recordTx(ctx, b.ID, order.ID, b.TotalCents, model.TxInitiated, nil)
	return b, *b.OrderID, nil
}

// ConfirmPayment handles the browser checkout callback.  The signature
// binds (order, payment) and is checked before anything else; a bad
// signature leaves the booking PENDING.  The transition itself runs in
// confirm under the row lock.
func (s *BookingService) ConfirmPayment(ctx context.Context, userID, bookingID uint64, orderID, paymentID, signature string) (*model.Booking, error) {
	b, err := s.ownedBooking(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}
	if b.OrderID == nil || *b.OrderID != orderID {
		return nil, ErrSignatureInvalid
	}
	if !s.gw.VerifySignature(orderID, paymentID, signature) {
		s.recordTx(ctx, b.ID, paymentID, b.TotalCents, model.TxFailed,
			[]byte(`{"reason":"signature_mismatch"}`))
		return nil, ErrSignatureInvalid
	}
	return s.confirm(ctx, b.ID, paymentID, nil)
}

// ConfirmFromWebhook applies a payment.captured webhook.  The handler
// has already verified the webhook signature and resolved the booking
// by order id; from here the path is identical to the browser callback,
// including idempotent success when the callback got there first.
func (s *BookingService) ConfirmFromWebhook(ctx context.Context, bookingID uint64, paymentID string, payload []byte) (*model.Booking, error) {
	return s.confirm(ctx, bookingID, paymentID, payload)
}

// FailFromWebhook applies a payment.failed webhook: the gateway
// rejected the payment attempt.  The booking moves to FAILED, seats are
// freed immediately rather than waiting for the reaper, and a failure
// notification is published once.  Terminal bookings are left alone so
// redeliveries are harmless.
func (s *BookingService) FailFromWebhook(ctx context.Context, bookingID uint64, paymentID string, payload []byte) error {
	tx, err := s.bookings.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	b, err := s.bookings.GetByIDForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if b.IsTerminal() {
		_ = tx.Rollback()
		return nil
	}
	if err := s.bookings.MarkFailedTx(ctx, tx, b.ID, paymentID, nil); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.recordTx(ctx, b.ID, paymentID, b.TotalCents, model.TxFailed, payload)
	s.releaseAndInvalidate(ctx, b)
	s.notifyFailure(ctx, b.ID, "payment_failed")
	return nil
}

// confirm is the single payment-success path, shared by the browser
// callback and the webhook.  Under the booking's row lock it decides
// between four outcomes: idempotent success (already CONFIRMED with the
// same payment), late payment (deadline passed, so FAILED plus refund),
// seat theft (a rival confirmed first, so FAILED plus refund), or the
// happy transition to CONFIRMED.
func (s *BookingService) confirm(ctx context.Context, bookingID uint64, paymentID string, payload []byte) (*model.Booking, error) {
	tx, err := s.bookings.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	b, err := s.bookings.GetByIDForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if b.Status == model.BookingConfirmed {
		_ = tx.Rollback()
		if b.PaymentID == paymentID {
			return b, nil // already processed, report success
		}
		return nil, ErrInvalidTransition
	}
	if b.IsTerminal() {
		_ = tx.Rollback()
		return nil, ErrInvalidTransition
	}

	now := s.now()
	if now.After(b.ExpiresAt) {
		// Payment arrived, but too late.  Record receipt, fail the
		// booking and owe a refund.
		if err := s.bookings.MarkFailedTx(ctx, tx, b.ID, paymentID, &now); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		s.recordTx(ctx, b.ID, paymentID, b.TotalCents, model.TxFailed,
			[]byte(`{"reason":"late_payment"}`))
		s.releaseAndInvalidate(ctx, b)
		s.notifyRefund(ctx, b.ID, "late_payment")
		return nil, ErrLatePayment
	}

	stolen, err := s.bookings.SeatsConfirmedByOthersTx(ctx, tx, b.ShowtimeID, b.UserID, b.Seats)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if len(stolen) > 0 {
		if err := s.bookings.MarkFailedTx(ctx, tx, b.ID, paymentID, nil); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		s.recordTx(ctx, b.ID, paymentID, b.TotalCents, model.TxFailed,
			[]byte(`{"reason":"seats_taken"}`))
		s.releaseAndInvalidate(ctx, b)
		s.notifyRefund(ctx, b.ID, "seats_taken")
		return nil, ErrSeatsTaken
	}

	if err := s.bookings.MarkConfirmedTx(ctx, tx, b.ID, paymentID, s.gw.Name(), now); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.recordTx(ctx, b.ID, paymentID, b.TotalCents, model.TxSuccess, payload)
	s.releaseAndInvalidate(ctx, b)

	confirmed, err := s.bookings.GetByID(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if won, err := s.bookings.ClaimConfirmationNotice(ctx, b.ID); err == nil && won {
		if err := s.events.BookingConfirmed(ctx, confirmed); err != nil {
			log.Printf("[BOOKING] confirmation event for booking %d: %v", b.ID, err)
		}
	}
	return confirmed, nil
}

// CancelBooking cancels a PENDING booking at the user's request and
// releases its seats immediately.  Bookings in any terminal state
// cannot be cancelled.
func (s *BookingService) CancelBooking(ctx context.Context, userID, bookingID uint64) (*model.Booking, error) {
	if _, err := s.ownedBooking(ctx, userID, bookingID); err != nil {
		return nil, err
	}
	tx, err := s.bookings.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	b, err := s.bookings.GetByIDForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if b.Status != model.BookingPending {
		_ = tx.Rollback()
		return nil, ErrInvalidTransition
	}
	if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, model.BookingCancelled); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.releaseAndInvalidate(ctx, b)
	return s.bookings.GetByID(ctx, b.ID)
}

// ExpireBooking moves one overdue PENDING booking to EXPIRED.  It is
// called by the reaper for each booking past its deadline.  Under the
// row lock the deadline and status are re-checked, so a payment that
// confirmed a moment earlier is never clobbered.
func (s *BookingService) ExpireBooking(ctx context.Context, bookingID uint64) error {
	tx, err := s.bookings.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	b, err := s.bookings.GetByIDForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if !b.IsExpired(s.now()) {
		_ = tx.Rollback()
		return nil
	}
	if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, model.BookingExpired); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.releaseAndInvalidate(ctx, b)
	s.notifyFailure(ctx, b.ID, "expired")
	return nil
}

// ForceExpire is the leave-page beacon: the user abandoned checkout, so
// their PENDING booking is expired immediately instead of waiting out
// the window.  Any other PENDING bookings the same user holds for the
// showtime are expired in the same transaction, and the advisory
// reserved set is dropped when stale entries linger.  Terminal bookings
// are ignored, so duplicate beacons are harmless.
func (s *BookingService) ForceExpire(ctx context.Context, userID, bookingID uint64) error {
	owned, err := s.ownedBooking(ctx, userID, bookingID)
	if err != nil {
		return err
	}
	tx, err := s.bookings.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	b, err := s.bookings.GetByIDForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	expired := make([]*model.Booking, 0, 2)
	if b.Status == model.BookingPending {
		if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, model.BookingExpired); err != nil {
			_ = tx.Rollback()
			return err
		}
		expired = append(expired, b)
	}
	others, err := s.bookings.ListPendingByUserAndShowtimeTx(ctx, tx, userID, owned.ShowtimeID, bookingID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, o := range others {
		if err := s.bookings.UpdateStatusTx(ctx, tx, o.ID, model.BookingExpired); err != nil {
			_ = tx.Rollback()
			return err
		}
		expired = append(expired, o)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	for _, e := range expired {
		s.releaseAndInvalidate(ctx, e)
	}
	// The user walked away; any advisory entries left for them are
	// stale.  The reserved set is display-only and repopulates on the
	// next reserve, so dropping it outright is safe.
	if held, err := s.locks.HeldBy(ctx, owned.ShowtimeID, userID); err == nil && len(held) > 0 {
		_ = s.locks.Release(ctx, owned.ShowtimeID, nil, userID)
		_ = s.locks.DropReservedSet(ctx, owned.ShowtimeID)
	}
	return nil
}

// GetBooking returns a booking after an ownership check.
func (s *BookingService) GetBooking(ctx context.Context, userID, bookingID uint64) (*model.Booking, error) {
	return s.ownedBooking(ctx, userID, bookingID)
}

// GetByOrderID resolves a booking from a gateway order id, for webhook
// dispatch.
func (s *BookingService) GetByOrderID(ctx context.Context, orderID string) (*model.Booking, error) {
	return s.bookings.GetByOrderID(ctx, orderID)
}

// ListBookings returns all of a user's bookings, newest first.
func (s *BookingService) ListBookings(ctx context.Context, userID uint64) ([]*model.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// ListTransactions returns the audit rows for an owned booking.
func (s *BookingService) ListTransactions(ctx context.Context, userID, bookingID uint64) ([]*model.Transaction, error) {
	if _, err := s.ownedBooking(ctx, userID, bookingID); err != nil {
		return nil, err
	}
	return s.txns.ListByBooking(ctx, bookingID)
}

func (s *BookingService) ownedBooking(ctx context.Context, userID, bookingID uint64) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, repository.ErrForbidden
	}
	return b, nil
}

// releaseAndInvalidate frees the booking's seat locks and drops the
// cached availability set.  Both are best-effort: the locks would
// expire on their own and the cache would age out within its TTL, so a
// transient Redis failure here is logged, not escalated.
func (s *BookingService) releaseAndInvalidate(ctx context.Context, b *model.Booking) {
	if err := s.locks.Release(ctx, b.ShowtimeID, b.Seats, b.UserID); err != nil {
		log.Printf("[BOOKING] seat release failed for booking %d: %v", b.ID, err)
	}
	if err := s.avail.Invalidate(ctx, b.ShowtimeID); err != nil {
		log.Printf("[BOOKING] availability invalidate failed for showtime %d: %v", b.ShowtimeID, err)
	}
}

// recordTx appends an audit row.  Duplicate transaction ids (webhook
// redelivery racing a callback) hit the unique index; that is the
// expected signal that the row already exists, so errors are logged and
// swallowed rather than failing the transition that already committed.
func (s *BookingService) recordTx(ctx context.Context, bookingID uint64, txID string, amount int64, status string, payload []byte) {
	t := &model.Transaction{
		BookingID:       bookingID,
		TransactionID:   txID,
		AmountCents:     amount,
		Status:          status,
		Gateway:         s.gw.Name(),
		GatewayResponse: payload,
	}
	if err := s.txns.Create(ctx, t); err != nil {
		log.Printf("[BOOKING] transaction record for booking %d (%s): %v", bookingID, status, err)
	}
}

func (s *BookingService) notifyFailure(ctx context.Context, bookingID uint64, reason string) {
	won, err := s.bookings.ClaimFailureNotice(ctx, bookingID)
	if err != nil || !won {
		return
	}
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return
	}
	if err := s.events.PaymentFailed(ctx, b, reason); err != nil {
		log.Printf("[BOOKING] failure event for booking %d: %v", bookingID, err)
	}
}

func (s *BookingService) notifyRefund(ctx context.Context, bookingID uint64, reason string) {
	won, err := s.bookings.ClaimRefundNotice(ctx, bookingID)
	if err != nil || !won {
		return
	}
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return
	}
	if err := s.events.RefundDue(ctx, b, reason); err != nil {
		log.Printf("[BOOKING] refund event for booking %d: %v", bookingID, err)
	}
}
