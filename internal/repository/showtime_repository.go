package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/movie-booking-core/internal/model"
)

// ShowtimeRepo provides read-only access to the showtimes table.  This
// service never creates or mutates showtimes; the catalog that manages
// them is an external system writing to the same database.
type ShowtimeRepo struct {
	db *sql.DB
}

// NewShowtimeRepo returns a new ShowtimeRepo bound to the given database.
func NewShowtimeRepo(db *sql.DB) *ShowtimeRepo { return &ShowtimeRepo{db: db} }

// GetByID loads a showtime by primary key.  Returns ErrShowtimeNotFound
// when no row exists.
func (r *ShowtimeRepo) GetByID(ctx context.Context, id uint64) (*model.Showtime, error) {
	const q = `SELECT id, movie_title, screen, starts_at, seat_price_cents, seat_rows, seat_cols
			   FROM showtimes WHERE id = ?`
	var s model.Showtime
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.MovieTitle, &s.Screen, &s.StartsAt,
		&s.SeatPriceCents, &s.Rows, &s.Cols,
	)
	if err == sql.ErrNoRows {
		return nil, ErrShowtimeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
