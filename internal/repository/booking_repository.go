package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/altavia-air/altavia-api/internal/models"
)

// BookingRepository provides database access for reservations. Writes are
// limited to status transitions; reservation creation belongs to the booking
// engine upstream.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new instance of BookingRepository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// FindByID returns a booking by identifier.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	const query = `SELECT id, reference, subject_id, flight_code, departure_at, status, created_at, updated_at FROM bookings WHERE id = $1 LIMIT 1`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find booking by id: %w", err)
	}
	return &booking, nil
}

// ListBySubject returns every booking owned by a subject, newest first.
func (r *BookingRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.Booking, error) {
	const query = `SELECT id, reference, subject_id, flight_code, departure_at, status, created_at, updated_at FROM bookings WHERE subject_id = $1 ORDER BY departure_at DESC`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, subjectID); err != nil {
		return nil, fmt.Errorf("list bookings by subject: %w", err)
	}
	return bookings, nil
}

// UpdateStatus moves a booking to the given status.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, status models.BookingStatus) error {
	const query = `UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update booking status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
