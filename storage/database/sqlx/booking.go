package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mwalimu/core/booking"
)

const bookingColumns = "id, tutor_id, student_id, scheduled_at, status, meeting_link, slot_reserved, created_at, updated_at"

type bookingRow struct {
	ID           string      `db:"id"`
	TutorID      string      `db:"tutor_id"`
	StudentID    string      `db:"student_id"`
	ScheduledAt  time.Time   `db:"scheduled_at"`
	Status       string      `db:"status"`
	MeetingLink  null.String `db:"meeting_link"`
	SlotReserved bool        `db:"slot_reserved"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func toBookingRow(b booking.Booking) bookingRow {
	return bookingRow{
		ID:           b.ID,
		TutorID:      b.TutorID,
		StudentID:    b.StudentID,
		ScheduledAt:  b.ScheduledAt.UTC(),
		Status:       b.Status,
		MeetingLink:  null.StringFromPtr(b.MeetingLink),
		SlotReserved: b.SlotReserved,
		CreatedAt:    b.CreatedAt.UTC(),
		UpdatedAt:    b.UpdatedAt.UTC(),
	}
}

func (r bookingRow) booking() booking.Booking {
	return booking.Booking{
		ID:           r.ID,
		TutorID:      r.TutorID,
		StudentID:    r.StudentID,
		ScheduledAt:  r.ScheduledAt.UTC(),
		Status:       r.Status,
		MeetingLink:  r.MeetingLink.Ptr(),
		SlotReserved: r.SlotReserved,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type bookingRepository struct {
	db *sqlx.DB
}

var _ booking.Repository = (*bookingRepository)(nil) // interface compliance check

func NewBookingRepository(db *sqlx.DB) *bookingRepository {
	return &bookingRepository{db: db}
}

func (repo *bookingRepository) CreateBooking(ctx context.Context, b booking.Booking) (booking.Booking, error) {
	b.ID = uuid.NewString()
	q := `INSERT INTO bookings (` + bookingColumns + `)
		VALUES (:id, :tutor_id, :student_id, :scheduled_at, :status, :meeting_link, :slot_reserved, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toBookingRow(b)); err != nil {
		return booking.Booking{}, errors.Wrap(err, "inserting booking")
	}
	return b, nil
}

func (repo *bookingRepository) GetBooking(ctx context.Context, id string) (booking.Booking, error) {
	if !isUUID(id) {
		return booking.Booking{}, booking.ErrNotFound
	}
	var r bookingRow
	if err := repo.db.GetContext(ctx, &r, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id); err != nil {
		return booking.Booking{}, trapNoRowsErr(err, booking.ErrNotFound, "finding booking")
	}
	return r.booking(), nil
}

func (repo *bookingRepository) QueryBookings(ctx context.Context, filter booking.QueryFilter) ([]booking.Booking, error) {
	var where conds
	if filter.StudentID != "" {
		if !isUUID(filter.StudentID) {
			return []booking.Booking{}, nil
		}
		where.add("student_id = ?", filter.StudentID)
	}
	if filter.TutorID != "" {
		if !isUUID(filter.TutorID) {
			return []booking.Booking{}, nil
		}
		where.add("tutor_id = ?", filter.TutorID)
	}
	if filter.Status != "" {
		where.add("status = ?", filter.Status)
	}
	if !filter.CreatedFrom.IsZero() {
		where.add("created_at >= ?", filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		where.add("created_at < ?", filter.CreatedTo.UTC())
	}

	q := `SELECT ` + bookingColumns + ` FROM bookings` + where.String() + ` ORDER BY created_at DESC`
	var rows []bookingRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying bookings")
	}

	bookings := make([]booking.Booking, 0, len(rows))
	for _, r := range rows {
		bookings = append(bookings, r.booking())
	}
	return bookings, nil
}

func (repo *bookingRepository) TransitionBooking(ctx context.Context, tr booking.Transition) (booking.Booking, error) {
	if !isUUID(tr.ID) || !isUUID(tr.TutorID) {
		return booking.Booking{}, booking.ErrNotFoundOrProcessed
	}
	var r bookingRow
	err := repo.db.GetContext(ctx, &r, `UPDATE bookings SET status = $1, meeting_link = $2, updated_at = $3
		WHERE id = $4 AND tutor_id = $5 AND status = $6
		RETURNING `+bookingColumns,
		tr.To, null.StringFromPtr(tr.MeetingLink), tr.At.UTC(), tr.ID, tr.TutorID, tr.From,
	)
	if err != nil {
		return booking.Booking{}, trapNoRowsErr(err, booking.ErrNotFoundOrProcessed, "updating booking status")
	}
	return r.booking(), nil
}
