package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/mwalimu/core/booking"
)

type bookingRepository struct {
	db *DB
}

var _ booking.Repository = (*bookingRepository)(nil) // interface compliance check

func NewBookingRepository(db *DB) *bookingRepository {
	return &bookingRepository{db: db}
}

func (repo *bookingRepository) CreateBooking(_ context.Context, b booking.Booking) (booking.Booking, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var seq int64
	b.ID, seq = repo.db.next()
	repo.db.bookings[b.ID] = &bookingRow{seq: seq, v: b}
	return b, nil
}

func (repo *bookingRepository) GetBooking(_ context.Context, id string) (booking.Booking, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if r, ok := repo.db.bookings[id]; ok {
		return r.v, nil
	}
	return booking.Booking{}, booking.ErrNotFound
}

func (repo *bookingRepository) QueryBookings(_ context.Context, filter booking.QueryFilter) ([]booking.Booking, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]*bookingRow, 0, len(repo.db.bookings))
	for _, r := range repo.db.bookings {
		b := r.v
		if filter.StudentID != "" && b.StudentID != filter.StudentID {
			continue
		}
		if filter.TutorID != "" && b.TutorID != filter.TutorID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if !filter.CreatedFrom.IsZero() && b.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && !b.CreatedAt.Before(filter.CreatedTo) {
			continue
		}
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].v.CreatedAt.Equal(rows[j].v.CreatedAt) {
			return rows[i].v.CreatedAt.After(rows[j].v.CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})

	bookings := make([]booking.Booking, 0, len(rows))
	for _, r := range rows {
		bookings = append(bookings, r.v)
	}
	return bookings, nil
}

func (repo *bookingRepository) TransitionBooking(_ context.Context, tr booking.Transition) (booking.Booking, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r, ok := repo.db.bookings[tr.ID]
	if !ok || r.v.TutorID != tr.TutorID || r.v.Status != tr.From {
		return booking.Booking{}, booking.ErrNotFoundOrProcessed
	}
	r.v.Status = tr.To
	r.v.MeetingLink = tr.MeetingLink
	r.v.UpdatedAt = tr.At
	return r.v, nil
}
