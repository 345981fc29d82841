package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/tutor"
)

type tutorRepository struct {
	db *DB
}

var _ tutor.Repository = (*tutorRepository)(nil) // interface compliance check

func NewTutorRepository(db *DB) *tutorRepository {
	return &tutorRepository{db: db}
}

// copyTutor detaches the slices of t from the stored record
func copyTutor(t tutor.Tutor) tutor.Tutor {
	t.Subjects = append([]string{}, t.Subjects...)
	t.Languages = append([]string{}, t.Languages...)
	t.Availability = append([]tutor.Slot{}, t.Availability...)
	return t
}

func (repo *tutorRepository) CreateTutor(_ context.Context, t tutor.Tutor) (tutor.Tutor, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, r := range repo.db.tutors {
		if r.v.UserID == t.UserID {
			return tutor.Tutor{}, tutor.ErrProfileExists
		}
	}
	var seq int64
	t.ID, seq = repo.db.next()
	repo.db.tutors[t.ID] = &tutorRow{seq: seq, v: copyTutor(t)}
	return copyTutor(t), nil
}

func (repo *tutorRepository) GetTutor(_ context.Context, id string) (tutor.Tutor, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if r, ok := repo.db.tutors[id]; ok {
		return copyTutor(r.v), nil
	}
	return tutor.Tutor{}, tutor.ErrNotFound
}

func (repo *tutorRepository) byUserID(userID string) *tutorRow {
	for _, r := range repo.db.tutors {
		if r.v.UserID == userID {
			return r
		}
	}
	return nil
}

func (repo *tutorRepository) GetTutorByUserID(_ context.Context, userID string) (tutor.Tutor, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if r := repo.byUserID(userID); r != nil {
		return copyTutor(r.v), nil
	}
	return tutor.Tutor{}, tutor.ErrNotFound
}

func (repo *tutorRepository) QueryTutors(_ context.Context, filter tutor.QueryFilter) ([]tutor.Tutor, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]*tutorRow, 0, len(repo.db.tutors))
	for _, r := range repo.db.tutors {
		t := r.v
		if filter.ActiveOnly && !t.IsActive {
			continue
		}
		if filter.Subject != "" && !t.HasSubject(filter.Subject) {
			continue
		}
		if filter.MaxRate > 0 && t.HourlyRate > filter.MaxRate {
			continue
		}
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].v.Rating != rows[j].v.Rating {
			return rows[i].v.Rating > rows[j].v.Rating
		}
		return rows[i].seq < rows[j].seq
	})
	if filter.Limit > 0 && len(rows) > filter.Limit {
		rows = rows[:filter.Limit]
	}

	tutors := make([]tutor.Tutor, 0, len(rows))
	for _, r := range rows {
		tutors = append(tutors, copyTutor(r.v))
	}
	return tutors, nil
}

func (repo *tutorRepository) CountTutors(_ context.Context, activeOnly bool) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, r := range repo.db.tutors {
		if !activeOnly || r.v.IsActive {
			n++
		}
	}
	return n, nil
}

func (repo *tutorRepository) UpdateTutor(_ context.Context, t tutor.Tutor) (tutor.Tutor, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r, ok := repo.db.tutors[t.ID]
	if !ok {
		return tutor.Tutor{}, tutor.ErrNotFound
	}
	orig := r.v
	orig.Name = t.Name
	orig.Subject = t.Subject
	orig.Experience = t.Experience
	orig.Bio = t.Bio
	orig.ProfilePic = t.ProfilePic
	orig.Subjects = append([]string{}, t.Subjects...)
	orig.Languages = append([]string{}, t.Languages...)
	orig.HourlyRate = t.HourlyRate
	orig.IsActive = t.IsActive
	orig.UpdatedAt = t.UpdatedAt
	r.v = orig
	return copyTutor(orig), nil
}

func (repo *tutorRepository) AddSlots(_ context.Context, tutorID string, slots ...tutor.Slot) (tutor.Tutor, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r, ok := repo.db.tutors[tutorID]
	if !ok {
		return tutor.Tutor{}, tutor.ErrNotFound
	}
	r.v.Availability = append(r.v.Availability, slots...)
	r.v.UpdatedAt = time.Now().UTC()
	return copyTutor(r.v), nil
}

func (repo *tutorRepository) ReserveSlot(_ context.Context, tutorID string, at time.Time) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r, ok := repo.db.tutors[tutorID]
	if !ok {
		return false, tutor.ErrNotFound
	}
	var found bool
	for i, s := range r.v.Availability {
		if !s.TimeSlot.Equal(at) {
			continue
		}
		found = true
		if !s.IsBooked {
			r.v.Availability[i].IsBooked = true
			return true, nil
		}
	}
	if found {
		return false, tutor.ErrSlotTaken
	}
	return false, nil
}

func (repo *tutorRepository) ReleaseSlot(_ context.Context, tutorID string, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r, ok := repo.db.tutors[tutorID]
	if !ok {
		return nil
	}
	for i, s := range r.v.Availability {
		if s.TimeSlot.Equal(at) && s.IsBooked {
			r.v.Availability[i].IsBooked = false
			return nil
		}
	}
	return nil
}

func (repo *tutorRepository) DeleteTutorByUserID(_ context.Context, userID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if r := repo.byUserID(userID); r != nil {
		delete(repo.db.tutors, r.v.ID)
	}
	return nil
}

// setTutorRating must be called with the write lock held.
func (db *DB) setTutorRating(tutorID string) {
	r, ok := db.tutors[tutorID]
	if !ok {
		return
	}
	var sum, n int
	for _, fr := range db.feedbacks {
		if fr.v.TutorID == tutorID {
			sum += fr.v.Rating
			n++
		}
	}
	if n > 0 {
		r.v.Rating = core.Round(float64(sum)/float64(n), 2)
	}
	r.v.ReviewsCount++
}
