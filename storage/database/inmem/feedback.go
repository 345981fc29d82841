package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/feedback"
)

type feedbackRepository struct {
	db *DB
}

var _ feedback.Repository = (*feedbackRepository)(nil) // interface compliance check

func NewFeedbackRepository(db *DB) *feedbackRepository {
	return &feedbackRepository{db: db}
}

func (repo *feedbackRepository) exists(bookingID string) bool {
	for _, r := range repo.db.feedbacks {
		if r.v.BookingID == bookingID {
			return true
		}
	}
	return false
}

func (repo *feedbackRepository) SubmitFeedback(_ context.Context, s feedback.Submission) (feedback.Feedback, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.exists(s.Feedback.BookingID) {
		return feedback.Feedback{}, feedback.ErrAlreadySubmitted
	}

	fb := s.Feedback
	var seq int64
	fb.ID, seq = repo.db.next()
	repo.db.feedbacks[fb.ID] = &feedbackRow{seq: seq, v: fb}

	for _, o := range s.Outcomes {
		repo.upsertOutcome(o)
	}
	repo.db.setTutorRating(fb.TutorID)
	return fb, nil
}

// upsertOutcome must be called with the write lock held.
func (repo *feedbackRepository) upsertOutcome(o feedback.Outcome) {
	for _, r := range repo.db.outcomes {
		if r.v.BookingID == o.BookingID && r.v.Indicator == o.Indicator {
			o.ID = r.v.ID
			o.CreatedAt = r.v.CreatedAt
			r.v = o
			return
		}
	}
	var seq int64
	o.ID, seq = repo.db.next()
	repo.db.outcomes[o.ID] = &outcomeRow{seq: seq, v: o}
}

func (repo *feedbackRepository) FeedbackExists(_ context.Context, bookingID string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.exists(bookingID), nil
}

func (repo *feedbackRepository) QueryFeedback(_ context.Context, tutorID string, limit int) ([]feedback.Feedback, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]*feedbackRow, 0)
	for _, r := range repo.db.feedbacks {
		if r.v.TutorID == tutorID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	fbs := make([]feedback.Feedback, 0, len(rows))
	for _, r := range rows {
		fbs = append(fbs, r.v)
	}
	return fbs, nil
}

func (repo *feedbackRepository) QueryOutcomes(_ context.Context, filter feedback.OutcomeFilter) ([]feedback.Outcome, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]*outcomeRow, 0)
	for _, r := range repo.db.outcomes {
		if filter.StudentID != "" && r.v.StudentID != filter.StudentID {
			continue
		}
		if filter.BookingIDs != nil && !core.Contains(filter.BookingIDs, r.v.BookingID) {
			continue
		}
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })

	outcomes := make([]feedback.Outcome, 0, len(rows))
	for _, r := range rows {
		outcomes = append(outcomes, r.v)
	}
	return outcomes, nil
}
