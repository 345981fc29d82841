package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core/feedback"
)

const (
	feedbackColumns = "id, booking_id, student_id, tutor_id, rating, comment, created_at"
	outcomeColumns  = `id, booking_id, student_id, subject, indicator, before_level, after_level,
	delta_improvement, created_at`
)

type (
	feedbackRow struct {
		ID        string    `db:"id"`
		BookingID string    `db:"booking_id"`
		StudentID string    `db:"student_id"`
		TutorID   string    `db:"tutor_id"`
		Rating    int       `db:"rating"`
		Comment   string    `db:"comment"`
		CreatedAt time.Time `db:"created_at"`
	}

	outcomeRow struct {
		ID               string    `db:"id"`
		BookingID        string    `db:"booking_id"`
		StudentID        string    `db:"student_id"`
		Subject          string    `db:"subject"`
		Indicator        string    `db:"indicator"`
		BeforeLevel      int       `db:"before_level"`
		AfterLevel       int       `db:"after_level"`
		DeltaImprovement float64   `db:"delta_improvement"`
		CreatedAt        time.Time `db:"created_at"`
	}
)

func (r feedbackRow) feedback() feedback.Feedback {
	return feedback.Feedback{
		ID:        r.ID,
		BookingID: r.BookingID,
		StudentID: r.StudentID,
		TutorID:   r.TutorID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func toOutcomeRow(o feedback.Outcome) outcomeRow {
	return outcomeRow{
		ID:               o.ID,
		BookingID:        o.BookingID,
		StudentID:        o.StudentID,
		Subject:          o.Subject,
		Indicator:        o.Indicator,
		BeforeLevel:      o.BeforeLevel,
		AfterLevel:       o.AfterLevel,
		DeltaImprovement: o.DeltaImprovement,
		CreatedAt:        o.CreatedAt.UTC(),
	}
}

func (r outcomeRow) outcome() feedback.Outcome {
	return feedback.Outcome{
		ID:               r.ID,
		BookingID:        r.BookingID,
		StudentID:        r.StudentID,
		Subject:          r.Subject,
		Indicator:        r.Indicator,
		BeforeLevel:      r.BeforeLevel,
		AfterLevel:       r.AfterLevel,
		DeltaImprovement: r.DeltaImprovement,
		CreatedAt:        r.CreatedAt.UTC(),
	}
}

type feedbackRepository struct {
	db *sqlx.DB
}

var _ feedback.Repository = (*feedbackRepository)(nil) // interface compliance check

func NewFeedbackRepository(db *sqlx.DB) *feedbackRepository {
	return &feedbackRepository{db: db}
}

func (repo *feedbackRepository) SubmitFeedback(ctx context.Context, s feedback.Submission) (feedback.Feedback, error) {
	fb := s.Feedback
	fb.ID = uuid.NewString()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return feedback.Feedback{}, errors.Wrap(err, "starting transaction")
	}
	defer rollback(tx)

	row := feedbackRow{
		ID:        fb.ID,
		BookingID: fb.BookingID,
		StudentID: fb.StudentID,
		TutorID:   fb.TutorID,
		Rating:    fb.Rating,
		Comment:   fb.Comment,
		CreatedAt: fb.CreatedAt.UTC(),
	}
	q := `INSERT INTO feedback (` + feedbackColumns + `)
		VALUES (:id, :booking_id, :student_id, :tutor_id, :rating, :comment, :created_at)`
	if _, err = tx.NamedExecContext(ctx, q, row); err != nil {
		if isUniqueViolation(err) {
			return feedback.Feedback{}, feedback.ErrAlreadySubmitted
		}
		return feedback.Feedback{}, errors.Wrap(err, "inserting feedback")
	}

	for _, o := range s.Outcomes {
		o.ID = uuid.NewString()
		q = `INSERT INTO learning_outcomes (` + outcomeColumns + `)
			VALUES (:id, :booking_id, :student_id, :subject, :indicator, :before_level, :after_level,
			:delta_improvement, :created_at)
			ON CONFLICT (booking_id, indicator) DO UPDATE SET
			before_level = EXCLUDED.before_level, after_level = EXCLUDED.after_level,
			delta_improvement = EXCLUDED.delta_improvement, subject = EXCLUDED.subject`
		if _, err = tx.NamedExecContext(ctx, q, toOutcomeRow(o)); err != nil {
			return feedback.Feedback{}, errors.Wrap(err, "upserting learning outcome")
		}
	}

	if _, err = tx.ExecContext(ctx, `UPDATE tutors SET
		rating = (SELECT ROUND(AVG(rating)::numeric, 2) FROM feedback WHERE tutor_id = $1),
		reviews_count = reviews_count + 1
		WHERE id = $1`, fb.TutorID); err != nil {
		return feedback.Feedback{}, errors.Wrap(err, "updating tutor rating")
	}

	if err = tx.Commit(); err != nil {
		return feedback.Feedback{}, errors.Wrap(err, "committing transaction")
	}
	return fb, nil
}

func (repo *feedbackRepository) FeedbackExists(ctx context.Context, bookingID string) (bool, error) {
	if !isUUID(bookingID) {
		return false, nil
	}
	var exists bool
	if err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM feedback WHERE booking_id = $1)`, bookingID); err != nil {
		return false, errors.Wrap(err, "checking feedback")
	}
	return exists, nil
}

func (repo *feedbackRepository) QueryFeedback(ctx context.Context, tutorID string, limit int) ([]feedback.Feedback, error) {
	if !isUUID(tutorID) {
		return []feedback.Feedback{}, nil
	}
	q := `SELECT ` + feedbackColumns + ` FROM feedback WHERE tutor_id = $1 ORDER BY created_at DESC`
	args := []interface{}{tutorID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	var rows []feedbackRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying feedback")
	}

	fbs := make([]feedback.Feedback, 0, len(rows))
	for _, r := range rows {
		fbs = append(fbs, r.feedback())
	}
	return fbs, nil
}

func (repo *feedbackRepository) QueryOutcomes(ctx context.Context, filter feedback.OutcomeFilter) ([]feedback.Outcome, error) {
	var where conds
	if filter.StudentID != "" {
		if !isUUID(filter.StudentID) {
			return []feedback.Outcome{}, nil
		}
		where.add("student_id = ?", filter.StudentID)
	}
	if filter.BookingIDs != nil {
		if len(filter.BookingIDs) == 0 {
			return []feedback.Outcome{}, nil
		}
		where.add("booking_id IN (?)", filter.BookingIDs)
	}

	q, args, err := sqlx.In(
		`SELECT `+outcomeColumns+` FROM learning_outcomes`+where.String()+` ORDER BY created_at DESC`,
		where.args...,
	)
	if err != nil {
		return nil, errors.Wrap(err, "expanding query")
	}
	var rows []outcomeRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying learning outcomes")
	}

	outcomes := make([]feedback.Outcome, 0, len(rows))
	for _, r := range rows {
		outcomes = append(outcomes, r.outcome())
	}
	return outcomes, nil
}
