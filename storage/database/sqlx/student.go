package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mwalimu/core/student"
)

const studentColumns = `id, user_id, is_active, streak, last_action_date, grade_level, subjects_interested,
	created_at, updated_at`

type studentRow struct {
	ID                 string         `db:"id"`
	UserID             string         `db:"user_id"`
	IsActive           bool           `db:"is_active"`
	Streak             int            `db:"streak"`
	LastActionDate     null.Time      `db:"last_action_date"`
	GradeLevel         string         `db:"grade_level"`
	SubjectsInterested pq.StringArray `db:"subjects_interested"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func toStudentRow(s student.Student) studentRow {
	r := studentRow{
		ID:                 s.ID,
		UserID:             s.UserID,
		IsActive:           s.IsActive,
		Streak:             s.Streak,
		GradeLevel:         s.GradeLevel,
		SubjectsInterested: pq.StringArray(nonNil(s.SubjectsInterested)),
		CreatedAt:          s.CreatedAt.UTC(),
		UpdatedAt:          s.UpdatedAt.UTC(),
	}
	if s.LastActionDate != nil {
		r.LastActionDate = null.TimeFrom(s.LastActionDate.UTC())
	}
	return r
}

func (r studentRow) student() student.Student {
	s := student.Student{
		ID:                 r.ID,
		UserID:             r.UserID,
		IsActive:           r.IsActive,
		Streak:             r.Streak,
		GradeLevel:         r.GradeLevel,
		SubjectsInterested: nonNil(r.SubjectsInterested),
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
	if r.LastActionDate.Valid {
		last := r.LastActionDate.Time.UTC()
		s.LastActionDate = &last
	}
	return s
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	s.ID = uuid.NewString()
	q := `INSERT INTO students (` + studentColumns + `)
		VALUES (:id, :user_id, :is_active, :streak, :last_action_date, :grade_level, :subjects_interested,
		:created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toStudentRow(s)); err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return s, nil
}

func (repo *studentRepository) GetStudentByUserID(ctx context.Context, userID string) (student.Student, error) {
	if !isUUID(userID) {
		return student.Student{}, student.ErrNotFound
	}
	var r studentRow
	if err := repo.db.GetContext(ctx, &r, `SELECT `+studentColumns+` FROM students WHERE user_id = $1`, userID); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student")
	}
	return r.student(), nil
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	q := `UPDATE students SET is_active = :is_active, streak = :streak, last_action_date = :last_action_date,
		grade_level = :grade_level, subjects_interested = :subjects_interested, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toStudentRow(s))
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return s, nil
}

func (repo *studentRepository) DeleteStudentByUserID(ctx context.Context, userID string) error {
	if !isUUID(userID) {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM students WHERE user_id = $1`, userID)
	return errors.Wrap(err, "deleting student")
}
