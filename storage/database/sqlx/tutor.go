package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core/tutor"
)

const tutorColumns = `id, user_id, name, subject, experience, bio, profile_pic, subjects, languages,
	hourly_rate, rating, reviews_count, is_active, created_at, updated_at`

type (
	tutorRow struct {
		ID           string         `db:"id"`
		UserID       string         `db:"user_id"`
		Name         string         `db:"name"`
		Subject      string         `db:"subject"`
		Experience   string         `db:"experience"`
		Bio          string         `db:"bio"`
		ProfilePic   string         `db:"profile_pic"`
		Subjects     pq.StringArray `db:"subjects"`
		Languages    pq.StringArray `db:"languages"`
		HourlyRate   float64        `db:"hourly_rate"`
		Rating       float64        `db:"rating"`
		ReviewsCount int            `db:"reviews_count"`
		IsActive     bool           `db:"is_active"`
		CreatedAt    time.Time      `db:"created_at"`
		UpdatedAt    time.Time      `db:"updated_at"`
	}

	slotRow struct {
		ID       string    `db:"id"`
		TutorID  string    `db:"tutor_id"`
		TimeSlot time.Time `db:"time_slot"`
		IsBooked bool      `db:"is_booked"`
	}
)

func toTutorRow(t tutor.Tutor) tutorRow {
	return tutorRow{
		ID:           t.ID,
		UserID:       t.UserID,
		Name:         t.Name,
		Subject:      t.Subject,
		Experience:   t.Experience,
		Bio:          t.Bio,
		ProfilePic:   t.ProfilePic,
		Subjects:     pq.StringArray(nonNil(t.Subjects)),
		Languages:    pq.StringArray(nonNil(t.Languages)),
		HourlyRate:   t.HourlyRate,
		Rating:       t.Rating,
		ReviewsCount: t.ReviewsCount,
		IsActive:     t.IsActive,
		CreatedAt:    t.CreatedAt.UTC(),
		UpdatedAt:    t.UpdatedAt.UTC(),
	}
}

func (r tutorRow) tutor(slots []tutor.Slot) tutor.Tutor {
	if slots == nil {
		slots = []tutor.Slot{}
	}
	return tutor.Tutor{
		ID:           r.ID,
		UserID:       r.UserID,
		Name:         r.Name,
		Subject:      r.Subject,
		Experience:   r.Experience,
		Bio:          r.Bio,
		ProfilePic:   r.ProfilePic,
		Subjects:     nonNil(r.Subjects),
		Languages:    nonNil(r.Languages),
		HourlyRate:   r.HourlyRate,
		Rating:       r.Rating,
		ReviewsCount: r.ReviewsCount,
		IsActive:     r.IsActive,
		Availability: slots,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type tutorRepository struct {
	db *sqlx.DB
}

var _ tutor.Repository = (*tutorRepository)(nil) // interface compliance check

func NewTutorRepository(db *sqlx.DB) *tutorRepository {
	return &tutorRepository{db: db}
}

func (repo *tutorRepository) CreateTutor(ctx context.Context, t tutor.Tutor) (tutor.Tutor, error) {
	t.ID = uuid.NewString()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return tutor.Tutor{}, errors.Wrap(err, "starting transaction")
	}
	defer rollback(tx)

	q := `INSERT INTO tutors (` + tutorColumns + `)
		VALUES (:id, :user_id, :name, :subject, :experience, :bio, :profile_pic, :subjects, :languages,
		:hourly_rate, :rating, :reviews_count, :is_active, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, q, toTutorRow(t)); err != nil {
		if isUniqueViolation(err) {
			return tutor.Tutor{}, tutor.ErrProfileExists
		}
		return tutor.Tutor{}, errors.Wrap(err, "inserting tutor")
	}
	if err = insertSlots(ctx, tx, t.ID, t.Availability); err != nil {
		return tutor.Tutor{}, err
	}
	if err = tx.Commit(); err != nil {
		return tutor.Tutor{}, errors.Wrap(err, "committing transaction")
	}
	return t, nil
}

func insertSlots(ctx context.Context, tx *sqlx.Tx, tutorID string, slots []tutor.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	rows := make([]slotRow, 0, len(slots))
	for _, s := range slots {
		rows = append(rows, slotRow{ID: s.ID, TutorID: tutorID, TimeSlot: s.TimeSlot.UTC(), IsBooked: s.IsBooked})
	}
	q := `INSERT INTO tutor_slots (id, tutor_id, time_slot, is_booked) VALUES (:id, :tutor_id, :time_slot, :is_booked)`
	if _, err := tx.NamedExecContext(ctx, q, rows); err != nil {
		return errors.Wrap(err, "inserting slots")
	}
	return nil
}

// loadSlots returns the slots of the given tutors, by tutor ID.
func (repo *tutorRepository) loadSlots(ctx context.Context, ids ...string) (map[string][]tutor.Slot, error) {
	slots := make(map[string][]tutor.Slot, len(ids))
	if len(ids) == 0 {
		return slots, nil
	}
	q, args, err := sqlx.In(`SELECT id, tutor_id, time_slot, is_booked FROM tutor_slots
		WHERE tutor_id IN (?) ORDER BY time_slot`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "expanding query")
	}
	var rows []slotRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying slots")
	}
	for _, r := range rows {
		slots[r.TutorID] = append(slots[r.TutorID], tutor.Slot{ID: r.ID, TimeSlot: r.TimeSlot.UTC(), IsBooked: r.IsBooked})
	}
	return slots, nil
}

func (repo *tutorRepository) getBy(ctx context.Context, column, value string) (tutor.Tutor, error) {
	if !isUUID(value) {
		return tutor.Tutor{}, tutor.ErrNotFound
	}
	var r tutorRow
	if err := repo.db.GetContext(ctx, &r, `SELECT `+tutorColumns+` FROM tutors WHERE `+column+` = $1`, value); err != nil {
		return tutor.Tutor{}, trapNoRowsErr(err, tutor.ErrNotFound, "finding tutor")
	}
	slots, err := repo.loadSlots(ctx, r.ID)
	if err != nil {
		return tutor.Tutor{}, err
	}
	return r.tutor(slots[r.ID]), nil
}

func (repo *tutorRepository) GetTutor(ctx context.Context, id string) (tutor.Tutor, error) {
	return repo.getBy(ctx, "id", id)
}

func (repo *tutorRepository) GetTutorByUserID(ctx context.Context, userID string) (tutor.Tutor, error) {
	return repo.getBy(ctx, "user_id", userID)
}

func (repo *tutorRepository) QueryTutors(ctx context.Context, filter tutor.QueryFilter) ([]tutor.Tutor, error) {
	var where conds
	if filter.ActiveOnly {
		where.add("is_active")
	}
	if filter.Subject != "" {
		where.add("? = ANY(subjects)", filter.Subject)
	}
	if filter.MaxRate > 0 {
		where.add("hourly_rate <= ?", filter.MaxRate)
	}
	q := `SELECT ` + tutorColumns + ` FROM tutors` + where.String() + ` ORDER BY rating DESC, created_at`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		where.args = append(where.args, filter.Limit)
	}

	var rows []tutorRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying tutors")
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	slots, err := repo.loadSlots(ctx, ids...)
	if err != nil {
		return nil, err
	}

	tutors := make([]tutor.Tutor, 0, len(rows))
	for _, r := range rows {
		tutors = append(tutors, r.tutor(slots[r.ID]))
	}
	return tutors, nil
}

func (repo *tutorRepository) CountTutors(ctx context.Context, activeOnly bool) (int, error) {
	q := `SELECT COUNT(*) FROM tutors`
	if activeOnly {
		q += ` WHERE is_active`
	}
	var n int
	if err := repo.db.GetContext(ctx, &n, q); err != nil {
		return 0, errors.Wrap(err, "counting tutors")
	}
	return n, nil
}

func (repo *tutorRepository) UpdateTutor(ctx context.Context, t tutor.Tutor) (tutor.Tutor, error) {
	q := `UPDATE tutors SET name = :name, subject = :subject, experience = :experience, bio = :bio,
		profile_pic = :profile_pic, subjects = :subjects, languages = :languages, hourly_rate = :hourly_rate,
		is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toTutorRow(t))
	if err != nil {
		return tutor.Tutor{}, errors.Wrap(err, "updating tutor")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return tutor.Tutor{}, tutor.ErrNotFound
	}
	return repo.GetTutor(ctx, t.ID)
}

func (repo *tutorRepository) AddSlots(ctx context.Context, tutorID string, slots ...tutor.Slot) (tutor.Tutor, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return tutor.Tutor{}, errors.Wrap(err, "starting transaction")
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx, `UPDATE tutors SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), tutorID)
	if err != nil {
		return tutor.Tutor{}, errors.Wrap(err, "updating tutor")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return tutor.Tutor{}, tutor.ErrNotFound
	}
	if err = insertSlots(ctx, tx, tutorID, slots); err != nil {
		return tutor.Tutor{}, err
	}
	if err = tx.Commit(); err != nil {
		return tutor.Tutor{}, errors.Wrap(err, "committing transaction")
	}
	return repo.GetTutor(ctx, tutorID)
}

func (repo *tutorRepository) ReserveSlot(ctx context.Context, tutorID string, at time.Time) (bool, error) {
	var id string
	err := repo.db.GetContext(ctx, &id, `UPDATE tutor_slots SET is_booked = true
		WHERE id = (
			SELECT id FROM tutor_slots WHERE tutor_id = $1 AND time_slot = $2 AND NOT is_booked
			LIMIT 1 FOR UPDATE SKIP LOCKED
		)
		RETURNING id`, tutorID, at.UTC())
	if err == nil {
		return true, nil
	}
	if err != sql.ErrNoRows {
		return false, errors.Wrap(err, "reserving slot")
	}

	var exists bool
	if err = repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM tutor_slots WHERE tutor_id = $1 AND time_slot = $2)`, tutorID, at.UTC()); err != nil {
		return false, errors.Wrap(err, "checking slot")
	}
	if exists {
		return false, tutor.ErrSlotTaken
	}
	return false, nil
}

func (repo *tutorRepository) ReleaseSlot(ctx context.Context, tutorID string, at time.Time) error {
	_, err := repo.db.ExecContext(ctx, `UPDATE tutor_slots SET is_booked = false
		WHERE id = (
			SELECT id FROM tutor_slots WHERE tutor_id = $1 AND time_slot = $2 AND is_booked LIMIT 1
		)`, tutorID, at.UTC())
	return errors.Wrap(err, "releasing slot")
}

func (repo *tutorRepository) DeleteTutorByUserID(ctx context.Context, userID string) error {
	if !isUUID(userID) {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM tutors WHERE user_id = $1`, userID)
	return errors.Wrap(err, "deleting tutor")
}
