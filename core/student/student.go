package student

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
)

// streak messages
const (
	StreakIncreased  = "Streak increased!"
	StreakReset      = "Streak reset, but you are back!"
	StreakMaintained = "Streak maintained"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound = core.NotFound("student profile not found")
)

type Student struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	IsActive           bool       `json:"is_active"`
	Streak             int        `json:"streak"`
	LastActionDate     *time.Time `json:"last_action_date"`
	GradeLevel         string     `json:"grade_level"`
	SubjectsInterested []string   `json:"subjects_interested"`
	CreatedAt          time.Time  `json:"created_at"` // UTC
	UpdatedAt          time.Time  `json:"updated_at"` // UTC
}

type StreakResult struct {
	Streak  int    `json:"streak"`
	Message string `json:"message"`
}

type Repository interface {
	CreateStudent(ctx context.Context, s Student) (Student, error)
	GetStudentByUserID(ctx context.Context, userID string) (Student, error)
	UpdateStudent(ctx context.Context, s Student) (Student, error)
	DeleteStudentByUserID(ctx context.Context, userID string) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CreateProfile(ctx context.Context, userID string) (Student, error) {
	now := NowFunc().UTC()
	return svc.repo.CreateStudent(ctx, Student{
		UserID:             userID,
		IsActive:           true,
		LastActionDate:     &now,
		SubjectsInterested: []string{},
		CreatedAt:          now,
		UpdatedAt:          now,
	})
}

func (svc *Service) GetByUserID(ctx context.Context, userID string) (Student, error) {
	return svc.repo.GetStudentByUserID(ctx, userID)
}

// RecordAction updates the daily streak of the student User.
func (svc *Service) RecordAction(ctx context.Context, userID string) (StreakResult, error) {
	s, err := svc.repo.GetStudentByUserID(ctx, userID)
	if err != nil {
		return StreakResult{}, err
	}

	now := NowFunc()
	streak, msg := NextStreak(s.Streak, s.LastActionDate, now)
	s.Streak = streak
	s.LastActionDate = &now
	s.UpdatedAt = now.UTC()
	if _, err = svc.repo.UpdateStudent(ctx, s); err != nil {
		return StreakResult{}, errors.Wrap(err, "updating student")
	}
	return StreakResult{Streak: streak, Message: msg}, nil
}

func (svc *Service) DeleteByUserID(ctx context.Context, userID string) error {
	return svc.repo.DeleteStudentByUserID(ctx, userID)
}

// NextStreak computes the streak after an action at `now`, comparing calendar days in now's location.
// A profile without any recorded action starts a new streak.
func NextStreak(streak int, last *time.Time, now time.Time) (int, string) {
	if last == nil {
		return streak + 1, StreakIncreased
	}

	switch days := calendarDaysBetween(last.In(now.Location()), now); {
	case days == 1:
		return streak + 1, StreakIncreased
	case days > 1:
		return 1, StreakReset
	default:
		return streak, StreakMaintained
	}
}

func calendarDaysBetween(from, to time.Time) int {
	y1, m1, d1 := from.Date()
	y2, m2, d2 := to.Date()
	start := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	end := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}
