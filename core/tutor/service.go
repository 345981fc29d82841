package tutor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
)

const (
	listLimit   = 20
	searchLimit = 20
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound      = core.NotFound("tutor not found")
	ErrNoProfile     = core.NotFound("tutor profile not found")
	ErrProfileExists = core.Conflict("a tutor profile already exists for this user")
	ErrSlotTaken     = core.Conflict("this time slot is already booked")
)

type Repository interface {
	CreateTutor(ctx context.Context, t Tutor) (Tutor, error)
	GetTutor(ctx context.Context, id string) (Tutor, error)
	GetTutorByUserID(ctx context.Context, userID string) (Tutor, error)
	// QueryTutors returns tutors ordered by descending rating.
	QueryTutors(ctx context.Context, filter QueryFilter) ([]Tutor, error)
	CountTutors(ctx context.Context, activeOnly bool) (int, error)
	// UpdateTutor saves the profile fields; availability and rating are left untouched.
	UpdateTutor(ctx context.Context, t Tutor) (Tutor, error)
	AddSlots(ctx context.Context, tutorID string, slots ...Slot) (Tutor, error)
	// ReserveSlot marks the open slot starting at `at` as booked.
	// It reports false when the tutor has no slot at that time and ErrSlotTaken when it is already booked.
	ReserveSlot(ctx context.Context, tutorID string, at time.Time) (bool, error)
	ReleaseSlot(ctx context.Context, tutorID string, at time.Time) error
	DeleteTutorByUserID(ctx context.Context, userID string) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateProfile creates the Tutor profile of a newly registered tutor.
func (svc *Service) CreateProfile(ctx context.Context, nt NewTutor) (Tutor, error) {
	now := time.Now().UTC()
	subjects := nt.Subjects
	if len(subjects) == 0 && nt.Subject != "" {
		subjects = []string{nt.Subject}
	}
	languages := nt.Languages
	if languages == nil {
		languages = []string{}
	}

	t := Tutor{
		UserID:       nt.UserID,
		Name:         nt.Name,
		Subject:      nt.Subject,
		Experience:   nt.Experience,
		Bio:          nt.Bio,
		ProfilePic:   nt.ProfilePic,
		Subjects:     subjects,
		Languages:    languages,
		HourlyRate:   nt.HourlyRate,
		Rating:       nt.Rating,
		ReviewsCount: nt.ReviewsCount,
		IsActive:     true,
		Availability: newSlots(nt.Slots),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return svc.repo.CreateTutor(ctx, t)
}

func newSlots(times []time.Time) []Slot {
	slots := make([]Slot, 0, len(times))
	for _, at := range times {
		slots = append(slots, Slot{ID: uuid.NewString(), TimeSlot: at.UTC()})
	}
	return slots
}

func (svc *Service) GetByID(ctx context.Context, id string) (Tutor, error) {
	return svc.repo.GetTutor(ctx, id)
}

// GetByUserID returns the Tutor profile of a User, or ErrNoProfile.
func (svc *Service) GetByUserID(ctx context.Context, userID string) (Tutor, error) {
	t, err := svc.repo.GetTutorByUserID(ctx, userID)
	if errors.Cause(err) == ErrNotFound {
		return Tutor{}, ErrNoProfile
	}
	return t, err
}

// List returns the best rated active tutors with their badges.
func (svc *Service) List(ctx context.Context) ([]ListItem, error) {
	tutors, err := svc.repo.QueryTutors(ctx, QueryFilter{ActiveOnly: true, Limit: listLimit})
	if err != nil {
		return nil, errors.Wrap(err, "querying tutors")
	}

	items := make([]ListItem, 0, len(tutors))
	for _, t := range tutors {
		items = append(items, ListItem{
			ID:           t.ID,
			Name:         t.Name,
			Subject:      t.Subject,
			Experience:   t.Experience,
			Bio:          t.Bio,
			ProfilePic:   t.ProfilePic,
			HourlyRate:   t.HourlyRate,
			Rating:       t.Rating,
			ReviewsCount: t.ReviewsCount,
			Subjects:     t.Subjects,
			Languages:    t.Languages,
			Badge:        t.Badge(),
		})
	}
	return items, nil
}

// QueryActive returns up to `limit` active tutors by descending rating; 0 means no limit.
func (svc *Service) QueryActive(ctx context.Context, limit int) ([]Tutor, error) {
	return svc.repo.QueryTutors(ctx, QueryFilter{ActiveOnly: true, Limit: limit})
}

func (svc *Service) Count(ctx context.Context, activeOnly bool) (int, error) {
	return svc.repo.CountTutors(ctx, activeOnly)
}

// Search scores the active tutors teaching the subject within budget and returns the best matches.
func (svc *Service) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	tutors, err := svc.repo.QueryTutors(ctx, QueryFilter{
		Subject:    req.Subject,
		MaxRate:    req.BudgetPerHour,
		ActiveOnly: true,
		Limit:      searchLimit,
	})
	if err != nil {
		return SearchResult{}, errors.Wrap(err, "querying tutors")
	}

	now := NowFunc()
	matches := make([]Match, 0, len(tutors))
	for _, t := range tutors {
		slots := t.OpenSlots(now)
		matches = append(matches, Match{
			ID:             t.ID,
			UserID:         t.UserID,
			Name:           t.Name,
			Bio:            t.Bio,
			ProfilePic:     t.ProfilePic,
			HourlyRate:     t.HourlyRate,
			Rating:         t.Rating,
			ReviewsCount:   t.ReviewsCount,
			Subjects:       t.Subjects,
			Languages:      t.Languages,
			AvailableSlots: slots,
			MatchScore:     MatchScore(t, req.BudgetPerHour, len(slots) > 0),
		})
	}
	return SearchResult{Tutors: rankMatches(matches), TotalFound: len(tutors)}, nil
}

func (svc *Service) Detail(ctx context.Context, id string) (Detail, error) {
	t, err := svc.repo.GetTutor(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return newDetail(t), nil
}

func newDetail(t Tutor) Detail {
	return Detail{
		ID:             t.ID,
		UserID:         t.UserID,
		Name:           t.Name,
		Subject:        t.Subject,
		Experience:     t.Experience,
		Bio:            t.Bio,
		ProfilePic:     t.ProfilePic,
		HourlyRate:     t.HourlyRate,
		Rating:         t.Rating,
		ReviewsCount:   t.ReviewsCount,
		Subjects:       t.Subjects,
		Languages:      t.Languages,
		IsActive:       t.IsActive,
		AvailableSlots: t.OpenSlots(NowFunc()),
	}
}

// AddAvailability appends open slots to the profile of the tutor User.
func (svc *Service) AddAvailability(ctx context.Context, userID string, ns NewSlots) (Detail, error) {
	t, err := svc.GetByUserID(ctx, userID)
	if err != nil {
		return Detail{}, err
	}
	t, err = svc.repo.AddSlots(ctx, t.ID, newSlots(ns.TimeSlots)...)
	if err != nil {
		return Detail{}, errors.Wrap(err, "adding slots")
	}
	return newDetail(t), nil
}

// SyncProfile copies the User's name & picture on their Tutor profile, if any.
func (svc *Service) SyncProfile(ctx context.Context, userID, name, pic string) error {
	t, err := svc.repo.GetTutorByUserID(ctx, userID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil
		}
		return err
	}
	t.Name = name
	t.ProfilePic = pic
	t.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateTutor(ctx, t)
	return err
}

func (svc *Service) ReserveSlot(ctx context.Context, tutorID string, at time.Time) (bool, error) {
	return svc.repo.ReserveSlot(ctx, tutorID, at.UTC())
}

func (svc *Service) ReleaseSlot(ctx context.Context, tutorID string, at time.Time) error {
	return svc.repo.ReleaseSlot(ctx, tutorID, at.UTC())
}

func (svc *Service) DeleteByUserID(ctx context.Context, userID string) error {
	return svc.repo.DeleteTutorByUserID(ctx, userID)
}
