package feedback

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/booking"
	"github.com/trezcool/mwalimu/core/tutor"
	"github.com/trezcool/mwalimu/core/user"
)

const reviewsLimit = 50

var (
	// errors
	ErrStudentsOnly      = core.Forbidden("only students can submit feedback")
	ErrOwnOutcomesOnly   = core.Forbidden("you can only view your own outcomes")
	ErrTutorsOnly        = core.Forbidden("only tutors can view tutor feedback")
	ErrBookingNotFound   = core.NotFound("booking not found")
	ErrNotApproved       = core.Invalid("only approved bookings can receive feedback")
	ErrAlreadySubmitted  = core.Conflict("feedback already submitted for this booking")
	ErrLevelsOutOfBounds = core.Invalid("levels must be between 1 and 10")
)

type (
	Repository interface {
		// SubmitFeedback stores the Submission, then sets the tutor's rating to the average
		// of all their feedback ratings and increments their reviews count, in one transaction.
		// It returns ErrAlreadySubmitted when the booking already has feedback.
		SubmitFeedback(ctx context.Context, s Submission) (Feedback, error)
		FeedbackExists(ctx context.Context, bookingID string) (bool, error)
		// QueryFeedback returns the newest `limit` feedback of a tutor; 0 means no limit.
		QueryFeedback(ctx context.Context, tutorID string, limit int) ([]Feedback, error)
		// QueryOutcomes returns the matching outcomes, newest first.
		QueryOutcomes(ctx context.Context, filter OutcomeFilter) ([]Outcome, error)
	}

	BookingService interface {
		GetByID(ctx context.Context, id string) (booking.Booking, error)
	}

	TutorService interface {
		GetByID(ctx context.Context, id string) (tutor.Tutor, error)
		GetByUserID(ctx context.Context, userID string) (tutor.Tutor, error)
	}

	UserService interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo     Repository
		bookings BookingService
		tutors   TutorService
		users    UserService
	}
)

func NewService(repo Repository, bookings BookingService, tutors TutorService, users UserService) *Service {
	return &Service{repo: repo, bookings: bookings, tutors: tutors, users: users}
}

// Submit records a student's feedback on one of their approved bookings.
func (svc *Service) Submit(ctx context.Context, usr user.User, nf NewFeedback) (SubmitResult, error) {
	if !usr.IsStudent() {
		return SubmitResult{}, ErrStudentsOnly
	}

	b, err := svc.bookings.GetByID(ctx, nf.BookingID)
	if err != nil {
		if errors.Cause(err) == booking.ErrNotFound {
			return SubmitResult{}, ErrBookingNotFound
		}
		return SubmitResult{}, errors.Wrap(err, "finding booking by ID")
	}
	if b.StudentID != usr.ID {
		return SubmitResult{}, ErrBookingNotFound
	}
	if b.Status != booking.StatusApproved {
		return SubmitResult{}, ErrNotApproved
	}

	exists, err := svc.repo.FeedbackExists(ctx, b.ID)
	if err != nil {
		return SubmitResult{}, errors.Wrap(err, "checking existing feedback")
	}
	if exists {
		return SubmitResult{}, ErrAlreadySubmitted
	}

	for _, o := range nf.Outcomes {
		if !o.validLevels() {
			return SubmitResult{}, ErrLevelsOutOfBounds
		}
	}

	now := time.Now().UTC()
	sub := Submission{
		Feedback: Feedback{
			BookingID: b.ID,
			StudentID: usr.ID,
			TutorID:   b.TutorID,
			Rating:    nf.Rating,
			Comment:   nf.Comment,
			CreatedAt: now,
		},
		Outcomes: make([]Outcome, 0, len(nf.Outcomes)),
	}
	for _, o := range nf.Outcomes {
		sub.Outcomes = append(sub.Outcomes, Outcome{
			BookingID:        b.ID,
			StudentID:        usr.ID,
			Subject:          defaultSubject,
			Indicator:        o.Indicator,
			BeforeLevel:      o.BeforeLevel,
			AfterLevel:       o.AfterLevel,
			DeltaImprovement: float64(o.AfterLevel-o.BeforeLevel) / 10,
			CreatedAt:        now,
		})
	}

	fb, err := svc.repo.SubmitFeedback(ctx, sub)
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{
		FeedbackID:     fb.ID,
		Rating:         fb.Rating,
		Recommendation: Recommend(nf.Outcomes),
		Message:        "Feedback submitted successfully",
	}, nil
}

// StudentOutcomes returns the learning outcomes of a student, grouped by subject.
func (svc *Service) StudentOutcomes(ctx context.Context, usr user.User, studentID string) (StudentOutcomes, error) {
	if usr.ID != studentID {
		return StudentOutcomes{}, ErrOwnOutcomesOnly
	}

	outcomes, err := svc.repo.QueryOutcomes(ctx, OutcomeFilter{StudentID: studentID})
	if err != nil {
		return StudentOutcomes{}, errors.Wrap(err, "querying outcomes")
	}

	res := StudentOutcomes{
		OutcomesBySubject: make(map[string][]StudentOutcome),
		SubjectProgress:   make(map[string]SubjectProgress),
		TotalOutcomes:     len(outcomes),
	}
	bookings := make(map[string]*booking.Booking)
	tutors := make(map[string]*tutor.Tutor)

	for _, o := range outcomes {
		so := StudentOutcome{
			ID:               o.ID,
			Subject:          o.Subject,
			Indicator:        o.Indicator,
			BeforeLevel:      o.BeforeLevel,
			AfterLevel:       o.AfterLevel,
			DeltaImprovement: o.DeltaImprovement,
			CreatedAt:        o.CreatedAt,
		}

		b, err := svc.findBooking(ctx, bookings, o.BookingID)
		if err != nil {
			return StudentOutcomes{}, err
		}
		if b != nil {
			at := b.ScheduledAt
			so.SessionDate = &at
			t, err := svc.findTutor(ctx, tutors, b.TutorID)
			if err != nil {
				return StudentOutcomes{}, err
			}
			if t != nil {
				so.TutorName = t.Name
				so.TutorPic = t.ProfilePic
			}
		}

		subject := o.Subject
		if subject == "" {
			subject = defaultSubject
		}
		res.OutcomesBySubject[subject] = append(res.OutcomesBySubject[subject], so)
	}

	for subject, list := range res.OutcomesBySubject {
		var sum float64
		for _, o := range list {
			sum += o.DeltaImprovement
		}
		res.SubjectProgress[subject] = SubjectProgress{
			Sessions:       len(list),
			AvgImprovement: core.Round(sum/float64(len(list)), 2),
			LatestLevel:    list[0].AfterLevel, // newest first
		}
	}
	return res, nil
}

// TutorReviews returns the latest feedback received by the tutor User.
func (svc *Service) TutorReviews(ctx context.Context, usr user.User) (TutorReviews, error) {
	if !usr.IsTutor() {
		return TutorReviews{}, ErrTutorsOnly
	}
	t, err := svc.tutors.GetByUserID(ctx, usr.ID)
	if err != nil {
		return TutorReviews{}, err
	}

	fbs, err := svc.repo.QueryFeedback(ctx, t.ID, reviewsLimit)
	if err != nil {
		return TutorReviews{}, errors.Wrap(err, "querying feedback")
	}

	res := TutorReviews{
		Feedback:           make([]Review, 0, len(fbs)),
		Total:              len(fbs),
		RatingDistribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}
	bookings := make(map[string]*booking.Booking)
	students := make(map[string]string)

	for _, fb := range fbs {
		r := Review{ID: fb.ID, Rating: fb.Rating, Comment: fb.Comment, CreatedAt: fb.CreatedAt}

		name, ok := students[fb.StudentID]
		if !ok {
			if s, err := svc.users.GetByID(ctx, fb.StudentID); err == nil {
				name = s.Name
			} else if errors.Cause(err) != user.ErrNotFound {
				return TutorReviews{}, errors.Wrap(err, "finding user by ID")
			}
			students[fb.StudentID] = name
		}
		r.StudentName = name

		b, err := svc.findBooking(ctx, bookings, fb.BookingID)
		if err != nil {
			return TutorReviews{}, err
		}
		if b != nil {
			at := b.ScheduledAt
			r.BookingStatus = b.Status
			r.ScheduledAt = &at
		}

		if _, ok := res.RatingDistribution[fb.Rating]; ok {
			res.RatingDistribution[fb.Rating]++
		}
		res.Feedback = append(res.Feedback, r)
	}
	return res, nil
}

// Outcomes returns the outcomes matching filter, newest first.
func (svc *Service) Outcomes(ctx context.Context, filter OutcomeFilter) ([]Outcome, error) {
	return svc.repo.QueryOutcomes(ctx, filter)
}

func (svc *Service) findBooking(ctx context.Context, cache map[string]*booking.Booking, id string) (*booking.Booking, error) {
	if b, ok := cache[id]; ok {
		return b, nil
	}
	b, err := svc.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) != booking.ErrNotFound {
			return nil, errors.Wrap(err, "finding booking by ID")
		}
		cache[id] = nil
		return nil, nil
	}
	cache[id] = &b
	return &b, nil
}

func (svc *Service) findTutor(ctx context.Context, cache map[string]*tutor.Tutor, id string) (*tutor.Tutor, error) {
	if t, ok := cache[id]; ok {
		return t, nil
	}
	t, err := svc.tutors.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) != tutor.ErrNotFound {
			return nil, errors.Wrap(err, "finding tutor by ID")
		}
		cache[id] = nil
		return nil, nil
	}
	cache[id] = &t
	return &t, nil
}
