package stats

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/booking"
	"github.com/trezcool/mwalimu/core/feedback"
	"github.com/trezcool/mwalimu/core/student"
	"github.com/trezcool/mwalimu/core/tutor"
	"github.com/trezcool/mwalimu/core/user"
)

const (
	DefaultPeriodDays = 30

	topTutorsLimit     = 10
	trendsLimit        = 20
	trendsPeriod       = 60 * 24 * time.Hour
	staleRequestPeriod = 24 * time.Hour
	lowRatingThreshold = 4.0
	lowRatingMinReview = 5
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrInvalidPeriod = core.NewFieldError("days", "must be a positive number of days")
)

type (
	BookingService interface {
		Query(ctx context.Context, filter booking.QueryFilter) ([]booking.Booking, error)
	}

	TutorService interface {
		GetByID(ctx context.Context, id string) (tutor.Tutor, error)
		GetByUserID(ctx context.Context, userID string) (tutor.Tutor, error)
		QueryActive(ctx context.Context, limit int) ([]tutor.Tutor, error)
		Count(ctx context.Context, activeOnly bool) (int, error)
	}

	StudentService interface {
		GetByUserID(ctx context.Context, userID string) (student.Student, error)
	}

	UserService interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		Count(ctx context.Context, roles ...string) (int, error)
	}

	OutcomeService interface {
		Outcomes(ctx context.Context, filter feedback.OutcomeFilter) ([]feedback.Outcome, error)
	}

	Deps struct {
		Bookings BookingService
		Tutors   TutorService
		Students StudentService
		Users    UserService
		Outcomes OutcomeService
	}

	Service struct {
		bookings BookingService
		tutors   TutorService
		students StudentService
		users    UserService
		outcomes OutcomeService
	}
)

func NewService(deps Deps) *Service {
	return &Service{
		bookings: deps.Bookings,
		tutors:   deps.Tutors,
		students: deps.Students,
		users:    deps.Users,
		outcomes: deps.Outcomes,
	}
}

// StudentDashboard counts the bookings of the student User and reports their streak.
func (svc *Service) StudentDashboard(ctx context.Context, usr user.User) (StudentStats, error) {
	var res StudentStats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		bookings, err := svc.bookings.Query(gctx, booking.QueryFilter{StudentID: usr.ID})
		if err != nil {
			return errors.Wrap(err, "querying bookings")
		}
		res.StatusCounts = booking.CountStatuses(bookings)
		return nil
	})
	g.Go(func() error {
		s, err := svc.students.GetByUserID(gctx, usr.ID)
		if err != nil {
			if errors.Cause(err) == student.ErrNotFound {
				return nil
			}
			return errors.Wrap(err, "finding student by user ID")
		}
		res.Streak = s.Streak
		return nil
	})

	if err := g.Wait(); err != nil {
		return StudentStats{}, err
	}
	return res, nil
}

// TutorDashboard counts the bookings made with the tutor User.
func (svc *Service) TutorDashboard(ctx context.Context, usr user.User) (booking.StatusCounts, error) {
	t, err := svc.tutors.GetByUserID(ctx, usr.ID)
	if err != nil {
		return booking.StatusCounts{}, err
	}
	bookings, err := svc.bookings.Query(ctx, booking.QueryFilter{TutorID: t.ID})
	if err != nil {
		return booking.StatusCounts{}, errors.Wrap(err, "querying bookings")
	}
	return booking.CountStatuses(bookings), nil
}

// AdminDashboard counts the users, tutor profiles and bookings of the platform.
func (svc *Service) AdminDashboard(ctx context.Context) (AdminStats, error) {
	var res AdminStats
	g, gctx := errgroup.WithContext(ctx)

	countUsers := func(dest *int, roles ...string) func() error {
		return func() error {
			n, err := svc.users.Count(gctx, roles...)
			if err != nil {
				return errors.Wrap(err, "counting users")
			}
			*dest = n
			return nil
		}
	}
	g.Go(countUsers(&res.TotalUsers))
	g.Go(countUsers(&res.TotalStudents, user.RoleStudent))
	g.Go(countUsers(&res.TotalTutorUsers, user.RoleTutor))
	g.Go(func() error {
		n, err := svc.tutors.Count(gctx, false)
		if err != nil {
			return errors.Wrap(err, "counting tutors")
		}
		res.TotalTutorsProfiles = n
		return nil
	})
	g.Go(func() error {
		bookings, err := svc.bookings.Query(gctx, booking.QueryFilter{})
		if err != nil {
			return errors.Wrap(err, "querying bookings")
		}
		res.StatusCounts = booking.CountStatuses(bookings)
		return nil
	})

	if err := g.Wait(); err != nil {
		return AdminStats{}, err
	}
	return res, nil
}

func (svc *Service) Overview(ctx context.Context) (Overview, error) {
	var res Overview
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := svc.users.Count(gctx, user.RoleStudent)
		res.TotalStudents = n
		return errors.Wrap(err, "counting students")
	})
	g.Go(func() error {
		tutors, err := svc.tutors.QueryActive(gctx, 0)
		if err != nil {
			return errors.Wrap(err, "querying tutors")
		}
		res.ActiveTutors = len(tutors)
		if len(tutors) > 0 {
			var sum float64
			for _, t := range tutors {
				sum += t.Rating
			}
			res.AvgTutorRating = core.Round(sum/float64(len(tutors)), 2)
		}
		return nil
	})
	g.Go(func() error {
		bookings, err := svc.bookings.Query(gctx, booking.QueryFilter{})
		if err != nil {
			return errors.Wrap(err, "querying bookings")
		}
		counts := booking.CountStatuses(bookings)
		res.TotalBookings = counts.Total
		res.ApprovedSessions = counts.Approved
		return nil
	})
	g.Go(func() error {
		outcomes, err := svc.outcomes.Outcomes(gctx, feedback.OutcomeFilter{})
		if err != nil {
			return errors.Wrap(err, "querying outcomes")
		}
		res.AvgImprovement = core.Round(avgDelta(outcomes), 3)
		return nil
	})

	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return res, nil
}

// BookingStats describes the bookings created during the last `days` days.
func (svc *Service) BookingStats(ctx context.Context, days int) (PeriodStats, error) {
	if days <= 0 {
		return PeriodStats{}, ErrInvalidPeriod
	}

	from := NowFunc().AddDate(0, 0, -days)
	bookings, err := svc.bookings.Query(ctx, booking.QueryFilter{CreatedFrom: from})
	if err != nil {
		return PeriodStats{}, errors.Wrap(err, "querying bookings")
	}

	res := PeriodStats{StatusCounts: booking.CountStatuses(bookings), PeriodDays: days}
	if res.Total > 0 {
		res.AcceptanceRate = core.Round(float64(res.Approved)/float64(res.Total)*100, 1)
	}

	var answered int
	var responseTime time.Duration
	for _, b := range bookings {
		if b.Status == booking.StatusPending {
			continue
		}
		answered++
		responseTime += b.UpdatedAt.Sub(b.CreatedAt)
	}
	if answered > 0 {
		res.AvgResponseTimeMins = core.Round(responseTime.Minutes()/float64(answered), 1)
	}
	return res, nil
}

// TopTutors ranks the best rated active tutors with their session figures.
func (svc *Service) TopTutors(ctx context.Context) ([]TutorEffectiveness, error) {
	tutors, err := svc.tutors.QueryActive(ctx, topTutorsLimit)
	if err != nil {
		return nil, errors.Wrap(err, "querying tutors")
	}

	res := make([]TutorEffectiveness, len(tutors))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tutors {
		i, t := i, t
		g.Go(func() error {
			te, err := svc.tutorEffectiveness(gctx, t)
			if err != nil {
				return err
			}
			res[i] = te
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func (svc *Service) tutorEffectiveness(ctx context.Context, t tutor.Tutor) (TutorEffectiveness, error) {
	bookings, err := svc.bookings.Query(ctx, booking.QueryFilter{TutorID: t.ID})
	if err != nil {
		return TutorEffectiveness{}, errors.Wrap(err, "querying bookings")
	}

	var sessions, approved int
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID)
		if b.Status == booking.StatusRejected {
			continue
		}
		sessions++
		if b.Status == booking.StatusApproved {
			approved++
		}
	}

	var delta float64
	if len(ids) > 0 {
		outcomes, err := svc.outcomes.Outcomes(ctx, feedback.OutcomeFilter{BookingIDs: ids})
		if err != nil {
			return TutorEffectiveness{}, errors.Wrap(err, "querying outcomes")
		}
		delta = avgDelta(outcomes)
	}

	te := TutorEffectiveness{
		ID:              t.ID,
		Name:            t.Name,
		ProfilePic:      t.ProfilePic,
		Rating:          t.Rating,
		ReviewsCount:    t.ReviewsCount,
		TotalSessions:   sessions,
		AvgOutcomeDelta: core.Round(delta, 3),
		SubjectsTaught:  len(t.Subjects),
	}
	if sessions > 0 {
		te.CompletionRate = core.Round(float64(approved)/float64(sessions)*100, 1)
	}
	return te, nil
}

// SubjectTrends groups the bookings of the last 60 days per tutor, busiest first.
func (svc *Service) SubjectTrends(ctx context.Context) ([]SubjectTrend, error) {
	bookings, err := svc.bookings.Query(ctx, booking.QueryFilter{CreatedFrom: NowFunc().Add(-trendsPeriod)})
	if err != nil {
		return nil, errors.Wrap(err, "querying bookings")
	}

	byTutor := make(map[string]*SubjectTrend)
	for _, b := range bookings {
		st, ok := byTutor[b.TutorID]
		if !ok {
			st = &SubjectTrend{TutorID: b.TutorID}
			byTutor[b.TutorID] = st
		}
		st.TotalBookings++
		if b.Status == booking.StatusApproved {
			st.Approved++
		}
	}

	trends := make([]SubjectTrend, 0, len(byTutor))
	for _, st := range byTutor {
		trends = append(trends, *st)
	}
	sort.Slice(trends, func(i, j int) bool {
		if trends[i].TotalBookings != trends[j].TotalBookings {
			return trends[i].TotalBookings > trends[j].TotalBookings
		}
		return trends[i].TutorID < trends[j].TutorID
	})
	if len(trends) > trendsLimit {
		trends = trends[:trendsLimit]
	}

	for i, st := range trends {
		t, err := svc.tutors.GetByID(ctx, st.TutorID)
		if err != nil {
			if errors.Cause(err) == tutor.ErrNotFound {
				continue
			}
			return nil, errors.Wrap(err, "finding tutor by ID")
		}
		trends[i].TutorName = t.Name
	}
	return trends, nil
}

// Alerts lists the low rated tutors and the requests left pending for more than a day.
func (svc *Service) Alerts(ctx context.Context) (AlertsReport, error) {
	now := NowFunc()
	alerts := make([]Alert, 0)

	tutors, err := svc.tutors.QueryActive(ctx, 0)
	if err != nil {
		return AlertsReport{}, errors.Wrap(err, "querying tutors")
	}
	for _, t := range tutors {
		if t.Rating < lowRatingThreshold && t.ReviewsCount >= lowRatingMinReview {
			alerts = append(alerts, Alert{
				Type:     AlertLowRating,
				Severity: severityWarning,
				Message: fmt.Sprintf("%s has rating %s from %d reviews",
					t.Name, strconv.FormatFloat(t.Rating, 'f', -1, 64), t.ReviewsCount),
				TutorID: t.ID,
			})
		}
	}

	stale, err := svc.bookings.Query(ctx, booking.QueryFilter{
		Status:    booking.StatusPending,
		CreatedTo: now.Add(-staleRequestPeriod),
	})
	if err != nil {
		return AlertsReport{}, errors.Wrap(err, "querying bookings")
	}
	names := make(map[string]string)
	for _, b := range stale {
		studentName, err := svc.userName(ctx, names, b.StudentID)
		if err != nil {
			return AlertsReport{}, err
		}
		tutorName, err := svc.tutorName(ctx, names, b.TutorID)
		if err != nil {
			return AlertsReport{}, err
		}
		alerts = append(alerts, Alert{
			Type:      AlertStaleRequest,
			Severity:  severityWarning,
			Message:   fmt.Sprintf("Booking #%s from %s to %s pending for 24+ hours", b.ID, studentName, tutorName),
			BookingID: b.ID,
		})
	}

	return AlertsReport{Alerts: alerts, TotalAlerts: len(alerts), GeneratedAt: now.UTC()}, nil
}

func (svc *Service) userName(ctx context.Context, cache map[string]string, id string) (string, error) {
	key := "user:" + id
	if name, ok := cache[key]; ok {
		return name, nil
	}
	usr, err := svc.users.GetByID(ctx, id)
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return "", errors.Wrap(err, "finding user by ID")
	}
	cache[key] = usr.Name
	return usr.Name, nil
}

func (svc *Service) tutorName(ctx context.Context, cache map[string]string, id string) (string, error) {
	key := "tutor:" + id
	if name, ok := cache[key]; ok {
		return name, nil
	}
	t, err := svc.tutors.GetByID(ctx, id)
	if err != nil && errors.Cause(err) != tutor.ErrNotFound {
		return "", errors.Wrap(err, "finding tutor by ID")
	}
	cache[key] = t.Name
	return t.Name, nil
}

func avgDelta(outcomes []feedback.Outcome) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	var sum float64
	for _, o := range outcomes {
		sum += o.DeltaImprovement
	}
	return sum / float64(len(outcomes))
}
