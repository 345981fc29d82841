package booking

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/tutor"
	"github.com/trezcool/mwalimu/core/user"
)

const meetingBaseURL = "https://meet.jit.si/"

var (
	// errors
	ErrNotFound            = core.NotFound("booking not found")
	ErrNotFoundOrProcessed = core.NotFound("booking not found or already processed")
	ErrForbidden           = core.Forbidden("insufficient permissions")
	ErrStudentsOnly        = core.Forbidden("only students can create bookings")
	ErrTutorsOnly          = core.Forbidden("only tutors can respond to bookings")
	ErrInvalidResponse     = core.Invalid(`invalid response. Must be "accept" or "reject"`)
	ErrInvalidTransition   = core.Invalid("invalid status transition")
	ErrNotImplemented      = core.Invalid("not implemented in this simplified workflow")
)

type (
	Repository interface {
		CreateBooking(ctx context.Context, b Booking) (Booking, error)
		GetBooking(ctx context.Context, id string) (Booking, error)
		// QueryBookings returns the matching bookings, newest first.
		QueryBookings(ctx context.Context, filter QueryFilter) ([]Booking, error)
		// TransitionBooking applies tr in a single conditional update and returns the updated Booking.
		// It returns ErrNotFoundOrProcessed when no booking matches the ID, tutor & From status.
		TransitionBooking(ctx context.Context, tr Transition) (Booking, error)
	}

	TutorService interface {
		GetByID(ctx context.Context, id string) (tutor.Tutor, error)
		GetByUserID(ctx context.Context, userID string) (tutor.Tutor, error)
		ReserveSlot(ctx context.Context, tutorID string, at time.Time) (bool, error)
		ReleaseSlot(ctx context.Context, tutorID string, at time.Time) error
	}

	UserService interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	// TransitionRecorder is notified of every status a booking enters.
	TransitionRecorder interface {
		RecordBookingStatus(status string)
	}

	Deps struct {
		Repo        Repository
		Tutors      TutorService
		Users       UserService
		Broadcaster core.Broadcaster
		MailSvc     core.EmailService
		Logger      core.Logger
		Recorder    TransitionRecorder
	}

	Service struct {
		repo        Repository
		tutors      TutorService
		users       UserService
		broadcaster core.Broadcaster
		mailSvc     core.EmailService
		logger      core.Logger
		recorder    TransitionRecorder
	}
)

func NewService(deps Deps) *Service {
	svc := &Service{
		repo:        deps.Repo,
		tutors:      deps.Tutors,
		users:       deps.Users,
		broadcaster: deps.Broadcaster,
		mailSvc:     deps.MailSvc,
		logger:      deps.Logger,
		recorder:    deps.Recorder,
	}
	if svc.broadcaster == nil {
		svc.broadcaster = core.NopBroadcaster{}
	}
	return svc
}

// MeetingLink returns the default video meeting room of a booking.
func MeetingLink(bookingID string) string {
	return meetingBaseURL + url.PathEscape("tutorbooking-"+bookingID)
}

// Create requests a session with a tutor. When the tutor published a slot
// at the requested time, the slot is reserved for the new booking.
func (svc *Service) Create(ctx context.Context, usr user.User, nb NewBooking) (Booking, error) {
	if !usr.IsStudent() {
		return Booking{}, ErrStudentsOnly
	}

	t, err := svc.tutors.GetByID(ctx, nb.TutorID)
	if err != nil {
		return Booking{}, err
	}

	at := nb.ScheduledAt.UTC()
	reserved, err := svc.tutors.ReserveSlot(ctx, t.ID, at)
	if err != nil {
		return Booking{}, err
	}

	now := time.Now().UTC()
	b, err := svc.repo.CreateBooking(ctx, Booking{
		TutorID:      t.ID,
		StudentID:    usr.ID,
		ScheduledAt:  at,
		Status:       StatusPending,
		SlotReserved: reserved,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if reserved {
			svc.releaseSlot(ctx, t.ID, at)
		}
		return Booking{}, errors.Wrap(err, "creating booking")
	}

	svc.record(b.Status)
	svc.broadcaster.Emit(core.UserRoom(t.UserID), core.EventNotification, Notification{
		Type:        NotificationBookingRequested,
		BookingID:   b.ID,
		Status:      b.Status,
		ScheduledAt: &b.ScheduledAt,
		Message:     fmt.Sprintf("New booking request from %s.", usr.Name),
	})
	return b, nil
}

// Respond applies a tutor's answer to one of their pending bookings.
func (svc *Service) Respond(ctx context.Context, usr user.User, bookingID string, resp Response) (Booking, error) {
	if !usr.IsTutor() {
		return Booking{}, ErrTutorsOnly
	}

	var to string
	switch resp.Response {
	case ResponseAccept:
		to = StatusApproved
	case ResponseReject:
		to = StatusRejected
	default:
		return Booking{}, ErrInvalidResponse
	}
	if !CanTransition(StatusPending, to) {
		return Booking{}, ErrInvalidTransition
	}

	t, err := svc.tutors.GetByUserID(ctx, usr.ID)
	if err != nil {
		return Booking{}, err
	}

	var link *string
	if to == StatusApproved {
		l := resp.MeetingLink
		if l == "" {
			l = MeetingLink(bookingID)
		}
		link = &l
	}

	b, err := svc.repo.TransitionBooking(ctx, Transition{
		ID:          bookingID,
		TutorID:     t.ID,
		From:        StatusPending,
		To:          to,
		MeetingLink: link,
		At:          time.Now().UTC(),
	})
	if err != nil {
		return Booking{}, err
	}

	if b.Status == StatusRejected && b.SlotReserved {
		svc.releaseSlot(ctx, t.ID, b.ScheduledAt)
	}
	svc.record(b.Status)
	svc.notifyStatus(ctx, b, t)
	return b, nil
}

// Complete is not part of the workflow: approved sessions are never marked as completed.
func (svc *Service) Complete(context.Context, user.User, string) (Booking, error) {
	return Booking{}, ErrNotImplemented
}

// CheckAccess returns the booking when usr may read it or chat in it:
// admins always, students on their own bookings, tutors on the bookings made with them.
func (svc *Service) CheckAccess(ctx context.Context, usr user.User, bookingID string) (Booking, error) {
	b, err := svc.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}

	switch usr.Role {
	case user.RoleAdmin:
		return b, nil
	case user.RoleStudent:
		if b.StudentID == usr.ID {
			return b, nil
		}
	case user.RoleTutor:
		t, err := svc.tutors.GetByUserID(ctx, usr.ID)
		if err != nil {
			return Booking{}, err
		}
		if b.TutorID == t.ID {
			return b, nil
		}
	}
	return Booking{}, ErrForbidden
}

// Get returns a booking with its participants, subject to CheckAccess.
func (svc *Service) Get(ctx context.Context, usr user.User, bookingID string) (Detail, error) {
	b, err := svc.CheckAccess(ctx, usr, bookingID)
	if err != nil {
		return Detail{}, err
	}
	details, err := svc.populate(ctx, []Booking{b}, true, true)
	if err != nil {
		return Detail{}, err
	}
	return details[0], nil
}

// ListForStudent returns the bookings of a student User, newest first.
func (svc *Service) ListForStudent(ctx context.Context, usr user.User, status string) ([]Detail, error) {
	if !usr.IsStudent() {
		return nil, ErrForbidden
	}
	bookings, err := svc.repo.QueryBookings(ctx, QueryFilter{StudentID: usr.ID, Status: status})
	if err != nil {
		return nil, errors.Wrap(err, "querying bookings")
	}
	return svc.populate(ctx, bookings, true, false)
}

// ListForTutor returns the bookings made with a tutor User, newest first.
func (svc *Service) ListForTutor(ctx context.Context, usr user.User, status string) ([]Detail, error) {
	if !usr.IsTutor() {
		return nil, ErrForbidden
	}
	t, err := svc.tutors.GetByUserID(ctx, usr.ID)
	if err != nil {
		return nil, err
	}
	bookings, err := svc.repo.QueryBookings(ctx, QueryFilter{TutorID: t.ID, Status: status})
	if err != nil {
		return nil, errors.Wrap(err, "querying bookings")
	}
	return svc.populate(ctx, bookings, false, true)
}

// ListAll returns every booking, newest first.
func (svc *Service) ListAll(ctx context.Context) ([]Detail, error) {
	bookings, err := svc.repo.QueryBookings(ctx, QueryFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "querying bookings")
	}
	return svc.populate(ctx, bookings, true, true)
}

// Query returns the raw bookings matching filter, newest first.
func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Booking, error) {
	return svc.repo.QueryBookings(ctx, filter)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Booking, error) {
	return svc.repo.GetBooking(ctx, id)
}

// populate attaches the tutor and/or student summaries. Deleted participants are left out.
func (svc *Service) populate(ctx context.Context, bookings []Booking, withTutor, withStudent bool) ([]Detail, error) {
	tutors := make(map[string]*tutor.Summary)
	students := make(map[string]*user.Summary)

	details := make([]Detail, 0, len(bookings))
	for _, b := range bookings {
		d := Detail{Booking: b}

		if withTutor {
			summary, ok := tutors[b.TutorID]
			if !ok {
				t, err := svc.tutors.GetByID(ctx, b.TutorID)
				if err != nil && errors.Cause(err) != tutor.ErrNotFound {
					return nil, errors.Wrap(err, "finding tutor by ID")
				} else if err == nil {
					summary = t.Summary()
				}
				tutors[b.TutorID] = summary
			}
			d.Tutor = summary
		}

		if withStudent {
			summary, ok := students[b.StudentID]
			if !ok {
				usr, err := svc.users.GetByID(ctx, b.StudentID)
				if err != nil && errors.Cause(err) != user.ErrNotFound {
					return nil, errors.Wrap(err, "finding user by ID")
				} else if err == nil {
					summary = usr.Summary()
				}
				students[b.StudentID] = summary
			}
			d.Student = summary
		}

		details = append(details, d)
	}
	return details, nil
}

func (svc *Service) releaseSlot(ctx context.Context, tutorID string, at time.Time) {
	if err := svc.tutors.ReleaseSlot(ctx, tutorID, at); err != nil {
		svc.logError("releasing slot", err)
	}
}

func (svc *Service) record(status string) {
	if svc.recorder != nil {
		svc.recorder.RecordBookingStatus(status)
	}
}

func (svc *Service) logError(msg string, err error) {
	if svc.logger != nil {
		svc.logger.Error(fmt.Sprintf("%s: %v", msg, err), err)
	}
}
