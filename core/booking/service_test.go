package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/booking"
	"github.com/trezcool/mwalimu/core/tutor"
	"github.com/trezcool/mwalimu/core/user"
	emailsvc "github.com/trezcool/mwalimu/services/email"
	logsvc "github.com/trezcool/mwalimu/services/logger"
	"github.com/trezcool/mwalimu/storage/database/inmem"
	"github.com/trezcool/mwalimu/testutil"
)

type recorder struct {
	statuses []string
}

func (r *recorder) RecordBookingStatus(status string) { r.statuses = append(r.statuses, status) }

type fixture struct {
	ctx      context.Context
	svc      *booking.Service
	db       *inmemdb.DB
	users    user.Repository
	tutors   tutor.Repository
	bookings booking.Repository
	events   *testutil.Broadcaster
	mailbox  *emailsvc.ConsoleService
	recorder *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conf := core.NewTestConfig()
	logger := logsvc.NewTestLogger()
	core.ParseEmailTemplates(conf, logger)

	db := inmemdb.Open()
	f := &fixture{
		ctx:      context.Background(),
		db:       db,
		users:    inmemdb.NewUserRepository(db),
		tutors:   inmemdb.NewTutorRepository(db),
		bookings: inmemdb.NewBookingRepository(db),
		events:   new(testutil.Broadcaster),
		mailbox:  emailsvc.NewConsoleServiceMock(conf, logger),
		recorder: new(recorder),
	}
	f.svc = booking.NewService(booking.Deps{
		Repo:        f.bookings,
		Tutors:      tutor.NewService(f.tutors),
		Users:       user.NewService(f.users, f.mailbox, conf),
		Broadcaster: f.events,
		MailSvc:     f.mailbox,
		Logger:      logger,
		Recorder:    f.recorder,
	})
	return f
}

func TestService_Create(t *testing.T) {
	f := newFixture(t)
	slot := time.Now().Add(72 * time.Hour).Truncate(time.Hour).UTC()

	tutUsr, tut := testutil.CreateTutor(t, f.users, f.tutors, "Baraka Otieno", "baraka@test.com", testutil.TutorOpts{
		HourlyRate: 20,
		Slots:      []time.Time{slot},
	})
	student := testutil.CreateUser(t, f.users, "Amina Said", "amina@test.com", user.RoleStudent)
	other := testutil.CreateUser(t, f.users, "Juma Ali", "juma@test.com", user.RoleStudent)

	t.Run("only students", func(t *testing.T) {
		_, err := f.svc.Create(f.ctx, tutUsr, booking.NewBooking{TutorID: tut.ID, ScheduledAt: slot})
		assert.Equal(t, booking.ErrStudentsOnly, err)
	})

	t.Run("unknown tutor", func(t *testing.T) {
		_, err := f.svc.Create(f.ctx, student, booking.NewBooking{TutorID: "nope", ScheduledAt: slot})
		assert.Equal(t, tutor.ErrNotFound, err)
	})

	t.Run("reserves the matching slot", func(t *testing.T) {
		f.events.Reset()
		b, err := f.svc.Create(f.ctx, student, booking.NewBooking{TutorID: tut.ID, ScheduledAt: slot})
		require.NoError(t, err)

		assert.Equal(t, booking.StatusPending, b.Status)
		assert.Equal(t, student.ID, b.StudentID)
		assert.Equal(t, tut.ID, b.TutorID)
		assert.Nil(t, b.MeetingLink)

		got, err := f.tutors.GetTutor(f.ctx, tut.ID)
		require.NoError(t, err)
		assert.True(t, got.Availability[0].IsBooked)

		evts := f.events.Events()
		if assert.Len(t, evts, 1) {
			assert.Equal(t, core.UserRoom(tutUsr.ID), evts[0].Room)
			assert.Equal(t, core.EventNotification, evts[0].Name)
			notif := evts[0].Data.(booking.Notification)
			assert.Equal(t, booking.NotificationBookingRequested, notif.Type)
			assert.Equal(t, b.ID, notif.BookingID)
			assert.Equal(t, "New booking request from Amina Said.", notif.Message)
		}
	})

	t.Run("booked slot", func(t *testing.T) {
		_, err := f.svc.Create(f.ctx, other, booking.NewBooking{TutorID: tut.ID, ScheduledAt: slot})
		assert.Equal(t, tutor.ErrSlotTaken, err)
	})

	t.Run("time outside availability", func(t *testing.T) {
		b, err := f.svc.Create(f.ctx, other, booking.NewBooking{TutorID: tut.ID, ScheduledAt: slot.Add(time.Hour)})
		require.NoError(t, err)
		assert.Equal(t, booking.StatusPending, b.Status)
	})

	assert.Equal(t, []string{booking.StatusPending, booking.StatusPending}, f.recorder.statuses)
}

func TestService_Respond(t *testing.T) {
	f := newFixture(t)
	slot := time.Now().Add(72 * time.Hour).Truncate(time.Hour).UTC()

	tutUsr, tut := testutil.CreateTutor(t, f.users, f.tutors, "Baraka Otieno", "baraka@test.com", testutil.TutorOpts{
		Slots: []time.Time{slot},
	})
	otherTutUsr, _ := testutil.CreateTutor(t, f.users, f.tutors, "Neema Mwangi", "neema@test.com", testutil.TutorOpts{})
	noProfile := testutil.CreateUser(t, f.users, "No Profile", "noprofile@test.com", user.RoleTutor)
	student := testutil.CreateUser(t, f.users, "Amina Said", "amina@test.com", user.RoleStudent)

	newBooking := func(at time.Time) booking.Booking {
		b, err := f.svc.Create(f.ctx, student, booking.NewBooking{TutorID: tut.ID, ScheduledAt: at})
		require.NoError(t, err)
		return b
	}

	t.Run("only tutors", func(t *testing.T) {
		b := newBooking(slot.Add(24 * time.Hour))
		_, err := f.svc.Respond(f.ctx, student, b.ID, booking.Response{Response: booking.ResponseAccept})
		assert.Equal(t, booking.ErrTutorsOnly, err)
	})

	t.Run("invalid response", func(t *testing.T) {
		b := newBooking(slot.Add(25 * time.Hour))
		_, err := f.svc.Respond(f.ctx, tutUsr, b.ID, booking.Response{Response: "maybe"})
		assert.Equal(t, booking.ErrInvalidResponse, err)
	})

	t.Run("missing tutor profile", func(t *testing.T) {
		b := newBooking(slot.Add(26 * time.Hour))
		_, err := f.svc.Respond(f.ctx, noProfile, b.ID, booking.Response{Response: booking.ResponseAccept})
		assert.Equal(t, tutor.ErrNoProfile, err)
	})

	t.Run("booking of another tutor", func(t *testing.T) {
		b := newBooking(slot.Add(27 * time.Hour))
		_, err := f.svc.Respond(f.ctx, otherTutUsr, b.ID, booking.Response{Response: booking.ResponseAccept})
		assert.Equal(t, booking.ErrNotFoundOrProcessed, err)
	})

	t.Run("accept", func(t *testing.T) {
		b := newBooking(slot.Add(28 * time.Hour))
		f.events.Reset()
		f.mailbox.Reset()

		b, err := f.svc.Respond(f.ctx, tutUsr, b.ID, booking.Response{Response: booking.ResponseAccept})
		require.NoError(t, err)
		assert.Equal(t, booking.StatusApproved, b.Status)
		if assert.NotNil(t, b.MeetingLink) {
			assert.Equal(t, "https://meet.jit.si/tutorbooking-"+b.ID, *b.MeetingLink)
		}

		evts := f.events.Events()
		if assert.Len(t, evts, 2) {
			assert.Equal(t, core.BookingRoom(b.ID), evts[0].Room)
			assert.Equal(t, core.EventBookingStatusUpdated, evts[0].Name)
			assert.Equal(t, booking.StatusUpdate{BookingID: b.ID, Status: booking.StatusApproved, MeetingLink: b.MeetingLink}, evts[0].Data)

			assert.Equal(t, core.UserRoom(student.ID), evts[1].Room)
			notif := evts[1].Data.(booking.Notification)
			assert.Equal(t, booking.NotificationBookingStatusUpdated, notif.Type)
			assert.Equal(t, "Your booking was Approved.", notif.Message)
		}

		msgs := f.mailbox.SentMessages()
		if assert.Len(t, msgs, 1) {
			assert.Equal(t, student.Email, msgs[0].To[0].Address)
			assert.Equal(t, "Booking Approved", msgs[0].Subject)
			assert.Contains(t, msgs[0].TextContent, *b.MeetingLink)
		}

		// terminal
		_, err = f.svc.Respond(f.ctx, tutUsr, b.ID, booking.Response{Response: booking.ResponseReject})
		assert.Equal(t, booking.ErrNotFoundOrProcessed, err)
	})

	t.Run("accept with a custom link", func(t *testing.T) {
		b := newBooking(slot.Add(29 * time.Hour))
		b, err := f.svc.Respond(f.ctx, tutUsr, b.ID, booking.Response{
			Response:    booking.ResponseAccept,
			MeetingLink: "https://zoom.example/j/42",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://zoom.example/j/42", *b.MeetingLink)
	})

	t.Run("reject releases the slot", func(t *testing.T) {
		b := newBooking(slot)
		require.True(t, b.SlotReserved)
		b, err := f.svc.Respond(f.ctx, tutUsr, b.ID, booking.Response{Response: booking.ResponseReject})
		require.NoError(t, err)
		assert.Equal(t, booking.StatusRejected, b.Status)
		assert.Nil(t, b.MeetingLink)

		got, err := f.tutors.GetTutor(f.ctx, tut.ID)
		require.NoError(t, err)
		for _, s := range got.Availability {
			if s.TimeSlot.Equal(slot) {
				assert.False(t, s.IsBooked)
			}
		}
	})

	t.Run("reject keeps slots it did not reserve", func(t *testing.T) {
		later := slot.Add(48 * time.Hour)
		unslotted := newBooking(later)
		assert.False(t, unslotted.SlotReserved)

		// the slot is published afterwards and taken by another booking
		_, err := tutor.NewService(f.tutors).AddAvailability(f.ctx, tutUsr.ID, tutor.NewSlots{TimeSlots: []time.Time{later}})
		require.NoError(t, err)
		holder := newBooking(later)
		assert.True(t, holder.SlotReserved)

		_, err = f.svc.Respond(f.ctx, tutUsr, unslotted.ID, booking.Response{Response: booking.ResponseReject})
		require.NoError(t, err)

		got, err := f.tutors.GetTutor(f.ctx, tut.ID)
		require.NoError(t, err)
		for _, s := range got.Availability {
			if s.TimeSlot.Equal(later) {
				assert.True(t, s.IsBooked, "slot of booking %s was released", holder.ID)
			}
		}
	})

	t.Run("unknown booking", func(t *testing.T) {
		_, err := f.svc.Respond(f.ctx, tutUsr, "nope", booking.Response{Response: booking.ResponseAccept})
		assert.Equal(t, booking.ErrNotFoundOrProcessed, err)
	})
}

func TestService_CheckAccess(t *testing.T) {
	f := newFixture(t)
	tutUsr, tut := testutil.CreateTutor(t, f.users, f.tutors, "Baraka Otieno", "baraka@test.com", testutil.TutorOpts{})
	otherTutUsr, _ := testutil.CreateTutor(t, f.users, f.tutors, "Neema Mwangi", "neema@test.com", testutil.TutorOpts{})
	noProfile := testutil.CreateUser(t, f.users, "No Profile", "noprofile@test.com", user.RoleTutor)
	student := testutil.CreateUser(t, f.users, "Amina Said", "amina@test.com", user.RoleStudent)
	otherStudent := testutil.CreateUser(t, f.users, "Juma Ali", "juma@test.com", user.RoleStudent)
	admin := testutil.CreateUser(t, f.users, "Admin", "admin@test.com", user.RoleAdmin)

	b := testutil.CreateBooking(t, f.bookings, tut.ID, student.ID, booking.StatusPending)

	tests := []struct {
		name      string
		usr       user.User
		bookingID string
		wantErr   error
	}{
		{name: "admin", usr: admin, bookingID: b.ID},
		{name: "own student", usr: student, bookingID: b.ID},
		{name: "own tutor", usr: tutUsr, bookingID: b.ID},
		{name: "other student", usr: otherStudent, bookingID: b.ID, wantErr: booking.ErrForbidden},
		{name: "other tutor", usr: otherTutUsr, bookingID: b.ID, wantErr: booking.ErrForbidden},
		{name: "tutor without profile", usr: noProfile, bookingID: b.ID, wantErr: tutor.ErrNoProfile},
		{name: "unknown booking", usr: admin, bookingID: "nope", wantErr: booking.ErrNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.svc.CheckAccess(f.ctx, tc.usr, tc.bookingID)
			if tc.wantErr != nil {
				assert.Equal(t, tc.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, b.ID, got.ID)
		})
	}
}

func TestService_lists(t *testing.T) {
	f := newFixture(t)
	tutUsr, tut := testutil.CreateTutor(t, f.users, f.tutors, "Baraka Otieno", "baraka@test.com", testutil.TutorOpts{})
	student := testutil.CreateUser(t, f.users, "Amina Said", "amina@test.com", user.RoleStudent)
	otherStudent := testutil.CreateUser(t, f.users, "Juma Ali", "juma@test.com", user.RoleStudent)

	now := time.Now().UTC()
	b1 := testutil.CreateBooking(t, f.bookings, tut.ID, student.ID, booking.StatusPending, now.Add(-3*time.Hour))
	b2 := testutil.CreateBooking(t, f.bookings, tut.ID, student.ID, booking.StatusApproved, now.Add(-2*time.Hour))
	b3 := testutil.CreateBooking(t, f.bookings, tut.ID, otherStudent.ID, booking.StatusRejected, now.Add(-time.Hour))

	ids := func(details []booking.Detail) []string {
		res := make([]string, 0, len(details))
		for _, d := range details {
			res = append(res, d.ID)
		}
		return res
	}

	t.Run("student", func(t *testing.T) {
		got, err := f.svc.ListForStudent(f.ctx, student, "")
		require.NoError(t, err)
		assert.Equal(t, []string{b2.ID, b1.ID}, ids(got))
		assert.Equal(t, tut.Summary(), got[0].Tutor)
		assert.Nil(t, got[0].Student)

		got, err = f.svc.ListForStudent(f.ctx, student, booking.StatusApproved)
		require.NoError(t, err)
		assert.Equal(t, []string{b2.ID}, ids(got))

		_, err = f.svc.ListForStudent(f.ctx, tutUsr, "")
		assert.Equal(t, booking.ErrForbidden, err)
	})

	t.Run("tutor", func(t *testing.T) {
		got, err := f.svc.ListForTutor(f.ctx, tutUsr, "")
		require.NoError(t, err)
		assert.Equal(t, []string{b3.ID, b2.ID, b1.ID}, ids(got))
		assert.Equal(t, otherStudent.Summary(), got[0].Student)
		assert.Nil(t, got[0].Tutor)

		_, err = f.svc.ListForTutor(f.ctx, student, "")
		assert.Equal(t, booking.ErrForbidden, err)
	})

	t.Run("all, with a deleted participant", func(t *testing.T) {
		require.NoError(t, f.users.DeleteUser(f.ctx, otherStudent.ID))
		got, err := f.svc.ListAll(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{b3.ID, b2.ID, b1.ID}, ids(got))
		assert.Nil(t, got[0].Student)
		assert.Equal(t, student.Summary(), got[1].Student)
	})
}

func TestService_Complete(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Complete(f.ctx, user.User{Role: user.RoleTutor}, "any")
	assert.Equal(t, booking.ErrNotImplemented, err)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, booking.CanTransition(booking.StatusPending, booking.StatusApproved))
	assert.True(t, booking.CanTransition(booking.StatusPending, booking.StatusRejected))
	assert.False(t, booking.CanTransition(booking.StatusApproved, booking.StatusRejected))
	assert.False(t, booking.CanTransition(booking.StatusRejected, booking.StatusApproved))
	assert.False(t, booking.CanTransition(booking.StatusPending, booking.StatusPending))
	assert.True(t, booking.IsTerminal(booking.StatusApproved))
	assert.True(t, booking.IsTerminal(booking.StatusRejected))
	assert.False(t, booking.IsTerminal(booking.StatusPending))
}
