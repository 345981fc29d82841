package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/mwalimu/core/booking"
	"github.com/trezcool/mwalimu/core/student"
	"github.com/trezcool/mwalimu/core/tutor"
	"github.com/trezcool/mwalimu/core/user"
)

const DefaultPassword = "p@ssw0rd-123"

func CreateUser(t *testing.T, repo user.Repository, name, email, role string, createdAt ...time.Time) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if err := usr.SetPassword(DefaultPassword); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateStudent creates a student User along with their Student profile.
func CreateStudent(t *testing.T, users user.Repository, students student.Repository, name, email string) user.User {
	t.Helper()
	usr := CreateUser(t, users, name, email, user.RoleStudent)
	now := time.Now().UTC()
	if _, err := students.CreateStudent(context.Background(), student.Student{
		UserID:             usr.ID,
		IsActive:           true,
		SubjectsInterested: []string{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}); err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return usr
}

type TutorOpts struct {
	Subjects     []string
	HourlyRate   float64
	Rating       float64
	ReviewsCount int
	Inactive     bool
	Slots        []time.Time
}

// CreateTutor creates a tutor User along with their Tutor profile.
func CreateTutor(t *testing.T, users user.Repository, tutors tutor.Repository, name, email string, opts TutorOpts) (user.User, tutor.Tutor) {
	t.Helper()
	usr := CreateUser(t, users, name, email, user.RoleTutor)

	subjects := opts.Subjects
	if len(subjects) == 0 {
		subjects = []string{"Mathematics"}
	}
	slots := make([]tutor.Slot, 0, len(opts.Slots))
	for _, at := range opts.Slots {
		slots = append(slots, tutor.Slot{ID: uuid.NewString(), TimeSlot: at.UTC()})
	}

	now := time.Now().UTC()
	tut, err := tutors.CreateTutor(context.Background(), tutor.Tutor{
		UserID:       usr.ID,
		Name:         usr.Name,
		Subject:      subjects[0],
		Experience:   "5 years",
		Subjects:     subjects,
		Languages:    []string{"English"},
		HourlyRate:   opts.HourlyRate,
		Rating:       opts.Rating,
		ReviewsCount: opts.ReviewsCount,
		IsActive:     !opts.Inactive,
		Availability: slots,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateTutor() failed: %v", err)
	}
	return usr, tut
}

func CreateBooking(t *testing.T, repo booking.Repository, tutorID, studentID, status string, createdAt ...time.Time) booking.Booking {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	b, err := repo.CreateBooking(context.Background(), booking.Booking{
		TutorID:     tutorID,
		StudentID:   studentID,
		ScheduledAt: tstamp.Add(48 * time.Hour).Truncate(time.Hour),
		Status:      status,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	})
	if err != nil {
		t.Fatalf("CreateBooking() failed: %v", err)
	}
	return b
}

// Event is an event captured by a Broadcaster.
type Event struct {
	Room string
	Name string
	Data interface{}
}

// Broadcaster records the emitted events.
type Broadcaster struct {
	mu     sync.Mutex
	events []Event
}

func (b *Broadcaster) Emit(room, event string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, Event{Room: room, Name: event, Data: data})
}

func (b *Broadcaster) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	evts := make([]Event, len(b.events))
	copy(evts, b.events)
	return evts
}

func (b *Broadcaster) Reset() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}
