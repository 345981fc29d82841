package booking

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/tutor"
	"github.com/trezcool/mwalimu/core/user"
)

// Statuses
const (
	StatusPending  = "Pending"
	StatusApproved = "Approved"
	StatusRejected = "Rejected"
)

// Tutor responses
const (
	ResponseAccept = "accept"
	ResponseReject = "reject"
)

var (
	AllStatuses = []string{StatusPending, StatusApproved, StatusRejected}

	// transitions lists the statuses reachable from each status. Approved and Rejected are terminal.
	transitions = map[string][]string{
		StatusPending: {StatusApproved, StatusRejected},
	}
)

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to string) bool {
	return core.Contains(transitions[from], to)
}

// IsTerminal reports whether no transition leaves the status.
func IsTerminal(status string) bool {
	return len(transitions[status]) == 0
}

type Booking struct {
	ID          string    `json:"id"`
	TutorID     string    `json:"tutor_id"`
	StudentID   string    `json:"student_id"` // user ID
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`
	MeetingLink *string   `json:"meeting_link"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC

	// SlotReserved is set when the booking holds the tutor's slot at ScheduledAt.
	SlotReserved bool `json:"-"`
}

// Detail is a Booking with its participants.
type Detail struct {
	Booking
	Tutor   *tutor.Summary `json:"tutor,omitempty"`
	Student *user.Summary  `json:"student,omitempty"`
}

type NewBooking struct {
	TutorID     string    `json:"tutor_id" validate:"required"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

func (nb *NewBooking) Validate(validate *validator.Validate) error {
	nb.TutorID = core.CleanString(nb.TutorID)
	return validate.Struct(nb)
}

// Response is a tutor's answer to a pending Booking.
type Response struct {
	Response    string `json:"response"`
	MeetingLink string `json:"meeting_link"`
}

func (r *Response) Clean() {
	r.Response = core.CleanString(r.Response)
	r.MeetingLink = core.CleanString(r.MeetingLink)
}

// Transition is a conditional status update: it only applies to the booking
// `ID` of tutor `TutorID` while its status is still `From`.
type Transition struct {
	ID          string
	TutorID     string
	From        string
	To          string
	MeetingLink *string
	At          time.Time
}

// QueryFilter applies AND operation on its non-zero fields.
// CreatedFrom is inclusive, CreatedTo is exclusive.
type QueryFilter struct {
	StudentID   string
	TutorID     string
	Status      string
	CreatedFrom time.Time
	CreatedTo   time.Time
}

// StatusCounts tallies bookings per status.
type StatusCounts struct {
	Total    int `json:"total_bookings"`
	Pending  int `json:"pending_count"`
	Approved int `json:"approved_count"`
	Rejected int `json:"rejected_count"`
}

func CountStatuses(bookings []Booking) StatusCounts {
	counts := StatusCounts{Total: len(bookings)}
	for _, b := range bookings {
		switch b.Status {
		case StatusPending:
			counts.Pending++
		case StatusApproved:
			counts.Approved++
		case StatusRejected:
			counts.Rejected++
		}
	}
	return counts
}
