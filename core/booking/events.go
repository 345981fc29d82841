package booking

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/tutor"
)

// Notification types
const (
	NotificationBookingRequested     = "booking_requested"
	NotificationBookingStatusUpdated = "booking_status_updated"
)

// StatusUpdate is emitted to the booking room when a tutor answers.
type StatusUpdate struct {
	BookingID   string  `json:"booking_id"`
	Status      string  `json:"status"`
	MeetingLink *string `json:"meeting_link"`
}

// Notification is emitted to the personal room of a participant.
type Notification struct {
	Type        string     `json:"type"`
	BookingID   string     `json:"booking_id"`
	Status      string     `json:"status"`
	MeetingLink *string    `json:"meeting_link"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Message     string     `json:"message"`
}

// notifyStatus fans the new status out to the booking room, the student's room and the student's inbox.
// Delivery failures are logged and never undo the transition.
func (svc *Service) notifyStatus(ctx context.Context, b Booking, t tutor.Tutor) {
	svc.broadcaster.Emit(core.BookingRoom(b.ID), core.EventBookingStatusUpdated, StatusUpdate{
		BookingID:   b.ID,
		Status:      b.Status,
		MeetingLink: b.MeetingLink,
	})
	svc.broadcaster.Emit(core.UserRoom(b.StudentID), core.EventNotification, Notification{
		Type:        NotificationBookingStatusUpdated,
		BookingID:   b.ID,
		Status:      b.Status,
		MeetingLink: b.MeetingLink,
		Message:     fmt.Sprintf("Your booking was %s.", b.Status),
	})

	if svc.mailSvc == nil {
		return
	}
	student, err := svc.users.GetByID(ctx, b.StudentID)
	if err != nil {
		svc.logError("finding student to notify", err)
		return
	}

	var link string
	if b.MeetingLink != nil {
		link = *b.MeetingLink
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      fmt.Sprintf("Booking %s", b.Status),
		TemplateName: "booking_status",
		TemplateData: map[string]string{
			"TutorName":   t.Name,
			"ScheduledAt": b.ScheduledAt.Format(time.RFC1123),
			"Status":      b.Status,
			"MeetingLink": link,
		},
	})
}
