package chat

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/booking"
	"github.com/trezcool/mwalimu/core/user"
)

const historyLimit = 200

var (
	// errors
	ErrEmptyContent = core.NewFieldError("content", "this field is required")
)

type Message struct {
	ID        string     `json:"id"`
	BookingID string     `json:"booking_id"`
	SenderID  string     `json:"sender_id"` // user ID
	Content   string     `json:"content"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"` // UTC
}

// Received is the payload of the receive_message event.
type Received struct {
	ID        string    `json:"_id"`
	BookingID string    `json:"booking_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func (m Message) Received() Received {
	return Received{
		ID:        m.ID,
		BookingID: m.BookingID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

type NewMessage struct {
	Content string `json:"content"`
}

func (nm *NewMessage) Clean() {
	nm.Content = core.CleanString(nm.Content)
}

type (
	Repository interface {
		CreateMessage(ctx context.Context, m Message) (Message, error)
		// QueryMessages returns the oldest `limit` messages of a booking, oldest first.
		QueryMessages(ctx context.Context, bookingID string, limit int) ([]Message, error)
	}

	// AccessChecker enforces the booking access rule.
	AccessChecker interface {
		CheckAccess(ctx context.Context, usr user.User, bookingID string) (booking.Booking, error)
	}

	Service struct {
		repo        Repository
		access      AccessChecker
		broadcaster core.Broadcaster
	}
)

func NewService(repo Repository, access AccessChecker, broadcaster core.Broadcaster) *Service {
	if broadcaster == nil {
		broadcaster = core.NopBroadcaster{}
	}
	return &Service{repo: repo, access: access, broadcaster: broadcaster}
}

// History returns the messages of a booking the User may access.
func (svc *Service) History(ctx context.Context, usr user.User, bookingID string) ([]Message, error) {
	if _, err := svc.access.CheckAccess(ctx, usr, bookingID); err != nil {
		return nil, err
	}
	msgs, err := svc.repo.QueryMessages(ctx, bookingID, historyLimit)
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

// Send persists a message from usr and emits it to the booking room.
func (svc *Service) Send(ctx context.Context, usr user.User, bookingID string, nm NewMessage) (Message, error) {
	nm.Clean()
	if nm.Content == "" {
		return Message{}, ErrEmptyContent
	}
	if _, err := svc.access.CheckAccess(ctx, usr, bookingID); err != nil {
		return Message{}, err
	}

	m, err := svc.repo.CreateMessage(ctx, Message{
		BookingID: bookingID,
		SenderID:  usr.ID,
		Content:   nm.Content,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}

	svc.broadcaster.Emit(core.BookingRoom(bookingID), core.EventReceiveMessage, m.Received())
	return m, nil
}
