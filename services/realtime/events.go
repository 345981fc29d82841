package realtimesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/booking"
	"github.com/trezcool/mwalimu/core/chat"
	"github.com/trezcool/mwalimu/core/user"
)

// error_message texts
const (
	msgInvalidPayload = "invalid payload"
	msgUnknownEvent   = "unknown event"
	msgMissingBooking = "missing booking_id"
	msgMissingFields  = "missing booking_id or content"
	msgForbidden      = "insufficient permissions"
	msgJoinFailed     = "failed to join booking room"
	msgSendFailed     = "failed to send message"
)

type (
	AccessChecker interface {
		CheckAccess(ctx context.Context, usr user.User, bookingID string) (booking.Booking, error)
	}

	MessageSender interface {
		Send(ctx context.Context, usr user.User, bookingID string, nm chat.NewMessage) (chat.Message, error)
	}

	// BookingEvents handles the booking chat events: join_booking, typing & send_message.
	BookingEvents struct {
		hub    *Hub
		access AccessChecker
		chat   MessageSender
		logger core.Logger
	}

	bookingPayload struct {
		BookingID string `json:"booking_id"`
		Content   string `json:"content"`
	}

	Joined struct {
		BookingID string `json:"booking_id"`
	}

	Typing struct {
		BookingID string `json:"booking_id"`
		SenderID  string `json:"sender_id"`
	}
)

var _ EventHandler = (*BookingEvents)(nil) // interface compliance check

func NewBookingEvents(hub *Hub, access AccessChecker, chat MessageSender, logger core.Logger) *BookingEvents {
	return &BookingEvents{hub: hub, access: access, chat: chat, logger: logger}
}

func (be *BookingEvents) HandleEvent(ctx context.Context, c *Client, env Envelope) {
	var p bookingPayload
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.SendError(msgInvalidPayload)
			return
		}
	}
	p.BookingID = core.CleanString(p.BookingID)

	switch env.Event {
	case core.EventJoinBooking:
		be.join(ctx, c, p)
	case core.EventTyping:
		be.typing(ctx, c, p)
	case core.EventSendMessage:
		be.sendMessage(ctx, c, p)
	default:
		c.SendError(msgUnknownEvent)
	}
}

func (be *BookingEvents) join(ctx context.Context, c *Client, p bookingPayload) {
	if p.BookingID == "" {
		c.SendError(msgMissingBooking)
		return
	}
	if _, err := be.access.CheckAccess(ctx, c.User, p.BookingID); err != nil {
		if core.KindOf(err) == core.KindUnknown {
			be.logger.Error(fmt.Sprintf("checking booking access: %v", err), err, c.User)
			c.SendError(msgJoinFailed)
			return
		}
		c.SendError(err.Error())
		return
	}
	be.hub.Join(c, core.BookingRoom(p.BookingID))
	c.Send(core.EventJoinedBooking, Joined{BookingID: p.BookingID})
}

func (be *BookingEvents) typing(ctx context.Context, c *Client, p bookingPayload) {
	if p.BookingID == "" {
		return
	}
	if _, err := be.access.CheckAccess(ctx, c.User, p.BookingID); err != nil {
		return
	}
	be.hub.EmitExcept(core.BookingRoom(p.BookingID), core.EventUserTyping, Typing{
		BookingID: p.BookingID,
		SenderID:  c.User.ID,
	}, c)
}

// sendMessage relies on the chat service to emit receive_message to the booking room.
func (be *BookingEvents) sendMessage(ctx context.Context, c *Client, p bookingPayload) {
	if p.BookingID == "" || strings.TrimSpace(p.Content) == "" {
		c.SendError(msgMissingFields)
		return
	}
	_, err := be.chat.Send(ctx, c.User, p.BookingID, chat.NewMessage{Content: p.Content})
	switch core.KindOf(err) {
	case core.KindUnknown:
		if err != nil {
			be.logger.Error(fmt.Sprintf("sending message: %v", err), err, c.User)
			c.SendError(msgSendFailed)
		}
	case core.KindForbidden, core.KindNotFound:
		c.SendError(msgForbidden)
	default:
		c.SendError(err.Error())
	}
}
