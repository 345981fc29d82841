package core

// Realtime events
const (
	EventJoinBooking          = "join_booking"
	EventJoinedBooking        = "joined_booking"
	EventTyping               = "typing"
	EventUserTyping           = "user_typing"
	EventSendMessage          = "send_message"
	EventReceiveMessage       = "receive_message"
	EventBookingStatusUpdated = "booking_status_updated"
	EventNotification         = "notification"
	EventError                = "error_message"
)

// Broadcaster fans an event out to every connection in a room.
type Broadcaster interface {
	Emit(room, event string, data interface{})
}

// UserRoom is the room every connection of a user joins on connect.
func UserRoom(userID string) string { return "user:" + userID }

// BookingRoom is the room of the participants of a booking.
func BookingRoom(bookingID string) string { return "booking:" + bookingID }

// NopBroadcaster drops every event.
type NopBroadcaster struct{}

func (NopBroadcaster) Emit(string, string, interface{}) {}
