package echoapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/booking"
	"github.com/trezcool/mwalimu/core/chat"
	"github.com/trezcool/mwalimu/testutil"
)

type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func wsURL(srv *httptest.Server, token string) string {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	return url
}

func wsDial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func wsSend(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"event": event, "data": data}))
}

func wsRead(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f wsFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func Test_socketApi_connect(t *testing.T) {
	e := setup(t)
	srv := httptest.NewServer(e.app)
	t.Cleanup(srv.Close)

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"invalid token", "lol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, tt.token), nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func Test_socketApi_bookingRoom(t *testing.T) {
	e := setup(t)
	srv := httptest.NewServer(e.app)
	t.Cleanup(srv.Close)

	student := testutil.CreateStudent(t, e.users, e.students, "Amina Said", "amina@test.com")
	outsider := testutil.CreateStudent(t, e.users, e.students, "Juma Ali", "juma@test.com")
	tutUsr, tut := testutil.CreateTutor(t, e.users, e.tutors, "Baraka Otieno", "baraka@test.com", testutil.TutorOpts{})
	b := testutil.CreateBooking(t, e.bookings, tut.ID, student.ID, booking.StatusPending)

	tutorConn := wsDial(t, srv, e.getToken(t, tutUsr, tut.ID))
	studentToken := e.getToken(t, student)

	t.Run("unknown event", func(t *testing.T) {
		wsSend(t, tutorConn, "lol", nil)
		f := wsRead(t, tutorConn)
		assert.Equal(t, core.EventError, f.Event)
		assert.JSONEq(t, `{"error": "unknown event"}`, string(f.Data))
	})

	t.Run("outsider cannot join", func(t *testing.T) {
		conn := wsDial(t, srv, e.getToken(t, outsider))
		wsSend(t, conn, core.EventJoinBooking, map[string]string{"booking_id": b.ID})
		f := wsRead(t, conn)
		assert.Equal(t, core.EventError, f.Event)
		assert.JSONEq(t, `{"error": "insufficient permissions"}`, string(f.Data))
	})

	t.Run("join", func(t *testing.T) {
		wsSend(t, tutorConn, core.EventJoinBooking, map[string]string{"booking_id": b.ID})
		f := wsRead(t, tutorConn)
		assert.Equal(t, core.EventJoinedBooking, f.Event)
		assert.JSONEq(t, `{"booking_id": "`+b.ID+`"}`, string(f.Data))
	})

	t.Run("message sent over REST", func(t *testing.T) {
		rec := e.do(http.MethodPost, "/api/chat/bookings/"+b.ID+"/messages", studentToken, []byte(`{"content": " Hello! "}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		f := wsRead(t, tutorConn)
		require.Equal(t, core.EventReceiveMessage, f.Event)
		var msg chat.Received
		require.NoError(t, json.Unmarshal(f.Data, &msg))
		assert.Equal(t, b.ID, msg.BookingID)
		assert.Equal(t, student.ID, msg.SenderID)
		assert.Equal(t, "Hello!", msg.Content)
	})

	t.Run("message sent over the socket", func(t *testing.T) {
		conn := wsDial(t, srv, studentToken)
		wsSend(t, conn, core.EventSendMessage, map[string]string{"booking_id": b.ID, "content": "Are you there?"})

		f := wsRead(t, tutorConn)
		require.Equal(t, core.EventReceiveMessage, f.Event)
		var msg chat.Received
		require.NoError(t, json.Unmarshal(f.Data, &msg))
		assert.Equal(t, "Are you there?", msg.Content)

		rec := e.do(http.MethodGet, "/api/chat/bookings/"+b.ID+"/messages", studentToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), "Are you there?")
	})

	t.Run("booking request notifies the tutor", func(t *testing.T) {
		at := time.Now().Add(96 * time.Hour).Truncate(time.Hour).UTC()
		rec := e.do(http.MethodPost, "/api/bookings", studentToken, marchallObj(t, booking.NewBooking{TutorID: tut.ID, ScheduledAt: at}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		f := wsRead(t, tutorConn)
		require.Equal(t, core.EventNotification, f.Event)
		var n booking.Notification
		require.NoError(t, json.Unmarshal(f.Data, &n))
		assert.Equal(t, booking.NotificationBookingRequested, n.Type)
		assert.Equal(t, booking.StatusPending, n.Status)
		assert.Equal(t, "New booking request from Amina Said.", n.Message)
	})
}
