package realtimesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/user"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendQueueSize  = 64
)

// ErrorPayload is the data of the error_message event.
type ErrorPayload struct {
	Error string `json:"error"`
}

// Client is a single websocket connection of a User.
type Client struct {
	ID   string
	User user.User

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, usr user.User) *Client {
	return &Client{
		ID:   uuid.NewString(),
		User: usr,
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
}

// Send queues an event for this client only.
func (c *Client) Send(event string, data interface{}) {
	msg, err := encode(event, data)
	if err != nil {
		c.hub.logger.Error(fmt.Sprintf("encoding %s event: %v", event, err), err)
		return
	}
	c.enqueue(msg)
}

// SendError queues an error_message event.
func (c *Client) SendError(msg string) {
	c.Send(core.EventError, ErrorPayload{Error: msg})
}

// enqueue never blocks: a client whose queue is full is dropped.
func (c *Client) enqueue(msg []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- msg:
	default:
		c.hub.logger.Warn(fmt.Sprintf("dropping slow websocket client %s", c.ID), c.User)
		c.hub.observer.ClientDropped()
		c.drop()
	}
}

// close says goodbye with a close frame before closing the connection.
func (c *Client) close() {
	c.shutdown(true)
}

// drop closes the connection without writing to it: the writer may be stuck on a full socket.
func (c *Client) drop() {
	c.shutdown(false)
}

func (c *Client) shutdown(graceful bool) {
	c.once.Do(func() {
		close(c.done)
		if graceful {
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(writeWait),
			)
		}
		_ = c.conn.Close()
	})
}

func (c *Client) readPump(ctx context.Context, handler EventHandler) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug(fmt.Sprintf("websocket client %s: %v", c.ID, err))
			}
			return
		}

		var env Envelope
		if err = json.Unmarshal(frame, &env); err != nil || env.Event == "" {
			c.SendError("invalid frame")
			continue
		}
		handler.HandleEvent(ctx, c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.drop()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.drop()
				return
			}
		}
	}
}
