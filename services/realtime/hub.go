package realtimesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/user"
)

type (
	// Envelope is the JSON frame exchanged in both directions.
	Envelope struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data,omitempty"`
	}

	outbound struct {
		Event string      `json:"event"`
		Data  interface{} `json:"data"`
	}

	// EventHandler handles the inbound frames of a client.
	EventHandler interface {
		HandleEvent(ctx context.Context, c *Client, env Envelope)
	}

	// Observer is notified of the hub activity.
	Observer interface {
		ClientConnected()
		ClientDisconnected()
		ClientDropped()
		EventEmitted(event string)
	}

	nopObserver struct{}
)

func (nopObserver) ClientConnected()    {}
func (nopObserver) ClientDisconnected() {}
func (nopObserver) ClientDropped()      {}
func (nopObserver) EventEmitted(string) {}

// Hub keeps track of the connected clients and the rooms they joined.
type Hub struct {
	logger   core.Logger
	observer Observer

	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

var _ core.Broadcaster = (*Hub)(nil) // interface compliance check

func NewHub(logger core.Logger, observer Observer) *Hub {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Hub{
		logger:   logger,
		observer: observer,
		rooms:    make(map[string]map[*Client]struct{}),
		clients:  make(map[*Client]struct{}),
	}
}

// Serve runs the connection of usr until either side closes it. The Hub owns conn from now on.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, usr user.User, handler EventHandler) {
	c := newClient(h, conn, usr)
	if !h.register(c) {
		_ = conn.Close()
		return
	}
	defer h.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Join(c, core.UserRoom(usr.ID))
	h.observer.ClientConnected()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	c.readPump(ctx, handler)
	c.close()
	<-writerDone

	h.unregister(c)
	h.observer.ClientDisconnected()
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	for room, members := range h.rooms {
		if _, ok := members[c]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
}

func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// RoomSize returns the number of clients in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Emit sends the event to every client in the room.
func (h *Hub) Emit(room, event string, data interface{}) {
	h.emit(room, event, data, nil)
}

// EmitExcept sends the event to every client in the room but one.
func (h *Hub) EmitExcept(room, event string, data interface{}, except *Client) {
	h.emit(room, event, data, except)
}

func (h *Hub) emit(room, event string, data interface{}, except *Client) {
	msg, err := encode(event, data)
	if err != nil {
		h.logger.Error(fmt.Sprintf("encoding %s event: %v", event, err), err)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	h.observer.EventEmitted(event)
	for _, c := range targets {
		c.enqueue(msg)
	}
}

// Close disconnects every client and waits for their connections to wind down.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	h.wg.Wait()
}

func encode(event string, data interface{}) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: data})
}
