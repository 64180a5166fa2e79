// Package eventbus is the transport abstraction: it owns WebSocket
// connections and room membership, and knows nothing about game rules.
// Everything it decodes off the wire is handed to a Dispatcher
// (RoomManager+GameEngine, wired together in cmd/server); the only
// things it produces on its own are targeted emits, room broadcasts,
// and one-shot acks.
package eventbus

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// EventBus is the interface RoomManager and GameEngine depend on. Bus is
// the sole real implementation; tests can supply a fake.
type EventBus interface {
	Broadcast(roomCode, event string, payload any)
	Emit(socketID, event string, payload any)
	JoinRoom(socketID, roomCode string)
	LeaveRoom(socketID, roomCode string)
	ConnData(socketID string) (ConnData, bool)
	SetConnData(socketID string, data ConnData)
	RoomSocketIDs(roomCode string) []string
	Disconnect(socketID string)
}

// Bus is the Hub: one goroutine owns room membership and socket
// bookkeeping; everything else talks to it over channels or its
// exported EventBus methods, which take their own lock.
type Bus struct {
	Register      chan *Socket
	Unregister    chan *Socket
	HandleMessage chan *InboundMessage

	dispatcher Dispatcher

	mu       sync.RWMutex
	sockets  map[string]*Socket   // socketID -> socket
	rooms    map[string]map[string]bool // roomCode -> set of socketID
}

func NewBus(dispatcher Dispatcher) *Bus {
	return &Bus{
		Register:      make(chan *Socket),
		Unregister:    make(chan *Socket),
		HandleMessage: make(chan *InboundMessage),
		dispatcher:    dispatcher,
		sockets:       make(map[string]*Socket),
		rooms:         make(map[string]map[string]bool),
	}
}

// Accept upgrades conn into a tracked Socket and starts its pumps. The
// caller (handlers.WebSocketHandler) owns the HTTP upgrade itself.
func (b *Bus) Accept(conn *websocket.Conn) *Socket {
	s := newSocket(uuid.NewString(), conn, b)
	b.Register <- s
	go s.writePump()
	go s.readPump()
	return s
}

// Run drives the register/unregister/dispatch loop. Call once from
// cmd/server in its own goroutine.
func (b *Bus) Run() {
	for {
		select {
		case s := <-b.Register:
			b.mu.Lock()
			b.sockets[s.ID] = s
			b.mu.Unlock()
			log.Printf("eventbus: socket connected %s", s.ID)

		case s := <-b.Unregister:
			b.removeSocket(s)

		case msg := <-b.HandleMessage:
			b.dispatcher.Dispatch(msg)
		}
	}
}

func (b *Bus) removeSocket(s *Socket) {
	b.mu.Lock()
	if _, ok := b.sockets[s.ID]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.sockets, s.ID)
	for code, members := range b.rooms {
		if members[s.ID] {
			delete(members, s.ID)
			if len(members) == 0 {
				delete(b.rooms, code)
			}
		}
	}
	close(s.send)
	b.mu.Unlock()

	b.dispatcher.OnDisconnect(s)
	log.Printf("eventbus: socket disconnected %s", s.ID)
}

// Disconnect forces a socket closed, e.g. after a room:create/join
// rejection that leaves the connection with no valid role.
func (b *Bus) Disconnect(socketID string) {
	b.mu.RLock()
	s, ok := b.sockets[socketID]
	b.mu.RUnlock()
	if !ok {
		return
	}
	b.Unregister <- s
}

// JoinRoom adds socketID to roomCode's membership set so Broadcast
// reaches it. Idempotent.
func (b *Bus) JoinRoom(socketID, roomCode string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rooms[roomCode] == nil {
		b.rooms[roomCode] = make(map[string]bool)
	}
	b.rooms[roomCode][socketID] = true
}

// LeaveRoom removes socketID from roomCode's membership set without
// closing the connection, used when a player is kicked but the room
// stays open for others.
func (b *Bus) LeaveRoom(socketID, roomCode string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	members := b.rooms[roomCode]
	if members == nil {
		return
	}
	delete(members, socketID)
	if len(members) == 0 {
		delete(b.rooms, roomCode)
	}
}

// Broadcast delivers event/payload to every socket currently joined to
// roomCode.
func (b *Bus) Broadcast(roomCode, event string, payload any) {
	b.mu.RLock()
	members := b.rooms[roomCode]
	targets := make([]*Socket, 0, len(members))
	for id := range members {
		if s, ok := b.sockets[id]; ok {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		s.Emit(event, payload)
	}
}

// Emit delivers event/payload to exactly one socket, if still connected.
func (b *Bus) Emit(socketID, event string, payload any) {
	b.mu.RLock()
	s, ok := b.sockets[socketID]
	b.mu.RUnlock()
	if !ok {
		return
	}
	s.Emit(event, payload)
}

// ConnData returns the connection data for socketID, if it is still
// connected.
func (b *Bus) ConnData(socketID string) (ConnData, bool) {
	b.mu.RLock()
	s, ok := b.sockets[socketID]
	b.mu.RUnlock()
	if !ok {
		return ConnData{}, false
	}
	return s.Data(), true
}

// SetConnData replaces the connection data for socketID, e.g. once
// room:create/room:join succeeds and the socket's role/playerId/room
// are known.
func (b *Bus) SetConnData(socketID string, data ConnData) {
	b.mu.RLock()
	s, ok := b.sockets[socketID]
	b.mu.RUnlock()
	if !ok {
		return
	}
	s.SetData(data)
}

// RoomSocketIDs lists the sockets currently joined to roomCode.
func (b *Bus) RoomSocketIDs(roomCode string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.rooms[roomCode]))
	for id := range b.rooms[roomCode] {
		ids = append(ids, id)
	}
	return ids
}

