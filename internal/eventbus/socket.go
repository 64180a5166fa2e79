package eventbus

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

// ConnData is the opaque per-connection data: room membership,
// subscriber role, and identity. It is set once a connection completes
// room:create or room:join and read by RoomManager/GameEngine for
// authority checks.
type ConnData struct {
	RoomCode string
	Role     string // constants.RoleTV or constants.RolePlayer
	PlayerID string
	DeviceID string
}

// AckFunc delivers a one-shot reply to the socket that sent the inbound
// event carrying it. Calling it more than once is a no-op after the
// first call.
type AckFunc func(payload any)

// Socket is one live connection: a TV or a player. It carries a mutable
// ConnData that starts empty and is filled in on the first successful
// room:create/room:join.
type Socket struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
	bus  *Bus

	mu   sync.RWMutex
	data ConnData
}

func newSocket(id string, conn *websocket.Conn, bus *Bus) *Socket {
	return &Socket{ID: id, conn: conn, send: make(chan []byte, 256), bus: bus}
}

func (s *Socket) Data() ConnData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

func (s *Socket) SetData(d ConnData) {
	s.mu.Lock()
	s.data = d
	s.mu.Unlock()
}

// Emit sends event/payload to this socket only.
func (s *Socket) Emit(event string, payload any) {
	s.write(Envelope{Event: event, Payload: payload})
}

func (s *Socket) write(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("eventbus: failed to marshal envelope for socket %s: %v", s.ID, err)
		return
	}
	select {
	case s.send <- data:
	default:
		log.Printf("eventbus: send buffer full for socket %s, dropping connection", s.ID)
		s.bus.Unregister <- s
	}
}

func (s *Socket) readPump() {
	defer func() {
		s.bus.Unregister <- s
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("eventbus: read error on socket %s: %v", s.ID, err)
			}
			return
		}

		var inbound wireMessage
		if err := json.Unmarshal(raw, &inbound); err != nil {
			log.Printf("eventbus: failed to unmarshal message on socket %s: %v", s.ID, err)
			s.Emit("error", ErrorPayload{Message: "Invalid message format"})
			continue
		}

		callID := inbound.CallID
		var ackOnce sync.Once
		ack := func(payload any) {
			ackOnce.Do(func() {
				s.write(Envelope{Event: inbound.Event + ":ack", CallID: callID, Payload: payload})
			})
		}

		s.bus.HandleMessage <- &InboundMessage{
			Socket:  s,
			Event:   inbound.Event,
			Payload: inbound.Payload,
			Ack:     ack,
		}
	}
}

func (s *Socket) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ErrorPayload is the generic error envelope used outside ack responses,
// e.g. malformed inbound messages.
type ErrorPayload struct {
	Message string `json:"message"`
}
