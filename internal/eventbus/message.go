package eventbus

import "encoding/json"

// wireMessage is the envelope every inbound client frame is decoded
// into: {"event": "room:join", "callId": "...", "payload": {...}}.
// callId is opaque and only used to correlate the ack this socket writes
// back; RoomManager/GameEngine never see it.
type wireMessage struct {
	Event   string          `json:"event"`
	CallID  string          `json:"callId,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Envelope is the outbound frame shape for every emit, broadcast, and
// ack this process writes to a socket.
type Envelope struct {
	Event   string `json:"event"`
	CallID  string `json:"callId,omitempty"`
	Payload any    `json:"payload"`
}

// InboundMessage is one decoded client frame handed to the Dispatcher.
type InboundMessage struct {
	Socket  *Socket
	Event   string
	Payload json.RawMessage
	Ack     AckFunc
}

// Dispatcher routes decoded inbound frames and disconnect notifications
// to whatever owns game state. RoomManager/GameEngine's combined router
// implements this so the transport package stays ignorant of room and
// game semantics.
type Dispatcher interface {
	Dispatch(msg *InboundMessage)
	OnDisconnect(socket *Socket)
}
