// Package router implements eventbus.Dispatcher: it decodes each
// inbound wire event into a typed payload, calls the RoomManager or
// GameEngine operation that owns it, and writes the ack. It is a thin
// decode+validate edge that replaces runtime ad-hoc payload shapes with
// compile-time typed request records.
package router

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/emmanuelzz0/queezy/internal/apperr"
	"github.com/emmanuelzz0/queezy/internal/constants"
	"github.com/emmanuelzz0/queezy/internal/eventbus"
	"github.com/emmanuelzz0/queezy/internal/gameengine"
	"github.com/emmanuelzz0/queezy/internal/roommanager"
	"github.com/emmanuelzz0/queezy/internal/validator"
)

type Router struct {
	rooms               *roommanager.Manager
	engine              *gameengine.Engine
	hostReconnectWindow time.Duration
}

func New(rooms *roommanager.Manager, engine *gameengine.Engine, hostReconnectWindow time.Duration) *Router {
	return &Router{rooms: rooms, engine: engine, hostReconnectWindow: hostReconnectWindow}
}

type ack struct {
	Success bool `json:"success"`
	Error   string `json:"error,omitempty"`
}

func ok() ack { return ack{Success: true} }

func failed(err error) ack {
	return ack{Success: false, Error: err.Error()}
}

// Dispatch is called on the Bus's single dispatch goroutine, so inbound
// events from all rooms are handled one at a time; each room's mutations
// are additionally serialized by RoomStore's per-code lock.
func (rt *Router) Dispatch(msg *eventbus.InboundMessage) {
	ctx := context.Background()

	switch msg.Event {
	case constants.EventRoomCreate:
		rt.handleRoomCreate(ctx, msg)
	case constants.EventRoomJoin:
		rt.handleRoomJoin(ctx, msg)
	case constants.EventRoomRejoin:
		rt.handleRoomRejoin(ctx, msg)
	case constants.EventRoomLeave:
		rt.handleRoomLeave(ctx, msg)
	case constants.EventRoomKick:
		rt.handleRoomKick(ctx, msg)
	case constants.EventRoomUpdateSettings:
		rt.handleUpdateSettings(ctx, msg)
	case constants.EventPlayerUpdate:
		rt.handlePlayerUpdate(ctx, msg)
	case constants.EventGameStart:
		rt.handleGameStart(ctx, msg)
	case constants.EventGameNextQuestion:
		rt.handleForceAdvance(ctx, msg)
	case constants.EventGamePause:
		rt.handleSimple(ctx, msg, rt.engine.Pause)
	case constants.EventGameResume:
		rt.handleSimple(ctx, msg, rt.engine.Resume)
	case constants.EventGameEnd:
		rt.handleSimple(ctx, msg, rt.engine.EndGame)
	case constants.EventGameRestart:
		rt.handleSimple(ctx, msg, rt.engine.Restart)
	case constants.EventAnswerSubmit:
		rt.handleAnswerSubmit(ctx, msg)
	case constants.EventAnswerTimeout:
		rt.handleForceAdvance(ctx, msg)
	case constants.EventQuizGenerate:
		rt.handleQuizGenerate(ctx, msg)
	case constants.EventQuizSelectCategory:
		rt.handleQuizSelectCategory(ctx, msg)
	case constants.EventQuizSetOptions:
		rt.handleUpdateSettings(ctx, msg)
	default:
		log.Printf("router: unknown event %q from socket %s", msg.Event, msg.Socket.ID)
		msg.Ack(failed(apperr.Validation("Unknown event %q", msg.Event)))
	}
}

// OnDisconnect forwards a dropped connection to RoomManager and, for a
// TV socket, starts the bounded reconnection window instead of leaving
// the game running with no host.
func (rt *Router) OnDisconnect(socket *eventbus.Socket) {
	ctx := context.Background()
	data := socket.Data()
	rt.rooms.OnDisconnect(ctx, data)

	if data.Role != constants.RoleTV || data.RoomCode == "" {
		return
	}
	roomCode := data.RoomCode
	if err := rt.engine.Pause(ctx, roomCode, constants.RoleTV); err != nil {
		return
	}
	rt.engine.ArmHostReconnectTimeout(roomCode, rt.hostReconnectWindow, func() {
		rt.engine.EndGame(context.Background(), roomCode, constants.RoleTV)
	})
}

func decode[T any](msg *eventbus.InboundMessage) (T, error) {
	var v T
	if len(msg.Payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		return v, apperr.Validation("Malformed payload")
	}
	return v, nil
}

type roomCodePayload struct {
	RoomCode string `json:"roomCode"`
}

// handleSimple covers the four bare-{roomCode} game control events that
// share the same shape and only differ in which Engine method to call.
func (rt *Router) handleSimple(ctx context.Context, msg *eventbus.InboundMessage, op func(ctx context.Context, roomCode, role string) error) {
	in, err := decode[roomCodePayload](msg)
	if err != nil {
		msg.Ack(failed(err))
		return
	}
	data := msg.Socket.Data()
	roomCode := in.RoomCode
	if roomCode == "" {
		roomCode = data.RoomCode
	}
	if err := op(ctx, roomCode, data.Role); err != nil {
		msg.Ack(failed(err))
		return
	}
	msg.Ack(ok())
}

type createRoomPayload struct {
	HostName string `json:"hostName"`
	DeviceID string `json:"deviceId"`
}

func (rt *Router) handleRoomCreate(ctx context.Context, msg *eventbus.InboundMessage) {
	in, err := decode[createRoomPayload](msg)
	if err != nil {
		msg.Ack(failed(err))
		return
	}
	res, err := rt.rooms.CreateRoom(ctx, msg.Socket.ID, in.HostName, in.DeviceID)
	if err != nil {
		msg.Ack(failed(err))
		return
	}
	msg.Ack(struct {
		ack
		RoomCode string      `json:"roomCode"`
		Room     interface{} `json:"room"`
	}{ok(), res.RoomCode, res.Room})
}

type roomJoinPayload struct {
	RoomCode string                      `json:"roomCode"`
	Type     string                      `json:"type"`
	Player   *roommanager.PlayerInput    `json:"player,omitempty"`
	DeviceID string                      `json:"deviceId"`
}

func (rt *Router) handleRoomJoin(ctx context.Context, msg *eventbus.InboundMessage) {
	in, err := decode[roomJoinPayload](msg)
	if err != nil {
		msg.Ack(failed(err))
		return
	}

	if in.Type == constants.RoleTV {
		room, err := rt.rooms.JoinAsTV(ctx, msg.Socket.ID, in.RoomCode, in.DeviceID)
		if err != nil {
			msg.Ack(failed(err))
			return
		}
		rt.engine.CancelHostReconnectTimeout(in.RoomCode)
		rt.engine.MaybeAutoResume(ctx, in.RoomCode)
		msg.Ack(struct {
			ack
			Room interface{} `json:"room"`
		}{ok(), room})
		return
	}

	var player roommanager.PlayerInput
	if in.Player != nil {
		player = *in.Player
	}
	res, err := rt.rooms.JoinRoom(ctx, msg.Socket.ID, in.RoomCode, in.DeviceID, player)
	if err != nil {
		msg.Ack(failed(err))
		return
	}
	msg.Ack(struct {
		ack
		Player interface{} `json:"player"`
		Room   interface{} `json:"room"`
	}{ok(), res.Player, res.Room})
}

type roomRejoinPayload struct {
	RoomCode        string `json:"roomCode"`
	PlayerName      string `json:"playerName"`
	PlayerAvatar    string `json:"playerAvatar,omitempty"`
	PlayerJingleID  string `json:"playerJingleId,omitempty"`
	DeviceID        string `json:"deviceId"`
}

func (rt *Router) handleRoomRejoin(ctx context.Context, msg *eventbus.InboundMessage) {
	in, err := decode[roomRejoinPayload](msg)
	if err != nil {
		msg.Ack(failed(err))
		return
	}
	res, err := rt.rooms.RejoinRoom(ctx, msg.Socket.ID, in.RoomCode, in.DeviceID, roommanager.PlayerInput{
		Name:     in.PlayerName,
		Avatar:   in.PlayerAvatar,
		JingleID: in.PlayerJingleID,
	})
	if err != nil {
		msg.Ack(failed(err))
		return
	}
	msg.Ack(struct {
		ack
		Player interface{} `json:"player"`
		Room   interface{} `json:"room"`
	}{ok(), res.Player, res.Room})
}

func (rt *Router) handleRoomLeave(ctx context.Context, msg *eventbus.InboundMessage) {
	in, err := decode[roomCodePayload](msg)
	if err != nil {
		msg.Ack(failed(err))
		return
	}
	data := msg.Socket.Data()
	roomCode := in.RoomCode
	if roomCode == "" {
		roomCode = data.RoomCode
	}
	if err := rt.rooms.LeaveRoom(ctx, msg.Socket.ID, roomCode, data.PlayerID); err != nil {
		msg.Ack(failed(err))
		return
	}
	msg.Ack(ok())
}

type roomKickPayload struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

func (rt *Router) handleRoomKick(ctx context.Context, msg *eventbus.InboundMessage) {
	in, err := decode[roomKickPayload](msg)
	if err != nil {
		msg.Ack(failed(err))
		return
	}
	data := msg.Socket.Data()
	if err := rt.rooms.KickPlayer(ctx, msg.Socket.ID, in.RoomCode, in.PlayerID, data.Role); err != nil {
		msg.Ack(failed(err))
		return
	}
	msg.Ack(ok())
}

type updateSettingsPayload struct {
	RoomCode string                    `json:"roomCode"`
	Settings roommanager.SettingsInput `json:"settings"`
}

func (rt *Router) handleUpdateSettings(ctx context.Context, msg *eventbus.InboundMessage) {
	in, err := decode[updateSettingsPayload](msg)
	if err != nil {
		msg.Ack(failed(err))
		return
	}
	data := msg.Socket.Data()
	roomCode := in.RoomCode
	if roomCode == "" {
		roomCode = data.RoomCode
	}
	settings, err := rt.rooms.UpdateSettings(ctx, roomCode, data.Role, in.Settings)
	if err != nil {
		msg.Ack(failed(err))
		return
	}
	msg.Ack(struct {
		ack
		Settings interface{} `json:"settings"`
	}{ok(), settings})
}

type playerUpdatePayload struct {
	RoomCode string  `json:"roomCode"`
	JingleID *string `json:"jingleId,omitempty"`
	IsReady  *bool   `json:"isReady,omitempty"`
}

func (rt *Router) handlePlayerUpdate(ctx context.Context, msg *eventbus.InboundMessage) {
	in, err := decode[playerUpdatePayload](msg)
	if err != nil {
		msg.Ack(failed(err))
		return
	}
	data := msg.Socket.Data()
	roomCode := in.RoomCode
	if roomCode == "" {
		roomCode = data.RoomCode
	}
	player, err := rt.rooms.UpdatePlayer(ctx, roomCode, data.PlayerID, roommanager.PlayerUpdateInput{
		JingleID: in.JingleID,
		IsReady:  in.IsReady,
	})
	if err != nil {
		msg.Ack(failed(err))
		return
	}
	msg.Ack(struct {
		ack
		Player interface{} `json:"player"`
	}{ok(), player})
}

func (rt *Router) handleGameStart(ctx context.Context, msg *eventbus.InboundMessage) {
	in, err := decode[roomCodePayload](msg)
	if err != nil {
		msg.Ack(failed(err))
		return
	}
	data := msg.Socket.Data()
	roomCode := in.RoomCode
	if roomCode == "" {
		roomCode = data.RoomCode
	}
	if err := rt.engine.StartGame(ctx, roomCode, msg.Socket.ID, data.Role); err != nil {
		msg.Ack(failed(err))
		return
	}
	msg.Ack(ok())
}

func (rt *Router) handleForceAdvance(ctx context.Context, msg *eventbus.InboundMessage) {
	in, err := decode[roomCodePayload](msg)
	if err != nil {
		msg.Ack(failed(err))
		return
	}
	data := msg.Socket.Data()
	roomCode := in.RoomCode
	if roomCode == "" {
		roomCode = data.RoomCode
	}
	if err := rt.engine.ForceAdvance(ctx, roomCode, data.Role); err != nil {
		msg.Ack(failed(err))
		return
	}
	msg.Ack(ok())
}

type answerSubmitPayload struct {
	RoomCode  string `json:"roomCode"`
	Answer    string `json:"answer"`
	Timestamp int64  `json:"timestamp"`
}

func (rt *Router) handleAnswerSubmit(ctx context.Context, msg *eventbus.InboundMessage) {
	in, err := decode[answerSubmitPayload](msg)
	if err != nil {
		msg.Ack(failed(err))
		return
	}
	if err := validator.AnswerChoice(in.Answer); err != nil {
		msg.Ack(failed(err))
		return
	}
	data := msg.Socket.Data()
	roomCode := in.RoomCode
	if roomCode == "" {
		roomCode = data.RoomCode
	}
	accepted, err := rt.engine.SubmitAnswer(ctx, roomCode, data.PlayerID, in.Answer)
	if err != nil {
		msg.Ack(failed(err))
		return
	}
	msg.Ack(struct {
		ack
		Accepted bool `json:"accepted"`
	}{ok(), accepted})
}

type quizGeneratePayload struct {
	RoomCode      string `json:"roomCode"`
	Category      string `json:"category"`
	QuestionCount int    `json:"questionCount"`
	Difficulty    string `json:"difficulty,omitempty"`
}

func (rt *Router) handleQuizGenerate(ctx context.Context, msg *eventbus.InboundMessage) {
	in, err := decode[quizGeneratePayload](msg)
	if err != nil {
		msg.Ack(failed(err))
		return
	}
	data := msg.Socket.Data()
	roomCode := in.RoomCode
	if roomCode == "" {
		roomCode = data.RoomCode
	}
	count, err := rt.engine.GenerateQuestions(ctx, roomCode, data.Role, in.Category, in.Difficulty, in.QuestionCount)
	if err != nil {
		msg.Ack(failed(err))
		return
	}
	msg.Ack(struct {
		ack
		Questions int `json:"questions"`
	}{ok(), count})
}

type quizSelectCategoryPayload struct {
	RoomCode     string `json:"roomCode"`
	CategoryID   string `json:"categoryId"`
	CategoryName string `json:"categoryName"`
}

func (rt *Router) handleQuizSelectCategory(ctx context.Context, msg *eventbus.InboundMessage) {
	in, err := decode[quizSelectCategoryPayload](msg)
	if err != nil {
		msg.Ack(failed(err))
		return
	}
	data := msg.Socket.Data()
	roomCode := in.RoomCode
	if roomCode == "" {
		roomCode = data.RoomCode
	}
	if err := rt.rooms.SelectCategory(ctx, roomCode, data.Role, in.CategoryID, in.CategoryName); err != nil {
		msg.Ack(failed(err))
		return
	}
	msg.Ack(ok())
}
