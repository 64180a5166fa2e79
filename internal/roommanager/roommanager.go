// Package roommanager implements the lobby-shape operations by
// composing RoomStore, the avatar Registry, Validator, and EventBus. It
// never touches phase timers or scoring; GameEngine owns those and
// reads Room.Players from RoomStore directly rather than calling into
// RoomManager.
package roommanager

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/emmanuelzz0/queezy/internal/apperr"
	"github.com/emmanuelzz0/queezy/internal/avatar"
	"github.com/emmanuelzz0/queezy/internal/constants"
	"github.com/emmanuelzz0/queezy/internal/eventbus"
	"github.com/emmanuelzz0/queezy/internal/models"
	"github.com/emmanuelzz0/queezy/internal/roomcode"
	"github.com/emmanuelzz0/queezy/internal/roomstore"
	"github.com/emmanuelzz0/queezy/internal/validator"
)

type Manager struct {
	store   roomstore.Store
	issuer  *roomcode.Issuer
	avatars *avatar.Registry
	bus     eventbus.EventBus
}

func New(store roomstore.Store, issuer *roomcode.Issuer, avatars *avatar.Registry, bus eventbus.EventBus) *Manager {
	return &Manager{store: store, issuer: issuer, avatars: avatars, bus: bus}
}

// PlayerInput is the wire shape of the player object nested in
// room:join and room:rejoin payloads.
type PlayerInput struct {
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	JingleID string `json:"jingleId,omitempty"`
}

type CreateRoomResult struct {
	RoomCode string      `json:"roomCode"`
	Room     *models.Room `json:"room"`
}

// CreateRoom draws a fresh code, inserts a lobby-phase room owned by
// socketID, and tags the connection as the TV host.
func (m *Manager) CreateRoom(ctx context.Context, socketID, hostName, deviceID string) (*CreateRoomResult, error) {
	code, err := m.issuer.Issue(ctx)
	if err != nil {
		return nil, err
	}

	hostID := uuid.NewString()
	room := &models.Room{
		Code:           code,
		HostID:         hostID,
		HostName:       hostName,
		Phase:          constants.PhaseLobby,
		Players:        []models.Player{},
		CurrentAnswers: make(map[string]models.Answer),
		Settings:       models.DefaultSettings(),
		CreatedAt:      time.Now(),
	}

	if err := m.store.Create(ctx, code, room); err != nil {
		return nil, err
	}

	m.bus.JoinRoom(socketID, code)
	m.bus.SetConnData(socketID, eventbus.ConnData{
		RoomCode: code,
		Role:     constants.RoleTV,
		PlayerID: hostID,
		DeviceID: deviceID,
	})

	return &CreateRoomResult{RoomCode: code, Room: room}, nil
}

// JoinAsTV re-tags a connection as the room's TV, used when the host's
// screen reloads or a second TV-role connection (e.g. tv-auth) attaches
// to an already-created room. It does not create a Player record.
func (m *Manager) JoinAsTV(ctx context.Context, socketID, roomCode, deviceID string) (*models.Room, error) {
	if err := validator.RoomCode(roomCode); err != nil {
		return nil, err
	}
	room, err := m.store.Get(ctx, roomCode)
	if err != nil {
		return nil, err
	}

	m.bus.JoinRoom(socketID, roomCode)
	m.bus.SetConnData(socketID, eventbus.ConnData{
		RoomCode: roomCode,
		Role:     constants.RoleTV,
		PlayerID: room.HostID,
		DeviceID: deviceID,
	})
	return room, nil
}

type JoinResult struct {
	Player *models.Player `json:"player"`
	Room   *models.Room   `json:"room"`
}

type PlayerJoinedPayload struct {
	Player      models.Player `json:"player"`
	PlayerCount int           `json:"playerCount"`
}

// JoinRoom validates and admits a new player and tags the connection as
// that player's socket. TV connections attach through JoinAsTV instead.
func (m *Manager) JoinRoom(ctx context.Context, socketID, roomCode, deviceID string, in PlayerInput) (*JoinResult, error) {
	if err := validator.JoinPayload(roomCode, in.Name, in.Avatar); err != nil {
		return nil, err
	}

	var joined models.Player
	room, err := m.store.Update(ctx, roomCode, func(r *models.Room) error {
		if r.Phase != constants.PhaseLobby {
			return apperr.ErrGameInProgress
		}
		if len(r.Players) >= r.Settings.MaxPlayers {
			return apperr.ErrRoomFull
		}
		if r.FindPlayerByName(in.Name) != nil {
			return apperr.ErrNameTaken
		}

		pool := m.avatars.For(roomCode)
		av := in.Avatar
		if av == "" {
			av = pool.Acquire()
		} else {
			pool.Mark(av)
		}

		joined = models.Player{
			ID:          uuid.NewString(),
			Name:        in.Name,
			Avatar:      av,
			JingleID:    in.JingleID,
			IsConnected: true,
			JoinedAt:    time.Now(),
		}
		r.Players = append(r.Players, joined)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.bus.JoinRoom(socketID, roomCode)
	m.bus.SetConnData(socketID, eventbus.ConnData{
		RoomCode: roomCode,
		Role:     constants.RolePlayer,
		PlayerID: joined.ID,
		DeviceID: deviceID,
	})

	m.bus.Broadcast(roomCode, constants.EventRoomPlayerJoined, PlayerJoinedPayload{
		Player:      joined,
		PlayerCount: len(room.Players),
	})

	return &JoinResult{Player: &joined, Room: room}, nil
}

type PlayerRejoinedPayload struct {
	OldPlayerID string        `json:"oldPlayerId"`
	Player      models.Player `json:"player"`
}

// RejoinRoom rebinds an existing player record (by case-insensitive
// name) to the current socket, or falls through to JoinRoom if the name
// is unknown and the room is still in lobby.
func (m *Manager) RejoinRoom(ctx context.Context, socketID, roomCode, deviceID string, in PlayerInput) (*JoinResult, error) {
	if err := validator.JoinPayload(roomCode, in.Name, in.Avatar); err != nil {
		return nil, err
	}

	existing, err := m.store.Get(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	if existing.FindPlayerByName(in.Name) == nil {
		if existing.Phase == constants.PhaseLobby {
			return m.JoinRoom(ctx, socketID, roomCode, deviceID, in)
		}
		return nil, apperr.ErrGameInProgress
	}

	var oldPlayerID string
	var rebound models.Player
	room, err := m.store.Update(ctx, roomCode, func(r *models.Room) error {
		p := r.FindPlayerByName(in.Name)
		if p == nil {
			return apperr.NotFound("Player not found")
		}
		oldPlayerID = p.ID
		p.ID = uuid.NewString()
		p.IsConnected = true
		if in.Avatar != "" {
			p.Avatar = in.Avatar
		}
		if in.JingleID != "" {
			p.JingleID = in.JingleID
		}
		rebound = *p
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.bus.JoinRoom(socketID, roomCode)
	m.bus.SetConnData(socketID, eventbus.ConnData{
		RoomCode: roomCode,
		Role:     constants.RolePlayer,
		PlayerID: rebound.ID,
		DeviceID: deviceID,
	})

	m.bus.Broadcast(roomCode, constants.EventRoomPlayerRejoined, PlayerRejoinedPayload{
		OldPlayerID: oldPlayerID,
		Player:      rebound,
	})

	return &JoinResult{Player: &rebound, Room: room}, nil
}

type PlayerLeftPayload struct {
	PlayerID    string `json:"playerId"`
	PlayerCount int    `json:"playerCount"`
}

// LeaveRoom removes the caller's player record outright (distinct from
// a disconnect, which only flips isConnected).
func (m *Manager) LeaveRoom(ctx context.Context, socketID, roomCode, playerID string) error {
	var remaining int
	_, err := m.store.Update(ctx, roomCode, func(r *models.Room) error {
		for i, p := range r.Players {
			if p.ID == playerID {
				m.avatars.For(roomCode).Release(p.Avatar)
				r.Players = append(r.Players[:i], r.Players[i+1:]...)
				break
			}
		}
		remaining = len(r.Players)
		return nil
	})
	if err != nil {
		return err
	}

	m.bus.LeaveRoom(socketID, roomCode)
	m.bus.Broadcast(roomCode, constants.EventRoomPlayerLeft, PlayerLeftPayload{
		PlayerID:    playerID,
		PlayerCount: remaining,
	})
	return nil
}

// KickPlayer removes playerID from the room and notifies them directly,
// then the room at large. Only the room's TV connection may call this.
func (m *Manager) KickPlayer(ctx context.Context, socketID, roomCode, playerID string, callerRole string) error {
	if callerRole != constants.RoleTV {
		return apperr.ErrNotHost
	}

	var kickedSocketID string
	var remaining int
	_, err := m.store.Update(ctx, roomCode, func(r *models.Room) error {
		for i, p := range r.Players {
			if p.ID == playerID {
				m.avatars.For(roomCode).Release(p.Avatar)
				r.Players = append(r.Players[:i], r.Players[i+1:]...)
				break
			}
		}
		remaining = len(r.Players)
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range m.bus.RoomSocketIDs(roomCode) {
		if data, ok := m.bus.ConnData(id); ok && data.PlayerID == playerID {
			kickedSocketID = id
			break
		}
	}

	if kickedSocketID != "" {
		m.bus.Emit(kickedSocketID, constants.EventRoomKicked, struct{}{})
		m.bus.LeaveRoom(kickedSocketID, roomCode)
	}
	m.bus.Broadcast(roomCode, constants.EventRoomPlayerLeft, PlayerLeftPayload{
		PlayerID:    playerID,
		PlayerCount: remaining,
	})
	return nil
}

type SettingsInput struct {
	QuestionCount *int    `json:"questionCount,omitempty"`
	TimeLimit     *int    `json:"timeLimit,omitempty"`
	Difficulty    *string `json:"difficulty,omitempty"`
	Category      *string `json:"category,omitempty"`
	MaxPlayers    *int    `json:"maxPlayers,omitempty"`
	MinPlayers    *int    `json:"minPlayers,omitempty"`
}

type SettingsUpdatedPayload struct {
	Settings models.RoomSettings `json:"settings"`
}

// UpdateSettings shallow-merges a partial settings update, host only.
func (m *Manager) UpdateSettings(ctx context.Context, roomCode string, callerRole string, in SettingsInput) (*models.RoomSettings, error) {
	if callerRole != constants.RoleTV {
		return nil, apperr.ErrNotHost
	}

	valInput := validator.SettingsInput{}
	if in.QuestionCount != nil {
		valInput.HasQuestionCount, valInput.QuestionCount = true, *in.QuestionCount
	}
	if in.TimeLimit != nil {
		valInput.HasTimeLimit, valInput.TimeLimit = true, *in.TimeLimit
	}
	if in.Difficulty != nil {
		valInput.HasDifficulty, valInput.Difficulty = true, *in.Difficulty
	}
	if in.MaxPlayers != nil {
		valInput.HasMaxPlayers, valInput.MaxPlayers = true, *in.MaxPlayers
	}
	if in.MinPlayers != nil {
		valInput.HasMinPlayers, valInput.MinPlayers = true, *in.MinPlayers
	}
	if err := validator.Settings(valInput); err != nil {
		return nil, err
	}

	var updated models.RoomSettings
	_, err := m.store.Update(ctx, roomCode, func(r *models.Room) error {
		if in.QuestionCount != nil {
			r.Settings.QuestionCount = *in.QuestionCount
		}
		if in.TimeLimit != nil {
			r.Settings.TimeLimit = *in.TimeLimit
		}
		if in.Difficulty != nil {
			r.Settings.Difficulty = *in.Difficulty
		}
		if in.Category != nil {
			r.Settings.Category = *in.Category
		}
		if in.MaxPlayers != nil {
			r.Settings.MaxPlayers = *in.MaxPlayers
		}
		if in.MinPlayers != nil {
			r.Settings.MinPlayers = *in.MinPlayers
		}
		updated = r.Settings
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.bus.Broadcast(roomCode, constants.EventRoomSettingsUpdated, SettingsUpdatedPayload{Settings: updated})
	return &updated, nil
}

type CategorySelectedPayload struct {
	CategoryID   string `json:"categoryId"`
	CategoryName string `json:"categoryName"`
}

// SelectCategory records the host's category pick ahead of
// quiz:generate and echoes it to the room so the TV and players' lobby
// screens can display it.
func (m *Manager) SelectCategory(ctx context.Context, roomCode, callerRole, categoryID, categoryName string) error {
	if callerRole != constants.RoleTV {
		return apperr.ErrNotHost
	}
	_, err := m.store.Update(ctx, roomCode, func(r *models.Room) error {
		r.Settings.Category = categoryID
		return nil
	})
	if err != nil {
		return err
	}
	m.bus.Broadcast(roomCode, constants.EventQuizCategorySelected, CategorySelectedPayload{CategoryID: categoryID, CategoryName: categoryName})
	return nil
}

type PlayerUpdateInput struct {
	JingleID *string `json:"jingleId,omitempty"`
	IsReady  *bool   `json:"isReady,omitempty"`
}

type PlayerUpdatedPayload struct {
	Player models.Player `json:"player"`
}

type AllPlayersReadyPayload struct{}

// UpdatePlayer applies a partial self-update (jingle choice, ready
// flag) and, if every connected player is now ready and the room meets
// its minimum, broadcasts room:all-players-ready.
func (m *Manager) UpdatePlayer(ctx context.Context, roomCode, playerID string, in PlayerUpdateInput) (*models.Player, error) {
	var updated models.Player
	var allReady bool

	room, err := m.store.Update(ctx, roomCode, func(r *models.Room) error {
		p := r.FindPlayerByID(playerID)
		if p == nil {
			return apperr.NotFound("Player not found")
		}
		if in.JingleID != nil {
			p.JingleID = *in.JingleID
		}
		if in.IsReady != nil {
			p.IsReady = *in.IsReady
		}
		updated = *p

		connected := r.ConnectedPlayers()
		if len(connected) < r.Settings.MinPlayers {
			return nil
		}
		allReady = true
		for _, cp := range connected {
			if !cp.IsReady {
				allReady = false
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.bus.Broadcast(roomCode, constants.EventRoomPlayerUpdated, PlayerUpdatedPayload{Player: updated})
	if allReady {
		m.bus.Broadcast(roomCode, constants.EventRoomAllPlayersReady, AllPlayersReadyPayload{})
	}
	_ = room
	return &updated, nil
}

type TVDisconnectedPayload struct{}

type PlayerDisconnectedPayload struct {
	PlayerID string `json:"playerId"`
}

// OnDisconnect handles a socket dropping without an explicit
// room:leave. A TV disconnect is announced but leaves the room intact
// (GameEngine decides whether to pause); a player disconnect flips
// isConnected without removing them, so score/streak survive a rejoin.
func (m *Manager) OnDisconnect(ctx context.Context, data eventbus.ConnData) {
	if data.RoomCode == "" {
		return
	}

	if data.Role == constants.RoleTV {
		m.bus.Broadcast(data.RoomCode, constants.EventRoomTVDisconnected, TVDisconnectedPayload{})
		return
	}

	_, err := m.store.Update(ctx, data.RoomCode, func(r *models.Room) error {
		p := r.FindPlayerByID(data.PlayerID)
		if p != nil {
			p.IsConnected = false
		}
		return nil
	})
	if err != nil {
		return
	}
	m.bus.Broadcast(data.RoomCode, constants.EventRoomPlayerDisconnected, PlayerDisconnectedPayload{PlayerID: data.PlayerID})
}
