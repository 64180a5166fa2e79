// Package models defines the Room aggregate and its nested value types.
// These are the records RoomStore serializes to and from the cache; they
// carry no behavior of their own beyond small accessors used by
// RoomManager and GameEngine.
package models

import (
	"fmt"
	"time"

	"github.com/emmanuelzz0/queezy/internal/constants"
)

// Room is the top-level aggregate for one game instance, keyed by Code.
type Room struct {
	Code                 string             `json:"code"`
	HostID               string             `json:"hostId"`
	HostName             string             `json:"hostName"`
	Phase                constants.Phase    `json:"phase"`
	Players              []Player           `json:"players"`
	Questions            []Question         `json:"questions"`
	CurrentQuestionIndex int                `json:"currentQuestionIndex"`
	CurrentAnswers       map[string]Answer  `json:"currentAnswers"`
	QuestionStartTime    int64              `json:"questionStartTime,omitempty"`
	Settings             RoomSettings       `json:"settings"`
	CreatedAt            time.Time          `json:"createdAt"`

	// Paused records the state the engine snapshots on game:pause so
	// game:resume can reconstruct a fresh deadline for the remaining
	// question time. Nil outside PhasePaused.
	Paused *PausedState `json:"paused,omitempty"`
}

// PausedState remembers what phase and question a room was in when it was
// paused, so resume can restore a coherent question window instead of
// treating pause as an unrecoverable abort (see DESIGN.md open question 1).
type PausedState struct {
	PriorPhase       constants.Phase `json:"priorPhase"`
	QuestionIndex    int             `json:"questionIndex"`
	RemainingMs      int64           `json:"remainingMs"`
	PausedAt         time.Time       `json:"pausedAt"`
}

// AnswerKey builds the CurrentAnswers map key for a (playerID, questionIndex)
// pair. A player may answer each question index at most once.
func AnswerKey(playerID string, questionIndex int) string {
	return fmt.Sprintf("%s:%d", playerID, questionIndex)
}

// Player is one mobile participant in a room. The TV host is not stored
// as a Player; the room carries it as HostID/HostName.
type Player struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Avatar      string    `json:"avatar"`
	Score       int       `json:"score"`
	Streak      int       `json:"streak"`
	JingleID    string    `json:"jingleId,omitempty"`
	IsConnected bool      `json:"isConnected"`
	IsHost      bool      `json:"isHost"`
	IsReady     bool      `json:"isReady"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Question is one multiple-choice trivia question.
type Question struct {
	ID            string            `json:"id"`
	Text          string            `json:"text"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correctAnswer"`
	TimeLimit     int               `json:"timeLimit"`
	ImageURL      string            `json:"imageUrl,omitempty"`
}

// Answer is one player's submission for one question.
type Answer struct {
	PlayerID        string `json:"playerId"`
	QuestionIndex   int    `json:"questionIndex"`
	Choice          string `json:"answer"`
	ClientTimestamp int64  `json:"timestamp"`
	TimeElapsedMs   int64  `json:"timeElapsed"`
}

// RoomSettings are the host-configurable knobs for a game.
type RoomSettings struct {
	QuestionCount int    `json:"questionCount"`
	TimeLimit     int    `json:"timeLimit"`
	Difficulty    string `json:"difficulty"`
	Category      string `json:"category"`
	MaxPlayers    int    `json:"maxPlayers"`
	MinPlayers    int    `json:"minPlayers"`
}

// DefaultSettings are applied to a freshly created room.
func DefaultSettings() RoomSettings {
	return RoomSettings{
		QuestionCount: 10,
		TimeLimit:     20,
		Difficulty:    constants.DifficultyMedium,
		Category:      "",
		MaxPlayers:    50,
		MinPlayers:    2,
	}
}

// ConnectedPlayers returns the subset of players currently connected.
func (r *Room) ConnectedPlayers() []Player {
	out := make([]Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.IsConnected {
			out = append(out, p)
		}
	}
	return out
}

// FindPlayerByID returns a pointer into r.Players for in-place mutation,
// or nil if no player with that id exists.
func (r *Room) FindPlayerByID(id string) *Player {
	for i := range r.Players {
		if r.Players[i].ID == id {
			return &r.Players[i]
		}
	}
	return nil
}

// FindPlayerByName performs the case-insensitive lookup rejoin and name
// collision checks require.
func (r *Room) FindPlayerByName(name string) *Player {
	lower := lowerASCII(name)
	for i := range r.Players {
		if lowerASCII(r.Players[i].Name) == lower {
			return &r.Players[i]
		}
	}
	return nil
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
