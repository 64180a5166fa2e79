// Package constants holds the string tables shared across the engine:
// room phases, event names, and the fixed alphabets used by the code
// issuer and avatar pool.
package constants

// Phase is one of the six states a Room's game state machine can be in.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseStarting Phase = "starting"
	PhaseQuestion Phase = "question"
	PhaseReveal   Phase = "reveal"
	PhasePaused   Phase = "paused"
	PhaseFinal    Phase = "final"
)

// Client -> server event names.
const (
	EventRoomCreate         = "room:create"
	EventRoomJoin           = "room:join"
	EventRoomRejoin         = "room:rejoin"
	EventRoomLeave          = "room:leave"
	EventRoomKick           = "room:kick"
	EventRoomUpdateSettings = "room:update-settings"
	EventPlayerUpdate       = "player:update"
	EventGameStart          = "game:start"
	EventGameNextQuestion   = "game:next-question"
	EventGamePause          = "game:pause"
	EventGameResume         = "game:resume"
	EventGameEnd            = "game:end"
	EventGameRestart        = "game:restart"
	EventAnswerSubmit       = "answer:submit"
	EventAnswerTimeout      = "answer:timeout"
	EventQuizGenerate       = "quiz:generate"
	EventQuizSelectCategory = "quiz:select-category"
	EventQuizSetOptions     = "quiz:set-options"
)

// Server -> client event names.
const (
	EventRoomCreated            = "room:created"
	EventRoomPlayerJoined       = "room:player-joined"
	EventRoomPlayerRejoined     = "room:player-rejoined"
	EventRoomPlayerLeft         = "room:player-left"
	EventRoomPlayerDisconnected = "room:player-disconnected"
	EventRoomTVDisconnected     = "room:tv-disconnected"
	EventRoomKicked             = "room:kicked"
	EventRoomSettingsUpdated    = "room:settings-updated"
	EventRoomPlayerUpdated      = "room:player-updated"
	EventRoomAllPlayersReady    = "room:all-players-ready"
	EventGameStarting           = "game:starting"
	EventGameCountdown          = "game:countdown"
	EventGameStarted            = "game:started"
	EventGameQuestion           = "game:question"
	EventTimerTick              = "timer:tick"
	EventTimerEnd               = "timer:end"
	EventAnswerReceived         = "answer:received"
	EventPlayerAnswered         = "player:answered"
	EventAnswerAllReceived      = "answer:all-received"
	EventGameReveal             = "game:reveal"
	EventGameFinished           = "game:finished"
	EventGamePaused             = "game:paused"
	EventGameResumed            = "game:resumed"
	EventGameRestarted          = "game:restarted"
	EventQuizGenerating         = "quiz:generating"
	EventQuizGenerated          = "quiz:generated"
	EventQuizCategorySelected   = "quiz:category-selected"
	EventQuizError              = "quiz:error"
)

// Role tags carried on connection data.
const (
	RoleTV     = "tv"
	RolePlayer = "player"
)

// RoomCodeAlphabet omits characters easily confused when read off a shared
// screen: 0/O, I/1/L.
const RoomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const RoomCodeLength = 6

// AvatarSet is the fixed pool of emoji avatars a room can hand out.
var AvatarSet = []string{
	"🦊", "🐼", "🐸", "🐵", "🦁", "🐯", "🐨", "🐰",
	"🦉", "🐙", "🦄", "🐢", "🦋", "🐝", "🦜", "🐬",
}

// Difficulty is the enumerated question-difficulty setting.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
	DifficultyMixed  = "mixed"
)

// AnswerChoices are the four valid multiple-choice keys.
var AnswerChoices = []string{"A", "B", "C", "D"}
