// Package validator performs schema checks on inbound event payloads
// before any state mutation. On failure it returns a single apperr.Error
// whose message concatenates every violation found; state is never
// touched on a validation failure.
package validator

import (
	"regexp"
	"strings"

	"github.com/emmanuelzz0/queezy/internal/apperr"
	"github.com/emmanuelzz0/queezy/internal/avatar"
	"github.com/emmanuelzz0/queezy/internal/constants"
)

var (
	roomCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)
	playerNamePattern = regexp.MustCompile(`^[A-Za-z0-9 ]{1,20}$`)
)

var difficulties = map[string]bool{
	constants.DifficultyEasy:   true,
	constants.DifficultyMedium: true,
	constants.DifficultyHard:   true,
	constants.DifficultyMixed:  true,
}

var answerChoices = map[string]bool{"A": true, "B": true, "C": true, "D": true}

// collector accumulates violation messages so a single call can report
// every problem with a payload at once.
type collector struct {
	violations []string
}

func (c *collector) add(format string) {
	c.violations = append(c.violations, format)
}

func (c *collector) err() error {
	if len(c.violations) == 0 {
		return nil
	}
	return apperr.Validation("%s", strings.Join(c.violations, "; "))
}

// RoomCode checks the 6-character, [A-Z0-9] room code contract.
func RoomCode(code string) error {
	var c collector
	checkRoomCode(&c, code)
	return c.err()
}

func checkRoomCode(c *collector, code string) {
	if !roomCodePattern.MatchString(code) {
		c.add("Invalid room code")
	}
}

// PlayerName checks the 1-20 char, [A-Za-z0-9 ]+ name contract.
func PlayerName(name string) error {
	var c collector
	checkPlayerName(&c, name)
	return c.err()
}

func checkPlayerName(c *collector, name string) {
	if !playerNamePattern.MatchString(name) {
		c.add("Invalid name")
	}
}

// Avatar checks membership in the fixed emoji set.
func Avatar(a string) error {
	var c collector
	checkAvatar(&c, a)
	return c.err()
}

func checkAvatar(c *collector, a string) {
	if !avatar.IsValid(a) {
		c.add("Invalid avatar")
	}
}

// AnswerChoice checks membership in {A, B, C, D}.
func AnswerChoice(choice string) error {
	var c collector
	checkAnswer(&c, choice)
	return c.err()
}

func checkAnswer(c *collector, choice string) {
	if !answerChoices[choice] {
		c.add("Invalid answer")
	}
}

// JoinPayload validates a room:join / room:rejoin player payload in one
// pass, collecting every violation before returning.
func JoinPayload(roomCode, name, avatar string) error {
	var c collector
	checkRoomCode(&c, roomCode)
	checkPlayerName(&c, name)
	if avatar != "" {
		checkAvatar(&c, avatar)
	}
	return c.err()
}

// Settings validates a (possibly partial) RoomSettings update. Zero
// values for fields not present in the partial update should be excluded
// by the caller before calling this — pass only the fields being changed.
type SettingsInput struct {
	HasQuestionCount bool
	QuestionCount    int
	HasTimeLimit     bool
	TimeLimit        int
	HasDifficulty    bool
	Difficulty       string
	HasMaxPlayers    bool
	MaxPlayers       int
	HasMinPlayers    bool
	MinPlayers       int
}

func Settings(in SettingsInput) error {
	var c collector

	if in.HasQuestionCount && (in.QuestionCount < 5 || in.QuestionCount > 30) {
		c.add("Invalid questionCount")
	}
	if in.HasTimeLimit && (in.TimeLimit < 5 || in.TimeLimit > 60) {
		c.add("Invalid timeLimit")
	}
	if in.HasDifficulty && !difficulties[in.Difficulty] {
		c.add("Invalid difficulty")
	}
	if in.HasMaxPlayers && (in.MaxPlayers < 1 || in.MaxPlayers > 50) {
		c.add("Invalid maxPlayers")
	}
	if in.HasMinPlayers && in.MinPlayers < 2 {
		c.add("Invalid minPlayers")
	}

	return c.err()
}
