package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/emmanuelzz0/queezy/internal/constants"
)

func TestRoomCode(t *testing.T) {
	cases := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{"valid uppercase alnum", "K7MN2P", false},
		{"too short", "K7MN2", true},
		{"lowercase rejected", "k7mn2p", true},
		{"empty", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := RoomCode(tc.code)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPlayerName(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple name", "Alice", false},
		{"with spaces and digits", "Player 2", false},
		{"empty rejected", "", true},
		{"too long rejected", "ThisNameIsWayTooLongToBeValid1", true},
		{"emoji rejected", "Alice🦊", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := PlayerName(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAnswerChoice(t *testing.T) {
	for _, valid := range []string{"A", "B", "C", "D"} {
		assert.NoError(t, AnswerChoice(valid))
	}
	assert.Error(t, AnswerChoice("E"))
	assert.Error(t, AnswerChoice("a"))
	assert.Error(t, AnswerChoice(""))
}

func TestJoinPayload_CollectsAllViolations(t *testing.T) {
	err := JoinPayload("bad", "", "not-an-avatar")
	assert := assert.New(t)
	assert.Error(err)
	assert.Contains(err.Error(), "Invalid room code")
	assert.Contains(err.Error(), "Invalid name")
	assert.Contains(err.Error(), "Invalid avatar")
}

func TestJoinPayload_EmptyAvatarSkipsAvatarCheck(t *testing.T) {
	// Avatar is assigned server-side on join, so an empty avatar in the
	// payload must not be treated as invalid.
	err := JoinPayload("K7MN2P", "Alice", "")
	assert.NoError(t, err)
}

func TestSettings_BoundaryValues(t *testing.T) {
	cases := []struct {
		name    string
		in      SettingsInput
		wantErr bool
	}{
		{"questionCount at floor", SettingsInput{HasQuestionCount: true, QuestionCount: 5}, false},
		{"questionCount below floor", SettingsInput{HasQuestionCount: true, QuestionCount: 4}, true},
		{"questionCount at ceiling", SettingsInput{HasQuestionCount: true, QuestionCount: 30}, false},
		{"questionCount above ceiling", SettingsInput{HasQuestionCount: true, QuestionCount: 31}, true},
		{"timeLimit at floor", SettingsInput{HasTimeLimit: true, TimeLimit: 5}, false},
		{"timeLimit above ceiling", SettingsInput{HasTimeLimit: true, TimeLimit: 61}, true},
		{"minPlayers below floor", SettingsInput{HasMinPlayers: true, MinPlayers: 1}, true},
		{"minPlayers at floor", SettingsInput{HasMinPlayers: true, MinPlayers: 2}, false},
		{"valid difficulty", SettingsInput{HasDifficulty: true, Difficulty: constants.DifficultyMixed}, false},
		{"invalid difficulty", SettingsInput{HasDifficulty: true, Difficulty: "impossible"}, true},
		{"unset fields never checked", SettingsInput{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Settings(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
