// Package archive implements the SessionArchive sink: an async,
// best-effort record of completed game sessions, published to RabbitMQ
// and never read back on the hot path.
package archive

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/emmanuelzz0/queezy/pkg/messaging"
)

// Archive is the interface GameEngine depends on. Failures are always
// logged and swallowed by the caller — archival never blocks or fails
// a game in progress.
type Archive interface {
	RecordSessionStart(ctx context.Context, rec SessionStart)
	RecordSessionEnd(ctx context.Context, rec SessionEnd)
	RecordPlayerOutcome(ctx context.Context, rec PlayerOutcome)
}

type SessionStart struct {
	RoomCode      string    `json:"roomCode"`
	HostName      string    `json:"hostName"`
	Category      string    `json:"category"`
	QuestionCount int       `json:"questionCount"`
	PlayerCount   int       `json:"playerCount"`
	StartedAt     time.Time `json:"startedAt"`
}

type SessionEnd struct {
	RoomCode string    `json:"roomCode"`
	EndedAt  time.Time `json:"endedAt"`
}

type PlayerOutcome struct {
	SessionRef     string `json:"sessionRef"`
	FinalRank      int    `json:"finalRank"`
	FinalScore     int    `json:"finalScore"`
	PlayerName     string `json:"playerName"`
	TotalQuestions int    `json:"totalQuestions"`
}

const (
	queueSessionStart    = "archive.session.start"
	queueSessionEnd      = "archive.session.end"
	queuePlayerOutcome   = "archive.player.outcome"
	publishTimeout       = 5 * time.Second
)

// RabbitMQ publishes archive records fire-and-forget. Nothing here ever
// returns an error to its caller: GameEngine must never let archival
// failures affect gameplay.
type RabbitMQ struct {
	client *messaging.RabbitMQClient
}

func NewRabbitMQ(client *messaging.RabbitMQClient) *RabbitMQ {
	return &RabbitMQ{client: client}
}

func (a *RabbitMQ) RecordSessionStart(ctx context.Context, rec SessionStart) {
	a.publish(ctx, queueSessionStart, rec)
}

func (a *RabbitMQ) RecordSessionEnd(ctx context.Context, rec SessionEnd) {
	a.publish(ctx, queueSessionEnd, rec)
}

func (a *RabbitMQ) RecordPlayerOutcome(ctx context.Context, rec PlayerOutcome) {
	a.publish(ctx, queuePlayerOutcome, rec)
}

func (a *RabbitMQ) publish(ctx context.Context, queue string, rec any) {
	body, err := json.Marshal(rec)
	if err != nil {
		log.Printf("archive: failed to marshal record for %s: %v", queue, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := a.client.Publish(ctx, queue, body); err != nil {
		log.Printf("archive: failed to publish to %s: %v", queue, err)
	}
}
