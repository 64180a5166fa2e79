// Package gameengine drives the per-room phase state machine: starting
// a game, delivering questions on a synchronized timer, admitting
// answers, resolving and scoring each question, and advancing through
// to the final standings.
package gameengine

import (
	"context"
	"log"
	"time"

	"github.com/emmanuelzz0/queezy/config"
	"github.com/emmanuelzz0/queezy/internal/apperr"
	"github.com/emmanuelzz0/queezy/internal/archive"
	"github.com/emmanuelzz0/queezy/internal/avatar"
	"github.com/emmanuelzz0/queezy/internal/constants"
	"github.com/emmanuelzz0/queezy/internal/eventbus"
	"github.com/emmanuelzz0/queezy/internal/models"
	"github.com/emmanuelzz0/queezy/internal/questionpipeline"
	"github.com/emmanuelzz0/queezy/internal/roomstore"
	"github.com/emmanuelzz0/queezy/internal/scorer"
	"github.com/emmanuelzz0/queezy/internal/timerregistry"
)

type Engine struct {
	store    roomstore.Store
	bus      eventbus.EventBus
	timers   timerregistry.Timers
	pipeline *questionpipeline.Pipeline
	archive  archive.Archive
	avatars  *avatar.Registry
	scorer   scorer.Config
	cfg      config.GameConfig
}

func New(store roomstore.Store, bus eventbus.EventBus, timers timerregistry.Timers, pipeline *questionpipeline.Pipeline, arc archive.Archive, avatars *avatar.Registry, cfg config.GameConfig) *Engine {
	return &Engine{
		store:    store,
		bus:      bus,
		timers:   timers,
		pipeline: pipeline,
		archive:  arc,
		avatars:  avatars,
		scorer:   scorer.Config{BaseScore: cfg.BaseScore, StreakStep: cfg.StreakStep, StreakCap: cfg.StreakCap, TimeMultiplier: cfg.TimeMultiplier},
		cfg:      cfg,
	}
}

// --- Outbound payload shapes ---

type GameStartingPayload struct {
	Countdown int `json:"countdown"`
}

type GameCountdownPayload struct {
	Count int `json:"count"`
}

type GameStartedPayload struct {
	Phase           string `json:"phase"`
	QuestionCount   int    `json:"questionCount"`
	CurrentQuestion int    `json:"currentQuestion"`
}

type PublicQuestion struct {
	Text      string            `json:"text"`
	Options   map[string]string `json:"options"`
	TimeLimit int               `json:"timeLimit"`
	ImageURL  string            `json:"imageUrl,omitempty"`
}

type GameQuestionPayload struct {
	QuestionIndex  int            `json:"questionIndex"`
	TotalQuestions int            `json:"totalQuestions"`
	Question       PublicQuestion `json:"question"`
	TimeLimit      int            `json:"timeLimit"`
}

type TimerTickPayload struct {
	TimeRemaining int `json:"timeRemaining"`
}

type TimerEndPayload struct{}

type AnswerReceivedPayload struct {
	PlayerID    string `json:"playerId"`
	AnswerCount int    `json:"answerCount"`
	TotalPlayers int   `json:"totalPlayers"`
}

type AnswerAllReceivedPayload struct{}

type GameRevealPayload struct {
	CorrectAnswer  string                    `json:"correctAnswer"`
	Results        []scorer.QuestionResult   `json:"results"`
	Standings      []scorer.LeaderboardEntry `json:"standings"`
	QuestionWinner *scorer.QuestionResult    `json:"questionWinner,omitempty"`
}

type GameFinishedPayload struct {
	Standings []scorer.LeaderboardEntry `json:"standings"`
	Winner    *scorer.LeaderboardEntry  `json:"winner,omitempty"`
}

type GamePausedPayload struct{}

type GameResumedPayload struct {
	Phase         string `json:"phase"`
	QuestionIndex int    `json:"questionIndex"`
	RemainingMs   int64  `json:"remainingMs"`
}

type GameRestartedPayload struct {
	Phase string `json:"phase"`
}

type QuizGeneratingPayload struct{}

type QuizGeneratedPayload struct {
	Questions int `json:"questions"`
}

// StartGame validates preconditions (the question set must already have
// been populated by a prior quiz:generate; this only refuses to start
// without any) and begins the countdown into question(0).
func (e *Engine) StartGame(ctx context.Context, roomCode, callerSocketID, callerRole string) error {
	if callerRole != constants.RoleTV {
		return apperr.ErrNotHost
	}

	room, err := e.store.Get(ctx, roomCode)
	if err != nil {
		return err
	}
	if len(room.Players) < room.Settings.MinPlayers {
		return apperr.Precondition("Need at least %d players", room.Settings.MinPlayers)
	}
	if len(room.Questions) == 0 {
		return apperr.Precondition("No questions loaded")
	}

	e.archive.RecordSessionStart(ctx, archive.SessionStart{
		RoomCode:      roomCode,
		HostName:      room.HostName,
		Category:      room.Settings.Category,
		QuestionCount: len(room.Questions),
		PlayerCount:   len(room.Players),
		StartedAt:     time.Now(),
	})

	if _, err := e.store.Update(ctx, roomCode, func(r *models.Room) error {
		r.Phase = constants.PhaseStarting
		return nil
	}); err != nil {
		return err
	}

	e.bus.Broadcast(roomCode, constants.EventGameStarting, GameStartingPayload{Countdown: int(e.cfg.CountdownDuration.Seconds())})

	count := int(e.cfg.CountdownDuration.Seconds())
	e.timers.StartTicks(roomCode, count, func(remaining int) {
		e.bus.Broadcast(roomCode, constants.EventGameCountdown, GameCountdownPayload{Count: remaining})
	}, func() {
		e.onCountdownDone(roomCode)
	})

	return nil
}

func (e *Engine) onCountdownDone(roomCode string) {
	ctx := context.Background()
	room, err := e.store.Get(ctx, roomCode)
	if err != nil || room.Phase != constants.PhaseStarting {
		return
	}

	e.bus.Broadcast(roomCode, constants.EventGameStarted, GameStartedPayload{
		Phase:           string(constants.PhaseQuestion),
		QuestionCount:   len(room.Questions),
		CurrentQuestion: 0,
	})
	e.transitionIntoQuestion(ctx, roomCode, 0)
}

// questionTimeLimit returns q's own TimeLimit, falling back to the room's
// configured default when a provider-generated question left it unset.
func questionTimeLimit(q models.Question, settings models.RoomSettings) int {
	if q.TimeLimit <= 0 {
		return settings.TimeLimit
	}
	return q.TimeLimit
}

// transitionIntoQuestion moves the room into the question phase: it
// resets the per-question answer set, sets the current index, strips
// the correct answer from the broadcast payload, and arms the answer
// deadline.
func (e *Engine) transitionIntoQuestion(ctx context.Context, roomCode string, index int) {
	room, err := e.store.Update(ctx, roomCode, func(r *models.Room) error {
		if index < 0 || index >= len(r.Questions) {
			return apperr.Precondition("No question at index %d", index)
		}
		r.CurrentAnswers = make(map[string]models.Answer)
		r.QuestionStartTime = time.Now().UnixMilli()
		r.CurrentQuestionIndex = index
		r.Phase = constants.PhaseQuestion
		return nil
	})
	if err != nil {
		log.Printf("gameengine: transition into question %d for room %s failed: %v", index, roomCode, err)
		return
	}

	q := room.Questions[index]
	timeLimit := questionTimeLimit(q, room.Settings)

	e.bus.Broadcast(roomCode, constants.EventGameQuestion, GameQuestionPayload{
		QuestionIndex:  index,
		TotalQuestions: len(room.Questions),
		Question: PublicQuestion{
			Text:      q.Text,
			Options:   q.Options,
			TimeLimit: timeLimit,
			ImageURL:  q.ImageURL,
		},
		TimeLimit: timeLimit,
	})

	e.timers.StartTicks(roomCode, timeLimit, func(remaining int) {
		e.bus.Broadcast(roomCode, constants.EventTimerTick, TimerTickPayload{TimeRemaining: remaining})
	}, func() {
		e.bus.Broadcast(roomCode, constants.EventTimerEnd, TimerEndPayload{})
	})

	deadline := time.Duration(timeLimit+1) * time.Second
	e.timers.SetDeadline(roomCode, deadline, func() {
		e.resolveQuestion(context.Background(), roomCode, index)
	})
}

// SubmitAnswer implements answer admission during the current question
// phase: one answer per player per question, rejected once the
// deadline has passed or the phase has moved on.
func (e *Engine) SubmitAnswer(ctx context.Context, roomCode, playerID, choice string) (bool, error) {
	var index int
	var answerCount, totalPlayers int
	var shouldResolve bool

	_, err := e.store.Update(ctx, roomCode, func(r *models.Room) error {
		if r.Phase != constants.PhaseQuestion {
			return apperr.ErrNotAcceptingAnswers
		}
		index = r.CurrentQuestionIndex
		key := models.AnswerKey(playerID, index)
		if _, exists := r.CurrentAnswers[key]; exists {
			return apperr.ErrAlreadyAnswered
		}

		elapsed := time.Now().UnixMilli() - r.QuestionStartTime
		r.CurrentAnswers[key] = models.Answer{
			PlayerID:      playerID,
			QuestionIndex: index,
			Choice:        choice,
			TimeElapsedMs: elapsed,
		}

		totalPlayers = len(r.ConnectedPlayers())
		for _, a := range r.CurrentAnswers {
			if a.QuestionIndex == index {
				answerCount++
			}
		}
		shouldResolve = answerCount >= totalPlayers && totalPlayers > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	payload := AnswerReceivedPayload{PlayerID: playerID, AnswerCount: answerCount, TotalPlayers: totalPlayers}
	e.bus.Broadcast(roomCode, constants.EventAnswerReceived, payload)
	e.bus.Broadcast(roomCode, constants.EventPlayerAnswered, payload)

	if shouldResolve {
		e.timers.CancelDeadline(roomCode)
		e.bus.Broadcast(roomCode, constants.EventAnswerAllReceived, AnswerAllReceivedPayload{})
		e.resolveQuestion(ctx, roomCode, index)
	}

	return true, nil
}

// resolveQuestion scores every player's answer, moves the room into
// reveal with the ranked results and leaderboard, and schedules the
// advance to the next question or final standings.
func (e *Engine) resolveQuestion(ctx context.Context, roomCode string, index int) {
	var results []scorer.QuestionResult
	var standings []scorer.LeaderboardEntry
	var correctAnswer string
	var winnerIdx int

	room, err := e.store.Update(ctx, roomCode, func(r *models.Room) error {
		if r.Phase != constants.PhaseQuestion || r.CurrentQuestionIndex != index {
			return apperr.Precondition("stale resolve")
		}

		q := r.Questions[index]
		q.TimeLimit = questionTimeLimit(q, r.Settings)
		correctAnswer = q.CorrectAnswer

		answers := make(map[string]models.Answer)
		for k, a := range r.CurrentAnswers {
			if a.QuestionIndex == index {
				answers[k] = a
			}
		}

		results = e.scorer.ComputeResults(r.Players, q, answers, index)
		for _, res := range results {
			p := r.FindPlayerByID(res.PlayerID)
			if p == nil {
				continue
			}
			p.Score = res.NewScore
			p.Streak = res.Streak
		}

		standings = scorer.RankLeaderboard(r.Players)
		winnerIdx = scorer.Winner(results)
		r.Phase = constants.PhaseReveal
		return nil
	})
	if err != nil {
		return
	}

	var winner *scorer.QuestionResult
	if winnerIdx >= 0 {
		w := results[winnerIdx]
		winner = &w
	}

	e.bus.Broadcast(roomCode, constants.EventGameReveal, GameRevealPayload{
		CorrectAnswer:  correctAnswer,
		Results:        results,
		Standings:      standings,
		QuestionWinner: winner,
	})

	revealDelay := e.cfg.RevealDuration
	if winner != nil {
		revealDelay += e.cfg.WinnerJingleDuration
	}
	e.timers.SetDeadline(roomCode, revealDelay, func() {
		e.advance(context.Background(), roomCode, room)
	})
}

func (e *Engine) advance(ctx context.Context, roomCode string, room *models.Room) {
	next := room.CurrentQuestionIndex + 1
	if next < len(room.Questions) {
		e.transitionIntoQuestion(ctx, roomCode, next)
		return
	}
	e.endGame(ctx, roomCode)
}

func (e *Engine) endGame(ctx context.Context, roomCode string) {
	room, err := e.store.Update(ctx, roomCode, func(r *models.Room) error {
		r.Phase = constants.PhaseFinal
		return nil
	})
	if err != nil {
		return
	}
	e.timers.Cancel(roomCode)

	standings := scorer.RankLeaderboard(room.Players)
	var winner *scorer.LeaderboardEntry
	if len(standings) > 0 {
		winner = &standings[0]
	}
	e.bus.Broadcast(roomCode, constants.EventGameFinished, GameFinishedPayload{Standings: standings, Winner: winner})

	e.archive.RecordSessionEnd(ctx, archive.SessionEnd{RoomCode: roomCode, EndedAt: time.Now()})
	for rank, entry := range standings {
		e.archive.RecordPlayerOutcome(ctx, archive.PlayerOutcome{
			SessionRef:     roomCode,
			FinalRank:      rank + 1,
			FinalScore:     entry.Score,
			PlayerName:     entry.Name,
			TotalQuestions: len(room.Questions),
		})
	}
}

// ForceAdvance lets the host cut a question short (the game:next-question
// and answer:timeout wire events both resolve to this): cancel the
// running deadline and resolve immediately instead of waiting for it to
// fire naturally.
func (e *Engine) ForceAdvance(ctx context.Context, roomCode, callerRole string) error {
	if callerRole != constants.RoleTV {
		return apperr.ErrNotHost
	}
	room, err := e.store.Get(ctx, roomCode)
	if err != nil {
		return err
	}
	if room.Phase != constants.PhaseQuestion {
		return apperr.Precondition("Room is not in question phase")
	}
	e.timers.CancelDeadline(roomCode)
	e.resolveQuestion(ctx, roomCode, room.CurrentQuestionIndex)
	return nil
}

// EndGame implements the host-initiated any->final transition.
func (e *Engine) EndGame(ctx context.Context, roomCode, callerRole string) error {
	if callerRole != constants.RoleTV {
		return apperr.ErrNotHost
	}
	e.endGame(ctx, roomCode)
	return nil
}

// Pause snapshots the in-flight question's remaining time into a
// dedicated paused phase rather than dropping back to lobby, so Resume
// can reconstruct a coherent deadline.
func (e *Engine) Pause(ctx context.Context, roomCode, callerRole string) error {
	if callerRole != constants.RoleTV {
		return apperr.ErrNotHost
	}

	_, err := e.store.Update(ctx, roomCode, func(r *models.Room) error {
		if r.Phase == constants.PhasePaused || r.Phase == constants.PhaseLobby || r.Phase == constants.PhaseFinal {
			return apperr.Precondition("Cannot pause from phase %s", r.Phase)
		}
		remaining := int64(0)
		if r.Phase == constants.PhaseQuestion {
			timeLimit := questionTimeLimit(r.Questions[r.CurrentQuestionIndex], r.Settings)
			elapsed := time.Now().UnixMilli() - r.QuestionStartTime
			remaining = int64(timeLimit)*1000 - elapsed
			if remaining < 0 {
				remaining = 0
			}
		}
		r.Paused = &models.PausedState{
			PriorPhase:    r.Phase,
			QuestionIndex: r.CurrentQuestionIndex,
			RemainingMs:   remaining,
			PausedAt:      time.Now(),
		}
		r.Phase = constants.PhasePaused
		return nil
	})
	if err != nil {
		return err
	}

	e.timers.Cancel(roomCode)
	e.bus.Broadcast(roomCode, constants.EventGamePaused, GamePausedPayload{})
	return nil
}

// Resume restores the phase the room was paused from, rearming a
// deadline for the question's remaining time when applicable.
func (e *Engine) Resume(ctx context.Context, roomCode, callerRole string) error {
	if callerRole != constants.RoleTV {
		return apperr.ErrNotHost
	}

	var paused *models.PausedState
	_, err := e.store.Update(ctx, roomCode, func(r *models.Room) error {
		if r.Phase != constants.PhasePaused || r.Paused == nil {
			return apperr.Precondition("Room is not paused")
		}
		paused = r.Paused
		r.Phase = paused.PriorPhase
		r.Paused = nil
		if paused.PriorPhase == constants.PhaseQuestion {
			timeLimit := questionTimeLimit(r.Questions[paused.QuestionIndex], r.Settings)
			r.QuestionStartTime = time.Now().UnixMilli() - (int64(timeLimit)*1000 - paused.RemainingMs)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.bus.Broadcast(roomCode, constants.EventGameResumed, GameResumedPayload{
		Phase:         string(paused.PriorPhase),
		QuestionIndex: paused.QuestionIndex,
		RemainingMs:   paused.RemainingMs,
	})

	if paused.PriorPhase == constants.PhaseQuestion {
		remaining := time.Duration(paused.RemainingMs) * time.Millisecond
		e.timers.SetDeadline(roomCode, remaining, func() {
			e.resolveQuestion(context.Background(), roomCode, paused.QuestionIndex)
		})
		e.timers.StartTicks(roomCode, int(remaining.Seconds()), func(r int) {
			e.bus.Broadcast(roomCode, constants.EventTimerTick, TimerTickPayload{TimeRemaining: r})
		}, func() {
			e.bus.Broadcast(roomCode, constants.EventTimerEnd, TimerEndPayload{})
		})
	}

	return nil
}

// ArmHostReconnectTimeout starts the bounded reconnection window after a
// TV disconnect. The caller must have already paused the room; onExpire
// is invoked if no TV socket rejoins in time.
func (e *Engine) ArmHostReconnectTimeout(roomCode string, d time.Duration, onExpire func()) {
	e.timers.SetDeadline(roomCode, d, onExpire)
}

// CancelHostReconnectTimeout stops a pending reconnect-window deadline,
// called once the TV socket rejoins.
func (e *Engine) CancelHostReconnectTimeout(roomCode string) {
	e.timers.CancelDeadline(roomCode)
}

// MaybeAutoResume resumes a room that was paused by a TV disconnect, if
// the TV socket has rejoined before the reconnect window expired. It is
// a no-op for a room that wasn't paused (e.g. a host reconnecting
// during ordinary lobby browsing).
func (e *Engine) MaybeAutoResume(ctx context.Context, roomCode string) error {
	room, err := e.store.Get(ctx, roomCode)
	if err != nil {
		return err
	}
	if room.Phase != constants.PhasePaused {
		return nil
	}
	return e.Resume(ctx, roomCode, constants.RoleTV)
}

// Restart returns a finished (or in-progress) room to a fresh lobby:
// scores and streaks zeroed, questions/answers cleared, players kept.
func (e *Engine) Restart(ctx context.Context, roomCode, callerRole string) error {
	if callerRole != constants.RoleTV {
		return apperr.ErrNotHost
	}

	e.timers.Cancel(roomCode)

	room, err := e.store.Update(ctx, roomCode, func(r *models.Room) error {
		for i := range r.Players {
			r.Players[i].Score = 0
			r.Players[i].Streak = 0
		}
		r.Questions = nil
		r.CurrentAnswers = make(map[string]models.Answer)
		r.CurrentQuestionIndex = 0
		r.QuestionStartTime = 0
		r.Paused = nil
		r.Phase = constants.PhaseLobby
		return nil
	})
	if err != nil {
		return err
	}

	pool := e.avatars.For(roomCode)
	pool.Reset()
	for _, p := range room.Players {
		pool.Mark(p.Avatar)
	}

	e.bus.Broadcast(roomCode, constants.EventGameRestarted, GameRestartedPayload{Phase: string(constants.PhaseLobby)})
	return nil
}

// GenerateQuestions runs QuestionPipeline for the given category,
// difficulty and count and stores the resulting question set on the
// room, recording the category (and a non-empty difficulty) in its
// settings, host only.
func (e *Engine) GenerateQuestions(ctx context.Context, roomCode, callerRole, category, difficulty string, count int) (int, error) {
	if callerRole != constants.RoleTV {
		return 0, apperr.ErrNotHost
	}

	e.bus.Broadcast(roomCode, constants.EventQuizGenerating, QuizGeneratingPayload{})

	questions, err := e.pipeline.Generate(ctx, category, difficulty, count, nil)
	if err != nil {
		e.bus.Broadcast(roomCode, constants.EventQuizError, ErrorPayload{Message: err.Error()})
		return 0, err
	}

	if _, err := e.store.Update(ctx, roomCode, func(r *models.Room) error {
		r.Questions = questions
		r.Settings.Category = category
		if difficulty != "" {
			r.Settings.Difficulty = difficulty
		}
		return nil
	}); err != nil {
		return 0, err
	}

	e.bus.Broadcast(roomCode, constants.EventQuizGenerated, QuizGeneratedPayload{Questions: len(questions)})
	return len(questions), nil
}

type ErrorPayload struct {
	Message string `json:"message"`
}
