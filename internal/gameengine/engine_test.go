package gameengine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmanuelzz0/queezy/config"
	"github.com/emmanuelzz0/queezy/internal/apperr"
	"github.com/emmanuelzz0/queezy/internal/archive"
	"github.com/emmanuelzz0/queezy/internal/constants"
	"github.com/emmanuelzz0/queezy/internal/eventbus"
	"github.com/emmanuelzz0/queezy/internal/models"
	"github.com/emmanuelzz0/queezy/internal/roomstore"
	"github.com/emmanuelzz0/queezy/internal/scorer"
)

// fakeStore is an in-memory roomstore.Store: no serialization, no TTL,
// no locking beyond what a single test goroutine needs.
type fakeStore struct {
	mu    sync.Mutex
	rooms map[string]*models.Room
}

func newFakeStore(room *models.Room) *fakeStore {
	return &fakeStore{rooms: map[string]*models.Room{room.Code: room}}
}

func (f *fakeStore) Create(ctx context.Context, code string, room *models.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[code]; ok {
		return roomstore.ErrCodeInUse
	}
	f.rooms[code] = room
	return nil
}

func (f *fakeStore) Get(ctx context.Context, code string) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[code]
	if !ok {
		return nil, apperr.ErrRoomNotFound
	}
	return r, nil
}

func (f *fakeStore) Update(ctx context.Context, code string, mutator roomstore.Mutator) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[code]
	if !ok {
		return nil, apperr.ErrRoomNotFound
	}
	if err := mutator(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (f *fakeStore) Delete(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, code)
	return nil
}

func (f *fakeStore) Exists(ctx context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rooms[code]
	return ok, nil
}

// backdateQuestionStart rewrites the room's QuestionStartTime so a
// subsequent SubmitAnswer computes a controlled elapsed duration instead
// of racing the wall clock.
func (f *fakeStore) backdateQuestionStart(code string, ago time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[code].QuestionStartTime = time.Now().Add(-ago).UnixMilli()
}

// fakeTimers replaces the wall-clock ticks and deadlines of
// timerregistry.Registry with callbacks a test fires by hand.
type fakeTimers struct {
	mu        sync.Mutex
	deadlines map[string]func()
	ticks     map[string]tickHandlers
}

type tickHandlers struct {
	onTick func(int)
	onDone func()
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{deadlines: map[string]func(){}, ticks: map[string]tickHandlers{}}
}

func (f *fakeTimers) SetDeadline(code string, d time.Duration, onFire func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadlines[code] = onFire
}

func (f *fakeTimers) CancelDeadline(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.deadlines, code)
}

func (f *fakeTimers) StartTicks(code string, count int, onTick func(int), onDone func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks[code] = tickHandlers{onTick: onTick, onDone: onDone}
}

func (f *fakeTimers) CancelTicks(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ticks, code)
}

func (f *fakeTimers) Cancel(code string) {
	f.CancelDeadline(code)
	f.CancelTicks(code)
}

func (f *fakeTimers) Forget(code string) {
	f.Cancel(code)
}

// fireDeadline invokes and clears the pending deadline callback for code.
// It is a no-op if nothing has armed one.
func (f *fakeTimers) fireDeadline(code string) {
	f.mu.Lock()
	fn := f.deadlines[code]
	delete(f.deadlines, code)
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// fireTicksDone invokes the onDone callback registered by the most recent
// StartTicks call for code, simulating a countdown or per-question timer
// running out without waiting a full second per tick.
func (f *fakeTimers) fireTicksDone(code string) {
	f.mu.Lock()
	h, ok := f.ticks[code]
	delete(f.ticks, code)
	f.mu.Unlock()
	if ok && h.onDone != nil {
		h.onDone()
	}
}

type broadcastCall struct {
	roomCode string
	event    string
	payload  any
}

// fakeBus is an eventbus.EventBus that only records what was broadcast;
// it has no real socket membership.
type fakeBus struct {
	mu         sync.Mutex
	broadcasts []broadcastCall
}

func (f *fakeBus) Broadcast(roomCode, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, broadcastCall{roomCode, event, payload})
}
func (f *fakeBus) Emit(socketID, event string, payload any)         {}
func (f *fakeBus) JoinRoom(socketID, roomCode string)                {}
func (f *fakeBus) LeaveRoom(socketID, roomCode string)               {}
func (f *fakeBus) ConnData(socketID string) (eventbus.ConnData, bool) { return eventbus.ConnData{}, false }
func (f *fakeBus) SetConnData(socketID string, data eventbus.ConnData) {}
func (f *fakeBus) RoomSocketIDs(roomCode string) []string              { return nil }
func (f *fakeBus) Disconnect(socketID string)                          {}

func (f *fakeBus) last(event string) (broadcastCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.broadcasts) - 1; i >= 0; i-- {
		if f.broadcasts[i].event == event {
			return f.broadcasts[i], true
		}
	}
	return broadcastCall{}, false
}

// fakeArchive records every call instead of publishing to a broker.
type fakeArchive struct {
	mu       sync.Mutex
	starts   []archive.SessionStart
	ends     []archive.SessionEnd
	outcomes []archive.PlayerOutcome
}

func (f *fakeArchive) RecordSessionStart(ctx context.Context, rec archive.SessionStart) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, rec)
}

func (f *fakeArchive) RecordSessionEnd(ctx context.Context, rec archive.SessionEnd) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends = append(f.ends, rec)
}

func (f *fakeArchive) RecordPlayerOutcome(ctx context.Context, rec archive.PlayerOutcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, rec)
}

func newScenarioRoom() *models.Room {
	return &models.Room{
		Code:   "K7MN2P",
		HostID: "host-1",
		Phase:  constants.PhaseLobby,
		Players: []models.Player{
			{ID: "alice", Name: "Alice", Avatar: "🦊", IsConnected: true},
			{ID: "bob", Name: "Bob", Avatar: "🐼", IsConnected: true},
		},
		Questions: []models.Question{
			{
				ID:            "q1",
				Text:          "Q1",
				Options:       map[string]string{"A": "a", "B": "b", "C": "c", "D": "d"},
				CorrectAnswer: "B",
				TimeLimit:     20,
			},
		},
		CurrentAnswers: make(map[string]models.Answer),
		Settings:       models.DefaultSettings(),
	}
}

func newTestEngine(room *models.Room) (*Engine, *fakeStore, *fakeTimers, *fakeBus, *fakeArchive) {
	store := newFakeStore(room)
	timers := newFakeTimers()
	bus := &fakeBus{}
	arc := &fakeArchive{}
	cfg := config.GameConfig{
		CountdownDuration:    3 * time.Second,
		RevealDuration:       2 * time.Second,
		WinnerJingleDuration: time.Second,
		BaseScore:            scorer.Default().BaseScore,
		StreakStep:           scorer.Default().StreakStep,
		StreakCap:            scorer.Default().StreakCap,
		TimeMultiplier:       scorer.Default().TimeMultiplier,
	}
	engine := New(store, bus, timers, nil, arc, nil, cfg)
	return engine, store, timers, bus, arc
}

// TestScenario1_FullRound drives StartGame through SubmitAnswer,
// resolveQuestion and advance into endGame for the two-player, one-question
// round used across this module's fixtures: Alice answers correctly about
// a second into the question and wins; Bob answers wrong and scores nothing.
func TestScenario1_FullRound(t *testing.T) {
	room := newScenarioRoom()
	engine, store, timers, bus, arc := newTestEngine(room)
	ctx := context.Background()
	const code = "K7MN2P"

	require.NoError(t, engine.StartGame(ctx, code, "tv-socket", constants.RoleTV))
	if _, ok := bus.last(constants.EventGameStarting); !ok {
		t.Fatal("expected game:starting broadcast")
	}

	// Countdown finishes -> question(0) begins.
	timers.fireTicksDone(code)
	if _, ok := bus.last(constants.EventGameQuestion); !ok {
		t.Fatal("expected game:question broadcast")
	}

	store.backdateQuestionStart(code, 990*time.Millisecond)
	ok, err := engine.SubmitAnswer(ctx, code, "alice", "B")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.SubmitAnswer(ctx, code, "bob", "A")
	require.NoError(t, err)
	assert.True(t, ok)

	// Bob's answer completes the room, so resolveQuestion ran inline.
	revealCall, ok := bus.last(constants.EventGameReveal)
	require.True(t, ok, "expected game:reveal broadcast once both players answered")
	reveal := revealCall.payload.(GameRevealPayload)
	require.Len(t, reveal.Results, 2)

	var aliceResult, bobResult scorer.QuestionResult
	for _, r := range reveal.Results {
		switch r.PlayerID {
		case "alice":
			aliceResult = r
		case "bob":
			bobResult = r
		}
	}
	assert.True(t, aliceResult.IsCorrect)
	assert.Equal(t, 1475, aliceResult.PointsEarned)
	assert.False(t, bobResult.IsCorrect)
	assert.Equal(t, 0, bobResult.PointsEarned)
	require.NotNil(t, reveal.QuestionWinner)
	assert.Equal(t, "alice", reveal.QuestionWinner.PlayerID)

	// Reveal delay fires -> only question exhausted, so the round ends.
	timers.fireDeadline(code)

	finishedCall, ok := bus.last(constants.EventGameFinished)
	require.True(t, ok, "expected game:finished broadcast")
	finished := finishedCall.payload.(GameFinishedPayload)
	require.NotNil(t, finished.Winner)
	assert.Equal(t, "Alice", finished.Winner.Name)
	require.Len(t, finished.Standings, 2)
	assert.Equal(t, "Alice", finished.Standings[0].Name)
	assert.Equal(t, "Bob", finished.Standings[1].Name)

	require.Len(t, arc.outcomes, 2)
	assert.Equal(t, 1, arc.outcomes[0].FinalRank)
	assert.Equal(t, "Alice", arc.outcomes[0].PlayerName)
	require.Len(t, arc.ends, 1)
	require.Len(t, arc.starts, 1)
}

func TestStartGame_RejectsNonHostCaller(t *testing.T) {
	room := newScenarioRoom()
	engine, _, _, _, _ := newTestEngine(room)

	err := engine.StartGame(context.Background(), room.Code, "socket-1", constants.RolePlayer)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotHost)
}

func TestStartGame_RejectsBelowMinPlayers(t *testing.T) {
	room := newScenarioRoom()
	room.Players = room.Players[:1]
	engine, _, _, _, _ := newTestEngine(room)

	err := engine.StartGame(context.Background(), room.Code, "tv-socket", constants.RoleTV)
	require.Error(t, err)
	assert.Equal(t, apperr.KindPrecondition, apperr.KindOf(err))
}

func TestSubmitAnswer_RejectsDuplicateAnswer(t *testing.T) {
	room := newScenarioRoom()
	room.Phase = constants.PhaseQuestion
	room.QuestionStartTime = time.Now().UnixMilli()
	engine, _, _, _, _ := newTestEngine(room)
	ctx := context.Background()

	_, err := engine.SubmitAnswer(ctx, room.Code, "alice", "B")
	require.NoError(t, err)

	_, err = engine.SubmitAnswer(ctx, room.Code, "alice", "A")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrAlreadyAnswered)
}

func TestSubmitAnswer_RejectsOutsideQuestionPhase(t *testing.T) {
	room := newScenarioRoom()
	room.Phase = constants.PhaseLobby
	engine, _, _, _, _ := newTestEngine(room)

	_, err := engine.SubmitAnswer(context.Background(), room.Code, "alice", "B")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotAcceptingAnswers)
}

// TestPauseResume_RoundTripsRemainingTimeForZeroTimeLimitQuestion covers a
// provider-generated question that never got its own TimeLimit set. Both
// Pause's remaining-time snapshot and Resume's QuestionStartTime
// reconstruction must fall back to Settings.TimeLimit the same way
// transitionIntoQuestion does, or the resumed deadline lands in the past
// (Pause) or the future (Resume) instead of matching what was left.
func TestPauseResume_RoundTripsRemainingTimeForZeroTimeLimitQuestion(t *testing.T) {
	room := newScenarioRoom()
	room.Questions[0].TimeLimit = 0
	room.Phase = constants.PhaseQuestion
	room.QuestionStartTime = time.Now().Add(-5 * time.Second).UnixMilli()
	engine, store, _, bus, _ := newTestEngine(room)
	ctx := context.Background()

	require.NoError(t, engine.Pause(ctx, room.Code, constants.RoleTV))

	paused, err := store.Get(ctx, room.Code)
	require.NoError(t, err)
	require.NotNil(t, paused.Paused)
	// Settings.TimeLimit defaults to 20s; ~15s should remain after a 5s wait.
	assert.InDelta(t, 15000, paused.Paused.RemainingMs, 300)

	require.NoError(t, engine.Resume(ctx, room.Code, constants.RoleTV))

	resumed, err := store.Get(ctx, room.Code)
	require.NoError(t, err)
	assert.Equal(t, constants.PhaseQuestion, resumed.Phase)
	assert.Nil(t, resumed.Paused)

	elapsed := time.Now().UnixMilli() - resumed.QuestionStartTime
	assert.GreaterOrEqual(t, elapsed, int64(0), "resumed QuestionStartTime must not land in the future")
	assert.InDelta(t, 5000, elapsed, 400)

	_, ok := bus.last(constants.EventGameResumed)
	assert.True(t, ok, "expected game:resumed broadcast")
}
