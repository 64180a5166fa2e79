package roomstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmanuelzz0/queezy/internal/apperr"
	"github.com/emmanuelzz0/queezy/internal/models"
	"github.com/emmanuelzz0/queezy/pkg/cache"
)

// fakeRedis is an in-memory cache.Client standing in for a real Redis
// connection, so RoomStore's locking and TTL behavior can be exercised
// without a broker.
type fakeRedis struct {
	mu      sync.Mutex
	strings map[string]string
	sets    map[string]map[string]bool
	ttlSeen []time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{strings: make(map[string]string), sets: make(map[string]map[string]bool)}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strings[key] = value.(string)
	f.ttlSeen = append(f.ttlSeen, expiration)
	return nil
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.strings[key]
	if !ok {
		return "", cache.ErrNil
	}
	return v, nil
}

func (f *fakeRedis) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.strings, k)
	}
	return nil
}

func (f *fakeRedis) Exists(ctx context.Context, keys ...string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.strings[k]; ok {
			n++
		}
	}
	return n, nil
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.strings[key]; ok {
		return false, nil
	}
	f.strings[key] = value.(string)
	f.ttlSeen = append(f.ttlSeen, expiration)
	return true, nil
}

func (f *fakeRedis) SAdd(ctx context.Context, key string, members ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sets[key] == nil {
		f.sets[key] = make(map[string]bool)
	}
	for _, m := range members {
		f.sets[key][m.(string)] = true
	}
	return nil
}

func (f *fakeRedis) SRem(ctx context.Context, key string, members ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range members {
		delete(f.sets[key], m.(string))
	}
	return nil
}

func newTestRoom(code string) *models.Room {
	return &models.Room{
		Code:           code,
		Players:        []models.Player{{ID: "p1", Name: "Alice"}},
		CurrentAnswers: make(map[string]models.Answer),
		Settings:       models.DefaultSettings(),
	}
}

func TestCreate_InsertsRoomAndRegistersActiveSet(t *testing.T) {
	redis := newFakeRedis()
	store := New(redis)
	room := newTestRoom("AAAAAA")

	require.NoError(t, store.Create(context.Background(), room.Code, room))
	assert.Contains(t, redis.strings, roomKey(room.Code))
	assert.True(t, redis.sets[activeRoomsKey][room.Code])
}

func TestCreate_RejectsCollidingCode(t *testing.T) {
	redis := newFakeRedis()
	store := New(redis)
	room := newTestRoom("BBBBBB")
	require.NoError(t, store.Create(context.Background(), room.Code, room))

	err := store.Create(context.Background(), room.Code, newTestRoom(room.Code))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCodeInUse)
}

func TestGet_ReturnsErrRoomNotFoundWhenAbsent(t *testing.T) {
	store := New(newFakeRedis())

	_, err := store.Get(context.Background(), "ZZZZZZ")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrRoomNotFound)
}

func TestUpdate_MutatesAndRefreshesTTL(t *testing.T) {
	redis := newFakeRedis()
	store := New(redis)
	room := newTestRoom("CCCCCC")
	require.NoError(t, store.Create(context.Background(), room.Code, room))

	updated, err := store.Update(context.Background(), room.Code, func(r *models.Room) error {
		r.Players[0].Score = 42
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, updated.Players[0].Score)

	reloaded, err := store.Get(context.Background(), room.Code)
	require.NoError(t, err)
	assert.Equal(t, 42, reloaded.Players[0].Score)

	require.NotEmpty(t, redis.ttlSeen)
	assert.Equal(t, ttl, redis.ttlSeen[len(redis.ttlSeen)-1])
}

func TestUpdate_MutatorErrorLeavesStoredRecordUnchanged(t *testing.T) {
	redis := newFakeRedis()
	store := New(redis)
	room := newTestRoom("DDDDDD")
	require.NoError(t, store.Create(context.Background(), room.Code, room))
	before := redis.strings[roomKey(room.Code)]

	sentinel := apperr.Conflict("nope")
	_, err := store.Update(context.Background(), room.Code, func(r *models.Room) error {
		r.Players[0].Score = 999
		return sentinel
	})
	require.Error(t, err)
	assert.Same(t, sentinel, err)
	assert.Equal(t, before, redis.strings[roomKey(room.Code)])
}

func TestDelete_RemovesRecordAndActiveSetMembership(t *testing.T) {
	redis := newFakeRedis()
	store := New(redis)
	room := newTestRoom("EEEEEE")
	require.NoError(t, store.Create(context.Background(), room.Code, room))

	require.NoError(t, store.Delete(context.Background(), room.Code))
	assert.NotContains(t, redis.strings, roomKey(room.Code))
	assert.False(t, redis.sets[activeRoomsKey][room.Code])

	_, err := store.Get(context.Background(), room.Code)
	assert.ErrorIs(t, err, apperr.ErrRoomNotFound)
}

func TestExists_ReflectsCurrentRecord(t *testing.T) {
	redis := newFakeRedis()
	store := New(redis)
	room := newTestRoom("FFFFFF")

	ok, err := store.Exists(context.Background(), room.Code)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Create(context.Background(), room.Code, room))
	ok, err = store.Exists(context.Background(), room.Code)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestUpdate_SerializesConcurrentWrites exercises the per-code lock: many
// goroutines racing a read-increment-write against the same room must not
// lose updates the way an unlocked read-modify-write would.
func TestUpdate_SerializesConcurrentWrites(t *testing.T) {
	redis := newFakeRedis()
	store := New(redis)
	room := newTestRoom("GGGGGG")
	require.NoError(t, store.Create(context.Background(), room.Code, room))

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := store.Update(context.Background(), room.Code, func(r *models.Room) error {
				r.Players[0].Score++
				return nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	final, err := store.Get(context.Background(), room.Code)
	require.NoError(t, err)
	assert.Equal(t, n, final.Players[0].Score)
}
