// Package roomstore implements single-writer, read-modify-write access to
// Room records held in Redis. All mutation to the same room code is
// serialized within this process by a per-code mutex; the cache itself
// is the source of truth read back on every operation.
package roomstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/emmanuelzz0/queezy/internal/apperr"
	"github.com/emmanuelzz0/queezy/internal/models"
	"github.com/emmanuelzz0/queezy/pkg/cache"
)

const (
	ttl            = 4 * time.Hour
	activeRoomsKey = "active:rooms"
)

var ErrCodeInUse = apperr.Conflict("Room code already in use")

// Mutator is applied to a Room under the per-code lock during Update. If
// it returns an error, no write happens and the error is propagated to
// the caller unchanged, so RoomManager/GameEngine can surface their own
// apperr.Error (e.g. AlreadyAnswered) without RoomStore reinterpreting it.
type Mutator func(room *models.Room) error

// Store is the surface RoomManager and GameEngine depend on. *RoomStore
// is the sole production implementation; tests can supply a fake.
type Store interface {
	Create(ctx context.Context, code string, room *models.Room) error
	Get(ctx context.Context, code string) (*models.Room, error)
	Update(ctx context.Context, code string, mutator Mutator) (*models.Room, error)
	Delete(ctx context.Context, code string) error
	Exists(ctx context.Context, code string) (bool, error)
}

type RoomStore struct {
	redis cache.Client
	locks sync.Map // code -> *sync.Mutex
}

func New(redis cache.Client) *RoomStore {
	return &RoomStore{redis: redis}
}

func roomKey(code string) string {
	return "room:" + code
}

func (s *RoomStore) lockFor(code string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(code, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Create atomically inserts a brand-new room record, failing with
// ErrCodeInUse if the code is already taken.
func (s *RoomStore) Create(ctx context.Context, code string, room *models.Room) error {
	lock := s.lockFor(code)
	lock.Lock()
	defer lock.Unlock()

	data, err := json.Marshal(room)
	if err != nil {
		return apperr.Conflict("Failed to serialize room")
	}

	ok, err := s.redis.SetNX(ctx, roomKey(code), string(data), ttl)
	if err != nil {
		return apperr.ServiceUnavailable("Failed to create room")
	}
	if !ok {
		return ErrCodeInUse
	}

	if err := s.redis.SAdd(ctx, activeRoomsKey, code); err != nil {
		return apperr.ServiceUnavailable("Failed to register room")
	}
	return nil
}

// Get returns the current room record without acquiring the per-code
// lock; it reflects the last committed write.
func (s *RoomStore) Get(ctx context.Context, code string) (*models.Room, error) {
	data, err := s.redis.Get(ctx, roomKey(code))
	if err == cache.ErrNil {
		return nil, apperr.ErrRoomNotFound
	}
	if err != nil {
		return nil, apperr.ServiceUnavailable("Failed to load room")
	}

	var room models.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return nil, apperr.Conflict("Failed to deserialize room")
	}
	return &room, nil
}

// Update acquires the per-code lock, fetches the current record, applies
// mutator, and writes the result back with a refreshed TTL. The critical
// section covers read, decide, and write, giving this room code a single
// writer at a time.
func (s *RoomStore) Update(ctx context.Context, code string, mutator Mutator) (*models.Room, error) {
	lock := s.lockFor(code)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := mutator(room); err != nil {
		return nil, err
	}

	data, err := json.Marshal(room)
	if err != nil {
		return nil, apperr.Conflict("Failed to serialize room")
	}

	if err := s.redis.Set(ctx, roomKey(code), string(data), ttl); err != nil {
		return nil, apperr.ServiceUnavailable("Failed to save room")
	}
	return room, nil
}

// Delete removes the room record and its active-rooms set membership.
func (s *RoomStore) Delete(ctx context.Context, code string) error {
	lock := s.lockFor(code)
	lock.Lock()
	defer lock.Unlock()

	if err := s.redis.Delete(ctx, roomKey(code)); err != nil {
		return apperr.ServiceUnavailable("Failed to delete room")
	}
	if err := s.redis.SRem(ctx, activeRoomsKey, code); err != nil {
		return apperr.ServiceUnavailable("Failed to unregister room")
	}
	s.locks.Delete(code)
	return nil
}

// Exists reports whether a room record is present, used by RoomCodeIssuer
// during collision retry.
func (s *RoomStore) Exists(ctx context.Context, code string) (bool, error) {
	n, err := s.redis.Exists(ctx, roomKey(code))
	if err != nil {
		return false, apperr.ServiceUnavailable("Failed to check room code")
	}
	return n > 0, nil
}
