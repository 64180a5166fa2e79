// Package avatar hands out unique emoji avatars per room from a fixed
// set, releasing them on player exit.
package avatar

import (
	"math/rand/v2"
	"sync"

	"github.com/emmanuelzz0/queezy/internal/constants"
)

// Pool tracks in-use avatars for a single room. Not shared across rooms.
type Pool struct {
	mu     sync.Mutex
	inUse  map[string]bool
}

func NewPool() *Pool {
	return &Pool{inUse: make(map[string]bool)}
}

// Acquire returns an unused avatar chosen pseudorandomly. If every avatar
// in the set is already in use it falls back to a random one anyway
// rather than failing the join.
func (p *Pool) Acquire() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	free := make([]string, 0, len(constants.AvatarSet))
	for _, a := range constants.AvatarSet {
		if !p.inUse[a] {
			free = append(free, a)
		}
	}

	var chosen string
	if len(free) > 0 {
		chosen = free[rand.IntN(len(free))]
	} else {
		chosen = constants.AvatarSet[rand.IntN(len(constants.AvatarSet))]
	}
	p.inUse[chosen] = true
	return chosen
}

// Release removes an avatar from the in-use set so a later Acquire can
// hand it back out.
func (p *Pool) Release(avatar string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inUse, avatar)
}

// Reset clears the in-use set, e.g. on room restart.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inUse = make(map[string]bool)
}

// Mark records avatar as in-use without drawing it, used when rebuilding
// pool state from a room record already loaded from the store.
func (p *Pool) Mark(avatar string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inUse[avatar] = true
}

// IsValid reports whether avatar is a member of the fixed set, used by
// Validator.
func IsValid(avatar string) bool {
	for _, a := range constants.AvatarSet {
		if a == avatar {
			return true
		}
	}
	return false
}

// Registry hands out one Pool per room code. It is per-process, in-memory,
// and not authoritative: on process restart these are rebuilt implicitly
// as join events arrive.
type Registry struct {
	mu    sync.Mutex
	pools map[string]*Pool
}

func NewRegistry() *Registry {
	return &Registry{pools: make(map[string]*Pool)}
}

// For returns the Pool for code, creating it on first use.
func (r *Registry) For(code string) *Pool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[code]
	if !ok {
		p = NewPool()
		r.pools[code] = p
	}
	return p
}

// Drop discards a room's pool entirely, e.g. on room delete.
func (r *Registry) Drop(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pools, code)
}
