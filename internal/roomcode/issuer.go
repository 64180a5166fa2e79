// Package roomcode draws unique 6-character room codes from a
// restricted alphabet, retrying on collision.
package roomcode

import (
	"context"
	"math/rand/v2"

	"github.com/emmanuelzz0/queezy/internal/apperr"
	"github.com/emmanuelzz0/queezy/internal/constants"
)

const maxAttempts = 10

// Checker reports whether a code is already in use. RoomStore satisfies
// this via its Exists method.
type Checker interface {
	Exists(ctx context.Context, code string) (bool, error)
}

type Issuer struct {
	checker Checker
}

func New(checker Checker) *Issuer {
	return &Issuer{checker: checker}
}

// Issue draws a code, asks the checker whether it is free, and retries up
// to maxAttempts times before failing with ErrCodeExhausted.
func (i *Issuer) Issue(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code := draw()
		inUse, err := i.checker.Exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !inUse {
			return code, nil
		}
	}
	return "", apperr.ErrCodeExhausted
}

func draw() string {
	b := make([]byte, constants.RoomCodeLength)
	for i := range b {
		b[i] = constants.RoomCodeAlphabet[rand.IntN(len(constants.RoomCodeAlphabet))]
	}
	return string(b)
}
