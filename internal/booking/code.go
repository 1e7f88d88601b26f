package booking

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
)

const (
	codePrefix   = "BK"
	codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeLength   = 6

	// maxCodeAttempts bounds the collision probe loop. The code space
	// holds 36^6 values, so hitting the bound means the space is near
	// saturation or the existence check is broken.
	maxCodeAttempts = 20
)

var ErrCodeSpaceExhausted = errors.New("booking code space exhausted")

func randomCode() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return codePrefix + string(b)
}

// allocateCode draws candidate codes until one is unused. Must run
// inside the same transaction as the booking insert so two allocators
// cannot both claim the same free code.
func allocateCode(ctx context.Context, repo Repository) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := randomCode()
		taken, err := repo.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check booking code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}
