// Package idgen mints record identifiers of the contractual form
// {TYPE}-{RANDOM}, e.g. "FACE-7K2M9QX41BZD".
//
// The random suffix is drawn from crypto/rand over an uppercase base-36
// alphabet. At 12 characters the token space holds ~4.7e18 values, so a
// collision against the store indicates a deeper fault; minting therefore
// retries a bounded number of times and then fails hard.
package idgen

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/hupe1980/biomatch/model"
)

const (
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// TokenLength is the length of the random suffix. The external contract
	// requires at least 8 characters.
	TokenLength = 12

	maxAttempts = 5
)

// ErrSpaceExhausted is returned when minting hits maxAttempts collisions in a
// row. With the configured token space this signals store corruption or a
// broken entropy source, not bad luck.
var ErrSpaceExhausted = errors.New("id space exhausted: too many mint collisions")

// Exists reports whether an ID is already taken. Minting re-checks every
// candidate against the store before returning it.
type Exists func(ctx context.Context, id string) (bool, error)

// Mint generates a fresh record ID for the given type. The caller must hold
// whatever lock makes mint-then-persist atomic with respect to concurrent
// registrations.
func Mint(ctx context.Context, t model.Type, exists Exists) (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("mint: unknown biometric type %q", t)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		token, err := randomToken(TokenLength)
		if err != nil {
			return "", fmt.Errorf("mint: %w", err)
		}
		id := t.Tag() + "-" + token

		taken, err := exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("mint: verify uniqueness: %w", err)
		}
		if !taken {
			return id, nil
		}
	}

	return "", ErrSpaceExhausted
}

func randomToken(n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)

	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(alphabet[idx.Int64()])
	}
	return sb.String(), nil
}
