package idgen

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/biomatch/model"
)

var idPattern = regexp.MustCompile(`^(FACE|PALM)-[A-Z0-9]{12}$`)

func neverExists(context.Context, string) (bool, error) { return false, nil }

func TestMintFormat(t *testing.T) {
	ctx := context.Background()

	for _, typ := range model.Types() {
		id, err := Mint(ctx, typ, neverExists)
		require.NoError(t, err)
		assert.Regexp(t, idPattern, id)
		assert.Equal(t, typ.Tag(), id[:len(typ.Tag())])
	}
}

func TestMintUniqueness(t *testing.T) {
	ctx := context.Background()
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		id, err := Mint(ctx, model.TypeFace, neverExists)
		require.NoError(t, err)
		assert.False(t, seen[id], "minted duplicate id %s", id)
		seen[id] = true
	}
}

func TestMintRetriesOnCollision(t *testing.T) {
	ctx := context.Background()

	calls := 0
	exists := func(context.Context, string) (bool, error) {
		calls++
		return calls <= 2, nil // first two candidates collide
	}

	id, err := Mint(ctx, model.TypePalm, exists)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Regexp(t, idPattern, id)
}

func TestMintSpaceExhausted(t *testing.T) {
	ctx := context.Background()

	calls := 0
	alwaysExists := func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	}

	_, err := Mint(ctx, model.TypeFace, alwaysExists)
	assert.ErrorIs(t, err, ErrSpaceExhausted)
	assert.Equal(t, maxAttempts, calls)
}

func TestMintInvalidType(t *testing.T) {
	_, err := Mint(context.Background(), model.Type("iris"), neverExists)
	assert.Error(t, err)
}

func TestMintContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Mint(ctx, model.TypeFace, neverExists)
	assert.ErrorIs(t, err, context.Canceled)
}
