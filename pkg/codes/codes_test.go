package codes

import (
	"context"
	"regexp"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codeRE = regexp.MustCompile(`^[A-Z0-9]+$`)

func TestGenerate(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := Generate(8)
		require.NoError(t, err)
		assert.Len(t, code, 8)
		assert.Regexp(t, codeRE, code)
		seen[code] = true
	}
	// 36^8 possibilities; 200 draws colliding would point at a broken source.
	assert.Greater(t, len(seen), 195)
}

func TestUnique(t *testing.T) {
	ctx := context.Background()

	t.Run("retries taken codes", func(t *testing.T) {
		calls := 0
		code, err := Unique(ctx, 6, func(_ context.Context, _ string) (bool, error) {
			calls++
			return calls < 3, nil
		})
		require.NoError(t, err)
		assert.Len(t, code, 6)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		_, err := Unique(ctx, 6, func(_ context.Context, _ string) (bool, error) {
			calls++
			return true, nil
		})
		require.ErrorIs(t, err, ErrExhausted)
		assert.Equal(t, MaxAttempts, calls)
	})

	t.Run("propagates lookup errors", func(t *testing.T) {
		_, err := Unique(ctx, 6, func(_ context.Context, _ string) (bool, error) {
			return false, errors.New("db down")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
	})
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: rooms.room_code (2067)")))
	assert.False(t, IsUniqueViolation(errors.New("FOREIGN KEY constraint failed")))
	assert.False(t, IsUniqueViolation(nil))
}
