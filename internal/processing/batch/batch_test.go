package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_StopsAtFirstFatal(t *testing.T) {
	boom := errors.New("boom")
	var seen []string

	out, err := Run(context.Background(), []string{"a", "b", "c"}, func(_ context.Context, s string) Outcome[string] {
		seen = append(seen, s)
		if s == "b" {
			return Fatal[string](boom)
		}
		return Continue(s)
	})

	assert.ErrorIs(t, err, boom)
	assert.Nil(t, out)
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestRun_PreservesOrderAndDropsItems(t *testing.T) {
	out, err := Run(context.Background(), []int{1, 2, 3, 4}, func(_ context.Context, n int) Outcome[int] {
		switch {
		case n == 2:
			return Drop[int]()
		case n == 3:
			return Skip(n)
		default:
			return Continue(n * 10)
		}
	})

	require.NoError(t, err)
	assert.Equal(t, []int{10, 3, 40}, out)
}

func TestRun_Empty(t *testing.T) {
	calls := 0
	out, err := Run(context.Background(), nil, func(_ context.Context, n int) Outcome[int] {
		calls++
		return Continue(n)
	})

	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, calls)
}

func TestRun_FatalWithoutError(t *testing.T) {
	_, err := Run(context.Background(), []int{1}, func(context.Context, int) Outcome[int] {
		return Outcome[int]{Kind: OutcomeFatal}
	})

	assert.ErrorIs(t, err, ErrNilFatal)
}

func TestRun_IsSequential(t *testing.T) {
	active := 0
	_, err := Run(context.Background(), []int{1, 2, 3}, func(_ context.Context, n int) Outcome[int] {
		active++
		defer func() { active-- }()
		if active != 1 {
			t.Errorf("expected one active stage call, got %d", active)
		}
		return Continue(n)
	})
	require.NoError(t, err)
}
