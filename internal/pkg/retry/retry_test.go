package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, MinBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	cause := errors.New("still failing")
	calls := 0
	err := Do(context.Background(), fastPolicy(2), func(ctx context.Context) error {
		calls++
		return cause
	})
	require.ErrorIs(t, err, cause)
	require.Equal(t, 2, calls)
}

func TestDoStopsOnPermanent(t *testing.T) {
	cause := errors.New("bad credentials")
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func(ctx context.Context) error {
		calls++
		return Permanent(cause)
	})
	require.ErrorIs(t, err, cause)
	require.Equal(t, 1, calls)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cause := errors.New("transient")
	err := Do(ctx, Policy{MaxAttempts: 5, MinBackoff: time.Hour, MaxBackoff: time.Hour}, func(ctx context.Context) error {
		calls++
		cancel()
		return cause
	})
	require.ErrorIs(t, err, cause)
	require.Equal(t, 1, calls)
}
