package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsFirstTry(t *testing.T) {
	r := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	err := r.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryRecoversAfterFailures(t *testing.T) {
	r := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	err := r.Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsBudget(t *testing.T) {
	r := RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond}

	boom := errors.New("boom")
	calls := 0
	err := r.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return boom
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "op failed after 2 attempts")
}

func TestRetryStopsOnCancel(t *testing.T) {
	r := RetryConfig{MaxAttempts: 5, BaseDelay: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Do(ctx, "op", func(context.Context) error {
			calls++
			return errors.New("transient")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("retry did not stop on cancellation")
	}
}

func TestURLSet(t *testing.T) {
	s := NewURLSet()
	assert.True(t, s.Add("https://a.test/"))
	assert.False(t, s.Add("https://a.test/"))
	assert.True(t, s.Add("https://b.test/"))
}
