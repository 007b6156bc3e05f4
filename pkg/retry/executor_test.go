package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Backoff:     BackoffFixed,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
	}
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(3), "noop", func(context.Context) (int, error) {
		calls++
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAfterMaxAttemptsPlusOne(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := Do(context.Background(), fastPolicy(3), "flaky", func(context.Context) (int, error) {
		calls++
		return 0, boom
	})

	assert.Equal(t, 4, calls, "one initial try plus MaxAttempts retries")

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "flaky", exhausted.Op)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.ErrorIs(t, err, boom)
}

func TestDo_NonRetryableReturnsOriginalErrorOnce(t *testing.T) {
	boom := Classified(KindValidation, errors.New("bad input"))
	policy := fastPolicy(5)
	policy.NonRetryableKinds = []Kind{KindValidation}

	hookCalled := false
	policy.OnRetry = func(error, int) { hookCalled = true }

	calls := 0
	_, err := Do(context.Background(), policy, "validate", func(context.Context) (int, error) {
		calls++
		return 0, boom
	})

	assert.Equal(t, 1, calls)
	assert.Same(t, boom, err, "error must be re-raised unmodified")
	assert.False(t, hookCalled, "hook must not fire for non-retryable errors")
}

func TestDo_DenyListWinsOverAllowList(t *testing.T) {
	boom := Classified(KindUnavailable, errors.New("down"))
	policy := fastPolicy(5)
	policy.RetryableKinds = []Kind{KindUnavailable}
	policy.NonRetryableKinds = []Kind{KindUnavailable}

	calls := 0
	_, err := Do(context.Background(), policy, "conflicted", func(context.Context) (int, error) {
		calls++
		return 0, boom
	})

	assert.Equal(t, 1, calls)
	assert.Same(t, boom, err)
}

func TestDo_AllowListExcludesUnlistedKind(t *testing.T) {
	policy := fastPolicy(5)
	policy.RetryableKinds = []Kind{KindUnavailable}

	calls := 0
	_, err := Do(context.Background(), policy, "unlisted", func(context.Context) (int, error) {
		calls++
		return 0, assert.AnError // KindTransient, not in the allow-list
	})

	assert.Equal(t, 1, calls)
	assert.Same(t, assert.AnError, err)
}

func TestDo_HookObservesEachRetry(t *testing.T) {
	var attempts []int
	policy := fastPolicy(2)
	policy.OnRetry = func(err error, attempt int) {
		assert.Error(t, err)
		attempts = append(attempts, attempt)
	}

	_, _ = Do(context.Background(), policy, "observed", func(context.Context) (int, error) {
		return 0, assert.AnError
	})

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDo_PanickingHookDoesNotAbortRetries(t *testing.T) {
	policy := fastPolicy(2)
	policy.OnRetry = func(error, int) { panic("observer bug") }

	calls := 0
	got, err := Do(context.Background(), policy, "resilient", func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, assert.AnError
		}
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancellationAbortsBackoffSleep(t *testing.T) {
	policy := Policy{
		MaxAttempts: 5,
		Backoff:     BackoffFixed,
		BaseDelay:   time.Minute,
		MaxDelay:    time.Minute,
	}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, policy, "canceled", func(context.Context) (int, error) {
			calls++
			return 0, assert.AnError
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond) // let the first attempt fail and enter the sleep
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("executor did not abort the backoff sleep on cancellation")
	}
}

func TestDo_FailsTwiceThenSucceeds(t *testing.T) {
	policy := Policy{
		MaxAttempts: 3,
		Backoff:     BackoffExponential,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    time.Second,
		Multiplier:  2,
	}

	calls := 0
	start := time.Now()
	got, err := Do(context.Background(), policy, "eventually", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", assert.AnError
		}
		return "ok", nil
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	// two sleeps: 10ms then 20ms
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestRun(t *testing.T) {
	calls := 0
	err := Run(context.Background(), fastPolicy(1), "void", func(context.Context) error {
		calls++
		if calls == 1 {
			return assert.AnError
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestExhaustedError_Message(t *testing.T) {
	err := &ExhaustedError{Op: "sync-user", Attempts: 3, Last: errors.New("timeout")}
	assert.Equal(t, "sync-user: retries exhausted after 3 attempts: timeout", err.Error())
}
