package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/EmmEff/RedditImageGrab/pkg/errors"
)

func testConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0

	err := Do(func() error {
		calls++
		return nil
	}, testConfig(3))

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientError(t *testing.T) {
	calls := 0

	err := Do(func() error {
		calls++
		if calls < 3 {
			return &errs.Error{Type: errs.ErrorTypeNetwork, Message: "flaky"}
		}
		return nil
	}, testConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	notFound := &errs.Error{Type: errs.ErrorTypeNotFound, Message: "gone", Code: 404}

	err := Do(func() error {
		calls++
		return notFound
	}, testConfig(5))

	assert.Equal(t, 1, calls)
	var transportErr *errs.Error
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, errs.ErrorTypeNotFound, transportErr.Type)
}

func TestDoMaxAttemptsExceeded(t *testing.T) {
	calls := 0

	err := Do(func() error {
		calls++
		return &errs.Error{Type: errs.ErrorTypeServerError, Message: "boom", Code: 502}
	}, testConfig(3))

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "max retry attempts")
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig(3)
	cfg.Context = ctx
	cfg.Backoff = &ConstantBackoff{Delay: time.Second}

	err := Do(func() error {
		return &errs.Error{Type: errs.ErrorTypeNetwork, Message: "flaky"}
	}, cfg)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithResult(t *testing.T) {
	calls := 0

	result, err := DoWithResult(func() (string, error) {
		calls++
		if calls < 2 {
			return "", &errs.Error{Type: errs.ErrorTypeNetwork, Message: "flaky"}
		}
		return "payload", nil
	}, testConfig(3))

	require.NoError(t, err)
	assert.Equal(t, "payload", result)
	assert.Equal(t, 2, calls)
}

func TestDoPlainErrorIsRetried(t *testing.T) {
	calls := 0

	err := Do(func() error {
		calls++
		if calls == 1 {
			return errors.New("untyped")
		}
		return nil
	}, testConfig(3))

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestExponentialBackoffGrows(t *testing.T) {
	b := &ExponentialBackoff{
		BaseDelay:  time.Second,
		MaxDelay:   time.Minute,
		Multiplier: 2.0,
	}

	assert.Equal(t, time.Duration(0), b.NextDelay(0))
	assert.Equal(t, time.Second, b.NextDelay(1))
	assert.Equal(t, 2*time.Second, b.NextDelay(2))
	assert.Equal(t, 4*time.Second, b.NextDelay(3))
	assert.Equal(t, time.Minute, b.NextDelay(20), "capped at max delay")
}
