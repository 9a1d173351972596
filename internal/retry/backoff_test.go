package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testConfig(maxRetries int) Config {
	return Config{
		MaxRetries: maxRetries,
		BaseDelay:  5 * time.Millisecond,
		MaxDelay:   50 * time.Millisecond,
		Multiplier: 2.0,
		Jitter:     false, // predictable delays in tests
	}
}

func TestWithBackoff_Success(t *testing.T) {
	result := WithBackoff(context.Background(), testConfig(2), zerolog.Nop(), func() error {
		return nil
	})

	if !result.Success {
		t.Error("Expected success=true")
	}
	if result.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", result.Attempts)
	}
	if result.LastError != nil {
		t.Errorf("Expected no error, got %v", result.LastError)
	}
}

func TestWithBackoff_EventualSuccess(t *testing.T) {
	calls := 0
	result := WithBackoff(context.Background(), testConfig(3), zerolog.Nop(), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	if !result.Success {
		t.Error("Expected success=true")
	}
	if result.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", result.Attempts)
	}
}

func TestWithBackoff_BudgetExhausted(t *testing.T) {
	permanent := errors.New("still broken")
	result := WithBackoff(context.Background(), testConfig(2), zerolog.Nop(), func() error {
		return permanent
	})

	if result.Success {
		t.Error("Expected success=false")
	}
	// MaxRetries=2 means 3 attempts total
	if result.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", result.Attempts)
	}
	if !errors.Is(result.LastError, permanent) {
		t.Errorf("Expected last error %v, got %v", permanent, result.LastError)
	}
}

func TestWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	result := WithBackoff(ctx, testConfig(5), zerolog.Nop(), func() error {
		calls++
		cancel()
		return errors.New("fail")
	})

	if result.Success {
		t.Error("Expected success=false")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call before cancellation, got %d", calls)
	}
}

func TestFixedConfig(t *testing.T) {
	config := FixedConfig(15, time.Minute)

	if config.MaxRetries != 15 {
		t.Errorf("Expected MaxRetries=15, got %d", config.MaxRetries)
	}
	if config.BaseDelay != time.Minute || config.MaxDelay != time.Minute {
		t.Errorf("Expected fixed 1m interval, got base=%v max=%v", config.BaseDelay, config.MaxDelay)
	}
	if config.Multiplier != 1.0 {
		t.Errorf("Expected Multiplier=1.0, got %f", config.Multiplier)
	}
	if config.Jitter {
		t.Error("Expected Jitter=false")
	}

	// Fixed config never grows the delay
	if d := calculateDelay(config, 10); d != time.Minute {
		t.Errorf("Expected 1m delay at attempt 10, got %v", d)
	}
}

func TestCalculateDelay_Exponential(t *testing.T) {
	config := testConfig(5)

	if d := calculateDelay(config, 0); d != 5*time.Millisecond {
		t.Errorf("Expected 5ms at attempt 0, got %v", d)
	}
	if d := calculateDelay(config, 2); d != 20*time.Millisecond {
		t.Errorf("Expected 20ms at attempt 2, got %v", d)
	}
	// Capped at MaxDelay
	if d := calculateDelay(config, 10); d != 50*time.Millisecond {
		t.Errorf("Expected 50ms cap, got %v", d)
	}
}

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		err       error
		retryable bool
	}{
		{nil, false},
		{errors.New("connection refused"), true},
		{errors.New("HTTP 429 Too Many Requests"), true},
		{errors.New("Rate Limit exceeded"), true},
		{errors.New("invalid request payload"), false},
		{errors.New("unauthorized"), false},
	}

	for _, tc := range cases {
		if got := IsRetryableError(tc.err); got != tc.retryable {
			t.Errorf("IsRetryableError(%v) = %v, want %v", tc.err, got, tc.retryable)
		}
	}
}
