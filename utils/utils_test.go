package utils

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// Circuit Breaker Tests

var errPublish = errors.New("publish failed")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker() (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("test", BreakerSettings{
		MinRequests:      4,
		HalfOpenRequests: 1,
		FailureRatio:     0.5,
		Interval:         time.Minute,
		Timeout:          10 * time.Second,
	})
	cb.now = clock.Now
	cb.toNewGeneration(clock.Now())
	return cb, clock
}

func fail() error    { return errPublish }
func succeed() error { return nil }

func TestCircuitBreaker_StaysClosedBelowMinRequests(t *testing.T) {
	cb, _ := newTestBreaker()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Do(fail), errPublish)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_ClosedToOpen(t *testing.T) {
	cb, _ := newTestBreaker()

	require.NoError(t, cb.Do(succeed))
	require.NoError(t, cb.Do(succeed))
	cb.Do(fail)
	cb.Do(fail)

	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Do(succeed), ErrCircuitOpen)
}

func TestCircuitBreaker_OpenToHalfOpenToClosed(t *testing.T) {
	cb, clock := newTestBreaker()
	for i := 0; i < 4; i++ {
		cb.Do(fail)
	}
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(11 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Do(succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker()
	for i := 0; i < 4; i++ {
		cb.Do(fail)
	}
	clock.Advance(11 * time.Second)

	assert.ErrorIs(t, cb.Do(fail), errPublish)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	cb, clock := newTestBreaker()
	for i := 0; i < 4; i++ {
		cb.Do(fail)
	}
	clock.Advance(11 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- cb.Do(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, cb.Do(succeed), ErrTooManyRequests)
	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_IntervalResetsCounts(t *testing.T) {
	cb, clock := newTestBreaker()

	cb.Do(fail)
	cb.Do(fail)
	cb.Do(fail)
	clock.Advance(2 * time.Minute)
	cb.Do(fail)

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_PanicCountsAsFailure(t *testing.T) {
	cb, _ := newTestBreaker()
	for i := 0; i < 3; i++ {
		cb.Do(fail)
	}

	assert.Panics(t, func() {
		cb.Do(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker("concurrent", DefaultBreakerSettings())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cb.Do(succeed)
		}()
	}
	wg.Wait()

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "concurrent", cb.Name())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
}

// Redis Client Tests

func TestRedisHealthCheck_Success(t *testing.T) {
	db, mock := redismock.NewClientMock()

	mock.ExpectPing().SetVal("PONG")

	err := RedisHealthCheck(context.Background(), db)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisHealthCheck_Failure(t *testing.T) {
	db, mock := redismock.NewClientMock()

	mock.ExpectPing().SetErr(errors.New("connection failed"))

	err := RedisHealthCheck(context.Background(), db)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis health check failed")
	assert.Contains(t, err.Error(), "connection failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Logger Tests

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("development", "debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger("production", "warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	_, err = NewLogger("production", "loud")
	assert.Error(t, err)
}
