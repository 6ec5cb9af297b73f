package crmclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWindowLimiter_AllowsBurstWithinWindow(t *testing.T) {
	limiter := NewFixedWindowLimiter(10, 1*time.Second)

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, limiter.Wait(context.Background()))
	}

	// Все 10 слотов одного окна отдаются без ожидания
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestFixedWindowLimiter_BlocksUntilNextWindow(t *testing.T) {
	window := 200 * time.Millisecond
	limiter := NewFixedWindowLimiter(2, window)

	require.NoError(t, limiter.Wait(context.Background()))
	require.NoError(t, limiter.Wait(context.Background()))

	// Третий вызов обязан дождаться следующего окна
	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestFixedWindowLimiter_ContextCancellation(t *testing.T) {
	limiter := NewFixedWindowLimiter(1, 1*time.Minute)

	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFixedWindowLimiter_ConcurrentCallers(t *testing.T) {
	window := 150 * time.Millisecond
	limiter := NewFixedWindowLimiter(5, window)

	const callers = 15

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = limiter.Wait(context.Background())
		}()
	}
	wg.Wait()

	// 15 вызовов при потолке 5 на окно занимают минимум три окна,
	// то есть не меньше двух полных ожиданий
	assert.GreaterOrEqual(t, time.Since(start), 2*window-20*time.Millisecond)
}
