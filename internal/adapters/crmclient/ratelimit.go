package crmclient

import (
	"context"
	"sync"
	"time"
)

// FixedWindowLimiter — лимитер с фиксированным окном: счётчик запросов,
// сбрасываемый раз в окно. Не скользящее окно и не token bucket — при низком
// потолке CRM (10/мин) и редких запусках синхронизации этого достаточно,
// хотя на границе окна возможен короткий всплеск выше целевого темпа.
//
// Состояние явное и защищено мьютексом; лимитер внедряется в клиент,
// чтобы несколько клиентов в конкурентных тестах не делили скрытое состояние.
type FixedWindowLimiter struct {
	mu sync.Mutex

	limit  int
	window time.Duration

	windowStart time.Time
	count       int
}

// NewFixedWindowLimiter создаёт лимитер на limit запросов в окно window.
func NewFixedWindowLimiter(limit int, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		limit:  limit,
		window: window,
	}
}

// Wait блокирует вызывающего, пока в текущем окне не появится слот.
// Ожидание не ограничено ничем, кроме контекста: под нагрузкой вызывающий
// обязан терпеть произвольную задержку.
func (l *FixedWindowLimiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()

		if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
			// Окно прокрутилось — начинаем новый отсчёт.
			l.windowStart = now
			l.count = 0
		}

		if l.count < l.limit {
			l.count++
			l.mu.Unlock()
			return nil
		}

		// Потолок выбран — спим до конца окна и пробуем снова.
		sleep := l.window - now.Sub(l.windowStart)
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}
