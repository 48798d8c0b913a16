package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mlreviews/pkg/metrics"
)

// Clock - источник времени и ожидания, подменяется в тестах
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SystemClock возвращает часы на основе time.Now/time.Timer
func SystemClock() Clock {
	return realClock{}
}

// Limiter гарантирует минимальный интервал между исходящими запросами.
// Резервирование происходит под мьютексом, поэтому очередность
// совпадает с порядком вызовов Acquire.
type Limiter struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	clock    Clock
	interval time.Duration
}

// New создает limiter с интервалом interval между запросами.
// interval <= 0 отключает ограничение.
func New(interval time.Duration, clock Clock) *Limiter {
	if clock == nil {
		clock = SystemClock()
	}

	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	return &Limiter{
		limiter:  rate.NewLimiter(limit, 1),
		clock:    clock,
		interval: interval,
	}
}

// Acquire блокирует вызывающего, пока не наступит его очередь
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	now := l.clock.Now()
	reservation := l.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	l.mu.Unlock()

	if delay <= 0 {
		return nil
	}

	metrics.RateLimitWait.Observe(delay.Seconds())

	if err := l.clock.Sleep(ctx, delay); err != nil {
		// Возвращаем токен, чтобы отмененный вызов не задерживал следующих
		reservation.CancelAt(l.clock.Now())
		return err
	}

	return nil
}

// Interval возвращает настроенный минимальный интервал
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
