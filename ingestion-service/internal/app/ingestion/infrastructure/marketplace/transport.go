package marketplace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"mlreviews/pkg/metrics"
)

const maxBodyBytes = 10 << 20

// RateLimiter - ограничитель исходящих запросов
type RateLimiter interface {
	Acquire(ctx context.Context) error
}

// SleepFunc ждет d или отмены контекста
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// transport выполняет GET запросы с rate limit и повторами
type transport struct {
	backend     Mode
	httpClient  *http.Client
	limiter     RateLimiter
	maxAttempts int
	backoffBase time.Duration
	backoffMax  time.Duration
	sleep       SleepFunc
	log         zerolog.Logger
}

type request struct {
	endpoint string // метка для метрик: items, reviews, search
	url      string
	headers  http.Header
}

// attemptError - результат одной неудачной попытки
type attemptError struct {
	status     int
	retryAfter time.Duration
	err        error
}

func (e *attemptError) Error() string { return e.err.Error() }
func (e *attemptError) Unwrap() error { return e.err }

// get выполняет запрос, повторяя его при 429, 5xx и сетевых ошибках.
// Всего делается не больше maxAttempts попыток.
func (t *transport) get(ctx context.Context, req request) ([]byte, error) {
	var last *attemptError

	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := t.backoff(attempt-1, last.retryAfter)
			metrics.RecordMarketplaceRetry(string(t.backend), req.endpoint)
			t.log.Warn().
				Str("endpoint", req.endpoint).
				Int("attempt", attempt).
				Int("status", last.status).
				Dur("delay", delay).
				Err(last.err).
				Msg("Retrying marketplace request")

			if err := t.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if err := t.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		body, err := t.do(ctx, req)
		if err == nil {
			return body, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if !errors.As(err, &last) {
			// PermanentFetchError и прочие не повторяем
			return nil, err
		}
	}

	return nil, &TransientFetchError{
		Endpoint:   req.endpoint,
		URL:        req.url,
		StatusCode: last.status,
		Attempts:   t.maxAttempts,
		Err:        last.err,
	}
}

// do выполняет одну попытку
func (t *transport) do(ctx context.Context, req request) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.url, nil)
	if err != nil {
		return nil, &PermanentFetchError{Endpoint: req.endpoint, URL: req.url, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	for key, values := range req.headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	timer := metrics.NewMarketplaceTimer(string(t.backend), req.endpoint)

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		timer.Observe("network")
		return nil, &attemptError{err: fmt.Errorf("failed to execute request: %w", err)}
	}
	defer resp.Body.Close()

	timer.Observe(strconv.Itoa(resp.StatusCode))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, &attemptError{status: resp.StatusCode, err: fmt.Errorf("failed to read response body: %w", err)}
		}
		return body, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &attemptError{
			status:     resp.StatusCode,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			err:        fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body)),
		}

	case resp.StatusCode == http.StatusNotFound:
		return nil, &PermanentFetchError{Endpoint: req.endpoint, URL: req.url, StatusCode: resp.StatusCode, Err: ErrNotFound}

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &PermanentFetchError{
			Endpoint:   req.endpoint,
			URL:        req.url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body)),
		}
	}
}

// backoff: base*2^(retry-1), Retry-After если он больше, не больше backoffMax
func (t *transport) backoff(retry int, retryAfter time.Duration) time.Duration {
	delay := t.backoffBase
	for i := 1; i < retry && delay < t.backoffMax; i++ {
		delay *= 2
	}
	if retryAfter > delay {
		delay = retryAfter
	}
	if t.backoffMax > 0 && delay > t.backoffMax {
		delay = t.backoffMax
	}
	return delay
}

// parseRetryAfter понимает оба формата заголовка: секунды и HTTP-дату
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
