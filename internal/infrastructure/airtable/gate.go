package airtable

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"
	"golang.org/x/time/rate"
)

// Limits параметры ограничения частоты запросов.
// API допускает 5 запросов в секунду на базу.
type Limits struct {
	MinInterval time.Duration
	RetryDelay  time.Duration
	MaxRetries  int
}

func DefaultLimits() Limits {
	return Limits{
		MinInterval: 210 * time.Millisecond,
		RetryDelay:  2 * time.Second,
		MaxRetries:  5,
	}
}

type attemptFunc func(ctx context.Context) (status int, body []byte, err error)

// gate пропускает не более одного запроса одновременно и выдерживает
// минимальный интервал между запросами, включая повторные попытки.
type gate struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	limits  Limits
	log     *slog.Logger
}

func newGate(limits Limits, log *slog.Logger) *gate {
	return &gate{
		limiter: rate.NewLimiter(rate.Every(limits.MinInterval), 1),
		limits:  limits,
		log:     log,
	}
}

func (g *gate) do(ctx context.Context, attempt attemptFunc) (int, []byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	retries := 0
	for {
		if err := g.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("rate limiter: %w", err)
		}

		status, body, err := attempt(ctx)
		if err == nil && !retryable(status) {
			return status, body, nil
		}
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}

		var lastErr error = err
		if lastErr == nil {
			lastErr = parseError(status, body)
		}

		retries++
		if retries > g.limits.MaxRetries {
			return 0, nil, lastErr
		}

		g.log.Warn("Remote call failed, retrying",
			"attempt", retries,
			"status", status,
			"error", lastErr,
		)

		timer := time.NewTimer(g.limits.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, nil, ctx.Err()
		case <-timer.C:
		}
	}
}
