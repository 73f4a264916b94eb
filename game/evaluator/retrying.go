package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Asuura666/game-habits/config"
	"github.com/Asuura666/game-habits/game/gameerr"
)

// Retrying wraps a Provider with the retry contract: up to MaxRetries
// retries after the first attempt, exponential backoff capped at
// MaxBackoff, a deadline per attempt and an outbound rate limit.
type Retrying struct {
	next           Provider
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	attemptTimeout time.Duration
	limiter        *rate.Limiter
	clock          clockwork.Clock
	logger         *zap.Logger
}

type RetryingOption func(*Retrying)

func WithClock(c clockwork.Clock) RetryingOption {
	return func(r *Retrying) { r.clock = c }
}

func WithLogger(l *zap.Logger) RetryingOption {
	return func(r *Retrying) { r.logger = l }
}

// WithLimiter replaces the limiter built from the config. nil disables
// rate limiting.
func WithLimiter(l *rate.Limiter) RetryingOption {
	return func(r *Retrying) { r.limiter = l }
}

func NewRetrying(next Provider, cfg config.EvaluatorConfig, opts ...RetryingOption) *Retrying {
	r := &Retrying{
		next:           next,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		attemptTimeout: cfg.AttemptTimeout,
		clock:          clockwork.NewRealClock(),
		logger:         zap.NewNop(),
	}
	if r.maxRetries < 0 {
		r.maxRetries = 0
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Evaluate calls the wrapped provider until it succeeds or the retries are
// exhausted. Exhaustion is reported as gameerr.ErrProviderUnavailable
// wrapping the last failure. Cancelling ctx stops immediately.
func (r *Retrying) Evaluate(ctx context.Context, p TaskPrompt) (Evaluation, error) {
	backoff := r.initialBackoff
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			r.logger.Warn("task evaluation failed, retrying",
				zap.Int64("task_id", p.TaskID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			if err := r.sleep(ctx, backoff); err != nil {
				return Evaluation{}, err
			}
			backoff = min(backoff*2, r.maxBackoff)
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return Evaluation{}, err
			}
		}

		ev, err := r.attempt(ctx, p)
		if err == nil {
			return ev, nil
		}
		if ctx.Err() != nil {
			return Evaluation{}, ctx.Err()
		}
		lastErr = err
	}
	return Evaluation{}, fmt.Errorf("%w: task %d after %d attempts: %w",
		gameerr.ErrProviderUnavailable, p.TaskID, r.maxRetries+1, lastErr)
}

func (r *Retrying) attempt(ctx context.Context, p TaskPrompt) (Evaluation, error) {
	if r.attemptTimeout <= 0 {
		return r.next.Evaluate(ctx, p)
	}
	actx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()
	ev, err := r.next.Evaluate(actx, p)
	if err != nil && errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return Evaluation{}, fmt.Errorf("attempt timed out after %s: %w", r.attemptTimeout, err)
	}
	return ev, err
}

func (r *Retrying) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-r.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
