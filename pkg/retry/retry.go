package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// ErrPermanent marks an error that must not be retried.
var ErrPermanent = errors.New("permanent failure")

type Config struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	// ShouldRetry reports whether err is transient. Nil retries everything
	// except errors wrapping ErrPermanent or a context error.
	ShouldRetry func(err error) bool
	Logger      *zap.Logger
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         zap.NewNop(),
	}
}

func Do(ctx context.Context, cfg Config, operation func(ctx context.Context) error) error {
	cfg = withDefaults(cfg)

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 1 {
				cfg.Logger.Info("Operation succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		}
		lastErr = err

		if !cfg.ShouldRetry(err) {
			cfg.Logger.Debug("Error not retryable", zap.Error(err), zap.Int("attempt", attempt))
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := addJitter(delay, cfg.JitterFraction)
		cfg.Logger.Warn("Operation failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("delay", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(math.Min(float64(cfg.MaxDelay), float64(delay)*cfg.Multiplier))
	}

	return lastErr
}

func DoWithResult[T any](ctx context.Context, cfg Config, operation func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var err error
		result, err = operation(ctx)
		return err
	})
	return result, err
}

func withDefaults(cfg Config) Config {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 200 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2.0
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = defaultShouldRetry
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}

func defaultShouldRetry(err error) bool {
	if errors.Is(err, ErrPermanent) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

func addJitter(duration time.Duration, jitterFraction float64) time.Duration {
	if jitterFraction <= 0 {
		return duration
	}

	jitter := time.Duration(rand.Float64() * float64(duration) * jitterFraction)
	if rand.Intn(2) == 0 {
		return duration - jitter
	}
	return duration + jitter
}
