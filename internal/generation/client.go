package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Backend produces text for one model. Implementations return an error
// exposing StatusCode() when the upstream answered with an HTTP status.
type Backend interface {
	Generate(ctx context.Context, model string, prompt Prompt) (string, error)
}

// BackendFunc adapts a function to Backend
type BackendFunc func(ctx context.Context, model string, prompt Prompt) (string, error)

func (f BackendFunc) Generate(ctx context.Context, model string, prompt Prompt) (string, error) {
	return f(ctx, model, prompt)
}

// Prompt is a single-turn request
type Prompt struct {
	System string
	Text   string
}

// Result is a successful generation
type Result struct {
	Text     string
	Model    string
	Attempts int
}

// Config controls candidates and retry timing
type Config struct {
	Models         []string
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

// DefaultConfig returns 3 attempts per model, 1s doubling backoff capped at
// 4s, and a 30s per-attempt timeout.
func DefaultConfig(models ...string) Config {
	return Config{
		Models:         models,
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		MaxDelay:       4 * time.Second,
		AttemptTimeout: 30 * time.Second,
	}
}

// Client walks the candidate list, retrying transient failures with
// exponential backoff. It keeps no state between calls.
type Client struct {
	backend Backend
	cfg     Config
	logger  *slog.Logger

	// sleep waits for d or until ctx is done; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a generation client
func NewClient(backend Backend, cfg Config, logger *slog.Logger) (*Client, error) {
	if backend == nil {
		return nil, errors.New("generation backend is required")
	}
	if len(cfg.Models) == 0 {
		return nil, errors.New("at least one model candidate is required")
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		backend: backend,
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepCtx,
	}, nil
}

// Models returns the candidate list in priority order
func (c *Client) Models() []string {
	return append([]string(nil), c.cfg.Models...)
}

// Generate returns the first successful completion. A non-retryable error
// abandons the current candidate at once; moving to the next candidate does
// not wait. Cancelling ctx stops immediately with ctx.Err().
func (c *Client) Generate(ctx context.Context, prompt Prompt) (*Result, error) {
	var lastErr error
	attempts := 0

	for _, model := range c.cfg.Models {
		for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
			if attempt > 0 {
				if err := c.sleep(ctx, c.backoff(attempt-1)); err != nil {
					return nil, err
				}
			}

			attempts++
			text, err := c.attempt(ctx, model, prompt)
			if err == nil {
				if attempts > 1 {
					c.logger.Info("generation recovered", "model", model, "attempts", attempts)
				}
				return &Result{Text: text, Model: model, Attempts: attempts}, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			lastErr = err
			retryable := IsRetryable(err)
			c.logger.Warn("generation attempt failed",
				"model", model,
				"attempt", attempt+1,
				"status", StatusOf(err),
				"retryable", retryable,
				"error", err,
			)
			if !retryable {
				break
			}
		}
	}

	return nil, &ExhaustedError{Models: c.Models(), Attempts: attempts, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, model string, prompt Prompt) (string, error) {
	if c.cfg.AttemptTimeout <= 0 {
		return c.backend.Generate(ctx, model, prompt)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	text, err := c.backend.Generate(attemptCtx, model, prompt)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("model %s timed out after %s: %w", model, c.cfg.AttemptTimeout, context.DeadlineExceeded)
	}
	return text, err
}

// backoff returns the wait before retry n+1: base * 2^n, capped.
func (c *Client) backoff(n int) time.Duration {
	d := c.cfg.BaseDelay
	for i := 0; i < n; i++ {
		d *= 2
		if d >= c.cfg.MaxDelay {
			return c.cfg.MaxDelay
		}
	}
	if d > c.cfg.MaxDelay {
		return c.cfg.MaxDelay
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
