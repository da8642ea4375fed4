package autosave

import (
	"log/slog"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithDebounce sets the quiet period after the last edit before saving.
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) {
		c.debounce = d
	}
}

// WithMaxRetries sets the total number of save attempts.
func WithMaxRetries(n int) Option {
	return func(c *Coordinator) {
		c.maxRetries = n
	}
}

// WithBackoff sets the first retry delay and its cap.
func WithBackoff(initial, max time.Duration) Option {
	return func(c *Coordinator) {
		c.initialBackoff = initial
		c.maxBackoff = max
	}
}

// WithEnabled turns debounced saving on or off. SaveNow works either way.
func WithEnabled(enabled bool) Option {
	return func(c *Coordinator) {
		c.enabled = enabled
	}
}

// WithValidator runs fn before every save.
func WithValidator(fn ValidateFunc) Option {
	return func(c *Coordinator) {
		c.validate = fn
	}
}

// WithHooks registers save lifecycle callbacks.
func WithHooks(h domain.SaveHooks) Option {
	return func(c *Coordinator) {
		c.hooks = h
	}
}

// WithLogger configures a logger for the Coordinator.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}
