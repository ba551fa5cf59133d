package screens

import "log/slog"

// Config holds settings shared by all screen controllers.
type Config struct {
	Logger *slog.Logger

	// OnChange is called after every state change, outside the lock.
	OnChange func()
}

// Option is a functional option for configuring a controller.
type Option func(*Config)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithOnChange registers a state-change observer.
func WithOnChange(fn func()) Option {
	return func(c *Config) {
		c.OnChange = fn
	}
}

func newConfig(opts []Option) *Config {
	cfg := &Config{Logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

func (c *Config) notify() {
	if c.OnChange != nil {
		c.OnChange()
	}
}
