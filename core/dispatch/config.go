package dispatch

import "time"

const (
	DefaultTimeout    = 60
	DefaultYield      = 100 * time.Millisecond
	DefaultErrorDelay = 3 * time.Second
)

type Config struct {
	// Timeout is the server-side long-poll timeout in seconds.
	Timeout int `yaml:"timeout,omitempty"`
	Limit   int `yaml:"limit,omitempty"`
	// AllowedUpdates defaults to every known kind.
	AllowedUpdates []string `yaml:"allowed_updates,omitempty"`
	// Yield is the pause between batches.
	Yield time.Duration `yaml:"yield,omitempty"`
	// ErrorDelay is the pause after a failed fetch. It does not grow.
	ErrorDelay time.Duration `yaml:"error_delay,omitempty"`
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}

	if c.Yield <= 0 {
		c.Yield = DefaultYield
	}

	if c.ErrorDelay <= 0 {
		c.ErrorDelay = DefaultErrorDelay
	}

	return c
}
