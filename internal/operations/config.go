package operations

import (
	"time"
)

// Config represents the pipeline execution configuration
type Config struct {
	// Step-specific timeouts
	StepTimeouts map[string]time.Duration `json:"step_timeouts"`

	// DefaultTimeout applies to steps without their own timeout
	DefaultTimeout time.Duration `json:"default_timeout"`
}

// NewConfig returns the default pipeline configuration
func NewConfig() *Config {
	return &Config{
		StepTimeouts: map[string]time.Duration{
			StepIDWorldBank: DefaultWorldBankTimeout,
		},
		DefaultTimeout: DefaultStepTimeout,
	}
}

// GetStepTimeout returns the timeout for a specific step
func (c *Config) GetStepTimeout(stepID string) time.Duration {
	if timeout, ok := c.StepTimeouts[stepID]; ok && timeout > 0 {
		return timeout
	}
	if c.DefaultTimeout > 0 {
		return c.DefaultTimeout
	}
	return DefaultStepTimeout
}

// SetStepTimeout sets the timeout for a specific step
func (c *Config) SetStepTimeout(stepID string, timeout time.Duration) {
	if c.StepTimeouts == nil {
		c.StepTimeouts = make(map[string]time.Duration)
	}
	c.StepTimeouts[stepID] = timeout
}
