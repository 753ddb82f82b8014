package operations

import (
	"time"
)

// Config represents the run execution configuration
type Config struct {
	// Step-specific timeouts
	StepTimeouts map[string]time.Duration `json:"step_timeouts"`

	// Retry configuration for steps
	RetryConfig RetryConfig `json:"retry_config"`
}

// NewConfig returns the default run configuration
func NewConfig() *Config {
	return &Config{
		StepTimeouts: map[string]time.Duration{
			StepIDParse:  DefaultParseTimeout,
			StepIDExport: DefaultExportTimeout,
		},
		RetryConfig: NewRetryConfig(),
	}
}

// GetStepTimeout returns the timeout for a specific step
func (c *Config) GetStepTimeout(stepID string) time.Duration {
	if timeout, ok := c.StepTimeouts[stepID]; ok {
		return timeout
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

// ConfigBuilder provides a fluent interface for building run configurations
type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder creates a new configuration builder
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: NewConfig(),
	}
}

// WithStepTimeout sets the timeout for a step
func (b *ConfigBuilder) WithStepTimeout(stepID string, timeout time.Duration) *ConfigBuilder {
	b.config.SetStepTimeout(stepID, timeout)
	return b
}

// WithRetryConfig sets the retry configuration
func (b *ConfigBuilder) WithRetryConfig(config RetryConfig) *ConfigBuilder {
	b.config.RetryConfig = config
	return b
}

// Build returns the built configuration
func (b *ConfigBuilder) Build() *Config {
	return b.config
}
