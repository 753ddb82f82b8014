package operations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfigDefaults(t *testing.T) {
	config := NewConfig()

	assert.Equal(t, DefaultParseTimeout, config.GetStepTimeout(StepIDParse))
	assert.Equal(t, DefaultExportTimeout, config.GetStepTimeout(StepIDExport))
	assert.Equal(t, DefaultStepTimeout, config.GetStepTimeout(StepIDJoin), "unlisted steps use the default")

	assert.Equal(t, 3, config.RetryConfig.MaxAttempts)
	assert.Equal(t, time.Second, config.RetryConfig.InitialDelay)
	assert.Equal(t, 30*time.Second, config.RetryConfig.MaxDelay)
	assert.Equal(t, 2.0, config.RetryConfig.Multiplier)
}

func TestConfigSetStepTimeout(t *testing.T) {
	config := &Config{}

	config.SetStepTimeout("parse", 10*time.Second)
	assert.Equal(t, 10*time.Second, config.GetStepTimeout("parse"))
}

func TestConfigBuilder(t *testing.T) {
	config := NewConfigBuilder().
		WithStepTimeout(StepIDCalculate, 45*time.Second).
		WithRetryConfig(RetryConfig{
			MaxAttempts:  5,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   1.5,
		}).
		Build()

	assert.Equal(t, 45*time.Second, config.GetStepTimeout(StepIDCalculate))
	assert.Equal(t, 5, config.RetryConfig.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, config.RetryConfig.InitialDelay)
}
