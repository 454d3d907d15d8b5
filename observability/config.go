package observability

import (
	"fmt"
	"time"
)

// Config is the observability section of the service configuration.
// When Enabled is false no exporters are started and all recording is a no-op.
type Config struct {
	Enabled        bool    `mapstructure:"enabled"`
	Endpoint       string  `mapstructure:"endpoint"`
	Insecure       bool    `mapstructure:"insecure"`
	SampleRate     float64 `mapstructure:"sample_rate"`
	Environment    string  `mapstructure:"environment"`
	MetricInterval string  `mapstructure:"metric_interval"`
}

// ApplyDefaults fills in default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.MetricInterval == "" {
		c.MetricInterval = "15s"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("observability endpoint is required")
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("invalid sample_rate %v: must be between 0 and 1", c.SampleRate)
	}
	if _, err := time.ParseDuration(c.MetricInterval); err != nil {
		return fmt.Errorf("invalid metric_interval %q: %w", c.MetricInterval, err)
	}
	return nil
}

// TracerConfig builds the tracer configuration for this section.
func (c Config) TracerConfig(serviceName, serviceVersion string) TracerConfig {
	return TracerConfig{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    c.Environment,
		Endpoint:       c.Endpoint,
		Insecure:       c.Insecure,
		SampleRate:     c.SampleRate,
	}
}

// MeterConfig builds the meter configuration for this section.
// Validate must have accepted the config before calling.
func (c Config) MeterConfig(serviceName, serviceVersion string) MeterConfig {
	interval, _ := time.ParseDuration(c.MetricInterval)
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    c.Environment,
		Endpoint:       c.Endpoint,
		Insecure:       c.Insecure,
		Interval:       interval,
	}
}
