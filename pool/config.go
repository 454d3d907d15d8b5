package pool

import (
	"fmt"
	"time"
)

// Config holds one resource pool's connection settings. Each tier gets its
// own pool; MaxOpen carries the owning tier's pool size.
type Config struct {
	// Enabled controls whether pools are opened at all. When false the
	// service runs without database-backed work.
	Enabled bool `mapstructure:"enabled"`

	// Driver is the database/sql driver name (e.g. "pgx").
	Driver string `mapstructure:"driver"`

	// DSN is the connection string.
	DSN string `mapstructure:"dsn"`

	// MaxOpen caps open connections to the backing database.
	MaxOpen int `mapstructure:"max_open"`

	// MaxIdle caps idle connections kept in the pool. Zero means keep up to
	// MaxOpen idle so the tier's pool stays warm.
	MaxIdle int `mapstructure:"max_idle"`

	// ConnMaxLifetime is the maximum time a connection may be reused (e.g. "30m").
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`

	// ConnMaxIdleTime is the maximum time a connection may sit idle (e.g. "5m").
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`

	// AcquireTimeout bounds how long WithConn waits for a free connection
	// (e.g. "3s"). Exceeding it surfaces as an ordinary task failure.
	AcquireTimeout string `mapstructure:"acquire_timeout"`

	// ConnectAttempts is the number of startup ping attempts before giving up.
	ConnectAttempts int `mapstructure:"connect_attempts"`

	// ConnectBackoff is the initial delay between startup attempts (e.g. "1s").
	ConnectBackoff string `mapstructure:"connect_backoff"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = "pgx"
	}
	if c.MaxOpen <= 0 {
		c.MaxOpen = 5
	}
	if c.MaxIdle <= 0 {
		c.MaxIdle = c.MaxOpen
	}
	if c.ConnMaxLifetime == "" {
		c.ConnMaxLifetime = "30m"
	}
	if c.ConnMaxIdleTime == "" {
		c.ConnMaxIdleTime = "5m"
	}
	if c.AcquireTimeout == "" {
		c.AcquireTimeout = "3s"
	}
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = 5
	}
	if c.ConnectBackoff == "" {
		c.ConnectBackoff = "1s"
	}
}

// Validate checks that required fields are present and parseable.
// A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Driver == "" {
		return fmt.Errorf("pool driver is required")
	}
	if c.DSN == "" {
		return fmt.Errorf("pool DSN is required")
	}
	if c.MaxOpen <= 0 {
		return fmt.Errorf("max_open must be > 0")
	}
	if c.MaxIdle > c.MaxOpen {
		return fmt.Errorf("max_idle (%d) must be <= max_open (%d)", c.MaxIdle, c.MaxOpen)
	}
	if _, err := time.ParseDuration(c.ConnMaxLifetime); err != nil {
		return fmt.Errorf("invalid conn_max_lifetime %q: %w", c.ConnMaxLifetime, err)
	}
	if _, err := time.ParseDuration(c.ConnMaxIdleTime); err != nil {
		return fmt.Errorf("invalid conn_max_idle_time %q: %w", c.ConnMaxIdleTime, err)
	}
	if _, err := time.ParseDuration(c.AcquireTimeout); err != nil {
		return fmt.Errorf("invalid acquire_timeout %q: %w", c.AcquireTimeout, err)
	}
	if c.ConnectAttempts <= 0 {
		return fmt.Errorf("connect_attempts must be > 0")
	}
	if _, err := time.ParseDuration(c.ConnectBackoff); err != nil {
		return fmt.Errorf("invalid connect_backoff %q: %w", c.ConnectBackoff, err)
	}
	return nil
}
