package config

import (
	"fmt"

	"github.com/kbukum/tenantgate/isolation"
	"github.com/kbukum/tenantgate/observability"
	"github.com/kbukum/tenantgate/pool"
	"github.com/kbukum/tenantgate/redis"
	"github.com/kbukum/tenantgate/server"
	"github.com/kbukum/tenantgate/tenant"
)

// ServiceName is the default service name used for config file discovery.
const ServiceName = "tenantgate"

// Config is the full tenantgate service configuration.
type Config struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
	Database      pool.Config          `yaml:"database" mapstructure:"database"`
	Redis         redis.Config         `yaml:"redis" mapstructure:"redis"`
	Tenant        tenant.Config        `yaml:"tenant" mapstructure:"tenant"`

	// Tiers is the admission table, keyed by tier name. Empty tables fall
	// back to the built-in free/pro/enterprise defaults.
	Tiers map[string]isolation.TierConfig `yaml:"tiers" mapstructure:"tiers"`
}

// Load reads the service configuration from config.yml and the environment,
// applies defaults, and validates the result.
func Load(opts ...LoaderOption) (*Config, error) {
	cfg := &Config{}
	if err := LoadConfig(ServiceName, cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults applies defaults to every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = ServiceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Observability.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Tenant.ApplyDefaults()

	if len(c.Tiers) == 0 {
		defaults := isolation.DefaultTierConfigs()
		c.Tiers = make(map[string]isolation.TierConfig, len(defaults))
		for tier, tc := range defaults {
			c.Tiers[tier.String()] = tc
		}
	}
	for name, tc := range c.Tiers {
		tc.ApplyDefaults()
		c.Tiers[name] = tc
	}
}

// Validate validates every section and the cross-section constraints.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := c.Tenant.Validate(); err != nil {
		return fmt.Errorf("tenant: %w", err)
	}
	if c.Tenant.Mode == tenant.ModeRedis && !c.Redis.Enabled {
		return fmt.Errorf("tenant: redis resolver requires the redis section to be enabled")
	}
	if len(c.Tiers) == 0 {
		return fmt.Errorf("tiers: at least one tier must be configured")
	}
	for name, tc := range c.Tiers {
		if _, err := isolation.ParseTier(name); err != nil {
			return fmt.Errorf("tiers: %w", err)
		}
		if err := tc.Validate(); err != nil {
			return fmt.Errorf("tiers.%s: %w", name, err)
		}
	}
	return nil
}

// TierConfigs returns the admission table keyed by parsed tier.
func (c *Config) TierConfigs() (map[isolation.Tier]isolation.TierConfig, error) {
	out := make(map[isolation.Tier]isolation.TierConfig, len(c.Tiers))
	for name, tc := range c.Tiers {
		tier, err := isolation.ParseTier(name)
		if err != nil {
			return nil, fmt.Errorf("tiers: %w", err)
		}
		out[tier] = tc
	}
	return out, nil
}
