package tenant

import (
	"fmt"
	"time"

	"github.com/kbukum/tenantgate/isolation"
	"github.com/kbukum/tenantgate/util"
)

// Resolver modes.
const (
	ModeStatic = "static"
	ModeJWT    = "jwt"
	ModeRedis  = "redis"
)

// Config selects and configures the tenant resolver.
type Config struct {
	// Mode selects the resolver implementation: "static", "jwt", or "redis".
	Mode string `mapstructure:"mode"`

	Static StaticConfig `mapstructure:"static"`
	JWT    JWTConfig    `mapstructure:"jwt"`
	Redis  RedisConfig  `mapstructure:"redis"`
}

// StaticConfig holds the static resolver's API key table.
type StaticConfig struct {
	// Keys maps bcrypt API key hashes to tiers.
	Keys []StaticKey `mapstructure:"keys"`

	// PlainKeys maps raw API keys to tier names. Intended for local
	// development only; production tables use bcrypt hashes.
	PlainKeys map[string]string `mapstructure:"plain_keys"`
}

// StaticKey is one bcrypt-hashed API key and the tier it grants.
type StaticKey struct {
	Hash string `mapstructure:"hash"`
	Tier string `mapstructure:"tier"`
}

// JWTConfig holds the jwt resolver's verification settings.
type JWTConfig struct {
	// Secret is the HMAC signing secret shared with the token issuer.
	Secret string `mapstructure:"secret"`

	// Issuer, when set, must match the token's iss claim.
	Issuer string `mapstructure:"issuer"`
}

// RedisConfig holds the redis resolver's lookup settings.
type RedisConfig struct {
	// HashKey is the Redis hash whose fields map API keys to tier names.
	HashKey string `mapstructure:"hash_key"`

	// CacheTTL is how long resolved keys are cached in process (e.g. "30s").
	CacheTTL string `mapstructure:"cache_ttl"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeStatic
	}
	c.Redis.ApplyDefaults()
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *RedisConfig) ApplyDefaults() {
	if c.HashKey == "" {
		c.HashKey = "tenantgate:apikeys"
	}
	if c.CacheTTL == "" {
		c.CacheTTL = "30s"
	}
}

// Validate checks the section selected by Mode.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeStatic:
		return c.Static.Validate()
	case ModeJWT:
		return c.JWT.Validate()
	case ModeRedis:
		return c.Redis.Validate()
	default:
		return fmt.Errorf("unknown tenant mode %q", c.Mode)
	}
}

// Validate checks that the key table is usable.
func (c *StaticConfig) Validate() error {
	if len(c.Keys) == 0 && len(c.PlainKeys) == 0 {
		return fmt.Errorf("static resolver requires at least one key")
	}
	for i, k := range c.Keys {
		if k.Hash == "" {
			return fmt.Errorf("static key %d: hash is required", i)
		}
		if _, err := isolation.ParseTier(k.Tier); err != nil {
			return fmt.Errorf("static key %d: %w", i, err)
		}
	}
	for key, tier := range c.PlainKeys {
		if _, err := isolation.ParseTier(tier); err != nil {
			return fmt.Errorf("plain key %s: %w", util.MaskSecret(key, 4), err)
		}
	}
	return nil
}

// Validate checks that verification settings are present.
func (c *JWTConfig) Validate() error {
	if c.Secret == "" {
		return fmt.Errorf("jwt resolver requires a secret")
	}
	return nil
}

// Validate checks that lookup settings are present and parseable.
func (c *RedisConfig) Validate() error {
	if c.HashKey == "" {
		return fmt.Errorf("redis resolver requires a hash_key")
	}
	if _, err := time.ParseDuration(c.CacheTTL); err != nil {
		return fmt.Errorf("invalid cache_ttl %q: %w", c.CacheTTL, err)
	}
	return nil
}
