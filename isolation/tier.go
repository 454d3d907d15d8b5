package isolation

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownTier is returned when a tier identifier is not one of the
// configured tiers. Callers are expected to resolve tenants to a known tier
// before invoking the manager, so seeing this error means a contract
// violation upstream.
var ErrUnknownTier = errors.New("unknown tier")

// Tier identifies one tenant class. The set of tiers is fixed and closed;
// each tier owns an isolated rate limiter, circuit breaker, bulkhead, and
// resource pool.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Tiers returns all known tiers in canonical order.
func Tiers() []Tier {
	return []Tier{TierFree, TierPro, TierEnterprise}
}

// ParseTier maps s to a known Tier. Unknown strings yield an error wrapping
// ErrUnknownTier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	switch t {
	case TierFree, TierPro, TierEnterprise:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
}

// String implements fmt.Stringer.
func (t Tier) String() string { return string(t) }

// TierConfig holds one tier's limits. Configuration is read once at start-up
// and is immutable after the manager is constructed.
type TierConfig struct {
	// MaxConcurrent bounds how many tasks execute at once for the tier.
	MaxConcurrent int `mapstructure:"max_concurrent"`

	// MaxQueueDepth caps the bulkhead's pending queue. Zero means unbounded:
	// excess submissions queue without limit instead of being rejected.
	MaxQueueDepth int `mapstructure:"max_queue_depth"`

	// PoolSize is the capacity of the tier's backing resource pool.
	PoolSize int `mapstructure:"pool_size"`

	// Quota is the number of requests admitted per rate window. Zero or
	// negative means unlimited.
	Quota int `mapstructure:"quota"`

	// FailureThreshold is the number of consecutive operation failures
	// before the tier's circuit opens.
	FailureThreshold int `mapstructure:"failure_threshold"`

	// ResetTimeout is how long an open circuit waits before admitting a
	// probe (e.g. "15s").
	ResetTimeout string `mapstructure:"reset_timeout"`

	// Pool is the tier's resource pool handle, wired in by the service at
	// start-up. A nil pool reports zero stats.
	Pool ResourcePool `mapstructure:"-"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields. Quota and
// MaxQueueDepth are left alone: zero is meaningful for both.
func (c *TierConfig) ApplyDefaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 5
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 5
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout == "" {
		c.ResetTimeout = "15s"
	}
}

// Validate checks that the tier limits are present and parseable.
func (c *TierConfig) Validate() error {
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be > 0")
	}
	if c.MaxQueueDepth < 0 {
		return fmt.Errorf("max_queue_depth must be >= 0")
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be > 0")
	}
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("failure_threshold must be > 0")
	}
	if _, err := time.ParseDuration(c.ResetTimeout); err != nil {
		return fmt.Errorf("invalid reset_timeout %q: %w", c.ResetTimeout, err)
	}
	return nil
}

// DefaultTierConfigs returns the built-in tier table: free (2 workers,
// 100 req/min), pro (5 workers, 1000 req/min), enterprise (10 workers,
// unlimited).
func DefaultTierConfigs() map[Tier]TierConfig {
	return map[Tier]TierConfig{
		TierFree: {
			MaxConcurrent:    2,
			PoolSize:         2,
			Quota:            100,
			FailureThreshold: 5,
			ResetTimeout:     "15s",
		},
		TierPro: {
			MaxConcurrent:    5,
			PoolSize:         5,
			Quota:            1000,
			FailureThreshold: 5,
			ResetTimeout:     "15s",
		},
		TierEnterprise: {
			MaxConcurrent:    10,
			PoolSize:         10,
			Quota:            0,
			FailureThreshold: 5,
			ResetTimeout:     "15s",
		},
	}
}
