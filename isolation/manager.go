package isolation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/utils/clock"

	"github.com/kbukum/tenantgate/logger"
	"github.com/kbukum/tenantgate/resilience"
)

// ResourcePool is the consumed pool interface. The manager only projects
// occupancy stats from it; acquisition happens inside the caller-supplied
// operation.
type ResourcePool interface {
	Stats() PoolStats
}

// PoolStats is a point-in-time view of a tier's resource pool.
type PoolStats struct {
	Active  int `json:"active"`
	Idle    int `json:"idle"`
	Pending int `json:"pending"`
	Max     int `json:"max"`
}

// BulkheadStats is a point-in-time view of a tier's bulkhead.
type BulkheadStats struct {
	Active        int `json:"active"`
	Queued        int `json:"queued"`
	MaxConcurrent int `json:"max_concurrent"`
}

// BreakerStats is a point-in-time view of a tier's circuit breaker.
type BreakerStats struct {
	State    string `json:"state"`
	Failures int    `json:"failures"`
}

// TierSnapshot is the metrics projection for one tier.
type TierSnapshot struct {
	Tier     Tier          `json:"tier"`
	Pool     PoolStats     `json:"pool"`
	Bulkhead BulkheadStats `json:"bulkhead"`
	Breaker  BreakerStats  `json:"breaker"`
}

// Operation is a caller-supplied unit of work run against the tier's
// resource pool once admitted.
type Operation func(ctx context.Context) error

// Result reports how one Handle call settled. Err is nil only on success;
// rejections carry the matching resilience sentinel and operation failures
// carry the operation's error verbatim.
type Result struct {
	// Outcome is the admission outcome.
	Outcome Outcome

	// Decision is the rate limiter's admission decision, kept for response
	// headers.
	Decision resilience.Decision

	// Err is the failure cause. Nil when Outcome is OutcomeSuccess.
	Err error
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Tiers maps each tier to its configuration. Every key must be a known
	// tier; the set is fixed after construction.
	Tiers map[Tier]TierConfig

	// Clock supplies time for limiters and breakers; defaults to the real
	// clock.
	Clock clock.Clock

	// Logger records breaker transitions and bulkhead rejections. Defaults
	// to the global logger.
	Logger *logger.Logger
}

// tierResources bundles one tier's admission chain. Instances are never
// shared across tiers.
type tierResources struct {
	config   TierConfig
	limiter  *resilience.RateLimiter
	breaker  *resilience.CircuitBreaker
	bulkhead *resilience.Bulkhead
	pool     ResourcePool
}

// Manager owns one rate limiter, circuit breaker, bulkhead, and resource
// pool handle per tier and presents a uniform admit-and-execute operation.
// The tier map is built once at construction and never mutated, so lookups
// need no locking; all mutable state lives inside the per-tier components.
type Manager struct {
	tiers map[Tier]*tierResources
	order []Tier
	log   *logger.Logger
}

// NewManager builds the per-tier resources from cfg. Unknown tier keys and
// invalid tier limits are construction errors.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if len(cfg.Tiers) == 0 {
		return nil, fmt.Errorf("no tiers configured")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	log = log.WithComponent("isolation")

	m := &Manager{
		tiers: make(map[Tier]*tierResources, len(cfg.Tiers)),
		log:   log,
	}

	for _, tier := range Tiers() {
		tc, ok := cfg.Tiers[tier]
		if !ok {
			continue
		}
		tc.ApplyDefaults()
		if err := tc.Validate(); err != nil {
			return nil, fmt.Errorf("tier %s: %w", tier, err)
		}
		resetTimeout, err := time.ParseDuration(tc.ResetTimeout)
		if err != nil {
			return nil, fmt.Errorf("tier %s: invalid reset_timeout %q: %w", tier, tc.ResetTimeout, err)
		}
		m.tiers[tier] = m.buildResources(tier, tc, resetTimeout, cfg.Clock)
		m.order = append(m.order, tier)
	}

	for tier := range cfg.Tiers {
		if _, ok := m.tiers[tier]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
		}
	}
	return m, nil
}

func (m *Manager) buildResources(tier Tier, tc TierConfig, resetTimeout time.Duration, clk clock.Clock) *tierResources {
	name := string(tier)
	return &tierResources{
		config: tc,
		limiter: resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Name:  name,
			Quota: tc.Quota,
			Clock: clk,
		}),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             name,
			FailureThreshold: tc.FailureThreshold,
			ResetTimeout:     resetTimeout,
			Clock:            clk,
			OnStateChange: func(name string, from, to resilience.State) {
				m.log.Warn("Circuit breaker state changed", map[string]interface{}{
					logger.FieldTier: name,
					"from":           from.String(),
					"to":             to.String(),
				})
			},
		}),
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          name,
			MaxConcurrent: tc.MaxConcurrent,
			MaxQueueDepth: tc.MaxQueueDepth,
			OnReject: func(name string) {
				m.log.Warn("Bulkhead queue full", map[string]interface{}{
					logger.FieldTier: name,
				})
			},
		}),
		pool: tc.Pool,
	}
}

// Handle admits and executes op for the given tier: rate limiter first (a
// rejection there consumes no bulkhead or breaker resource), then the
// bulkhead, which runs op inside the tier's circuit breaker once a slot is
// available. It blocks until op settles or ctx is done.
//
// The error return is non-nil only for unknown tiers; every other failure is
// reported through the Result so callers can map outcomes to transport
// responses without inspecting error identity.
func (m *Manager) Handle(ctx context.Context, tier Tier, op Operation) (Result, error) {
	res, ok := m.tiers[tier]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}

	decision := res.limiter.Allow()
	if !decision.Allowed {
		return Result{
			Outcome:  OutcomeRateLimited,
			Decision: decision,
			Err:      resilience.ErrRateLimited,
		}, nil
	}

	err := res.bulkhead.Submit(ctx, func() error {
		return res.breaker.Execute(func() error {
			return op(ctx)
		})
	})

	return Result{
		Outcome:  classify(err),
		Decision: decision,
		Err:      err,
	}, nil
}

// Execute runs fn through the tier's admission chain and returns its typed
// payload alongside the admission Result. On any non-success outcome the
// zero value is returned.
func Execute[T any](ctx context.Context, m *Manager, tier Tier, fn func(ctx context.Context) (T, error)) (T, Result, error) {
	var payload T
	result, err := m.Handle(ctx, tier, func(ctx context.Context) error {
		v, fnErr := fn(ctx)
		if fnErr != nil {
			return fnErr
		}
		payload = v
		return nil
	})
	if err != nil || result.Outcome != OutcomeSuccess {
		var zero T
		return zero, result, err
	}
	return payload, result, nil
}

// Snapshot returns a point-in-time view of every configured tier in
// canonical order. It is a pure projection of current state, safe to poll
// at any rate.
func (m *Manager) Snapshot() []TierSnapshot {
	snaps := make([]TierSnapshot, 0, len(m.order))
	for _, tier := range m.order {
		res := m.tiers[tier]
		snap := TierSnapshot{
			Tier: tier,
			Bulkhead: BulkheadStats{
				Active:        res.bulkhead.Active(),
				Queued:        res.bulkhead.Queued(),
				MaxConcurrent: res.bulkhead.MaxConcurrent(),
			},
			Breaker: BreakerStats{
				State:    res.breaker.State().String(),
				Failures: res.breaker.Failures(),
			},
		}
		if res.pool != nil {
			snap.Pool = res.pool.Stats()
		}
		snaps = append(snaps, snap)
	}
	return snaps
}

// classify maps a settled bulkhead/breaker error to its outcome.
func classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, resilience.ErrCircuitOpen):
		return OutcomeCircuitOpen
	case errors.Is(err, resilience.ErrQueueFull):
		return OutcomeQueueFull
	default:
		return OutcomeOperationFailed
	}
}
