package pool

import (
	"context"
	"fmt"

	"github.com/kbukum/tenantgate/component"
	"github.com/kbukum/tenantgate/logger"
)

// Component wraps a Pool and implements component.Component for lifecycle
// management. The name distinguishes per-tier pools in the registry
// (e.g. "pool.free").
type Component struct {
	name string
	cfg  Config
	log  *logger.Logger
	pool *Pool
}

// NewComponent creates a pool component for use with the component registry.
func NewComponent(name string, cfg Config, log *logger.Logger) *Component {
	return &Component{
		name: name,
		cfg:  cfg,
		log:  log.WithComponent(name),
	}
}

// Pool returns the underlying *Pool, or nil if not started.
func (c *Component) Pool() *Pool {
	return c.pool
}

var _ component.Component = (*Component)(nil)

// Name returns the component name.
func (c *Component) Name() string { return c.name }

// Start opens the pool and verifies connectivity.
func (c *Component) Start(ctx context.Context) error {
	p, err := Open(ctx, c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("%s start: %w", c.name, err)
	}
	c.pool = p
	return nil
}

// Stop closes the pool.
func (c *Component) Stop(_ context.Context) error {
	if c.pool == nil {
		return nil
	}
	return c.pool.Close()
}

// Health reports whether the backing database is reachable.
func (c *Component) Health(ctx context.Context) component.Health {
	if c.pool == nil {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: "pool not initialized",
		}
	}
	if err := c.pool.Ping(ctx); err != nil {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: fmt.Sprintf("ping failed: %v", err),
		}
	}
	return component.Health{
		Name:   c.Name(),
		Status: component.StatusHealthy,
	}
}

// Describe returns infrastructure summary info for the startup display.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    c.name,
		Type:    "pool",
		Details: fmt.Sprintf("driver=%s max=%d", c.cfg.Driver, c.cfg.MaxOpen),
	}
}
