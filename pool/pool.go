package pool

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/tenantgate/logger"
	"github.com/kbukum/tenantgate/resilience"
)

// Pool is a bounded connection pool over database/sql. One Pool backs one
// tier; tiers never share pools, so one tier exhausting its connections
// cannot starve another.
type Pool struct {
	db             *sql.DB
	cfg            Config
	log            *logger.Logger
	acquireTimeout time.Duration

	// pending counts callers blocked in connection acquisition.
	pending atomic.Int64

	mu     sync.Mutex
	closed bool
}

// Stats is a point-in-time view of pool occupancy.
type Stats struct {
	// Active is the number of connections currently in use.
	Active int
	// Idle is the number of open connections sitting idle.
	Idle int
	// Pending is the number of callers waiting to acquire a connection.
	Pending int
	// Max is the configured connection cap.
	Max int
}

// Open opens the pool and verifies connectivity with a bounded retry loop,
// so a slow-starting database does not fail service startup.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*Pool, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	if lifetime, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
		db.SetConnMaxLifetime(lifetime)
	}
	if idleTime, err := time.ParseDuration(cfg.ConnMaxIdleTime); err == nil {
		db.SetConnMaxIdleTime(idleTime)
	}

	backoff, _ := time.ParseDuration(cfg.ConnectBackoff)
	retryCfg := resilience.RetryConfig{
		MaxAttempts:    cfg.ConnectAttempts,
		InitialBackoff: backoff,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			log.Warn("Pool connection attempt failed, retrying", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
				"backoff": backoff.String(),
			})
		},
	}
	if err := resilience.RetryFunc(ctx, retryCfg, func() error {
		return db.PingContext(ctx)
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping pool after %d attempts: %w", cfg.ConnectAttempts, err)
	}

	acquireTimeout, _ := time.ParseDuration(cfg.AcquireTimeout)
	log.Info("Resource pool ready", map[string]interface{}{
		"driver":   cfg.Driver,
		"max_open": cfg.MaxOpen,
	})

	return &Pool{
		db:             db,
		cfg:            cfg,
		log:            log,
		acquireTimeout: acquireTimeout,
	}, nil
}

// WithConn acquires a dedicated connection, runs fn with it, and returns the
// connection to the pool. Acquisition is bounded by AcquireTimeout and is the
// only wait a task incurs; exceeding it surfaces as an ordinary error, not a
// distinct outcome. Callers blocked here are visible as Stats().Pending.
func (p *Pool) WithConn(ctx context.Context, fn func(ctx context.Context, conn *sql.Conn) error) error {
	acquireCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	p.pending.Add(1)
	conn, err := p.db.Conn(acquireCtx)
	p.pending.Add(-1)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	return fn(ctx, conn)
}

// Stats reports pool occupancy. Active, Idle, and Max come from the
// database/sql pool; Pending is maintained here because DBStats only exposes
// cumulative wait counts, not current waiters.
func (p *Pool) Stats() Stats {
	s := p.db.Stats()
	return Stats{
		Active:  s.InUse,
		Idle:    s.Idle,
		Pending: int(p.pending.Load()),
		Max:     s.MaxOpenConnections,
	}
}

// Ping verifies the backing database is reachable.
func (p *Pool) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the pool. Safe to call multiple times.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.log.Info("Closing resource pool")
	p.closed = true
	return p.db.Close()
}

// DB returns the underlying *sql.DB for callers that need query access
// beyond WithConn.
func (p *Pool) DB() *sql.DB {
	return p.db
}
