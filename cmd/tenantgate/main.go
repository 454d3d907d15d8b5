// Command tenantgate runs the tenant-isolated admission service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel"

	"github.com/kbukum/tenantgate/component"
	"github.com/kbukum/tenantgate/config"
	"github.com/kbukum/tenantgate/isolation"
	"github.com/kbukum/tenantgate/logger"
	"github.com/kbukum/tenantgate/observability"
	"github.com/kbukum/tenantgate/pool"
	"github.com/kbukum/tenantgate/redis"
	"github.com/kbukum/tenantgate/server"
	"github.com/kbukum/tenantgate/server/middleware"
	"github.com/kbukum/tenantgate/tenant"
	"github.com/kbukum/tenantgate/version"
)

const meterName = "github.com/kbukum/tenantgate"

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		logger.Fatal("tenantgate failed", logger.Fields("error", err.Error()))
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(cfg.Logging)
	log := logger.GetGlobalLogger()

	info := version.GetVersionInfo()
	log.Info("Starting tenantgate", logger.Fields(
		"version", info.Version,
		"environment", cfg.Environment,
	))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Observability.Enabled {
		tp, err := observability.InitTracer(ctx, cfg.Observability.TracerConfig(cfg.Name, info.Version))
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer shutdownProvider(tp.Shutdown, log)

		meterCfg := cfg.Observability.MeterConfig(cfg.Name, info.Version)
		mp, err := observability.InitMeter(ctx, &meterCfg)
		if err != nil {
			return fmt.Errorf("init meter: %w", err)
		}
		defer shutdownProvider(mp.Shutdown, log)
	}

	meter := otel.Meter(meterName)
	metrics, err := observability.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("build metrics: %w", err)
	}

	tiers, err := cfg.TierConfigs()
	if err != nil {
		return err
	}

	registry := component.NewRegistry()

	var redisComponent *redis.Component
	if cfg.Redis.Enabled {
		redisComponent = redis.NewComponent(cfg.Redis, log)
		if err := registry.Register(redisComponent); err != nil {
			return err
		}
	}

	poolComponents := make(map[isolation.Tier]*pool.Component)
	if cfg.Database.Enabled {
		for _, tier := range isolation.Tiers() {
			tc, ok := tiers[tier]
			if !ok {
				continue
			}
			// Each tier gets its own pool sized from the tier table.
			poolCfg := cfg.Database
			poolCfg.MaxOpen = tc.PoolSize
			poolCfg.MaxIdle = tc.PoolSize
			comp := pool.NewComponent("pool."+tier.String(), poolCfg, log)
			if err := registry.Register(comp); err != nil {
				return err
			}
			poolComponents[tier] = comp
		}
	}

	// Phase 1: infrastructure. Pools and redis must be up before the
	// resolver and manager are wired to them.
	if err := registry.StartAll(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := registry.StopAll(stopCtx); err != nil {
			log.Error("Shutdown finished with errors", logger.Fields("error", err.Error()))
		}
	}()

	var redisClient *redis.Client
	if redisComponent != nil {
		redisClient = redisComponent.Client()
	}

	resolver, err := tenant.New(cfg.Tenant, redisClient, log)
	if err != nil {
		return fmt.Errorf("build tenant resolver: %w", err)
	}

	pools := make(map[isolation.Tier]*pool.Pool, len(poolComponents))
	for tier, tc := range tiers {
		if comp, ok := poolComponents[tier]; ok {
			pools[tier] = comp.Pool()
			tc.Pool = poolStats{comp.Pool()}
			tiers[tier] = tc
		}
	}

	manager, err := isolation.NewManager(isolation.ManagerConfig{
		Tiers:  tiers,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("build isolation manager: %w", err)
	}

	gauges, err := observability.RegisterTierGauges(meter, func() []observability.TierSample {
		return tierSamples(manager)
	})
	if err != nil {
		return fmt.Errorf("register tier gauges: %w", err)
	}
	defer func() { _ = gauges.Unregister() }()

	srv := server.New(cfg.Server, log)
	api, err := server.NewAPI(server.APIConfig{
		ServiceName: cfg.Name,
		Manager:     manager,
		Pools:       pools,
		Metrics:     metrics,
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("build api: %w", err)
	}
	api.Register(srv.GinEngine(), middleware.Tenant(resolver, log))
	srv.ApplyDefaults(cfg.Name, registry.HealthAll)
	srv.LogRoutes()

	if err := registry.Register(server.NewComponent(srv)); err != nil {
		return err
	}

	// Phase 2: accept traffic.
	if err := registry.StartAll(ctx); err != nil {
		return err
	}

	log.Info("tenantgate ready", logger.Fields(
		"addr", srv.Addr(),
		"tiers", len(tiers),
		"tenant_mode", cfg.Tenant.Mode,
		"database", cfg.Database.Enabled,
	))

	<-ctx.Done()
	log.Info("Shutdown signal received")
	return nil
}

// poolStats projects a tier pool's occupancy for the isolation manager.
type poolStats struct {
	p *pool.Pool
}

func (a poolStats) Stats() isolation.PoolStats {
	if a.p == nil {
		return isolation.PoolStats{}
	}
	s := a.p.Stats()
	return isolation.PoolStats{
		Active:  s.Active,
		Idle:    s.Idle,
		Pending: s.Pending,
		Max:     s.Max,
	}
}

// tierSamples flattens the manager snapshot for the observable gauges.
func tierSamples(m *isolation.Manager) []observability.TierSample {
	snaps := m.Snapshot()
	samples := make([]observability.TierSample, 0, len(snaps))
	for _, s := range snaps {
		samples = append(samples, observability.TierSample{
			Tier:           s.Tier.String(),
			BulkheadActive: int64(s.Bulkhead.Active),
			BulkheadQueued: int64(s.Bulkhead.Queued),
			BreakerState:   observability.BreakerStateCode(s.Breaker.State),
			PoolActive:     int64(s.Pool.Active),
			PoolPending:    int64(s.Pool.Pending),
		})
	}
	return samples
}

func shutdownProvider(fn func(context.Context) error, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Warn("Telemetry shutdown failed", logger.Fields("error", err.Error()))
	}
}
