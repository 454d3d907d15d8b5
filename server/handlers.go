package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/tenantgate/errors"
	"github.com/kbukum/tenantgate/isolation"
	"github.com/kbukum/tenantgate/logger"
	"github.com/kbukum/tenantgate/observability"
	"github.com/kbukum/tenantgate/pool"
	"github.com/kbukum/tenantgate/server/middleware"
)

// errSimulatedFailure is returned by the query operation when the caller asks
// for a failure via the request body.
var errSimulatedFailure = errors.New("simulated upstream failure")

// QueryRequest is the body of POST /v1/query. An empty body is a zero request.
type QueryRequest struct {
	// SleepMS is how long the backing query holds a connection, in
	// milliseconds.
	SleepMS int `json:"sleep_ms" binding:"min=0,max=10000"`
	// Fail makes the operation return an error after the sleep, feeding the
	// tier's circuit breaker.
	Fail bool `json:"fail"`
}

// QueryResponse is the success body of POST /v1/query.
type QueryResponse struct {
	Tier       string `json:"tier"`
	DurationMS int64  `json:"duration_ms"`
	Rows       int64  `json:"rows"`
}

// TiersResponse is the body of GET /v1/tiers.
type TiersResponse struct {
	Tiers []isolation.TierSnapshot `json:"tiers"`
}

// APIConfig carries the dependencies of the admission API.
type APIConfig struct {
	// ServiceName appears in spans and log fields.
	ServiceName string
	// Manager is the tier isolation manager. Required.
	Manager *isolation.Manager
	// Pools maps each tier to its database pool. Tiers without a pool run
	// the query operation in-process.
	Pools map[isolation.Tier]*pool.Pool
	// Metrics records admission decisions. Optional.
	Metrics *observability.Metrics
	// Logger defaults to the global logger.
	Logger *logger.Logger
}

// API holds the admission-protected route handlers.
type API struct {
	service string
	manager *isolation.Manager
	pools   map[isolation.Tier]*pool.Pool
	metrics *observability.Metrics
	log     *logger.Logger
}

// NewAPI creates the admission API.
func NewAPI(cfg APIConfig) (*API, error) {
	if cfg.Manager == nil {
		return nil, fmt.Errorf("api: manager is required")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "tenantgate"
	}
	log := cfg.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &API{
		service: cfg.ServiceName,
		manager: cfg.Manager,
		pools:   cfg.Pools,
		metrics: cfg.Metrics,
		log:     log.WithComponent("api"),
	}, nil
}

// Register mounts the /v1 routes. The query route sits behind the tenant
// middleware; the tiers snapshot is open like the probe endpoints.
func (a *API) Register(engine *gin.Engine, tenantMW gin.HandlerFunc) {
	v1 := engine.Group("/v1")
	v1.GET("/tiers", a.Tiers)
	v1.POST("/query", tenantMW, a.Query)
}

// Query runs the admission-protected demo operation on the caller's tier.
func (a *API) Query(c *gin.Context) {
	tier, ok := middleware.TierFromContext(c)
	if !ok {
		RespondWithError(c, apperrors.Internal(errors.New("no tier in request context")))
		return
	}

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		RespondWithError(c, apperrors.Validation(err.Error()))
		return
	}

	oc := observability.NewOperationContext(
		a.service, "query", c.GetHeader("X-Request-Id"), string(tier), a.metrics,
	)
	ctx, span := oc.StartSpanForOperation(c.Request.Context(), observability.SpanAdmission)

	rows, result, err := isolation.Execute(ctx, a.manager, tier, func(ctx context.Context) (int64, error) {
		return a.runQuery(ctx, tier, req)
	})
	if err != nil {
		oc.EndOperation(ctx, span, "error", err)
		RespondWithError(c, apperrors.Internal(err))
		return
	}

	oc.EndOperation(ctx, span, result.Outcome.String(), result.Err)
	a.respondOutcome(c, tier, result, rows, oc.StartTime)
}

// Tiers returns the point-in-time snapshot of every tier.
func (a *API) Tiers(c *gin.Context) {
	c.JSON(http.StatusOK, TiersResponse{Tiers: a.manager.Snapshot()})
}

// respondOutcome maps an admission result onto the HTTP response. Rate-limit
// headers are set on every limited response; Retry-After only on rejection.
func (a *API) respondOutcome(c *gin.Context, tier isolation.Tier, result isolation.Result, rows int64, started time.Time) {
	d := result.Decision
	if !d.Unlimited {
		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	}

	switch result.Outcome {
	case isolation.OutcomeSuccess:
		c.JSON(http.StatusOK, QueryResponse{
			Tier:       string(tier),
			DurationMS: time.Since(started).Milliseconds(),
			Rows:       rows,
		})
	case isolation.OutcomeRateLimited:
		c.Header("Retry-After", strconv.Itoa(ceilSeconds(d.RetryAfter)))
		RespondWithError(c, apperrors.RateLimited())
	case isolation.OutcomeCircuitOpen:
		RespondWithError(c, apperrors.CircuitOpen(string(tier)))
	case isolation.OutcomeQueueFull:
		RespondWithError(c, apperrors.QueueFull(string(tier)))
	default:
		RespondWithError(c, apperrors.Upstream(result.Err))
	}
}

// runQuery holds a pooled connection for the requested duration. Tiers
// without a configured pool simulate the work in-process.
func (a *API) runQuery(ctx context.Context, tier isolation.Tier, req QueryRequest) (int64, error) {
	sleep := time.Duration(req.SleepMS) * time.Millisecond

	p := a.pools[tier]
	if p == nil {
		if sleep > 0 {
			t := time.NewTimer(sleep)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-t.C:
			}
		}
		if req.Fail {
			return 0, errSimulatedFailure
		}
		return 1, nil
	}

	var rows int64
	err := p.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		if sleep > 0 {
			if _, err := conn.ExecContext(ctx, "SELECT pg_sleep($1)", sleep.Seconds()); err != nil {
				return fmt.Errorf("pg_sleep: %w", err)
			}
		}
		if req.Fail {
			return errSimulatedFailure
		}
		rows = 1
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rows, nil
}

// ceilSeconds rounds d up to whole seconds, never below 1.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
