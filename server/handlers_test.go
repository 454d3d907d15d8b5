package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/kbukum/tenantgate/isolation"
	"github.com/kbukum/tenantgate/logger"
	"github.com/kbukum/tenantgate/server"
	"github.com/kbukum/tenantgate/server/middleware"
	"github.com/kbukum/tenantgate/tenant"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fixedResolver resolves every request to one tier.
type fixedResolver struct {
	tier isolation.Tier
	err  error
}

func (f fixedResolver) Resolve(context.Context, *http.Request) (isolation.Tier, error) {
	return f.tier, f.err
}

func newTestManager(t *testing.T, tiers map[isolation.Tier]isolation.TierConfig) *isolation.Manager {
	t.Helper()
	m, err := isolation.NewManager(isolation.ManagerConfig{
		Tiers:  tiers,
		Clock:  clocktesting.NewFakeClock(time.Now()),
		Logger: logger.NewDefault("test"),
	})
	if err != nil {
		t.Fatalf("unexpected error creating manager: %v", err)
	}
	return m
}

func newTestEngine(t *testing.T, m *isolation.Manager, resolver tenant.Resolver) *gin.Engine {
	t.Helper()
	log := logger.NewDefault("test")
	api, err := server.NewAPI(server.APIConfig{
		ServiceName: "tenantgate-test",
		Manager:     m,
		Logger:      log,
	})
	if err != nil {
		t.Fatalf("unexpected error creating api: %v", err)
	}

	engine := gin.New()
	api.Register(engine, middleware.Tenant(resolver, log))
	return engine
}

func postQuery(engine *gin.Engine, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest("POST", "/v1/query", http.NoBody)
	} else {
		req = httptest.NewRequest("POST", "/v1/query", strings.NewReader(body))
	}
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code      string `json:"code"`
			Retryable bool   `json:"retryable"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("error response is not valid JSON: %v (%s)", err, rr.Body.String())
	}
	return body.Error.Code
}

func TestQuery_Success(t *testing.T) {
	m := newTestManager(t, map[isolation.Tier]isolation.TierConfig{
		isolation.TierFree: {MaxConcurrent: 2, Quota: 3},
	})
	engine := newTestEngine(t, m, fixedResolver{tier: isolation.TierFree})

	rr := postQuery(engine, `{}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp server.QueryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.Tier != "free" {
		t.Errorf("expected tier free, got %q", resp.Tier)
	}
	if resp.Rows != 1 {
		t.Errorf("expected 1 row, got %d", resp.Rows)
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "3" {
		t.Errorf("expected X-RateLimit-Limit 3, got %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "2" {
		t.Errorf("expected X-RateLimit-Remaining 2, got %q", got)
	}
}

func TestQuery_EmptyBody(t *testing.T) {
	m := newTestManager(t, map[isolation.Tier]isolation.TierConfig{
		isolation.TierFree: {MaxConcurrent: 2},
	})
	engine := newTestEngine(t, m, fixedResolver{tier: isolation.TierFree})

	rr := postQuery(engine, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty body, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestQuery_UnlimitedTierOmitsRateHeaders(t *testing.T) {
	m := newTestManager(t, map[isolation.Tier]isolation.TierConfig{
		isolation.TierEnterprise: {MaxConcurrent: 4},
	})
	engine := newTestEngine(t, m, fixedResolver{tier: isolation.TierEnterprise})

	rr := postQuery(engine, `{}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "" {
		t.Errorf("expected no X-RateLimit-Limit for unlimited tier, got %q", got)
	}
}

func TestQuery_SleepHoldsRequest(t *testing.T) {
	m := newTestManager(t, map[isolation.Tier]isolation.TierConfig{
		isolation.TierPro: {MaxConcurrent: 2},
	})
	engine := newTestEngine(t, m, fixedResolver{tier: isolation.TierPro})

	start := time.Now()
	rr := postQuery(engine, `{"sleep_ms": 30}`)
	elapsed := time.Since(start)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if elapsed < 25*time.Millisecond {
		t.Errorf("expected request to take at least 25ms, took %v", elapsed)
	}

	var resp server.QueryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.DurationMS < 25 {
		t.Errorf("expected duration_ms >= 25, got %d", resp.DurationMS)
	}
}

func TestQuery_RateLimited(t *testing.T) {
	m := newTestManager(t, map[isolation.Tier]isolation.TierConfig{
		isolation.TierFree: {MaxConcurrent: 2, Quota: 1},
	})
	engine := newTestEngine(t, m, fixedResolver{tier: isolation.TierFree})

	if rr := postQuery(engine, `{}`); rr.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rr.Code)
	}

	rr := postQuery(engine, `{}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "RATE_LIMITED" {
		t.Errorf("expected RATE_LIMITED, got %q", code)
	}
	if got := rr.Header().Get("Retry-After"); got != "60" {
		t.Errorf("expected Retry-After 60, got %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("expected X-RateLimit-Remaining 0, got %q", got)
	}
}

func TestQuery_FailureTripsBreaker(t *testing.T) {
	m := newTestManager(t, map[isolation.Tier]isolation.TierConfig{
		isolation.TierPro: {MaxConcurrent: 2, FailureThreshold: 2},
	})
	engine := newTestEngine(t, m, fixedResolver{tier: isolation.TierPro})

	for i := 0; i < 2; i++ {
		rr := postQuery(engine, `{"fail": true}`)
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("failure %d: expected 503, got %d", i, rr.Code)
		}
		if code := errorCode(t, rr); code != "UPSTREAM_ERROR" {
			t.Fatalf("failure %d: expected UPSTREAM_ERROR, got %q", i, code)
		}
	}

	// Breaker is open now; even a healthy request is rejected.
	rr := postQuery(engine, `{}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with open breaker, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "CIRCUIT_OPEN" {
		t.Errorf("expected CIRCUIT_OPEN, got %q", code)
	}
}

func TestQuery_ValidationRejectsBadSleep(t *testing.T) {
	m := newTestManager(t, map[isolation.Tier]isolation.TierConfig{
		isolation.TierFree: {MaxConcurrent: 2},
	})
	engine := newTestEngine(t, m, fixedResolver{tier: isolation.TierFree})

	for _, body := range []string{`{"sleep_ms": -5}`, `{"sleep_ms": 20000}`, `{"sleep_ms": "soon"}`} {
		rr := postQuery(engine, body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, rr.Code)
			continue
		}
		if code := errorCode(t, rr); code != "INVALID_INPUT" {
			t.Errorf("body %s: expected INVALID_INPUT, got %q", body, code)
		}
	}
}

func TestQuery_UnresolvedTenant(t *testing.T) {
	m := newTestManager(t, map[isolation.Tier]isolation.TierConfig{
		isolation.TierFree: {MaxConcurrent: 2},
	})
	engine := newTestEngine(t, m, fixedResolver{err: fmt.Errorf("%w: missing key", tenant.ErrUnresolved)})

	rr := postQuery(engine, `{}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "UNKNOWN_TENANT" {
		t.Errorf("expected UNKNOWN_TENANT, got %q", code)
	}
}

func TestTiers_Snapshot(t *testing.T) {
	m := newTestManager(t, map[isolation.Tier]isolation.TierConfig{
		isolation.TierFree: {MaxConcurrent: 2, Quota: 5},
		isolation.TierPro:  {MaxConcurrent: 4, Quota: 50},
	})
	engine := newTestEngine(t, m, fixedResolver{tier: isolation.TierFree})

	// Consume one admission so the snapshot shows live state.
	if rr := postQuery(engine, `{}`); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	req := httptest.NewRequest("GET", "/v1/tiers", http.NoBody)
	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp server.TiersResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if len(resp.Tiers) != 2 {
		t.Fatalf("expected 2 tiers, got %d", len(resp.Tiers))
	}
	if resp.Tiers[0].Tier != isolation.TierFree || resp.Tiers[1].Tier != isolation.TierPro {
		t.Errorf("unexpected tier order: %v, %v", resp.Tiers[0].Tier, resp.Tiers[1].Tier)
	}
	if resp.Tiers[0].Breaker.State != "closed" {
		t.Errorf("expected closed breaker, got %q", resp.Tiers[0].Breaker.State)
	}
	if resp.Tiers[0].Bulkhead.MaxConcurrent != 2 {
		t.Errorf("expected max_concurrent 2, got %d", resp.Tiers[0].Bulkhead.MaxConcurrent)
	}
}

func TestNewAPI_RequiresManager(t *testing.T) {
	_, err := server.NewAPI(server.APIConfig{})
	if err == nil {
		t.Fatal("expected error for missing manager")
	}
}
