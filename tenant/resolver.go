package tenant

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kbukum/tenantgate/isolation"
	"github.com/kbukum/tenantgate/logger"
	"github.com/kbukum/tenantgate/redis"
)

// ErrUnresolved is returned when a request carries no recognizable tenant
// credentials. Infrastructure failures during resolution are reported as
// ordinary errors, not ErrUnresolved.
var ErrUnresolved = errors.New("tenant unresolved")

// APIKeyHeader is the header carrying the tenant's API key.
const APIKeyHeader = "X-API-Key"

// Resolver maps an inbound request to a tenant tier before the admission
// core runs. Implementations never return an unknown tier: anything that
// does not resolve to a configured tier is ErrUnresolved.
type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (isolation.Tier, error)
}

// New builds the resolver selected by cfg.Mode. The redis client may be nil
// unless the redis mode is selected.
func New(cfg Config, redisClient *redis.Client, log *logger.Logger) (Resolver, error) {
	cfg.ApplyDefaults()
	switch cfg.Mode {
	case ModeStatic:
		return NewStaticResolver(cfg.Static)
	case ModeJWT:
		return NewJWTResolver(cfg.JWT)
	case ModeRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis resolver requires an enabled redis client")
		}
		return NewRedisResolver(cfg.Redis, redisClient, log)
	default:
		return nil, fmt.Errorf("unknown tenant mode %q", cfg.Mode)
	}
}

// apiKey extracts the API key header, or ErrUnresolved when absent.
func apiKey(r *http.Request) (string, error) {
	key := r.Header.Get(APIKeyHeader)
	if key == "" {
		return "", fmt.Errorf("%w: missing %s header", ErrUnresolved, APIKeyHeader)
	}
	return key, nil
}
